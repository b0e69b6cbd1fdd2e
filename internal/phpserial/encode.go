package phpserial

import (
	"strconv"
	"strings"
)

// Encode serializes v. Encode(Decode(s)) == s for every s Decode accepts.
func Encode(v Value) string {
	var b strings.Builder
	encode(&b, v)
	return b.String()
}

func encode(b *strings.Builder, v Value) {
	switch t := v.(type) {
	case nil, Null:
		b.WriteString("N;")
	case Bool:
		if t {
			b.WriteString("b:1;")
		} else {
			b.WriteString("b:0;")
		}
	case Int:
		b.WriteString("i:")
		b.WriteString(string(t))
		b.WriteByte(';')
	case Float:
		b.WriteString("d:")
		b.WriteString(string(t))
		b.WriteByte(';')
	case String:
		b.WriteString("s:")
		writeQuoted(b, string(t))
		b.WriteByte(';')
	case Enum:
		b.WriteString("E:")
		writeQuoted(b, string(t))
		b.WriteByte(';')
	case Ref:
		if t.Strong {
			b.WriteString("R:")
		} else {
			b.WriteString("r:")
		}
		b.WriteString(t.Index)
		b.WriteByte(';')
	case List:
		b.WriteString("a:")
		b.WriteString(strconv.Itoa(len(t)))
		b.WriteString(":{")
		for i, item := range t {
			b.WriteString("i:")
			b.WriteString(strconv.Itoa(i))
			b.WriteByte(';')
			encode(b, item)
		}
		b.WriteByte('}')
	case Map:
		b.WriteString("a:")
		writeEntries(b, t)
	case Object:
		b.WriteString("O:")
		writeQuoted(b, t.Class)
		b.WriteByte(':')
		writeEntries(b, t.Fields)
	case Custom:
		b.WriteString("C:")
		writeQuoted(b, t.Class)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(len(t.Data)))
		b.WriteString(":{")
		b.WriteString(t.Data)
		b.WriteByte('}')
	}
}

// writeQuoted writes <len>:"<s>".
func writeQuoted(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteString(`:"`)
	b.WriteString(s)
	b.WriteByte('"')
}

func writeEntries(b *strings.Builder, entries []Entry) {
	b.WriteString(strconv.Itoa(len(entries)))
	b.WriteString(":{")
	for _, e := range entries {
		encode(b, e.Key)
		encode(b, e.Value)
	}
	b.WriteByte('}')
}
