package phpserial

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxDepth bounds the nesting of arrays and objects accepted by Decode.
const MaxDepth = 512

// ErrSyntax is wrapped by every decoding error.
var ErrSyntax = errors.New("phpserial: syntax error")

// Looks reports whether s has the shape of a serialized value. It is a cheap
// pre-check and does not guarantee that Decode succeeds.
func Looks(s string) bool {
	s = strings.TrimSpace(s)
	if s == "N;" {
		return true
	}
	if len(s) < 4 || s[1] != ':' {
		return false
	}
	if last := s[len(s)-1]; last != ';' && last != '}' {
		return false
	}
	switch s[0] {
	case 'a', 'O', 'C', 's', 'b', 'i', 'd', 'E', 'r', 'R':
		return true
	}
	return false
}

// Decode parses exactly one serialized value. Trailing bytes are an error.
func Decode(s string) (Value, error) {
	d := &decoder{s: s}
	v, err := d.value()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.s) {
		return nil, d.errorf("trailing data")
	}
	return v, nil
}

type decoder struct {
	s     string
	pos   int
	depth int
}

func (d *decoder) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, d.pos, fmt.Sprintf(format, args...))
}

func (d *decoder) expect(tok string) error {
	if !strings.HasPrefix(d.s[d.pos:], tok) {
		return d.errorf("expected %q", tok)
	}
	d.pos += len(tok)
	return nil
}

// until returns the text up to (not including) the next b and consumes b.
func (d *decoder) until(b byte) (string, error) {
	i := strings.IndexByte(d.s[d.pos:], b)
	if i < 0 {
		return "", d.errorf("missing %q", b)
	}
	out := d.s[d.pos : d.pos+i]
	d.pos += i + 1
	return out, nil
}

func (d *decoder) length() (int, error) {
	lit, err := d.until(':')
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(lit)
	if err != nil || n < 0 {
		return 0, d.errorf("bad length %q", lit)
	}
	return n, nil
}

// quoted reads "<n bytes>" where n was given by a preceding length prefix.
func (d *decoder) quoted(n int) (string, error) {
	if err := d.expect(`"`); err != nil {
		return "", err
	}
	if d.pos+n > len(d.s) {
		return "", d.errorf("length %d overruns input", n)
	}
	out := d.s[d.pos : d.pos+n]
	d.pos += n
	if err := d.expect(`"`); err != nil {
		return "", err
	}
	return out, nil
}

func (d *decoder) value() (Value, error) {
	if d.pos+1 >= len(d.s) {
		return nil, d.errorf("unexpected end of input")
	}
	tag := d.s[d.pos]
	if tag == 'N' {
		if err := d.expect("N;"); err != nil {
			return nil, err
		}
		return Null{}, nil
	}
	if d.s[d.pos+1] != ':' {
		return nil, d.errorf("expected ':' after %q", tag)
	}
	d.pos += 2

	switch tag {
	case 'b':
		lit, err := d.until(';')
		if err != nil {
			return nil, err
		}
		switch lit {
		case "0":
			return Bool(false), nil
		case "1":
			return Bool(true), nil
		}
		return nil, d.errorf("bad bool %q", lit)

	case 'i':
		lit, err := d.until(';')
		if err != nil {
			return nil, err
		}
		if !isInt(lit) {
			return nil, d.errorf("bad int %q", lit)
		}
		return Int(lit), nil

	case 'd':
		lit, err := d.until(';')
		if err != nil {
			return nil, err
		}
		if _, err := Float(lit).Float64(); err != nil {
			return nil, d.errorf("bad float %q", lit)
		}
		return Float(lit), nil

	case 's':
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		str, err := d.quoted(n)
		if err != nil {
			return nil, err
		}
		if err := d.expect(";"); err != nil {
			return nil, err
		}
		return String(str), nil

	case 'E':
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		str, err := d.quoted(n)
		if err != nil {
			return nil, err
		}
		if err := d.expect(";"); err != nil {
			return nil, err
		}
		return Enum(str), nil

	case 'r', 'R':
		lit, err := d.until(';')
		if err != nil {
			return nil, err
		}
		if !isInt(lit) {
			return nil, d.errorf("bad reference %q", lit)
		}
		return Ref{Index: lit, Strong: tag == 'R'}, nil

	case 'a':
		entries, err := d.entries()
		if err != nil {
			return nil, err
		}
		if isList(entries) {
			list := make(List, len(entries))
			for i, e := range entries {
				list[i] = e.Value
			}
			return list, nil
		}
		return Map(entries), nil

	case 'O':
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		class, err := d.quoted(n)
		if err != nil {
			return nil, err
		}
		if err := d.expect(":"); err != nil {
			return nil, err
		}
		fields, err := d.entries()
		if err != nil {
			return nil, err
		}
		return Object{Class: class, Fields: fields}, nil

	case 'C':
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		class, err := d.quoted(n)
		if err != nil {
			return nil, err
		}
		if err := d.expect(":"); err != nil {
			return nil, err
		}
		size, err := d.length()
		if err != nil {
			return nil, err
		}
		if err := d.expect("{"); err != nil {
			return nil, err
		}
		if d.pos+size > len(d.s) {
			return nil, d.errorf("custom payload overruns input")
		}
		data := d.s[d.pos : d.pos+size]
		d.pos += size
		if err := d.expect("}"); err != nil {
			return nil, err
		}
		return Custom{Class: class, Data: data}, nil
	}

	return nil, d.errorf("unknown type %q", tag)
}

// entries reads "<n>:{key value ...}" for arrays and objects.
func (d *decoder) entries() ([]Entry, error) {
	d.depth++
	defer func() { d.depth-- }()
	if d.depth > MaxDepth {
		return nil, d.errorf("nesting deeper than %d", MaxDepth)
	}

	n, err := d.length()
	if err != nil {
		return nil, err
	}
	if err := d.expect("{"); err != nil {
		return nil, err
	}
	// Every entry needs at least six bytes (i:0;N;).
	if n > (len(d.s)-d.pos)/6 {
		return nil, d.errorf("entry count %d overruns input", n)
	}

	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		key, err := d.value()
		if err != nil {
			return nil, err
		}
		switch key.(type) {
		case Int, String:
		default:
			return nil, d.errorf("invalid key type %T", key)
		}
		val, err := d.value()
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: key, Value: val})
	}
	if err := d.expect("}"); err != nil {
		return nil, err
	}
	return entries, nil
}

func isInt(lit string) bool {
	if lit == "" {
		return false
	}
	if lit[0] == '-' || lit[0] == '+' {
		lit = lit[1:]
	}
	if lit == "" {
		return false
	}
	for i := 0; i < len(lit); i++ {
		if lit[i] < '0' || lit[i] > '9' {
			return false
		}
	}
	return true
}

// isList reports whether keys are the canonical sequence 0..n-1.
func isList(entries []Entry) bool {
	for i, e := range entries {
		k, ok := e.Key.(Int)
		if !ok || string(k) != strconv.Itoa(i) {
			return false
		}
	}
	return true
}
