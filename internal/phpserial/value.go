// Package phpserial decodes and encodes values in PHP's serialize() format,
// the format WordPress uses for options, post meta and transients.
//
// A decoded value is a tree of Value variants. Scalars keep their literal
// text so that a value decoded and encoded without modification comes back
// byte-identical.
package phpserial

import "strconv"

// Value is one node of a decoded tree. It is implemented by Null, Bool, Int,
// Float, String, List, Map, Object, Custom, Enum and Ref.
type Value interface {
	phpValue()
}

// Null is the serialized N; token.
type Null struct{}

// Bool is b:0; or b:1;.
type Bool bool

// Int holds the literal digits of an i: token.
type Int string

// Float holds the literal text of a d: token.
type Float string

// String is an s: token. Its serialized length is the byte length.
type String string

// List is an array whose keys are exactly 0..n-1 in order.
type List []Value

// Map is any other array. Entry order is preserved.
type Map []Entry

// Object is an O: token.
type Object struct {
	Class  string
	Fields []Entry
}

// Custom is a C: token produced by a class implementing Serializable.
// Its payload is opaque and kept verbatim.
type Custom struct {
	Class string
	Data  string
}

// Enum is an E: token (PHP 8.1 enums), kept verbatim.
type Enum string

// Ref is a back reference, r: (object) or R: (reference).
type Ref struct {
	Index  string
	Strong bool
}

// Entry is a key/value pair of a Map or Object. Key is an Int or a String.
type Entry struct {
	Key   Value
	Value Value
}

func (Null) phpValue()   {}
func (Bool) phpValue()   {}
func (Int) phpValue()    {}
func (Float) phpValue()  {}
func (String) phpValue() {}
func (List) phpValue()   {}
func (Map) phpValue()    {}
func (Object) phpValue() {}
func (Custom) phpValue() {}
func (Enum) phpValue()   {}
func (Ref) phpValue()    {}

// Int64 parses the literal.
func (i Int) Int64() (int64, error) {
	return strconv.ParseInt(string(i), 10, 64)
}

// Float64 parses the literal, accepting PHP's INF, -INF and NAN spellings.
func (f Float) Float64() (float64, error) {
	switch f {
	case "INF":
		return strconv.ParseFloat("+Inf", 64)
	case "-INF":
		return strconv.ParseFloat("-Inf", 64)
	case "NAN":
		return strconv.ParseFloat("NaN", 64)
	}
	return strconv.ParseFloat(string(f), 64)
}

// Lookup returns the value stored under a string key of a Map or Object.
func Lookup(v Value, key string) (Value, bool) {
	var entries []Entry
	switch t := v.(type) {
	case Map:
		entries = t
	case Object:
		entries = t.Fields
	default:
		return nil, false
	}
	for _, e := range entries {
		if k, ok := e.Key.(String); ok && string(k) == key {
			return e.Value, true
		}
	}
	return nil, false
}
