// Package sqlsplit splits a stream of SQL text into statements without
// holding more than the current unterminated statement in memory.
package sqlsplit

import "bytes"

type state uint8

const (
	normal state = iota
	singleQuote
	doubleQuote
	backtick
	lineComment
	blockComment
)

func (s state) String() string {
	switch s {
	case singleQuote:
		return "single-quote"
	case doubleQuote:
		return "double-quote"
	case backtick:
		return "backtick"
	case lineComment:
		return "line-comment"
	case blockComment:
		return "block-comment"
	}
	return "normal"
}

// Splitter is a re-entrant statement splitter. Feed it successive chunks of
// a dump and it returns every statement whose terminating semicolon has been
// seen. The zero value is ready to use.
//
// A statement starts at its first byte that is neither whitespace nor part
// of a comment, or at a /*! executable comment, and ends at its terminator,
// which is included. Statements with no content are never returned.
type Splitter struct {
	buf    []byte
	pos    int // next byte of buf to scan
	start  int // offset of the current statement in buf, -1 when none
	state  state
	escape bool
	init   bool
}

// New returns an empty Splitter.
func New() *Splitter {
	return &Splitter{start: -1, init: true}
}

// Feed appends chunk to the carried-over remainder and returns the
// statements completed by it.
func (s *Splitter) Feed(chunk []byte) []string {
	s.ensure()
	s.buf = append(s.buf, chunk...)
	return s.scan(false)
}

// Flush ends the stream. It returns any statements still pending, including
// a trailing statement without a terminator, and resets the Splitter.
func (s *Splitter) Flush() []string {
	s.ensure()
	out := s.scan(true)
	if s.start >= 0 {
		if tail := bytes.TrimRight(s.buf[s.start:], " \t\r\n\f\v"); len(tail) > 0 {
			out = append(out, string(tail))
		}
	}
	*s = Splitter{buf: s.buf[:0], start: -1, init: true}
	return out
}

// Buffered returns the number of bytes carried over to the next Feed.
func (s *Splitter) Buffered() int {
	return len(s.buf)
}

// Remainder returns a copy of the carried-over bytes.
func (s *Splitter) Remainder() []byte {
	return bytes.Clone(s.buf)
}

func (s *Splitter) ensure() {
	if !s.init {
		s.start = -1
		s.init = true
	}
}

func (s *Splitter) begin(i int) {
	if s.start < 0 {
		s.start = i
	}
}

// scan advances the automaton over the unscanned part of the buffer. Unless
// final is set, a byte that may open or close a two-byte token is left for
// the next call when it is the last byte available.
func (s *Splitter) scan(final bool) []string {
	var out []string
	buf := s.buf
	i := s.pos

loop:
	for i < len(buf) {
		c := buf[i]
		if s.escape {
			s.escape = false
			i++
			continue
		}

		switch s.state {
		case normal:
			switch c {
			case '\'':
				s.begin(i)
				s.state = singleQuote
			case '"':
				s.begin(i)
				s.state = doubleQuote
			case '`':
				s.begin(i)
				s.state = backtick
			case '#':
				s.state = lineComment
			case '-', '/':
				if i+1 == len(buf) {
					if !final {
						break loop
					}
					s.begin(i)
					break
				}
				next := buf[i+1]
				if c == '-' && next == '-' {
					s.state = lineComment
					i += 2
					continue
				}
				if c == '/' && next == '*' {
					if i+2 == len(buf) && !final {
						break loop
					}
					// /*!NNNNN ... */ is executed by MySQL, so it is content.
					if i+2 < len(buf) && buf[i+2] == '!' {
						s.begin(i)
					}
					s.state = blockComment
					i += 2
					continue
				}
				s.begin(i)
			case ';':
				if s.start >= 0 {
					out = append(out, string(buf[s.start:i+1]))
					s.start = -1
				}
			case ' ', '\t', '\n', '\r', '\f', '\v':
			default:
				s.begin(i)
			}

		case singleQuote, doubleQuote:
			quote := byte('\'')
			if s.state == doubleQuote {
				quote = '"'
			}
			switch c {
			case '\\':
				s.escape = true
			case quote:
				s.state = normal
			}

		case backtick:
			if c == '`' {
				s.state = normal
			}

		case lineComment:
			if c == '\n' {
				s.state = normal
			}

		case blockComment:
			if c == '*' {
				if i+1 == len(buf) {
					if !final {
						break loop
					}
					break
				}
				if buf[i+1] == '/' {
					s.state = normal
					i += 2
					continue
				}
			}
		}
		i++
	}

	// Drop everything before the current statement, or everything scanned
	// when no statement has started.
	keep := i
	if s.start >= 0 {
		keep = s.start
		s.start = 0
	}
	n := copy(s.buf, s.buf[keep:])
	s.buf = s.buf[:n]
	s.pos = i - keep
	return out
}
