package migrate

import (
	"encoding/hex"
	"fmt"
	"regexp"
)

// ValidationError reports bad input detected before any side effect.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IOError reports a filesystem or archive failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// DatabaseError reports a failed statement or query.
type DatabaseError struct {
	// Preview is the whitespace-collapsed statement, at most 180 bytes.
	Preview string
	// Head is the first 200 bytes of the statement.
	Head string
	// LeadingHex is the hex encoding of the first 32 bytes. It is only set
	// when hex diagnostics are enabled.
	LeadingHex string
	Err        error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database import error: %v. Statement begins with: %s", e.Err, e.Preview)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

func newDatabaseError(stmt string, err error, withHex bool) *DatabaseError {
	de := &DatabaseError{
		Preview: Preview(stmt),
		Head:    truncate(stmt, 200),
		Err:     err,
	}
	if withHex {
		de.LeadingHex = hex.EncodeToString([]byte(truncate(stmt, 32)))
	}
	return de
}

// ExternalToolError reports a failed delegate run.
type ExternalToolError struct {
	ExitCode int
	Msg      string
	Err      error
}

func (e *ExternalToolError) Error() string {
	return e.Msg
}

func (e *ExternalToolError) Unwrap() error {
	return e.Err
}

var whitespace = regexp.MustCompile(`\s+`)

// Preview collapses whitespace in stmt and shortens it to 180 bytes.
func Preview(stmt string) string {
	s := whitespace.ReplaceAllString(stmt, " ")
	if len(s) > 180 {
		s = s[:177] + "..."
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
