package output

import (
	"encoding/json"
	"io"
)

// ErrorCode classifies a failed command in the JSON envelope. Each code has
// its own process exit code.
type ErrorCode string

const (
	// ErrGeneral covers anything not classified below. Exit 1.
	ErrGeneral ErrorCode = "GENERAL_ERROR"
	// ErrNotFound is an unknown job id, a missing archive or no job
	// database. Exit 2.
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrValidation is bad user input: URLs, archive paths, file modes or
	// list filters. Exit 3.
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	// ErrConflict is a request against a job that has already finished.
	// Exit 4.
	ErrConflict ErrorCode = "CONFLICT"
	// ErrIO is a failed read or write of the site tree, work dir or
	// archive. Exit 5.
	ErrIO ErrorCode = "IO_ERROR"
	// ErrDatabase is a failed MySQL statement or job database access.
	// Exit 6.
	ErrDatabase ErrorCode = "DATABASE_ERROR"
	// ErrExternal is a non-zero exit from the import delegate. Exit 7.
	ErrExternal ErrorCode = "EXTERNAL_TOOL_ERROR"
)

const (
	ExitSuccess    = 0
	ExitGeneral    = 1
	ExitNotFound   = 2
	ExitValidation = 3
	ExitConflict   = 4
	ExitIO         = 5
	ExitDatabase   = 6
	ExitExternal   = 7
)

// ExitCodeForError maps an ErrorCode to its corresponding exit code.
func ExitCodeForError(code ErrorCode) int {
	switch code {
	case ErrNotFound:
		return ExitNotFound
	case ErrValidation:
		return ExitValidation
	case ErrConflict:
		return ExitConflict
	case ErrIO:
		return ExitIO
	case ErrDatabase:
		return ExitDatabase
	case ErrExternal:
		return ExitExternal
	default:
		return ExitGeneral
	}
}

// successEnvelope wraps a command result, e.g. {"ok":true,"data":{"job_id":...}}.
type successEnvelope struct {
	OK      bool   `json:"ok"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

// errorEnvelope wraps a failure, e.g. {"ok":false,"error":"...","code":"NOT_FOUND"}.
type errorEnvelope struct {
	OK    bool      `json:"ok"`
	Error string    `json:"error"`
	Code  ErrorCode `json:"code"`
}

// writeJSONSuccess writes a success envelope to w.
func writeJSONSuccess(w io.Writer, data any, message string) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(successEnvelope{
		OK:      true,
		Data:    data,
		Message: message,
	})
}

// writeJSONError writes an error envelope to w.
func writeJSONError(w io.Writer, err error, code ErrorCode) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(errorEnvelope{
		OK:    false,
		Error: err.Error(),
		Code:  code,
	})
}
