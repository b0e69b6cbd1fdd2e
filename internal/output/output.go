// Package output prints command results for jmigrate. Every command ends in
// exactly one result: a JSON envelope on Stdout for scripts and CI, or a
// human message. Engine progress and notices go to Stderr so a redirected
// Stdout only ever holds that result.
package output

import (
	"fmt"
	"io"
	"os"
)

// Writer prints one command's output. JSONMode swaps human text for
// envelopes; QuietMode drops info lines but keeps warnings.
type Writer struct {
	JSONMode  bool
	QuietMode bool
	Stdout    io.Writer
	Stderr    io.Writer
}

// New returns a Writer bound to the process streams.
func New(jsonMode, quietMode bool) *Writer {
	return &Writer{
		JSONMode:  jsonMode,
		QuietMode: quietMode,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
}

// Success prints the result of a command: data inside a success envelope in
// JSON mode, otherwise message. message may be a rendered table or job view.
func (w *Writer) Success(data any, message string) {
	if w.JSONMode {
		writeJSONSuccess(w.Stdout, data, message)
		return
	}
	writeHumanSuccess(w.Stdout, message)
}

// Error prints a failed command and returns the exit code for code. The
// JSON envelope goes to Stdout like any other result; human errors go to
// Stderr.
func (w *Writer) Error(err error, code ErrorCode) int {
	if w.JSONMode {
		writeJSONError(w.Stdout, err, code)
	} else {
		writeHumanError(w.Stderr, err)
	}
	return ExitCodeForError(code)
}

// Info prints a progress note, such as a dump or pack step. Silent in quiet
// and JSON mode.
func (w *Writer) Info(format string, args ...any) {
	if w.QuietMode || w.JSONMode {
		return
	}
	writeNotice(w.Stderr, infoMark, "", fmt.Sprintf(format, args...))
}

// Warn prints a recoverable problem, such as an archive that could not be
// removed after import. Quiet mode keeps warnings; JSON mode drops them.
func (w *Writer) Warn(format string, args ...any) {
	if w.JSONMode {
		return
	}
	writeNotice(w.Stderr, warnMark, "Warning:", fmt.Sprintf(format, args...))
}
