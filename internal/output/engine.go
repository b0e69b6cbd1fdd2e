package output

import (
	"github.com/ALT-F4-LLC/jmigrate/internal/migrate"
	"github.com/ALT-F4-LLC/jmigrate/internal/render"
)

// engineLog adapts a Writer to the engine's Logger. Lines go to Stderr so
// Stdout stays reserved for the command result.
type engineLog struct {
	w *Writer
}

// Engine returns a migrate.Logger that prints engine messages through w.
// Info and success lines follow quiet mode; warnings and errors do not.
// Nothing is printed in JSON mode.
func (w *Writer) Engine() migrate.Logger {
	return engineLog{w: w}
}

func (l engineLog) Info(msg string) {
	l.w.Info("%s", msg)
}

func (l engineLog) Success(msg string) {
	if l.w.QuietMode || l.w.JSONMode {
		return
	}
	writeHumanSuccess(l.w.Stderr, msg)
}

func (l engineLog) Warn(msg string) {
	l.w.Warn("%s", msg)
}

func (l engineLog) Error(msg string) {
	if l.w.JSONMode {
		return
	}
	writeNotice(l.w.Stderr, errorMark, "", msg)
}

// Progress returns a migrate.Reporter that prints percentage changes as info
// lines.
func (w *Writer) Progress() migrate.Reporter {
	return &progressLine{w: w, last: -1}
}

type progressLine struct {
	w    *Writer
	last int
}

func (p *progressLine) SetProgress(pct int) {
	if pct == p.last {
		return
	}
	p.last = pct
	p.w.Info("%s", render.ProgressBar(pct))
}
