package jobs

import (
	"context"

	"go.uber.org/zap"

	"github.com/ALT-F4-LLC/jmigrate/internal/migrate"
	"github.com/ALT-F4-LLC/jmigrate/internal/model"
)

// JobLogger records engine log lines and progress on a tracked job.
// Tracker failures are reported to Log, never to the engine.
type JobLogger struct {
	Tracker Tracker
	ID      string
	Ctx     context.Context
	Log     *zap.Logger
}

var (
	_ migrate.Logger   = (*JobLogger)(nil)
	_ migrate.Reporter = (*JobLogger)(nil)
)

func (l *JobLogger) Info(msg string)    { l.append(model.MessageInfo, msg) }
func (l *JobLogger) Success(msg string) { l.append(model.MessageSuccess, msg) }
func (l *JobLogger) Warn(msg string)    { l.append(model.MessageWarning, msg) }
func (l *JobLogger) Error(msg string)   { l.append(model.MessageError, msg) }

// SetProgress implements migrate.Reporter.
func (l *JobLogger) SetProgress(pct int) {
	if err := l.Tracker.SetProgress(l.ctx(), l.ID, pct); err != nil {
		l.warn("recording progress", err)
	}
}

func (l *JobLogger) append(kind model.MessageKind, msg string) {
	if err := l.Tracker.AppendMessage(l.ctx(), l.ID, kind, msg); err != nil {
		l.warn("recording message", err)
	}
}

func (l *JobLogger) ctx() context.Context {
	if l.Ctx == nil {
		return context.Background()
	}
	return l.Ctx
}

func (l *JobLogger) warn(what string, err error) {
	if l.Log != nil {
		l.Log.Warn(what, zap.String("job_id", l.ID), zap.Error(err))
	}
}
