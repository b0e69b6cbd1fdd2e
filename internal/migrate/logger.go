package migrate

// Logger receives the human-readable progress log of a migration.
type Logger interface {
	Info(msg string)
	Success(msg string)
	Warn(msg string)
	Error(msg string)
}

// Reporter receives percentage checkpoints.
type Reporter interface {
	SetProgress(pct int)
}

// MultiLogger fans every line out to each of its loggers.
type MultiLogger []Logger

func (m MultiLogger) Info(msg string) {
	for _, l := range m {
		l.Info(msg)
	}
}

func (m MultiLogger) Success(msg string) {
	for _, l := range m {
		l.Success(msg)
	}
}

func (m MultiLogger) Warn(msg string) {
	for _, l := range m {
		l.Warn(msg)
	}
}

func (m MultiLogger) Error(msg string) {
	for _, l := range m {
		l.Error(msg)
	}
}

// Discard drops every line.
var Discard Logger = discard{}

type discard struct{}

func (discard) Info(string)    {}
func (discard) Success(string) {}
func (discard) Warn(string)    {}
func (discard) Error(string)   {}

func logOrDiscard(l Logger) Logger {
	if l == nil {
		return Discard
	}
	return l
}

func report(r Reporter, pct int) {
	if r != nil {
		r.SetProgress(pct)
	}
}
