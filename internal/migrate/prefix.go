package migrate

import (
	"fmt"
	"regexp"
)

// coreTable matches a backtick-quoted core table name and captures its
// prefix.
var coreTable = regexp.MustCompile("(?i)`([a-z0-9_]+_)(?:options|posts|users|postmeta|terms|term_taxonomy|term_relationships|termmeta|comments|commentmeta|links)`")

// importSession holds per-import state that spans statements.
type importSession struct {
	target   string
	source   string
	detected bool
	pattern  *regexp.Regexp
	log      Logger
}

func newImportSession(target string, log Logger) *importSession {
	return &importSession{target: target, log: logOrDiscard(log)}
}

// remap rewrites the source table prefix to the target prefix. The source
// prefix is taken from the first statement that names a core table; until
// then statements pass through unchanged.
func (s *importSession) remap(stmt string) string {
	if s.target == "" {
		return stmt
	}
	if !s.detected {
		m := coreTable.FindStringSubmatch(stmt)
		if m == nil {
			return stmt
		}
		s.detected = true
		s.source = m[1]
		if s.source != s.target {
			s.pattern = regexp.MustCompile(`\b` + regexp.QuoteMeta(s.source) + `([A-Za-z0-9_]+)\b`)
			s.log.Info(fmt.Sprintf("Remapping table prefix from %s to %s.", s.source, s.target))
		}
	}
	if s.pattern == nil {
		return stmt
	}
	return s.pattern.ReplaceAllString(stmt, s.target+"${1}")
}
