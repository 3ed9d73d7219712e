// Package audit writes the per-decision trail consumed by operators.
package audit

import (
	"os"

	"github.com/charmbracelet/log"
)

// Logger appends one logfmt line per access decision to a file. The file is
// opened in append mode for each write, so simultaneous sessions interleave
// whole lines via the filesystem's atomic-append guarantee.
type Logger struct {
	path string
	peer string
}

// New returns a logger appending to the file at path. peer is the remote
// address of the session, empty if unknown.
func New(path, peer string) *Logger {
	return &Logger{path: path, peer: peer}
}

// Record writes one line for a decision. Auditing is best-effort: a log
// file that cannot be opened silently disables it, because a failed audit
// write must never turn into a failed session.
func (l *Logger) Record(identity, repo string, allowed bool, rule string) {
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return
	}
	defer file.Close()

	logger := log.NewWithOptions(file, log.Options{
		ReportTimestamp: true,
		Formatter:       log.LogfmtFormatter,
	})

	keyvals := []any{"identity", identity, "repo", repo, "rule", rule}
	if l.peer != "" {
		keyvals = append(keyvals, "peer", l.peer)
	}
	if allowed {
		logger.Info("allow", keyvals...)
	} else {
		logger.Warn("deny", keyvals...)
	}
}
