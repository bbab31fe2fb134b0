package research

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Ledger is the durable record of which entities a batch run has already
// completed or failed, keyed by entity key (not batch position) so it stays
// valid if the input order changes. The backing file is a small JSON document
// kept hand-readable for operator debugging.
type Ledger struct {
	path      string
	completed map[string]bool
	failed    map[string]bool
}

// ledgerFile is the on-disk shape: {"completed": [...], "failed": [...]}.
type ledgerFile struct {
	Completed []string `json:"completed"`
	Failed    []string `json:"failed"`
}

// LoadLedger reads the ledger at path. A missing or corrupt file yields an
// empty ledger; a batch must never fail because of ledger corruption.
func LoadLedger(path string) *Ledger {
	l := &Ledger{
		path:      path,
		completed: make(map[string]bool),
		failed:    make(map[string]bool),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Warn("ledger: unreadable file, starting empty",
				zap.String("path", path), zap.Error(err))
		}
		return l
	}

	var lf ledgerFile
	if err := json.Unmarshal(data, &lf); err != nil {
		zap.L().Warn("ledger: corrupt file, starting empty",
			zap.String("path", path), zap.Error(err))
		return l
	}

	for _, k := range lf.Completed {
		l.completed[k] = true
	}
	for _, k := range lf.Failed {
		l.failed[k] = true
	}
	return l
}

// Completed reports whether the key has a recorded successful outcome.
func (l *Ledger) Completed(key string) bool { return l.completed[key] }

// MarkCompleted records a genuine success for the key. Fallback and error
// outcomes must never be marked completed.
func (l *Ledger) MarkCompleted(key string) {
	l.completed[key] = true
	delete(l.failed, key)
}

// MarkFailed records a failed attempt for the key unless it already
// completed in an earlier run.
func (l *Ledger) MarkFailed(key string) {
	if l.completed[key] {
		return
	}
	l.failed[key] = true
}

// Counts returns the number of completed and failed keys.
func (l *Ledger) Counts() (completed, failed int) {
	return len(l.completed), len(l.failed)
}

// Snapshot returns sorted copies of the completed and failed key sets.
func (l *Ledger) Snapshot() (completed, failed []string) {
	for k := range l.completed {
		completed = append(completed, k)
	}
	for k := range l.failed {
		failed = append(failed, k)
	}
	sort.Strings(completed)
	sort.Strings(failed)
	return completed, failed
}

// Persist writes the ledger atomically (temp file + rename). Keys are sorted
// so diffs between runs stay readable.
func (l *Ledger) Persist() error {
	completed, failed := l.Snapshot()
	if completed == nil {
		completed = []string{}
	}
	if failed == nil {
		failed = []string{}
	}

	data, err := json.MarshalIndent(ledgerFile{Completed: completed, Failed: failed}, "", "  ")
	if err != nil {
		return eris.Wrap(err, "ledger: marshal")
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".ledger-*")
	if err != nil {
		return eris.Wrap(err, "ledger: create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrap(err, "ledger: write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrap(err, "ledger: close temp file")
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "ledger: rename to %s", l.path)
	}
	return nil
}
