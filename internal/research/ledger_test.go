package research

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "ledger.json")
}

func TestLoadLedgerMissingFile(t *testing.T) {
	l := LoadLedger(ledgerPath(t))
	completed, failed := l.Counts()
	assert.Zero(t, completed)
	assert.Zero(t, failed)
}

func TestLoadLedgerCorruptFile(t *testing.T) {
	path := ledgerPath(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	l := LoadLedger(path)
	completed, failed := l.Counts()
	assert.Zero(t, completed)
	assert.Zero(t, failed)

	// A corrupt ledger must still be writable afterwards.
	l.MarkCompleted("a | X")
	require.NoError(t, l.Persist())
}

func TestLedgerPersistRoundTrip(t *testing.T) {
	path := ledgerPath(t)

	l := LoadLedger(path)
	l.MarkCompleted("jane smith | GSA")
	l.MarkCompleted("acme corp | DOD")
	l.MarkFailed("bob lee | VA")
	require.NoError(t, l.Persist())

	reloaded := LoadLedger(path)
	assert.True(t, reloaded.Completed("jane smith | GSA"))
	assert.True(t, reloaded.Completed("acme corp | DOD"))
	assert.False(t, reloaded.Completed("bob lee | VA"))

	completed, failed := reloaded.Counts()
	assert.Equal(t, 2, completed)
	assert.Equal(t, 1, failed)
}

func TestLedgerFileShape(t *testing.T) {
	path := ledgerPath(t)

	l := LoadLedger(path)
	l.MarkCompleted("b | Y")
	l.MarkCompleted("a | X")
	require.NoError(t, l.Persist())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var lf struct {
		Completed []string `json:"completed"`
		Failed    []string `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(data, &lf))
	assert.Equal(t, []string{"a | X", "b | Y"}, lf.Completed, "keys are sorted")
	assert.NotNil(t, lf.Failed)
	assert.Empty(t, lf.Failed)
}

func TestLedgerCompletedWinsOverFailed(t *testing.T) {
	l := LoadLedger(ledgerPath(t))

	// Failure then success: success clears the failure.
	l.MarkFailed("k | Q")
	l.MarkCompleted("k | Q")
	completed, failed := l.Counts()
	assert.Equal(t, 1, completed)
	assert.Zero(t, failed)

	// Success then failure: failure is ignored.
	l.MarkFailed("k | Q")
	completed, failed = l.Counts()
	assert.Equal(t, 1, completed)
	assert.Zero(t, failed)
}

func TestLedgerSnapshotSorted(t *testing.T) {
	l := LoadLedger(ledgerPath(t))
	l.MarkCompleted("c | Z")
	l.MarkCompleted("a | X")
	l.MarkFailed("b | Y")

	completed, failed := l.Snapshot()
	assert.Equal(t, []string{"a | X", "c | Z"}, completed)
	assert.Equal(t, []string{"b | Y"}, failed)
}

func TestLedgerPersistAtomicOverwrite(t *testing.T) {
	path := ledgerPath(t)

	l := LoadLedger(path)
	l.MarkCompleted("a | X")
	require.NoError(t, l.Persist())
	require.NoError(t, l.Persist())

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
