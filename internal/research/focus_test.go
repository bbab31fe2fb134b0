package research

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFocus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
research:
  emphasis:
    - small-business set-aside history
    - 8(a) certifications
  questions:
    - Do they hold a GWAC seat?
  agencies:
    - GSA
    - VA
`), 0o644))

	f, err := LoadFocus(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"small-business set-aside history", "8(a) certifications"}, f.Emphasis)
	assert.Equal(t, []string{"Do they hold a GWAC seat?"}, f.Questions)
	assert.Equal(t, []string{"GSA", "VA"}, f.Agencies)
}

func TestLoadFocusMissingFile(t *testing.T) {
	_, err := LoadFocus(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadFocusMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("research: [not a map"), 0o644))

	_, err := LoadFocus(path)
	require.Error(t, err)
}

func TestLoadFocusEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	f, err := LoadFocus(path)
	require.NoError(t, err)
	assert.Empty(t, f.Emphasis)
	assert.Empty(t, f.Questions)
}
