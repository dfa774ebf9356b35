package conversion

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestMaterialize(t *testing.T) {
	dir := t.TempDir()

	a, err := materialize(dir, "<p>a</p>")
	require.NoError(t, err)
	b, err := materialize(dir, "<p>b</p>")
	require.NoError(t, err)

	assert.NotEqual(t, a.Path(), b.Path())
	assert.Equal(t, dir, filepath.Dir(a.Path()))
	assert.True(t, strings.HasSuffix(a.Path(), ".html"))

	data, err := os.ReadFile(a.Path())
	require.NoError(t, err)
	assert.Equal(t, "<p>a</p>", string(data))

	require.NoError(t, a.Release())
	require.NoError(t, a.Release())
	assert.NoFileExists(t, a.Path())

	// Already gone is not an error.
	require.NoError(t, os.Remove(b.Path()))
	require.NoError(t, b.Release())
}

func TestMaterialize_MissingDir(t *testing.T) {
	_, err := materialize(filepath.Join(t.TempDir(), "missing"), "<p/>")
	require.Error(t, err)
	assert.Equal(t, KindIO, KindOf(err))
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	require.NoError(t, writeAtomic(path, []byte("one")))
	require.NoError(t, writeAtomic(path, []byte("two")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
