package docstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dferrors "github.com/p-blackswan/deepforge/internal/errors"
)

type testDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), zerolog.New(os.Stderr))
	require.NoError(t, err)
	return s
}

func TestWriteAndRead(t *testing.T) {
	s := newTestStore(t)

	in := testDoc{Name: "alpha", Count: 3}
	require.NoError(t, s.Write("proj-1/repository.json", in))

	var out testDoc
	require.NoError(t, s.Read("proj-1/repository.json", &out))
	assert.Equal(t, in, out)
}

func TestReadMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)

	var out testDoc
	err := s.Read("ghost/repository.json", &out)
	require.Error(t, err)
	assert.True(t, dferrors.IsNotFound(err))
}

func TestWriteOverwritesAtomically(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Write("p/doc.json", testDoc{Name: "v1"}))
	require.NoError(t, s.Write("p/doc.json", testDoc{Name: "v2"}))

	var out testDoc
	require.NoError(t, s.Read("p/doc.json", &out))
	assert.Equal(t, "v2", out.Name)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Join(s.Root(), "p"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestListFiltersJSONDocs(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Write("p/issues/a.json", testDoc{}))
	require.NoError(t, s.Write("p/issues/b.json", testDoc{}))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "p", "issues", "notes.txt"), []byte("x"), 0o644))

	names, err := s.List("p/issues")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.json", "b.json"}, names)

	empty, err := s.List("p/missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListDirsAndDelete(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Write("p1/repository.json", testDoc{}))
	require.NoError(t, s.Write("p2/repository.json", testDoc{}))

	dirs, err := s.ListDirs("")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2"}, dirs)

	require.NoError(t, s.Delete("p1"))
	dirs, err = s.ListDirs("")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, dirs)
}
