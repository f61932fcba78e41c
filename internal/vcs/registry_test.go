package vcs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/deepforge/internal/docstore"
	dferrors "github.com/p-blackswan/deepforge/internal/errors"
)

func newTestRegistry(t *testing.T) (*Registry, *docstore.Store) {
	t.Helper()
	store, err := docstore.New(t.TempDir(), zerolog.New(os.Stderr))
	require.NoError(t, err)
	reg, err := NewRegistry(store, zerolog.New(os.Stderr))
	require.NoError(t, err)
	return reg, store
}

func TestRegistry_CreateAndGet(t *testing.T) {
	reg, _ := newTestRegistry(t)

	repo, err := reg.CreateRepository("p1", "Project One", "agent-a", "desc", "python")
	require.NoError(t, err)
	assert.Equal(t, "p1", repo.ProjectID())

	got, err := reg.GetRepository("p1")
	require.NoError(t, err)
	assert.Equal(t, repo, got)

	_, err = reg.GetRepository("missing")
	require.Error(t, err)
	assert.True(t, dferrors.IsNotFound(err))
}

func TestRegistry_DuplicateProject(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.CreateRepository("p1", "One", "agent-a", "", "python")
	require.NoError(t, err)

	_, err = reg.CreateRepository("p1", "Two", "agent-b", "", "python")
	require.Error(t, err)
	assert.True(t, dferrors.IsConflict(err))
}

func TestRegistry_ListFilter(t *testing.T) {
	reg, _ := newTestRegistry(t)

	r1, err := reg.CreateRepository("p1", "One", "agent-a", "", "python")
	require.NoError(t, err)
	_, err = reg.CreateRepository("p2", "Two", "agent-b", "", "python")
	require.NoError(t, err)
	require.NoError(t, r1.AddCollaborator("agent-c"))

	assert.Len(t, reg.ListRepositories(""), 2)
	assert.Len(t, reg.ListRepositories("agent-a"), 1)
	assert.Len(t, reg.ListRepositories("agent-c"), 1)
	assert.Empty(t, reg.ListRepositories("stranger"))
}

func TestRegistry_DeleteOwnerOnly(t *testing.T) {
	reg, store := newTestRegistry(t)

	_, err := reg.CreateRepository("p1", "One", "agent-a", "", "python")
	require.NoError(t, err)

	err = reg.DeleteRepository("p1", "agent-b")
	require.Error(t, err)
	assert.True(t, dferrors.IsDenied(err))
	assert.Equal(t, 1, reg.Count())

	require.NoError(t, reg.DeleteRepository("p1", "agent-a"))
	assert.Equal(t, 0, reg.Count())

	dirs, err := store.ListDirs("")
	require.NoError(t, err)
	assert.Empty(t, dirs)

	err = reg.DeleteRepository("p1", "agent-a")
	require.Error(t, err)
	assert.True(t, dferrors.IsNotFound(err))
}

func TestRegistry_RehydratesFromStorage(t *testing.T) {
	store, err := docstore.New(t.TempDir(), zerolog.New(os.Stderr))
	require.NoError(t, err)

	reg, err := NewRegistry(store, zerolog.New(os.Stderr))
	require.NoError(t, err)
	repo, err := reg.CreateRepository("p1", "One", "agent-a", "desc", "python")
	require.NoError(t, err)
	_, err = repo.CommitChanges("agent-a", "add", map[string]Change{
		"x.py": {Old: "", New: "print(1)"},
	}, "main")
	require.NoError(t, err)

	// A fresh registry over the same root sees the persisted repository.
	reg2, err := NewRegistry(store, zerolog.New(os.Stderr))
	require.NoError(t, err)
	assert.Equal(t, 1, reg2.Count())

	loaded, err := reg2.GetRepository("p1")
	require.NoError(t, err)
	assert.Equal(t, "One", loaded.Name())
	assert.Equal(t, "agent-a", loaded.Owner())

	content, ok, err := loaded.GetFileContent("x.py", "main")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "print(1)", content)
}

func TestRegistry_SkipsCorruptRepository(t *testing.T) {
	root := t.TempDir()
	store, err := docstore.New(root, zerolog.New(os.Stderr))
	require.NoError(t, err)

	reg, err := NewRegistry(store, zerolog.New(os.Stderr))
	require.NoError(t, err)
	_, err = reg.CreateRepository("good", "Good", "agent-a", "", "python")
	require.NoError(t, err)

	// A corrupt state document must not abort the startup scan.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bad"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad", "repository.json"), []byte("{not json"), 0o644))

	reg2, err := NewRegistry(store, zerolog.New(os.Stderr))
	require.NoError(t, err)
	assert.Equal(t, 1, reg2.Count())

	_, err = reg2.GetRepository("good")
	require.NoError(t, err)
}
