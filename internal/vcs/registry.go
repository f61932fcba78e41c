package vcs

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/deepforge/internal/docstore"
	dferrors "github.com/p-blackswan/deepforge/internal/errors"
)

// Registry creates, looks up, and deletes repositories. At construction it
// scans the storage root and rehydrates every persisted repository; corrupt
// documents are logged and skipped.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	store  *docstore.Store
	logger zerolog.Logger
	repos  map[string]*Repository
}

// NewRegistry builds a registry over the given document store and loads all
// previously persisted repositories.
func NewRegistry(store *docstore.Store, logger zerolog.Logger) (*Registry, error) {
	r := &Registry{
		store:  store,
		logger: logger.With().Str("component", "vcs.registry").Logger(),
		repos:  make(map[string]*Repository),
	}

	dirs, err := store.ListDirs("")
	if err != nil {
		return nil, fmt.Errorf("failed to scan storage root: %w", err)
	}
	for _, dir := range dirs {
		repo, err := LoadRepository(store, logger, dir)
		if err != nil {
			r.logger.Warn().Err(err).Str("project_id", dir).Msg("skipping unloadable repository")
			continue
		}
		r.repos[repo.ProjectID()] = repo
	}

	r.logger.Info().Int("repositories", len(r.repos)).Msg("registry initialized")
	return r, nil
}

// CreateRepository registers a new repository under the given project id.
func (r *Registry) CreateRepository(projectID, name, owner, description, language string) (*Repository, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.repos[projectID]; exists {
		return nil, fmt.Errorf("repository %q already exists: %w", projectID, dferrors.ErrConflict)
	}

	repo, err := NewRepository(r.store, r.logger, projectID, name, owner, description, language)
	if err != nil {
		return nil, err
	}
	r.repos[projectID] = repo
	r.logger.Info().Str("project_id", projectID).Str("owner", owner).Msg("repository created")
	return repo, nil
}

// GetRepository returns the repository for a project id.
func (r *Registry) GetRepository(projectID string) (*Repository, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	repo, ok := r.repos[projectID]
	if !ok {
		return nil, fmt.Errorf("repository %q: %w", projectID, dferrors.ErrNotFound)
	}
	return repo, nil
}

// ListRepositories returns all repositories, optionally restricted to those
// the given agent collaborates on.
func (r *Registry) ListRepositories(agentID string) []*Repository {
	r.mu.RLock()
	defer r.mu.RUnlock()

	repos := make([]*Repository, 0, len(r.repos))
	for _, repo := range r.repos {
		if agentID != "" && !repo.IsCollaborator(agentID) {
			continue
		}
		repos = append(repos, repo)
	}
	return repos
}

// DeleteRepository removes a repository and its storage tree. Only the
// owner may delete.
func (r *Registry) DeleteRepository(projectID, requester string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	repo, ok := r.repos[projectID]
	if !ok {
		return fmt.Errorf("repository %q: %w", projectID, dferrors.ErrNotFound)
	}
	if repo.Owner() != requester {
		return fmt.Errorf("agent %q is not the owner of %q: %w", requester, projectID, dferrors.ErrDenied)
	}

	delete(r.repos, projectID)
	if err := r.store.Delete(projectID); err != nil {
		return err
	}
	r.logger.Info().Str("project_id", projectID).Msg("repository deleted")
	return nil
}

// Count returns the number of registered repositories.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.repos)
}
