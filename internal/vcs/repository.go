package vcs

import (
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/deepforge/internal/docstore"
	dferrors "github.com/p-blackswan/deepforge/internal/errors"
	"github.com/p-blackswan/deepforge/lru"
)

const (
	stateDoc = "repository.json"

	// diffCacheSize bounds the number of memoized commit-pair diffs.
	diffCacheSize = 128
)

// Metadata holds repository-level settings and access info. The
// collaborator list always contains the owner.
type Metadata struct {
	Description   string   `json:"description"`
	Language      string   `json:"language"`
	Framework     string   `json:"framework"`
	Collaborators []string `json:"collaborators"`
	Visibility    string   `json:"visibility"`
	Tags          []string `json:"tags"`
}

// Info is a read-only summary of a repository.
type Info struct {
	ProjectID     string    `json:"project_id"`
	Name          string    `json:"name"`
	Owner         string    `json:"owner_agent"`
	Description   string    `json:"description"`
	Language      string    `json:"language"`
	Framework     string    `json:"framework"`
	Visibility    string    `json:"visibility"`
	Collaborators []string  `json:"collaborators"`
	Branches      []string  `json:"branches"`
	CommitCount   int       `json:"commit_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// repoState is the persisted document layout.
type repoState struct {
	ProjectID string             `json:"project_id"`
	Name      string             `json:"name"`
	Owner     string             `json:"owner_agent"`
	CreatedAt time.Time          `json:"created_at"`
	Metadata  Metadata           `json:"metadata"`
	Branches  map[string]*Branch `json:"branches"`
	Commits   map[string]*Commit `json:"commits"`
	Files     map[string]string  `json:"files"`
}

// Repository owns branches, commits, and the flattened file cache for one
// project. A single RWMutex serializes writers so concurrent collaboration
// sessions against the same project cannot interleave mutations.
//
// The files map is a derived, project-wide cache of the most recent commit
// per path; the authoritative content for a path on a branch comes from
// walking that branch's commit chain.
type Repository struct {
	mu     sync.RWMutex
	store  *docstore.Store
	logger zerolog.Logger

	projectID string
	name      string
	owner     string
	createdAt time.Time
	metadata  Metadata
	branches  map[string]*Branch
	commits   map[string]*Commit
	files     map[string]string

	// diffCache memoizes Diff results per commit pair. Commits are
	// immutable once created, so cached entries never go stale.
	diffCache *lru.Cache[string, map[string]string]
}

// NewRepository initializes a repository with a default "main" branch and an
// empty initial commit, then persists it.
func NewRepository(store *docstore.Store, logger zerolog.Logger, projectID, name, owner, description, language string) (*Repository, error) {
	r := &Repository{
		store:     store,
		logger:    logger.With().Str("component", "vcs.repository").Str("project_id", projectID).Logger(),
		projectID: projectID,
		name:      name,
		owner:     owner,
		createdAt: time.Now().UTC(),
		metadata: Metadata{
			Description:   description,
			Language:      language,
			Collaborators: []string{owner},
			Visibility:    "private",
		},
		branches:  make(map[string]*Branch),
		commits:   make(map[string]*Commit),
		files:     make(map[string]string),
		diffCache: lru.New[string, map[string]string](diffCacheSize),
	}

	initial := newCommit(owner, "Initial commit", "")
	r.commits[initial.ID] = initial

	main := newBranch("main", owner, initial.ID)
	main.IsDefault = true
	r.branches["main"] = main

	if err := r.save(); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadRepository rehydrates a repository from its persisted state document.
func LoadRepository(store *docstore.Store, logger zerolog.Logger, projectID string) (*Repository, error) {
	var state repoState
	if err := store.Read(path.Join(projectID, stateDoc), &state); err != nil {
		return nil, fmt.Errorf("failed to load repository %s: %w", projectID, err)
	}

	r := &Repository{
		store:     store,
		logger:    logger.With().Str("component", "vcs.repository").Str("project_id", projectID).Logger(),
		projectID: state.ProjectID,
		name:      state.Name,
		owner:     state.Owner,
		createdAt: state.CreatedAt,
		metadata:  state.Metadata,
		branches:  state.Branches,
		commits:   state.Commits,
		files:     state.Files,
		diffCache: lru.New[string, map[string]string](diffCacheSize),
	}
	if r.projectID == "" {
		r.projectID = projectID
	}
	if r.branches == nil {
		r.branches = make(map[string]*Branch)
	}
	if r.commits == nil {
		r.commits = make(map[string]*Commit)
	}
	if r.files == nil {
		r.files = make(map[string]string)
	}
	return r, nil
}

// ProjectID returns the repository's project id.
func (r *Repository) ProjectID() string { return r.projectID }

// Name returns the repository name.
func (r *Repository) Name() string { return r.name }

// Owner returns the owning agent id.
func (r *Repository) Owner() string { return r.owner }

// Info returns a read-only summary of the repository.
func (r *Repository) Info() Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	branches := make([]string, 0, len(r.branches))
	for name := range r.branches {
		branches = append(branches, name)
	}
	sort.Strings(branches)

	return Info{
		ProjectID:     r.projectID,
		Name:          r.name,
		Owner:         r.owner,
		Description:   r.metadata.Description,
		Language:      r.metadata.Language,
		Framework:     r.metadata.Framework,
		Visibility:    r.metadata.Visibility,
		Collaborators: append([]string(nil), r.metadata.Collaborators...),
		Branches:      branches,
		CommitCount:   len(r.commits),
		CreatedAt:     r.createdAt,
	}
}

// IsCollaborator reports whether the agent is in the collaborator set.
func (r *Repository) IsCollaborator(agentID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.metadata.Collaborators {
		if c == agentID {
			return true
		}
	}
	return false
}

// BranchHead returns the head commit id of a branch.
func (r *Repository) BranchHead(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.branches[name]
	if !ok {
		return "", fmt.Errorf("branch %q: %w", name, dferrors.ErrNotFound)
	}
	return b.Head, nil
}

// CreateBranch creates a new branch pointing at the source branch's head.
func (r *Repository) CreateBranch(name, from, createdBy string) (Branch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.branches[name]; exists {
		return Branch{}, fmt.Errorf("branch %q already exists: %w", name, dferrors.ErrConflict)
	}
	source, ok := r.branches[from]
	if !ok {
		return Branch{}, fmt.Errorf("source branch %q: %w", from, dferrors.ErrNotFound)
	}

	b := newBranch(name, createdBy, source.Head)
	b.Metadata.Collaborators = append([]string(nil), r.metadata.Collaborators...)
	r.branches[name] = b

	if err := r.save(); err != nil {
		return Branch{}, err
	}
	r.logger.Info().Str("branch", name).Str("from", from).Msg("branch created")
	return b.clone(), nil
}

// CommitChanges creates a commit on a branch and advances its head. Each
// change's old content must match the branch's currently resolved content
// for that path (compare-and-swap); stale paths fail with a StaleWriteError
// and no state changes.
func (r *Repository) CommitChanges(author, message string, changes map[string]Change, branchName string) (Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	branch, ok := r.branches[branchName]
	if !ok {
		return Commit{}, fmt.Errorf("branch %q: %w", branchName, dferrors.ErrNotFound)
	}

	var stale []string
	for p, ch := range changes {
		if current := r.resolveContent(p, branch); ch.Old != current {
			stale = append(stale, p)
		}
	}
	if len(stale) > 0 {
		sort.Strings(stale)
		return Commit{}, &dferrors.StaleWriteError{Branch: branchName, Paths: stale}
	}

	commit := newCommit(author, message, branch.Head)
	for p, ch := range changes {
		commit.Changes[p] = ch
		r.files[p] = ch.New
	}

	branch.Head = commit.ID
	r.commits[commit.ID] = commit

	if err := r.save(); err != nil {
		return Commit{}, err
	}
	r.logger.Info().
		Str("branch", branchName).
		Str("commit", commit.ID).
		Int("files", len(changes)).
		Msg("changes committed")
	return commit.clone(), nil
}

// GetFileContent resolves the content of a path on a branch by walking the
// branch's commit chain from head to root, falling back to the flattened
// file cache. The second return value is false when the path is unknown.
func (r *Repository) GetFileContent(filePath, branchName string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	branch, ok := r.branches[branchName]
	if !ok {
		return "", false, fmt.Errorf("branch %q: %w", branchName, dferrors.ErrNotFound)
	}
	if branch.Head == "" {
		return "", false, nil
	}

	for id := branch.Head; id != ""; {
		commit, ok := r.commits[id]
		if !ok {
			break
		}
		if ch, touched := commit.Changes[filePath]; touched {
			return ch.New, true, nil
		}
		id = commit.Parent
	}

	if content, ok := r.files[filePath]; ok {
		return content, true, nil
	}
	return "", false, nil
}

// resolveContent returns the branch's current content for a path, or "" if
// the path does not exist yet. Callers must hold the lock.
func (r *Repository) resolveContent(filePath string, branch *Branch) string {
	for id := branch.Head; id != ""; {
		commit, ok := r.commits[id]
		if !ok {
			break
		}
		if ch, touched := commit.Changes[filePath]; touched {
			return ch.New
		}
		id = commit.Parent
	}
	return r.files[filePath]
}

// CommitHistory returns up to limit commits from head to root. The sequence
// is recomputed on every call.
func (r *Repository) CommitHistory(branchName string, limit int) ([]Commit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	branch, ok := r.branches[branchName]
	if !ok {
		return nil, fmt.Errorf("branch %q: %w", branchName, dferrors.ErrNotFound)
	}
	if limit <= 0 {
		limit = 50
	}

	var history []Commit
	for id := branch.Head; id != "" && len(history) < limit; {
		commit, ok := r.commits[id]
		if !ok {
			break
		}
		history = append(history, commit.clone())
		id = commit.Parent
	}
	return history, nil
}

// MergeBranches merges source into target. Conflicts are the paths both
// branches changed since their lowest common ancestor; on conflict the
// target head is left untouched. A successful merge appends a commit on the
// target carrying the source head as a merge source and no file changes.
func (r *Repository) MergeBranches(sourceName, targetName, author string) (Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	source, ok := r.branches[sourceName]
	if !ok {
		return Commit{}, fmt.Errorf("source branch %q: %w", sourceName, dferrors.ErrNotFound)
	}
	target, ok := r.branches[targetName]
	if !ok {
		return Commit{}, fmt.Errorf("target branch %q: %w", targetName, dferrors.ErrNotFound)
	}
	if source.Head == "" {
		return Commit{}, fmt.Errorf("source branch %q: %w", sourceName, dferrors.ErrEmptyBranch)
	}
	if target.Head == "" {
		return Commit{}, fmt.Errorf("target branch %q: %w", targetName, dferrors.ErrEmptyBranch)
	}

	ancestor := r.lowestCommonAncestor(source.Head, target.Head)
	sourceChanged := r.changedSince(source.Head, ancestor)
	targetChanged := r.changedSince(target.Head, ancestor)

	var conflicts []string
	for p := range sourceChanged {
		if targetChanged[p] {
			conflicts = append(conflicts, p)
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return Commit{}, &dferrors.MergeConflictError{Source: sourceName, Target: targetName, Paths: conflicts}
	}

	merge := newCommit(author, fmt.Sprintf("Merge branch '%s' into '%s'", sourceName, targetName), target.Head)
	merge.Metadata.MergeSources = []string{source.Head}

	target.Head = merge.ID
	r.commits[merge.ID] = merge

	if err := r.save(); err != nil {
		return Commit{}, err
	}
	r.logger.Info().
		Str("source", sourceName).
		Str("target", targetName).
		Str("commit", merge.ID).
		Msg("branches merged")
	return merge.clone(), nil
}

// lowestCommonAncestor walks both chains and returns the first commit id
// they share, or "" when the lineages are disjoint. Callers must hold the
// lock.
func (r *Repository) lowestCommonAncestor(a, b string) string {
	seen := make(map[string]bool)
	for id := b; id != ""; {
		commit, ok := r.commits[id]
		if !ok {
			break
		}
		seen[id] = true
		id = commit.Parent
	}
	for id := a; id != ""; {
		commit, ok := r.commits[id]
		if !ok {
			break
		}
		if seen[id] {
			return id
		}
		id = commit.Parent
	}
	return ""
}

// changedSince collects the paths touched between head (inclusive) and the
// ancestor commit (exclusive). Callers must hold the lock.
func (r *Repository) changedSince(head, ancestor string) map[string]bool {
	changed := make(map[string]bool)
	for id := head; id != "" && id != ancestor; {
		commit, ok := r.commits[id]
		if !ok {
			break
		}
		for p := range commit.Changes {
			changed[p] = true
		}
		id = commit.Parent
	}
	return changed
}

// Diff renders a unified diff per file path for the union of paths touched
// by either commit, omitting files with identical content.
func (r *Repository) Diff(commitA, commitB string) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cacheKey := commitA + "|" + commitB
	if cached, ok := r.diffCache.Get(cacheKey); ok {
		return copyDiff(cached), nil
	}

	ca, ok := r.commits[commitA]
	if !ok {
		return nil, fmt.Errorf("commit %q: %w", commitA, dferrors.ErrNotFound)
	}
	cb, ok := r.commits[commitB]
	if !ok {
		return nil, fmt.Errorf("commit %q: %w", commitB, dferrors.ErrNotFound)
	}

	paths := make(map[string]bool)
	for p := range ca.Changes {
		paths[p] = true
	}
	for p := range cb.Changes {
		paths[p] = true
	}

	result := make(map[string]string)
	for p := range paths {
		oldContent := ca.Changes[p].New
		newContent := cb.Changes[p].New
		if oldContent == newContent {
			continue
		}
		text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(oldContent),
			B:        difflib.SplitLines(newContent),
			FromFile: "a/" + p,
			ToFile:   "b/" + p,
			Context:  3,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to diff %s: %w", p, err)
		}
		result[p] = text
	}

	r.diffCache.Put(cacheKey, copyDiff(result))
	return result, nil
}

func copyDiff(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// SetFramework records the framework in the repository metadata.
func (r *Repository) SetFramework(framework string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata.Framework = framework
	return r.save()
}

// AddCollaborator adds the agent to the repository and every branch.
func (r *Repository) AddCollaborator(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !contains(r.metadata.Collaborators, agentID) {
		r.metadata.Collaborators = append(r.metadata.Collaborators, agentID)
	}
	for _, b := range r.branches {
		if !contains(b.Metadata.Collaborators, agentID) {
			b.Metadata.Collaborators = append(b.Metadata.Collaborators, agentID)
		}
	}
	return r.save()
}

// RemoveCollaborator removes the agent from the repository and every branch.
func (r *Repository) RemoveCollaborator(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.metadata.Collaborators = remove(r.metadata.Collaborators, agentID)
	for _, b := range r.branches {
		b.Metadata.Collaborators = remove(b.Metadata.Collaborators, agentID)
	}
	return r.save()
}

// save persists the full repository state. Callers must hold the write lock.
func (r *Repository) save() error {
	state := repoState{
		ProjectID: r.projectID,
		Name:      r.name,
		Owner:     r.owner,
		CreatedAt: r.createdAt,
		Metadata:  r.metadata,
		Branches:  r.branches,
		Commits:   r.commits,
		Files:     r.files,
	}
	if err := r.store.Write(path.Join(r.projectID, stateDoc), state); err != nil {
		return fmt.Errorf("failed to save repository %s: %w", r.projectID, err)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func remove(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
