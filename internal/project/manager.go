package project

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/deepforge/internal/docstore"
	dferrors "github.com/p-blackswan/deepforge/internal/errors"
	"github.com/p-blackswan/deepforge/internal/vcs"
)

const (
	issuesDir = "issues"
	prsDir    = "pull_requests"
)

// Manager provides project lifecycle operations on top of the repository
// registry: template instantiation, issue and pull request tracking, and
// in-memory collaboration sessions.
// Safe for concurrent use.
type Manager struct {
	store     *docstore.Store
	registry  *vcs.Registry
	logger    zerolog.Logger
	templates map[string]*Template

	mu       sync.RWMutex
	sessions map[string]*CollaborationSession
}

// NewManager builds a manager over the given store and registry and loads
// the embedded template catalog.
func NewManager(store *docstore.Store, registry *vcs.Registry, logger zerolog.Logger) (*Manager, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}
	return &Manager{
		store:     store,
		registry:  registry,
		logger:    logger.With().Str("component", "project.manager").Logger(),
		templates: templates,
		sessions:  make(map[string]*CollaborationSession),
	}, nil
}

// Templates returns the template names in sorted order.
func (m *Manager) Templates() []string {
	names := make([]string, 0, len(m.templates))
	for name := range m.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Template returns a template by name.
func (m *Manager) Template(name string) (*Template, error) {
	t, ok := m.templates[name]
	if !ok {
		return nil, fmt.Errorf("template %q: %w", name, dferrors.ErrNotFound)
	}
	return t, nil
}

// CreateProjectFromTemplate creates a repository seeded with the template's
// files as a single commit on main.
func (m *Manager) CreateProjectFromTemplate(templateName, projectName, owner string) (*vcs.Repository, error) {
	tmpl, err := m.Template(templateName)
	if err != nil {
		return nil, err
	}

	projectID := fmt.Sprintf("%s_%s", templateName, time.Now().UTC().Format("20060102_150405"))
	repo, err := m.registry.CreateRepository(projectID, projectName, owner, tmpl.Description, tmpl.Language)
	if err != nil {
		return nil, err
	}
	if err := repo.SetFramework(tmpl.Framework); err != nil {
		return nil, err
	}

	changes := make(map[string]vcs.Change, len(tmpl.Files))
	for p, content := range tmpl.Files {
		changes[p] = vcs.Change{Old: "", New: content}
	}
	if _, err := repo.CommitChanges(owner, fmt.Sprintf("Initial project structure from template %s", templateName), changes, "main"); err != nil {
		return nil, fmt.Errorf("failed to seed project %s: %w", projectID, err)
	}

	m.logger.Info().
		Str("project_id", projectID).
		Str("template", templateName).
		Str("owner", owner).
		Msg("project created from template")
	return repo, nil
}

// InitializeProjectFromPrompt picks a template from keywords in a free-form
// prompt and creates a project for it. If template instantiation fails the
// manager falls back to a bare repository so the caller still gets a
// workable project.
func (m *Manager) InitializeProjectFromPrompt(prompt, requester string) (*vcs.Repository, error) {
	templateName := templateForPrompt(prompt)
	projectName := nameFromPrompt(prompt)

	repo, err := m.CreateProjectFromTemplate(templateName, projectName, requester)
	if err == nil {
		return repo, nil
	}
	m.logger.Warn().Err(err).Str("template", templateName).Msg("template instantiation failed, creating bare repository")

	sum := sha256.Sum256([]byte(prompt))
	projectID := hex.EncodeToString(sum[:])[:12]
	language := "python"
	if templateName == "javascript-react-app" {
		language = "javascript"
	}
	return m.registry.CreateRepository(projectID, projectName, requester, prompt, language)
}

// templateForPrompt maps prompt keywords to a template name. Defaults to
// the Flask web application template.
func templateForPrompt(prompt string) string {
	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(lower, "react") || strings.Contains(lower, "javascript") || strings.Contains(lower, "frontend"):
		return "javascript-react-app"
	case strings.Contains(lower, "data") || strings.Contains(lower, "analysis") || strings.Contains(lower, "pandas") || strings.Contains(lower, "csv"):
		return "python-data-analysis"
	default:
		return "python-web-app"
	}
}

// nameFromPrompt derives a project name from the prompt: truncated to 50
// characters, question and exclamation marks stripped, spaces replaced with
// underscores.
func nameFromPrompt(prompt string) string {
	name := strings.TrimSpace(prompt)
	if len(name) > 50 {
		name = name[:50]
	}
	name = strings.NewReplacer("?", "", "!", "", " ", "_").Replace(name)
	if name == "" {
		name = "untitled_project"
	}
	return name
}

// CreateIssue files an issue on a project. The creator must be a
// collaborator.
func (m *Manager) CreateIssue(projectID, title, description, createdBy, issueType, priority string, labels []string) (*Issue, error) {
	repo, err := m.registry.GetRepository(projectID)
	if err != nil {
		return nil, err
	}
	if !repo.IsCollaborator(createdBy) {
		return nil, fmt.Errorf("agent %q is not a collaborator on %q: %w", createdBy, projectID, dferrors.ErrDenied)
	}

	issue := newIssue(projectID, title, description, createdBy, issueType, priority, labels)
	if err := m.store.Write(path.Join(projectID, issuesDir, issue.ID+".json"), issue); err != nil {
		return nil, err
	}
	m.logger.Info().Str("project_id", projectID).Str("issue_id", issue.ID).Msg("issue created")
	return issue, nil
}

// ListIssues returns a project's issues, optionally filtered by status.
// Unparseable documents are logged and skipped.
func (m *Manager) ListIssues(projectID, status string) ([]*Issue, error) {
	if _, err := m.registry.GetRepository(projectID); err != nil {
		return nil, err
	}

	docs, err := m.store.List(path.Join(projectID, issuesDir))
	if err != nil {
		return nil, err
	}

	issues := make([]*Issue, 0, len(docs))
	for _, doc := range docs {
		var issue Issue
		if err := m.store.Read(path.Join(projectID, issuesDir, doc), &issue); err != nil {
			m.logger.Warn().Err(err).Str("doc", doc).Msg("skipping unreadable issue")
			continue
		}
		if status != "" && issue.Status != status {
			continue
		}
		issues = append(issues, &issue)
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].CreatedAt.Before(issues[j].CreatedAt) })
	return issues, nil
}

// UpdateIssueStatus transitions an issue's status and records a system
// comment for the transition.
func (m *Manager) UpdateIssueStatus(projectID, issueID, status, actor string) (*Issue, error) {
	rel := path.Join(projectID, issuesDir, issueID+".json")

	var issue Issue
	if err := m.store.Read(rel, &issue); err != nil {
		return nil, err
	}
	issue.setStatus(status, actor)
	if err := m.store.Write(rel, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// CreatePullRequest opens a pull request between two existing branches. The
// author must be a collaborator.
func (m *Manager) CreatePullRequest(projectID, title, description, author, sourceBranch, targetBranch string) (*PullRequest, error) {
	repo, err := m.registry.GetRepository(projectID)
	if err != nil {
		return nil, err
	}
	if !repo.IsCollaborator(author) {
		return nil, fmt.Errorf("agent %q is not a collaborator on %q: %w", author, projectID, dferrors.ErrDenied)
	}
	if _, err := repo.BranchHead(sourceBranch); err != nil {
		return nil, err
	}
	if _, err := repo.BranchHead(targetBranch); err != nil {
		return nil, err
	}

	pr := newPullRequest(projectID, title, description, author, sourceBranch, targetBranch)
	if err := m.store.Write(path.Join(projectID, prsDir, pr.ID+".json"), pr); err != nil {
		return nil, err
	}
	m.logger.Info().Str("project_id", projectID).Str("pr_id", pr.ID).Msg("pull request created")
	return pr, nil
}

// ListPullRequests returns a project's pull requests, optionally filtered
// by status. Unparseable documents are logged and skipped.
func (m *Manager) ListPullRequests(projectID, status string) ([]*PullRequest, error) {
	if _, err := m.registry.GetRepository(projectID); err != nil {
		return nil, err
	}

	docs, err := m.store.List(path.Join(projectID, prsDir))
	if err != nil {
		return nil, err
	}

	prs := make([]*PullRequest, 0, len(docs))
	for _, doc := range docs {
		var pr PullRequest
		if err := m.store.Read(path.Join(projectID, prsDir, doc), &pr); err != nil {
			m.logger.Warn().Err(err).Str("doc", doc).Msg("skipping unreadable pull request")
			continue
		}
		if status != "" && pr.Status != status {
			continue
		}
		prs = append(prs, &pr)
	}
	sort.Slice(prs, func(i, j int) bool { return prs[i].CreatedAt.Before(prs[j].CreatedAt) })
	return prs, nil
}

// MergePullRequest merges an open pull request's branches. On a merge
// conflict the pull request stays open with a system comment describing the
// failure, and the conflict error is returned.
func (m *Manager) MergePullRequest(projectID, prID, actor string) (*PullRequest, error) {
	repo, err := m.registry.GetRepository(projectID)
	if err != nil {
		return nil, err
	}

	rel := path.Join(projectID, prsDir, prID+".json")
	var pr PullRequest
	if err := m.store.Read(rel, &pr); err != nil {
		return nil, err
	}
	if pr.Status != PRStatusOpen {
		return nil, fmt.Errorf("pull request %q is %s: %w", prID, pr.Status, dferrors.ErrConflict)
	}

	commit, mergeErr := repo.MergeBranches(pr.SourceBranch, pr.TargetBranch, actor)
	if mergeErr != nil {
		pr.addComment("system", fmt.Sprintf("Merge failed: %v", mergeErr))
		if err := m.store.Write(rel, &pr); err != nil {
			return nil, err
		}
		return &pr, mergeErr
	}

	pr.recordMerge(commit.ID, actor)
	if err := m.store.Write(rel, &pr); err != nil {
		return nil, err
	}
	m.logger.Info().Str("project_id", projectID).Str("pr_id", prID).Str("commit", commit.ID).Msg("pull request merged")
	return &pr, nil
}

// CreateCollaborationSession opens an in-memory editing session for a
// project.
func (m *Manager) CreateCollaborationSession(projectID, initiator string) (*CollaborationSession, error) {
	if _, err := m.registry.GetRepository(projectID); err != nil {
		return nil, err
	}

	session := newCollaborationSession(uuid.NewString()[:8], projectID, initiator)

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	m.logger.Info().Str("project_id", projectID).Str("session_id", session.ID()).Msg("collaboration session created")
	return session, nil
}

// GetSession returns a collaboration session by id.
func (m *Manager) GetSession(sessionID string) (*CollaborationSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", sessionID, dferrors.ErrNotFound)
	}
	return s, nil
}

// EndSession marks a collaboration session inactive. Its history remains
// readable.
func (m *Manager) EndSession(sessionID string) error {
	s, err := m.GetSession(sessionID)
	if err != nil {
		return err
	}
	s.End()
	return nil
}

// ActiveSessions lists live sessions, optionally restricted to one project.
func (m *Manager) ActiveSessions(projectID string) []*CollaborationSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []*CollaborationSession
	for _, s := range m.sessions {
		if !s.IsActive() {
			continue
		}
		if projectID != "" && s.ProjectID() != projectID {
			continue
		}
		active = append(active, s)
	}
	return active
}
