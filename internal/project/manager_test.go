package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/deepforge/internal/docstore"
	dferrors "github.com/p-blackswan/deepforge/internal/errors"
	"github.com/p-blackswan/deepforge/internal/vcs"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	store, err := docstore.New(root, zerolog.New(os.Stderr))
	require.NoError(t, err)
	registry, err := vcs.NewRegistry(store, zerolog.New(os.Stderr))
	require.NoError(t, err)
	mgr, err := NewManager(store, registry, zerolog.New(os.Stderr))
	require.NoError(t, err)
	return mgr, root
}

func TestLoadTemplates(t *testing.T) {
	templates, err := LoadTemplates()
	require.NoError(t, err)
	require.Len(t, templates, 3)

	flask := templates["python-web-app"]
	require.NotNil(t, flask)
	assert.Equal(t, "flask", flask.Framework)
	assert.Contains(t, flask.Files, "app.py")
	assert.Contains(t, flask.Files["requirements.txt"], "Flask")

	react := templates["javascript-react-app"]
	require.NotNil(t, react)
	assert.Equal(t, "javascript", react.Language)
	assert.Contains(t, react.Files, "package.json")
	assert.Contains(t, react.Files, "src/App.js")
	assert.Contains(t, react.Files, "src/index.js")
}

func TestCreateProjectFromTemplate(t *testing.T) {
	mgr, _ := newTestManager(t)

	repo, err := mgr.CreateProjectFromTemplate("python-web-app", "My App", "agent-a")
	require.NoError(t, err)

	info := repo.Info()
	assert.Equal(t, "python", info.Language)
	assert.Equal(t, "flask", info.Framework)
	assert.Equal(t, 2, info.CommitCount, "initial commit plus template seed")

	content, ok, err := repo.GetFileContent("app.py", "main")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, content, "Flask(__name__)")

	_, err = mgr.CreateProjectFromTemplate("no-such-template", "X", "agent-a")
	require.Error(t, err)
	assert.True(t, dferrors.IsNotFound(err))
}

func TestInitializeProjectFromPrompt_ReactTemplate(t *testing.T) {
	mgr, _ := newTestManager(t)

	repo, err := mgr.InitializeProjectFromPrompt("Build a react app for tracking tasks", "agent-a")
	require.NoError(t, err)

	assert.Equal(t, "javascript", repo.Info().Language)
	for _, path := range []string{"package.json", "src/App.js", "src/index.js"} {
		_, ok, err := repo.GetFileContent(path, "main")
		require.NoError(t, err)
		assert.True(t, ok, "expected %s in initial commit", path)
	}
}

func TestTemplateForPrompt(t *testing.T) {
	tests := []struct {
		prompt string
		want   string
	}{
		{"Build a React dashboard", "javascript-react-app"},
		{"frontend for the shop", "javascript-react-app"},
		{"analyze csv sales data", "python-data-analysis"},
		{"pandas report generator", "python-data-analysis"},
		{"simple web api", "python-web-app"},
		{"", "python-web-app"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, templateForPrompt(tt.prompt), "prompt %q", tt.prompt)
	}
}

func TestNameFromPrompt(t *testing.T) {
	assert.Equal(t, "Build_a_web_app", nameFromPrompt("Build a web app?!"))
	assert.Equal(t, "untitled_project", nameFromPrompt("  "))

	long := nameFromPrompt("this prompt is well over fifty characters long and keeps going and going")
	assert.LessOrEqual(t, len(long), 50)
}

func TestIssues(t *testing.T) {
	mgr, _ := newTestManager(t)
	repo, err := mgr.CreateProjectFromTemplate("python-web-app", "App", "agent-a")
	require.NoError(t, err)
	projectID := repo.ProjectID()

	issue, err := mgr.CreateIssue(projectID, "Crash on start", "stack trace attached", "agent-a", IssueTypeBug, PriorityHigh, []string{"crash"})
	require.NoError(t, err)
	assert.Len(t, issue.ID, 8)
	assert.Equal(t, IssueStatusOpen, issue.Status)

	// Non-collaborators may not file issues.
	_, err = mgr.CreateIssue(projectID, "nope", "", "stranger", IssueTypeBug, PriorityLow, nil)
	require.Error(t, err)
	assert.True(t, dferrors.IsDenied(err))

	_, err = mgr.CreateIssue(projectID, "Add login", "", "agent-a", IssueTypeFeature, PriorityMedium, nil)
	require.NoError(t, err)

	all, err := mgr.ListIssues(projectID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	open, err := mgr.ListIssues(projectID, IssueStatusOpen)
	require.NoError(t, err)
	assert.Len(t, open, 2)

	updated, err := mgr.UpdateIssueStatus(projectID, issue.ID, IssueStatusResolved, "agent-a")
	require.NoError(t, err)
	assert.Equal(t, IssueStatusResolved, updated.Status)
	require.NotEmpty(t, updated.Comments)
	last := updated.Comments[len(updated.Comments)-1]
	assert.Equal(t, "system", last.Author)
	assert.Contains(t, last.Body, "resolved")

	open, err = mgr.ListIssues(projectID, IssueStatusOpen)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestListIssues_SkipsUnparseable(t *testing.T) {
	mgr, root := newTestManager(t)
	repo, err := mgr.CreateProjectFromTemplate("python-web-app", "App", "agent-a")
	require.NoError(t, err)
	projectID := repo.ProjectID()

	_, err = mgr.CreateIssue(projectID, "Good", "", "agent-a", IssueTypeTask, PriorityLow, nil)
	require.NoError(t, err)

	bad := filepath.Join(root, projectID, issuesDir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{broken"), 0o644))

	issues, err := mgr.ListIssues(projectID, "")
	require.NoError(t, err)
	assert.Len(t, issues, 1)
}

func TestPullRequests_MergeSuccess(t *testing.T) {
	mgr, _ := newTestManager(t)
	repo, err := mgr.CreateProjectFromTemplate("python-web-app", "App", "agent-a")
	require.NoError(t, err)
	projectID := repo.ProjectID()

	_, err = repo.CreateBranch("feat", "main", "agent-a")
	require.NoError(t, err)

	pr, err := mgr.CreatePullRequest(projectID, "Add feature", "details", "agent-a", "feat", "main")
	require.NoError(t, err)
	assert.Equal(t, PRStatusOpen, pr.Status)

	merged, err := mgr.MergePullRequest(projectID, pr.ID, "agent-a")
	require.NoError(t, err)
	assert.Equal(t, PRStatusMerged, merged.Status)
	assert.NotEmpty(t, merged.MergeCommit)
	require.NotEmpty(t, merged.Comments)
	assert.Contains(t, merged.Comments[len(merged.Comments)-1].Body, "Merged feat into main")

	// Merging an already merged pull request is refused.
	_, err = mgr.MergePullRequest(projectID, pr.ID, "agent-a")
	require.Error(t, err)
	assert.True(t, dferrors.IsConflict(err))
}

func TestPullRequests_MergeConflictStaysOpen(t *testing.T) {
	mgr, _ := newTestManager(t)
	repo, err := mgr.CreateProjectFromTemplate("python-web-app", "App", "agent-a")
	require.NoError(t, err)
	projectID := repo.ProjectID()

	_, err = repo.CreateBranch("feat", "main", "agent-a")
	require.NoError(t, err)

	mainContent, _, err := repo.GetFileContent("app.py", "main")
	require.NoError(t, err)
	_, err = repo.CommitChanges("agent-a", "main edit", map[string]vcs.Change{
		"app.py": {Old: mainContent, New: mainContent + "# main\n"},
	}, "main")
	require.NoError(t, err)
	_, err = repo.CommitChanges("agent-a", "feat edit", map[string]vcs.Change{
		"app.py": {Old: mainContent, New: mainContent + "# feat\n"},
	}, "feat")
	require.NoError(t, err)

	pr, err := mgr.CreatePullRequest(projectID, "Conflicting", "", "agent-a", "feat", "main")
	require.NoError(t, err)

	returned, err := mgr.MergePullRequest(projectID, pr.ID, "agent-a")
	require.Error(t, err)
	assert.True(t, dferrors.IsConflict(err))
	require.NotNil(t, returned)
	assert.Equal(t, PRStatusOpen, returned.Status)
	assert.Contains(t, returned.Comments[len(returned.Comments)-1].Body, "Merge failed")
}

func TestCreatePullRequest_Validation(t *testing.T) {
	mgr, _ := newTestManager(t)
	repo, err := mgr.CreateProjectFromTemplate("python-web-app", "App", "agent-a")
	require.NoError(t, err)
	projectID := repo.ProjectID()

	_, err = mgr.CreatePullRequest(projectID, "x", "", "stranger", "main", "main")
	require.Error(t, err)
	assert.True(t, dferrors.IsDenied(err))

	_, err = mgr.CreatePullRequest(projectID, "x", "", "agent-a", "ghost", "main")
	require.Error(t, err)
	assert.True(t, dferrors.IsNotFound(err))
}

func TestCollaborationSessions(t *testing.T) {
	mgr, _ := newTestManager(t)
	repo, err := mgr.CreateProjectFromTemplate("python-web-app", "App", "agent-a")
	require.NoError(t, err)
	projectID := repo.ProjectID()

	session, err := mgr.CreateCollaborationSession(projectID, "agent-a")
	require.NoError(t, err)
	assert.Len(t, session.ID(), 8)

	got, err := mgr.GetSession(session.ID())
	require.NoError(t, err)
	assert.Equal(t, session, got)

	session.Join("agent-b")
	session.MoveCursor("agent-b", Cursor{File: "app.py", Line: 3, Column: 1})
	session.PostMessage("agent-b", "looking at the handler")

	state := session.State()
	assert.ElementsMatch(t, []string{"agent-a", "agent-b"}, state.Participants)
	assert.Equal(t, 3, state.Cursors["agent-b"].Line)
	require.Len(t, state.Chat, 1)
	assert.Equal(t, "agent-b", state.Chat[0].From)

	assert.Len(t, mgr.ActiveSessions(""), 1)
	assert.Len(t, mgr.ActiveSessions(projectID), 1)
	assert.Empty(t, mgr.ActiveSessions("other"))

	require.NoError(t, mgr.EndSession(session.ID()))
	assert.False(t, session.IsActive())
	assert.Empty(t, mgr.ActiveSessions(""))

	// History survives ending the session.
	state = session.State()
	assert.Len(t, state.Chat, 1)

	_, err = mgr.GetSession("missing")
	require.Error(t, err)
	assert.True(t, dferrors.IsNotFound(err))
}

func TestCreateIssue_UnknownProject(t *testing.T) {
	mgr, _ := newTestManager(t)
	_, err := mgr.CreateIssue("ghost", "x", "", "agent-a", "", "", nil)
	require.Error(t, err)
	assert.True(t, dferrors.IsNotFound(err))
}
