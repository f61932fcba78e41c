package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/deepforge/internal/collab"
	dferrors "github.com/p-blackswan/deepforge/internal/errors"
	"github.com/p-blackswan/deepforge/internal/health"
	"github.com/p-blackswan/deepforge/internal/project"
	"github.com/p-blackswan/deepforge/internal/vcs"
)

// ProblemDetail is an RFC 7807 style error payload.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
}

// domainError maps core errors to problem responses.
func domainError(c *fiber.Ctx, err error) error {
	switch {
	case dferrors.IsNotFound(err):
		return problemResponse(c, fiber.StatusNotFound, "not_found", "Not Found", err.Error())
	case dferrors.IsDenied(err):
		return problemResponse(c, fiber.StatusForbidden, "access_denied", "Forbidden", err.Error())
	case dferrors.IsConflict(err):
		return problemResponse(c, fiber.StatusConflict, "conflict", "Conflict", err.Error())
	default:
		return problemResponse(c, fiber.StatusInternalServerError, "internal_error", "Internal Server Error", err.Error())
	}
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	registry  *vcs.Registry
	projects  *project.Manager
	collab    *collab.Manager
	checker   *health.Checker
	config    ServerConfig
	logger    zerolog.Logger
	startTime time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(registry *vcs.Registry, projects *project.Manager, collabMgr *collab.Manager, checker *health.Checker, cfg ServerConfig, logger zerolog.Logger) *Handlers {
	if cfg.SessionWaitMax <= 0 {
		cfg.SessionWaitMax = 5 * time.Minute
	}
	if cfg.SessionPollInterval <= 0 {
		cfg.SessionPollInterval = 5 * time.Second
	}
	return &Handlers{
		registry:  registry,
		projects:  projects,
		collab:    collabMgr,
		checker:   checker,
		config:    cfg,
		logger:    logger.With().Str("component", "handlers").Logger(),
		startTime: time.Now(),
	}
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	if h.checker == nil {
		return c.JSON(fiber.Map{"status": "ready"})
	}

	results := h.checker.RunAll(c.Context())
	for _, s := range results {
		if s == health.StatusDown {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not_ready",
				"checks": results,
			})
		}
	}
	return c.JSON(fiber.Map{"status": "ready", "checks": results})
}

// CreateProjectRequest is the body of POST /api/v1/projects.
type CreateProjectRequest struct {
	Prompt  string `json:"prompt"`
	AgentID string `json:"agent_id"`
}

// CreateProject handles POST /api/v1/projects.
func (h *Handlers) CreateProject(c *fiber.Ctx) error {
	var req CreateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.Prompt == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_prompt", "Bad Request",
			"Project prompt is required")
	}
	if req.AgentID == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_agent_id", "Bad Request",
			"Agent id is required")
	}

	repo, err := h.projects.InitializeProjectFromPrompt(req.Prompt, req.AgentID)
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(repo.Info())
}

// ListProjects handles GET /api/v1/projects.
func (h *Handlers) ListProjects(c *fiber.Ctx) error {
	repos := h.registry.ListRepositories(c.Query("agent_id"))

	infos := make([]vcs.Info, 0, len(repos))
	for _, repo := range repos {
		infos = append(infos, repo.Info())
	}
	return c.JSON(fiber.Map{"projects": infos, "total": len(infos)})
}

// GetProject handles GET /api/v1/projects/:id.
func (h *Handlers) GetProject(c *fiber.Ctx) error {
	repo, err := h.registry.GetRepository(c.Params("id"))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(repo.Info())
}

// DeleteProject handles DELETE /api/v1/projects/:id.
func (h *Handlers) DeleteProject(c *fiber.Ctx) error {
	agentID := c.Query("agent_id")
	if agentID == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_agent_id", "Bad Request",
			"Agent id is required")
	}
	if err := h.registry.DeleteRepository(c.Params("id"), agentID); err != nil {
		return domainError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetCommitHistory handles GET /api/v1/projects/:id/history.
func (h *Handlers) GetCommitHistory(c *fiber.Ctx) error {
	repo, err := h.registry.GetRepository(c.Params("id"))
	if err != nil {
		return domainError(c, err)
	}

	branch := c.Query("branch", "main")
	history, err := repo.CommitHistory(branch, c.QueryInt("limit", 50))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(fiber.Map{"branch": branch, "commits": history, "total": len(history)})
}

// CreateIssueRequest is the body of POST /api/v1/projects/:id/issues.
type CreateIssueRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CreatedBy   string   `json:"created_by"`
	Type        string   `json:"issue_type"`
	Priority    string   `json:"priority"`
	Labels      []string `json:"labels"`
}

// CreateIssue handles POST /api/v1/projects/:id/issues.
func (h *Handlers) CreateIssue(c *fiber.Ctx) error {
	var req CreateIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.Title == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_title", "Bad Request",
			"Issue title is required")
	}

	issue, err := h.projects.CreateIssue(c.Params("id"), req.Title, req.Description, req.CreatedBy, req.Type, req.Priority, req.Labels)
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(issue)
}

// ListIssues handles GET /api/v1/projects/:id/issues.
func (h *Handlers) ListIssues(c *fiber.Ctx) error {
	issues, err := h.projects.ListIssues(c.Params("id"), c.Query("status"))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(fiber.Map{"issues": issues, "total": len(issues)})
}

// UpdateIssueStatusRequest is the body of PATCH issues/:issue.
type UpdateIssueStatusRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
}

// UpdateIssueStatus handles PATCH /api/v1/projects/:id/issues/:issue.
func (h *Handlers) UpdateIssueStatus(c *fiber.Ctx) error {
	var req UpdateIssueStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.Status == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_status", "Bad Request",
			"Issue status is required")
	}

	issue, err := h.projects.UpdateIssueStatus(c.Params("id"), c.Params("issue"), req.Status, req.Actor)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(issue)
}

// CreatePullRequestRequest is the body of POST /api/v1/projects/:id/pulls.
type CreatePullRequestRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Author       string `json:"author"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
}

// CreatePullRequest handles POST /api/v1/projects/:id/pulls.
func (h *Handlers) CreatePullRequest(c *fiber.Ctx) error {
	var req CreatePullRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.Title == "" || req.SourceBranch == "" || req.TargetBranch == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_fields", "Bad Request",
			"Title, source branch, and target branch are required")
	}

	pr, err := h.projects.CreatePullRequest(c.Params("id"), req.Title, req.Description, req.Author, req.SourceBranch, req.TargetBranch)
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(pr)
}

// ListPullRequests handles GET /api/v1/projects/:id/pulls.
func (h *Handlers) ListPullRequests(c *fiber.Ctx) error {
	prs, err := h.projects.ListPullRequests(c.Params("id"), c.Query("status"))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(fiber.Map{"pull_requests": prs, "total": len(prs)})
}

// MergePullRequestRequest is the body of POST pulls/:pr/merge.
type MergePullRequestRequest struct {
	Actor string `json:"actor"`
}

// MergePullRequest handles POST /api/v1/projects/:id/pulls/:pr/merge.
func (h *Handlers) MergePullRequest(c *fiber.Ctx) error {
	var req MergePullRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	pr, err := h.projects.MergePullRequest(c.Params("id"), c.Params("pr"), req.Actor)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(pr)
}

// ResearchRequest is the body of POST /api/v1/research.
type ResearchRequest struct {
	Prompt  string `json:"prompt"`
	AgentID string `json:"agent_id"`
}

// ResearchResponse is the synchronous research result.
type ResearchResponse struct {
	ProjectID   string        `json:"project_id"`
	FinalStatus collab.Status `json:"final_status"`
	TimedOut    bool          `json:"timed_out,omitempty"`
}

// Research handles POST /api/v1/research: it creates a project from the
// prompt, runs a collaboration session against it, and waits for the
// workflow to finish (bounded by the configured wait ceiling).
func (h *Handlers) Research(c *fiber.Ctx) error {
	var req ResearchRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.Prompt == "" || req.AgentID == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_fields", "Bad Request",
			"Prompt and agent id are required")
	}

	repo, err := h.projects.InitializeProjectFromPrompt(req.Prompt, req.AgentID)
	if err != nil {
		return domainError(c, err)
	}

	started, err := h.collab.StartSession(repo.ProjectID(), req.AgentID, req.Prompt)
	if err != nil {
		return domainError(c, err)
	}

	status, done := h.collab.WaitForSession(c.Context(), started.SessionID, h.config.SessionWaitMax, h.config.SessionPollInterval)
	if status == nil {
		status = &started
	}
	return c.JSON(ResearchResponse{
		ProjectID:   repo.ProjectID(),
		FinalStatus: *status,
		TimedOut:    !done,
	})
}

// StartSessionRequest is the body of POST /api/v1/sessions.
type StartSessionRequest struct {
	ProjectID       string `json:"project_id"`
	Initiator       string `json:"initiator"`
	TaskDescription string `json:"task_description"`
}

// StartSession handles POST /api/v1/sessions.
func (h *Handlers) StartSession(c *fiber.Ctx) error {
	var req StartSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.ProjectID == "" || req.TaskDescription == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_fields", "Bad Request",
			"Project id and task description are required")
	}

	status, err := h.collab.StartSession(req.ProjectID, req.Initiator, req.TaskDescription)
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(status)
}

// ListSessions handles GET /api/v1/sessions.
func (h *Handlers) ListSessions(c *fiber.Ctx) error {
	sessions := h.collab.ActiveSessions()
	if sessions == nil {
		sessions = []collab.Status{}
	}
	return c.JSON(fiber.Map{"sessions": sessions, "total": len(sessions)})
}

// GetSessionStatus handles GET /api/v1/sessions/:id.
func (h *Handlers) GetSessionStatus(c *fiber.Ctx) error {
	status := h.collab.GetSessionStatus(c.Params("id"))
	if status == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"not_found", "Not Found",
			"Unknown session id")
	}
	return c.JSON(status)
}

// GetAgentMetrics handles GET /api/v1/agents/:id/metrics.
func (h *Handlers) GetAgentMetrics(c *fiber.Ctx) error {
	perf := h.collab.AgentPerformance(c.Params("id"))
	if perf == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"not_found", "Not Found",
			"Unknown agent id")
	}
	return c.JSON(perf)
}
