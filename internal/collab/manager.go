package collab

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/deepforge/internal/agent"
	"github.com/p-blackswan/deepforge/internal/metrics"
	"github.com/p-blackswan/deepforge/internal/project"
	"github.com/p-blackswan/deepforge/internal/vcs"
)

// Session statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Workflow phases.
const (
	PhasePlanning    = "planning"
	PhaseDevelopment = "development"
	PhaseReview      = "review"
	PhaseDeployment  = "deployment"
	PhaseCompleted   = "completed"
)

// skippedResult records a deployment that was gated off.
type skippedResult struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Session tracks one workflow run. Fields are guarded by mu because the
// workflow goroutine mutates them while callers poll.
type Session struct {
	mu sync.Mutex

	id              string
	projectID       string
	initiator       string
	taskDescription string
	agentsInvolved  []string
	currentPhase    string
	progress        float64
	results         map[string]any
	collab          *project.CollaborationSession
	status          string
	err             string
	createdAt       time.Time
}

// ResultSummary condenses one phase result for status polling.
type ResultSummary struct {
	Success     bool   `json:"success"`
	Agent       string `json:"agent"`
	HasResponse bool   `json:"has_response"`
}

// Status is a point-in-time snapshot of a session, safe to serialize.
type Status struct {
	SessionID      string                   `json:"session_id"`
	ProjectID      string                   `json:"project_id"`
	Status         string                   `json:"status"`
	CurrentPhase   string                   `json:"current_phase"`
	Progress       float64                  `json:"progress"`
	AgentsInvolved []string                 `json:"agents_involved"`
	Error          string                   `json:"error,omitempty"`
	ResultsSummary map[string]ResultSummary `json:"results_summary"`
	CreatedAt      time.Time                `json:"created_at"`
}

// snapshot builds a Status under the session lock.
func (s *Session) snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := make(map[string]ResultSummary, len(s.results))
	for phase, result := range s.results {
		switch r := result.(type) {
		case agent.Result:
			summary[phase] = ResultSummary{Success: r.Success, Agent: r.AgentID, HasResponse: r.Response != ""}
		case vcs.Commit:
			summary[phase] = ResultSummary{Success: true, Agent: r.Author, HasResponse: false}
		case skippedResult:
			summary[phase] = ResultSummary{Success: false, Agent: "unknown", HasResponse: false}
		}
	}

	return Status{
		SessionID:      s.id,
		ProjectID:      s.projectID,
		Status:         s.status,
		CurrentPhase:   s.currentPhase,
		Progress:       s.progress,
		AgentsInvolved: append([]string(nil), s.agentsInvolved...),
		Error:          s.err,
		ResultsSummary: summary,
		CreatedAt:      s.createdAt,
	}
}

func (s *Session) setPhase(phase string, progress float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPhase = phase
	s.progress = progress
}

func (s *Session) setResult(key string, result any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[key] = result
}

func (s *Session) result(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[key]
	return r, ok
}

func (s *Session) involve(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.agentsInvolved {
		if id == agentID {
			return
		}
	}
	s.agentsInvolved = append(s.agentsInvolved, agentID)
}

func (s *Session) finish(status, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.err = errMsg
	if status == StatusCompleted {
		s.currentPhase = PhaseCompleted
		s.progress = 1.0
	}
}

// Manager owns the agent roster and runs collaboration sessions.
// Safe for concurrent use.
type Manager struct {
	projects *project.Manager
	registry *vcs.Registry
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	agents   map[string]*agent.Agent

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager builds a collaboration manager with the standard agent
// roster. A nil factory wires every agent to its static executor.
func NewManager(projects *project.Manager, registry *vcs.Registry, m *metrics.Metrics, factory ExecutorFactory, logger zerolog.Logger) *Manager {
	return &Manager{
		projects: projects,
		registry: registry,
		metrics:  m,
		logger:   logger.With().Str("component", "collab.manager").Logger(),
		agents:   newRoster(factory, logger),
		sessions: make(map[string]*Session),
	}
}

// StartSession registers a session and launches its workflow in the
// background, returning the initial status immediately.
func (m *Manager) StartSession(projectID, initiator, taskDescription string) (Status, error) {
	collabSession, err := m.projects.CreateCollaborationSession(projectID, initiator)
	if err != nil {
		return Status{}, fmt.Errorf("failed to start session for %s: %w", projectID, err)
	}

	short := projectID
	if len(short) > 8 {
		short = short[:8]
	}
	session := &Session{
		id:              fmt.Sprintf("session_%d_%s", time.Now().Unix(), short),
		projectID:       projectID,
		initiator:       initiator,
		taskDescription: taskDescription,
		currentPhase:    PhasePlanning,
		results:         make(map[string]any),
		collab:          collabSession,
		status:          StatusActive,
		createdAt:       time.Now().UTC(),
	}

	m.mu.Lock()
	m.sessions[session.id] = session
	m.mu.Unlock()

	m.logger.Info().
		Str("session_id", session.id).
		Str("project_id", projectID).
		Str("initiator", initiator).
		Msg("collaboration session started")

	go m.runWorkflow(session)

	return session.snapshot(), nil
}

// GetSessionStatus returns a snapshot of a session, or nil when the id is
// unknown. It never returns an error.
func (m *Manager) GetSessionStatus(sessionID string) *Status {
	m.mu.RLock()
	session, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	status := session.snapshot()
	return &status
}

// ActiveSessions returns snapshots of all sessions still running.
func (m *Manager) ActiveSessions() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []Status
	for _, session := range m.sessions {
		status := session.snapshot()
		if status.Status == StatusActive {
			active = append(active, status)
		}
	}
	return active
}

// WaitForSession polls until the session reaches a terminal status or the
// wait ceiling elapses. The bool result reports whether the session
// finished; the workflow keeps running after a timeout.
func (m *Manager) WaitForSession(ctx context.Context, sessionID string, maxWait, pollInterval time.Duration) (*Status, bool) {
	deadline := time.Now().Add(maxWait)
	for {
		status := m.GetSessionStatus(sessionID)
		if status == nil {
			return nil, false
		}
		if status.Status != StatusActive {
			return status, true
		}
		if time.Now().After(deadline) {
			return status, false
		}
		select {
		case <-ctx.Done():
			return status, false
		case <-time.After(pollInterval):
		}
	}
}

// AgentPerformance returns a metrics snapshot for an agent id, or nil when
// the id is unknown.
func (m *Manager) AgentPerformance(agentID string) *agent.Metrics {
	for _, a := range m.agents {
		if a.ID() == agentID {
			snapshot := a.Metrics()
			return &snapshot
		}
	}
	return nil
}

// Agents lists the roster's agent ids keyed by role.
func (m *Manager) Agents() map[string]string {
	out := make(map[string]string, len(m.agents))
	for role, a := range m.agents {
		out[role] = a.ID()
	}
	return out
}
