package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// historyPromptLines is how many recent task summaries are fed back into
// prompts; historyMax bounds the retained log.
const (
	historyPromptLines = 5
	historyMax         = 25
)

// Task is a unit of work handed to an agent. Details carries
// phase-specific payload such as plans, code, or review criteria.
type Task struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	ProjectID   string         `json:"project_id,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// Result is the outcome of one ProcessTask call. Executor failures are
// reported through Success and Error rather than a Go error.
type Result struct {
	AgentID      string  `json:"agent_id"`
	Response     string  `json:"response,omitempty"`
	ResponseTime float64 `json:"response_time"`
	Success      bool    `json:"success"`
	Error        string  `json:"error,omitempty"`
}

// Metrics is an agent's running performance summary. Averages use the
// (current + new) / 2 update rule.
type Metrics struct {
	TasksCompleted     int     `json:"tasks_completed"`
	CodeQualityScore   float64 `json:"code_quality_score"`
	CollaborationScore float64 `json:"collaboration_score"`
	ResponseTimeAvg    float64 `json:"response_time_avg"`
}

// Agent is a role-scoped worker. Safe for concurrent use.
type Agent struct {
	id           string
	name         string
	role         string
	capabilities []string
	systemPrompt string
	credentials  map[string]string
	executor     Executor
	logger       zerolog.Logger

	mu      sync.Mutex
	metrics Metrics
	history []string
}

// New builds an agent. A nil executor falls back to the role's static
// executor.
func New(id, name, role string, capabilities []string, systemPrompt string, credentials map[string]string, exec Executor, logger zerolog.Logger) *Agent {
	if exec == nil {
		exec = NewStaticExecutor(role, name)
	}
	return &Agent{
		id:           id,
		name:         name,
		role:         role,
		capabilities: capabilities,
		systemPrompt: systemPrompt,
		credentials:  credentials,
		executor:     exec,
		logger:       logger.With().Str("component", "agent").Str("agent_id", id).Logger(),
	}
}

// ID returns the agent id.
func (a *Agent) ID() string { return a.id }

// Name returns the display name.
func (a *Agent) Name() string { return a.name }

// Role returns the agent role.
func (a *Agent) Role() string { return a.role }

// Capabilities returns the capability list.
func (a *Agent) Capabilities() []string {
	return append([]string(nil), a.capabilities...)
}

// ProcessTask serializes the task and context into a prompt, delegates to
// the executor, and records latency and quality. Executor failures are
// converted into an unsuccessful Result, never returned as an error.
func (a *Agent) ProcessTask(ctx context.Context, task Task, taskContext map[string]any) Result {
	start := time.Now()

	taskDoc, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		taskDoc = []byte(task.Description)
	}

	var contextDoc string
	if len(taskContext) > 0 {
		if doc, err := json.MarshalIndent(taskContext, "", "  "); err == nil {
			contextDoc = "Context:\n" + string(doc)
		}
	}
	if recent := a.recentHistory(); recent != "" {
		if contextDoc != "" {
			contextDoc += "\n\n"
		}
		contextDoc += "Recent collaboration:\n" + recent
	}

	response, err := a.executor.Execute(ctx, a.systemPrompt, contextDoc, "Task:\n"+string(taskDoc))
	elapsed := time.Since(start).Seconds()

	if err != nil {
		a.recordFailure(elapsed)
		a.logger.Warn().Err(err).Str("task_type", task.Type).Msg("task execution failed")
		return Result{
			AgentID:      a.id,
			ResponseTime: elapsed,
			Success:      false,
			Error:        err.Error(),
		}
	}

	a.recordSuccess(elapsed, response, task.Type)
	return Result{
		AgentID:      a.id,
		Response:     response,
		ResponseTime: elapsed,
		Success:      true,
	}
}

// Metrics returns a snapshot copy of the performance metrics.
func (a *Agent) Metrics() Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.metrics
}

// recentHistory renders the last few task summaries as prompt lines.
func (a *Agent) recentHistory() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.history)
	if n == 0 {
		return ""
	}
	from := n - historyPromptLines
	if from < 0 {
		from = 0
	}
	lines := make([]string, 0, historyPromptLines)
	for _, h := range a.history[from:] {
		lines = append(lines, "- "+h)
	}
	return strings.Join(lines, "\n")
}

func (a *Agent) recordSuccess(elapsed float64, response, taskType string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.metrics.ResponseTimeAvg = (a.metrics.ResponseTimeAvg + elapsed) / 2
	a.metrics.TasksCompleted++

	quality := float64(len(response)) / 1000
	if quality > 1 {
		quality = 1
	}
	a.metrics.CodeQualityScore = (a.metrics.CodeQualityScore + quality) / 2

	a.history = append(a.history, fmt.Sprintf("Completed task: %s", taskType))
	if len(a.history) > historyMax {
		a.history = a.history[len(a.history)-historyMax:]
	}
}

func (a *Agent) recordFailure(elapsed float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics.ResponseTimeAvg = (a.metrics.ResponseTimeAvg + elapsed) / 2
}
