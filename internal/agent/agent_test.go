package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dferrors "github.com/p-blackswan/deepforge/internal/errors"
	"github.com/p-blackswan/deepforge/internal/retry"
)

// recordingExecutor captures the prompt it was handed.
type recordingExecutor struct {
	systemPrompt string
	contextDoc   string
	taskDoc      string
	response     string
	err          error
}

func (r *recordingExecutor) Execute(ctx context.Context, systemPrompt, contextDoc, taskDoc string) (string, error) {
	r.systemPrompt = systemPrompt
	r.contextDoc = contextDoc
	r.taskDoc = taskDoc
	return r.response, r.err
}

func newTestAgent(exec Executor) *Agent {
	return New("test_001", "Tester", "tester", []string{"testing"}, "You test things.", nil, exec, zerolog.New(os.Stderr))
}

func TestProcessTask_Success(t *testing.T) {
	exec := &recordingExecutor{response: "Tests passed."}
	a := newTestAgent(exec)

	result := a.ProcessTask(context.Background(), Task{Type: "test_generation", Description: "write tests"}, map[string]any{"phase": "testing"})

	assert.True(t, result.Success)
	assert.Equal(t, "test_001", result.AgentID)
	assert.Equal(t, "Tests passed.", result.Response)
	assert.Empty(t, result.Error)
	assert.GreaterOrEqual(t, result.ResponseTime, 0.0)

	assert.Equal(t, "You test things.", exec.systemPrompt)
	assert.Contains(t, exec.contextDoc, `"phase": "testing"`)
	assert.Contains(t, exec.taskDoc, "test_generation")

	m := a.Metrics()
	assert.Equal(t, 1, m.TasksCompleted)
	assert.Greater(t, m.CodeQualityScore, 0.0)
}

func TestProcessTask_ExecutorFailureIsCaught(t *testing.T) {
	exec := &recordingExecutor{err: errors.New("backend unavailable")}
	a := newTestAgent(exec)

	result := a.ProcessTask(context.Background(), Task{Type: "test_generation"}, nil)

	assert.False(t, result.Success)
	assert.Equal(t, "backend unavailable", result.Error)
	assert.Empty(t, result.Response)

	// Failed tasks do not count as completed.
	assert.Equal(t, 0, a.Metrics().TasksCompleted)
}

func TestProcessTask_HistoryInPrompt(t *testing.T) {
	exec := &recordingExecutor{response: "ok"}
	a := newTestAgent(exec)

	for i := 0; i < 7; i++ {
		a.ProcessTask(context.Background(), Task{Type: "step"}, nil)
	}

	// Only the most recent summaries are included.
	assert.Contains(t, exec.contextDoc, "Recent collaboration:")
	assert.Equal(t, historyPromptLines, strings.Count(exec.contextDoc, "- Completed task: step"))
}

func TestQualityScoreCapped(t *testing.T) {
	exec := &recordingExecutor{response: strings.Repeat("x", 5000)}
	a := newTestAgent(exec)

	a.ProcessTask(context.Background(), Task{Type: "big"}, nil)

	// First sample averages against the zero start value.
	assert.InDelta(t, 0.5, a.Metrics().CodeQualityScore, 0.0001)
}

func TestStaticExecutor_RoleResponses(t *testing.T) {
	tests := []struct {
		role string
		want string
	}{
		{"code_generator", "```python"},
		{"code_reviewer", "Code review:"},
		{"tester", "Tests passed:"},
		{"architect", "Architecture recommendation:"},
		{"deployer", "Task completed by DeployMaster (deployer)"},
	}
	for _, tt := range tests {
		exec := NewStaticExecutor(tt.role, "DeployMaster")
		got, err := exec.Execute(context.Background(), "", "", "")
		require.NoError(t, err)
		assert.Contains(t, got, tt.want, "role %s", tt.role)
	}
}

type flakyExecutor struct {
	failures int
	calls    int
}

func (f *flakyExecutor) Execute(ctx context.Context, systemPrompt, contextDoc, taskDoc string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", fmt.Errorf("backend flaked: %w", dferrors.ErrExternalCall)
	}
	return "recovered", nil
}

func TestWithRetry_RecoversFromTransientFailures(t *testing.T) {
	flaky := &flakyExecutor{failures: 2}
	exec := WithRetry(flaky, retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	got, err := exec.Execute(context.Background(), "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, 3, flaky.calls)
}

func TestNew_DefaultsToStaticExecutor(t *testing.T) {
	a := New("gen_001", "CodeMaster", "code_generator", nil, "", nil, nil, zerolog.New(os.Stderr))

	result := a.ProcessTask(context.Background(), Task{Type: "code_generation"}, nil)
	require.True(t, result.Success)
	assert.Contains(t, result.Response, "def hello_world()")
}
