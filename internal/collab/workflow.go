package collab

import (
	"context"
	"fmt"
	"time"

	"github.com/p-blackswan/deepforge/internal/agent"
	"github.com/p-blackswan/deepforge/internal/vcs"
)

// Fixed progress checkpoints per phase.
const (
	progressStart       = 0.0
	progressDevelopment = 0.3
	progressReview      = 0.7
	progressDeployment  = 0.9
)

// runWorkflow drives a session through planning, development, review, and
// deployment. Any phase error marks the session failed; earlier commits
// are not rolled back.
func (m *Manager) runWorkflow(session *Session) {
	ctx := context.Background()

	phases := []struct {
		name     string
		progress float64
		run      func(context.Context, *Session) error
	}{
		{PhasePlanning, progressStart, m.planningPhase},
		{PhaseDevelopment, progressDevelopment, m.developmentPhase},
		{PhaseReview, progressReview, m.reviewPhase},
		{PhaseDeployment, progressDeployment, m.deploymentPhase},
	}

	for _, phase := range phases {
		session.setPhase(phase.name, phase.progress)

		start := time.Now()
		err := phase.run(ctx, session)
		m.metrics.ObservePhase(phase.name, time.Since(start).Seconds())

		if err != nil {
			session.finish(StatusFailed, err.Error())
			m.metrics.RecordSession(StatusFailed)
			m.metrics.RecordError("collab.workflow", phase.name)
			m.logger.Error().
				Err(err).
				Str("session_id", session.id).
				Str("phase", phase.name).
				Msg("collaboration session failed")
			return
		}
	}

	session.finish(StatusCompleted, "")
	m.metrics.RecordSession(StatusCompleted)
	m.logger.Info().Str("session_id", session.id).Msg("collaboration session completed")
}

// planningPhase has the architect produce an architecture plan.
func (m *Manager) planningPhase(ctx context.Context, session *Session) error {
	architect := m.agents[RoleArchitect]
	session.involve(architect.ID())

	result := architect.ProcessTask(ctx, agent.Task{
		Type:        "architecture_planning",
		Description: fmt.Sprintf("Plan architecture for: %s", session.taskDescription),
		ProjectID:   session.projectID,
		Details: map[string]any{
			"requirements": []string{"scalability", "maintainability", "security"},
		},
	}, map[string]any{"phase": "planning"})

	session.setResult("architecture_plan", result)
	session.collab.PostSystemMessage(fmt.Sprintf("Architecture planned by %s", architect.Name()))
	return nil
}

// developmentPhase has the code generator implement the plan and commits
// any extracted code block to main. Commit failures are logged, not fatal.
func (m *Manager) developmentPhase(ctx context.Context, session *Session) error {
	generator := m.agents[RoleCodeGenerator]
	session.involve(generator.ID())

	details := map[string]any{
		"requirements": []string{"clean_code", "documentation", "error_handling"},
	}
	if plan, ok := session.result("architecture_plan"); ok {
		details["architecture"] = plan
	}

	result := generator.ProcessTask(ctx, agent.Task{
		Type:        "code_generation",
		Description: "Generate code based on architecture plan",
		ProjectID:   session.projectID,
		Details:     details,
	}, map[string]any{"phase": "development"})

	session.setResult("generated_code", result)

	if result.Success {
		if block, found := ExtractBlock(result.Response); found {
			if err := m.commitBlock(session, generator.ID(), generator.Name(), block); err != nil {
				m.logger.Warn().
					Err(err).
					Str("session_id", session.id).
					Msg("failed to commit generated code")
				m.metrics.RecordError("collab.workflow", "commit")
			}
		}
	}

	session.collab.PostSystemMessage(fmt.Sprintf("Code generated by %s", generator.Name()))
	return nil
}

// commitBlock writes an extracted code block to the project's main branch,
// using the branch's current content as the expected previous state.
func (m *Manager) commitBlock(session *Session, authorID, authorName string, block Block) error {
	repo, err := m.registry.GetRepository(session.projectID)
	if err != nil {
		return err
	}

	fileName := fileNameFor(block.Language)
	current, _, err := repo.GetFileContent(fileName, "main")
	if err != nil {
		return err
	}

	commit, err := repo.CommitChanges(authorID, fmt.Sprintf("Implementation by %s", authorName), map[string]vcs.Change{
		fileName: {Old: current, New: block.Content},
	}, "main")
	if err != nil {
		return err
	}

	session.setResult("commit", commit)
	m.metrics.RecordCommit()
	return nil
}

// reviewPhase runs the reviewer and tester in parallel and joins on both.
func (m *Manager) reviewPhase(ctx context.Context, session *Session) error {
	reviewer := m.agents[RoleCodeReviewer]
	tester := m.agents[RoleTester]
	session.involve(reviewer.ID())
	session.involve(tester.ID())

	generated, _ := session.result("generated_code")

	type phaseResult struct {
		key    string
		result agent.Result
	}
	results := make(chan phaseResult, 2)

	go func() {
		results <- phaseResult{"code_review", reviewer.ProcessTask(ctx, agent.Task{
			Type:        "code_review",
			Description: "Review generated code for quality and security",
			ProjectID:   session.projectID,
			Details: map[string]any{
				"code":     generated,
				"criteria": []string{"quality", "security", "performance", "maintainability"},
			},
		}, map[string]any{"phase": "review"})}
	}()
	go func() {
		results <- phaseResult{"tests", tester.ProcessTask(ctx, agent.Task{
			Type:        "test_generation",
			Description: "Generate tests for the code",
			ProjectID:   session.projectID,
			Details: map[string]any{
				"code":            generated,
				"coverage_target": 80,
			},
		}, map[string]any{"phase": "testing"})}
	}()

	for i := 0; i < 2; i++ {
		r := <-results
		session.setResult(r.key, r.result)
	}

	session.collab.PostSystemMessage(fmt.Sprintf("Code reviewed by %s", reviewer.Name()))
	session.collab.PostSystemMessage(fmt.Sprintf("Tests generated by %s", tester.Name()))
	return nil
}

// deploymentPhase deploys to staging only when both the review and the
// tests succeeded; otherwise the result records a skip with the reason.
func (m *Manager) deploymentPhase(ctx context.Context, session *Session) error {
	review, _ := session.result("code_review")
	tests, _ := session.result("tests")

	if !resultSucceeded(review) || !resultSucceeded(tests) {
		session.setResult("deployment", skippedResult{Status: "skipped", Reason: "Quality checks failed"})
		m.logger.Info().Str("session_id", session.id).Msg("deployment skipped, quality checks failed")
		return nil
	}

	deployer := m.agents[RoleDeployer]
	session.involve(deployer.ID())

	result := deployer.ProcessTask(ctx, agent.Task{
		Type:        "deployment",
		Description: "Deploy the application",
		ProjectID:   session.projectID,
		Details: map[string]any{
			"review_results": review,
			"test_results":   tests,
			"environment":    "staging",
		},
	}, map[string]any{"phase": "deployment"})

	session.setResult("deployment", result)
	session.collab.PostSystemMessage(fmt.Sprintf("Deployment completed by %s", deployer.Name()))
	return nil
}

// resultSucceeded reports whether a stored phase result is a successful
// agent result.
func resultSucceeded(result any) bool {
	r, ok := result.(agent.Result)
	return ok && r.Success
}
