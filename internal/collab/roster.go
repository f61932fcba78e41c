package collab

import (
	"github.com/rs/zerolog"

	"github.com/p-blackswan/deepforge/internal/agent"
	"github.com/p-blackswan/deepforge/internal/retry"
)

// Roster roles.
const (
	RoleArchitect     = "architect"
	RoleCodeGenerator = "code_generator"
	RoleCodeReviewer  = "code_reviewer"
	RoleTester        = "tester"
	RoleDeployer      = "deployer"
)

const architectPrompt = `You are Architect, a system architecture specialist. Your role is to:
1. Design scalable, maintainable system architectures
2. Select appropriate technologies and frameworks
3. Plan project structure and organization
4. Ensure architectural best practices
5. Provide technical leadership and guidance

Consider scalability, maintainability, and future extensibility.`

const codeGeneratorPrompt = `You are CodeMaster, an expert code generator. Your role is to:
1. Generate high-quality, well-documented code
2. Follow best practices and coding standards
3. Implement features based on requirements
4. Create unit tests and documentation
5. Optimize code for performance and maintainability

Always provide complete, runnable code with proper error handling.`

const codeReviewerPrompt = `You are CodeReviewer, an expert code reviewer. Your role is to:
1. Review code for quality, security, and performance
2. Identify potential bugs and vulnerabilities
3. Suggest improvements and optimizations
4. Ensure compliance with coding standards
5. Provide constructive feedback

Be thorough but constructive in your reviews.`

const testerPrompt = `You are TestMaster, an expert testing specialist. Your role is to:
1. Generate comprehensive test suites
2. Identify edge cases and failure scenarios
3. Ensure adequate test coverage
4. Validate functionality and performance
5. Report test results and recommendations

Focus on creating robust, maintainable tests.`

const deployerPrompt = `You are DeployMaster, a deployment and DevOps specialist. Your role is to:
1. Manage deployment pipelines and processes
2. Configure infrastructure and environments
3. Ensure reliable, scalable deployments
4. Monitor system health and performance
5. Handle rollbacks and emergency fixes

Focus on automation, reliability, and monitoring.`

// ExecutorFactory supplies an executor for a role; a nil factory or nil
// return value falls back to the role's static executor.
type ExecutorFactory func(role string) agent.Executor

// newRoster builds the fixed set of collaboration agents. Executors
// supplied by a factory talk to an external backend and get retry
// wrapping; the static fallbacks do not need it.
func newRoster(factory ExecutorFactory, logger zerolog.Logger) map[string]*agent.Agent {
	exec := func(role string) agent.Executor {
		if factory == nil {
			return nil
		}
		e := factory(role)
		if e == nil {
			return nil
		}
		return agent.WithRetry(e, retry.DefaultConfig())
	}

	return map[string]*agent.Agent{
		RoleArchitect: agent.New(
			"arch_001", "Architect", RoleArchitect,
			[]string{"system_design", "architecture_planning", "technology_selection"},
			architectPrompt,
			map[string]string{"a4f": "key1"},
			exec(RoleArchitect), logger,
		),
		RoleCodeGenerator: agent.New(
			"code_gen_001", "CodeMaster", RoleCodeGenerator,
			[]string{"code_generation", "algorithm_design", "api_development"},
			codeGeneratorPrompt,
			map[string]string{"a4f": "key1", "openai": "key2"},
			exec(RoleCodeGenerator), logger,
		),
		RoleCodeReviewer: agent.New(
			"code_rev_001", "CodeReviewer", RoleCodeReviewer,
			[]string{"code_review", "security_analysis", "performance_analysis"},
			codeReviewerPrompt,
			map[string]string{"a4f": "key1"},
			exec(RoleCodeReviewer), logger,
		),
		RoleTester: agent.New(
			"test_001", "TestMaster", RoleTester,
			[]string{"test_generation", "test_execution", "quality_assurance"},
			testerPrompt,
			map[string]string{"a4f": "key1"},
			exec(RoleTester), logger,
		),
		RoleDeployer: agent.New(
			"deploy_001", "DeployMaster", RoleDeployer,
			[]string{"deployment", "ci_cd", "infrastructure"},
			deployerPrompt,
			map[string]string{"a4f": "key1"},
			exec(RoleDeployer), logger,
		),
	}
}
