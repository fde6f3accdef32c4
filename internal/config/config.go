// Package config provides configuration loading for sprintd.
//
// Configuration is an explicit, fully-typed structure with documented
// defaults. It is validated once at load time; invalid combinations are
// rejected immediately rather than surfacing mid-sprint.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the sprint engine.
type Config struct {
	Project    ProjectConfig    `koanf:"project"`
	Logging    LoggingConfig    `koanf:"logging"`
	Policy     PolicyConfig     `koanf:"policy"`
	Context    ContextConfig    `koanf:"context"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	LLM        LLMConfig        `koanf:"llm"`
	Recovery   RecoveryConfig   `koanf:"recovery"`
	Build      BuildConfig      `koanf:"build"`
	VCS        VCSConfig        `koanf:"vcs"`
	Server     ServerConfig     `koanf:"server"`
}

// ProjectConfig describes the project the engine works on.
type ProjectConfig struct {
	// Name is the project name, used in commits and reports.
	Name string `koanf:"name"`

	// Goal is the overall goal driving sprint planning.
	Goal string `koanf:"goal"`

	// WorkDir is the project working directory. Sprint artifacts are
	// written under WorkDir/scrum.
	WorkDir string `koanf:"work_dir"`

	// NumSprints is how many sprints a single run executes.
	NumSprints int `koanf:"num_sprints"`

	// IterationsPerSprint bounds the turns executed inside any phase.
	IterationsPerSprint int `koanf:"iterations_per_sprint"`
}

// LoggingConfig mirrors internal/logging.Config for koanf loading.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// PolicyConfig holds the reinforcement-learning hyperparameters.
//
// The reward weights are deliberately explicit configuration: the source
// material names the contributing metrics but not their weights, so the
// defaults here are documented choices, not inferred intent.
type PolicyConfig struct {
	// Epsilon is the exploration rate for epsilon-greedy selection.
	Epsilon float64 `koanf:"epsilon"`

	// EpsilonMin and EpsilonMax clamp outer-loop epsilon adjustments.
	EpsilonMin float64 `koanf:"epsilon_min"`
	EpsilonMax float64 `koanf:"epsilon_max"`

	// Alpha is the Q-learning learning rate.
	Alpha float64 `koanf:"alpha"`

	// AlphaMin and AlphaMax clamp outer-loop alpha adjustments.
	AlphaMin float64 `koanf:"alpha_min"`
	AlphaMax float64 `koanf:"alpha_max"`

	// Gamma is the discount factor.
	Gamma float64 `koanf:"gamma"`

	// StateBuckets is the number of equal-width bins per state dimension.
	StateBuckets int `koanf:"state_buckets"`

	// RewardWindow is the trailing window (in sprints) for the outer loop
	// moving average.
	RewardWindow int `koanf:"reward_window"`

	// StorePath is where the value table and hyperparameters persist.
	// Empty means WorkDir/scrum/policy.json.
	StorePath string `koanf:"store_path"`

	// Reward weights for the composite reward. Deltas are per turn and the
	// composite is clipped to [-1, 1].
	PassRateWeight float64 `koanf:"pass_rate_weight"`
	CoverageWeight float64 `koanf:"coverage_weight"`
	LintWeight     float64 `koanf:"lint_weight"`
	DurationWeight float64 `koanf:"duration_weight"`
	SizeWeight     float64 `koanf:"size_weight"`
	FeedbackWeight float64 `koanf:"feedback_weight"`
}

// ContextConfig configures the retrieval store.
type ContextConfig struct {
	// Backend selects the vector store: "chromem" (embedded) or "qdrant".
	Backend string `koanf:"backend"`

	// Path is the chromem persistence directory.
	// Empty means WorkDir/.sprintd/vectors.
	Path string `koanf:"path"`

	// Collection is the vector collection name.
	Collection string `koanf:"collection"`

	// VectorSize must match the embedder's output dimension.
	VectorSize int `koanf:"vector_size"`

	// TopK is the default number of retrieval results.
	TopK int `koanf:"top_k"`

	// MaxDocTokens bounds chunk size (approximate tokens).
	MaxDocTokens int `koanf:"max_doc_tokens"`

	// ChunkOverlap is the overlap between adjacent chunks, in lines.
	ChunkOverlap int `koanf:"chunk_overlap"`

	// QdrantHost and QdrantPort locate the remote backend when selected.
	QdrantHost string `koanf:"qdrant_host"`
	QdrantPort int    `koanf:"qdrant_port"`

	// ScrubSecrets redacts detected secrets from chunks before embedding.
	ScrubSecrets bool `koanf:"scrub_secrets"`

	// AllowlistPath is an optional TOML allowlist for the secret scanner.
	AllowlistPath string `koanf:"allowlist_path"`
}

// EmbeddingsConfig configures the embedding collaborator.
type EmbeddingsConfig struct {
	// BaseURL is an OpenAI-compatible embeddings endpoint (TEI or OpenAI).
	BaseURL string `koanf:"base_url"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// APIKey authenticates against the endpoint. Optional for TEI.
	APIKey Secret `koanf:"api_key"`
}

// LLMConfig configures the language-model collaborator.
type LLMConfig struct {
	// BaseURL is an OpenAI-compatible completions endpoint.
	BaseURL string `koanf:"base_url"`

	// Model is the completion model name.
	Model string `koanf:"model"`

	// APIKey authenticates against the endpoint.
	APIKey Secret `koanf:"api_key"`

	// Mock replaces the remote model with the deterministic offline
	// collaborator. Useful for tests and dry runs.
	Mock bool `koanf:"mock"`

	// Timeout bounds a single completion call.
	Timeout Duration `koanf:"timeout"`
}

// BreakerConfig configures one circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the breaker.
	FailureThreshold int `koanf:"failure_threshold"`

	// ResetTimeout is how long the breaker stays open before a half-open trial.
	ResetTimeout Duration `koanf:"reset_timeout"`
}

// RecoveryConfig configures retry and circuit breaking for external calls.
type RecoveryConfig struct {
	// MaxRetries is the retry budget per call while the breaker admits calls.
	MaxRetries int `koanf:"max_retries"`

	// RetryBackoff is the initial backoff; it doubles per attempt with jitter.
	RetryBackoff Duration `koanf:"retry_backoff"`

	// MaxBackoff caps the backoff growth.
	MaxBackoff Duration `koanf:"max_backoff"`

	// Breaker is the default breaker configuration for operation classes
	// without an explicit entry in Breakers.
	Breaker BreakerConfig `koanf:"breaker"`

	// Breakers holds per-operation-class overrides, keyed by class name
	// (llm, build, test, commit, embed).
	Breakers map[string]BreakerConfig `koanf:"breakers"`
}

// BuildConfig configures the build/test collaborator.
type BuildConfig struct {
	// BuildCommand compiles the project, e.g. "go build ./...".
	BuildCommand string `koanf:"build_command"`

	// TestCommand runs the test suite, e.g. "go test ./...".
	TestCommand string `koanf:"test_command"`

	// Timeout bounds one command execution.
	Timeout Duration `koanf:"timeout"`
}

// VCSConfig configures version-control interactions.
type VCSConfig struct {
	// AutoCommit creates a commit after every sprint.
	AutoCommit bool `koanf:"auto_commit"`

	// BranchPrefix prefixes per-sprint branches, e.g. "sprint-".
	BranchPrefix string `koanf:"branch_prefix"`

	// AuthorName and AuthorEmail identify the committer.
	AuthorName  string `koanf:"author_name"`
	AuthorEmail string `koanf:"author_email"`

	// CreatePR opens a pull request after a completed sprint. Requires
	// GitHubOwner, GitHubRepo and GitHubToken.
	CreatePR    bool   `koanf:"create_pr"`
	GitHubOwner string `koanf:"github_owner"`
	GitHubRepo  string `koanf:"github_repo"`
	GitHubToken Secret `koanf:"github_token"`

	// BaseBranch is the pull request target branch.
	BaseBranch string `koanf:"base_branch"`
}

// ServerConfig configures the optional observer endpoint.
type ServerConfig struct {
	// Enabled starts the HTTP listener serving /healthz, /metrics and /state.
	Enabled bool `koanf:"enabled"`

	// Port is the listen port.
	Port int `koanf:"port"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// ApplyDefaults fills unset fields with documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Project.Name == "" {
		c.Project.Name = "project"
	}
	if c.Project.WorkDir == "" {
		c.Project.WorkDir = "./project"
	}
	if c.Project.NumSprints == 0 {
		c.Project.NumSprints = 3
	}
	if c.Project.IterationsPerSprint == 0 {
		c.Project.IterationsPerSprint = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Policy.Epsilon == 0 {
		c.Policy.Epsilon = 0.1
	}
	if c.Policy.EpsilonMin == 0 {
		c.Policy.EpsilonMin = 0.01
	}
	if c.Policy.EpsilonMax == 0 {
		c.Policy.EpsilonMax = 0.5
	}
	if c.Policy.Alpha == 0 {
		c.Policy.Alpha = 0.1
	}
	if c.Policy.AlphaMin == 0 {
		c.Policy.AlphaMin = 0.01
	}
	if c.Policy.AlphaMax == 0 {
		c.Policy.AlphaMax = 0.5
	}
	if c.Policy.Gamma == 0 {
		c.Policy.Gamma = 0.9
	}
	if c.Policy.StateBuckets == 0 {
		c.Policy.StateBuckets = 10
	}
	if c.Policy.RewardWindow == 0 {
		c.Policy.RewardWindow = 3
	}
	if c.Policy.PassRateWeight == 0 {
		c.Policy.PassRateWeight = 0.5
	}
	if c.Policy.CoverageWeight == 0 {
		c.Policy.CoverageWeight = 0.3
	}
	if c.Policy.LintWeight == 0 {
		c.Policy.LintWeight = 0.05
	}
	if c.Policy.DurationWeight == 0 {
		c.Policy.DurationWeight = 0.05
	}
	if c.Policy.SizeWeight == 0 {
		c.Policy.SizeWeight = 0.05
	}
	if c.Policy.FeedbackWeight == 0 {
		c.Policy.FeedbackWeight = 0.1
	}

	if c.Context.Backend == "" {
		c.Context.Backend = "chromem"
	}
	if c.Context.Collection == "" {
		c.Context.Collection = "sprintd_context"
	}
	if c.Context.VectorSize == 0 {
		c.Context.VectorSize = 384
	}
	if c.Context.TopK == 0 {
		c.Context.TopK = 5
	}
	if c.Context.MaxDocTokens == 0 {
		c.Context.MaxDocTokens = 4000
	}
	if c.Context.ChunkOverlap == 0 {
		c.Context.ChunkOverlap = 4
	}
	if c.Context.QdrantHost == "" {
		c.Context.QdrantHost = "localhost"
	}
	if c.Context.QdrantPort == 0 {
		c.Context.QdrantPort = 6334
	}

	if c.Embeddings.BaseURL == "" {
		c.Embeddings.BaseURL = "http://localhost:8080/v1"
	}
	if c.Embeddings.Model == "" {
		c.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}

	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "http://localhost:1234/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "llama3"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = Duration(2 * time.Minute)
	}

	if c.Recovery.MaxRetries == 0 {
		c.Recovery.MaxRetries = 3
	}
	if c.Recovery.RetryBackoff == 0 {
		c.Recovery.RetryBackoff = Duration(time.Second)
	}
	if c.Recovery.MaxBackoff == 0 {
		c.Recovery.MaxBackoff = Duration(30 * time.Second)
	}
	if c.Recovery.Breaker.FailureThreshold == 0 {
		c.Recovery.Breaker.FailureThreshold = 5
	}
	if c.Recovery.Breaker.ResetTimeout == 0 {
		c.Recovery.Breaker.ResetTimeout = Duration(60 * time.Second)
	}
	if c.Recovery.Breakers == nil {
		c.Recovery.Breakers = map[string]BreakerConfig{
			"llm":    {FailureThreshold: 3, ResetTimeout: Duration(30 * time.Second)},
			"commit": {FailureThreshold: 2, ResetTimeout: Duration(60 * time.Second)},
			"test":   {FailureThreshold: 5, ResetTimeout: Duration(120 * time.Second)},
			"build":  {FailureThreshold: 3, ResetTimeout: Duration(180 * time.Second)},
			"embed":  {FailureThreshold: 3, ResetTimeout: Duration(30 * time.Second)},
		}
	}

	if c.Build.BuildCommand == "" {
		c.Build.BuildCommand = "go build ./..."
	}
	if c.Build.TestCommand == "" {
		c.Build.TestCommand = "go test -cover ./..."
	}
	if c.Build.Timeout == 0 {
		c.Build.Timeout = Duration(5 * time.Minute)
	}

	if c.VCS.BranchPrefix == "" {
		c.VCS.BranchPrefix = "sprint-"
	}
	if c.VCS.AuthorName == "" {
		c.VCS.AuthorName = "sprintd"
	}
	if c.VCS.AuthorEmail == "" {
		c.VCS.AuthorEmail = "sprintd@localhost"
	}
	if c.VCS.BaseBranch == "" {
		c.VCS.BaseBranch = "main"
	}

	if c.Server.Port == 0 {
		c.Server.Port = 9290
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
}

// Validate rejects invalid configurations. A failure here is a logic error:
// the process must not start, and nothing is silently ignored.
func (c *Config) Validate() error {
	if c.Project.Goal == "" {
		return fmt.Errorf("project.goal is required")
	}
	if c.Project.NumSprints <= 0 {
		return fmt.Errorf("project.num_sprints must be positive, got %d", c.Project.NumSprints)
	}
	if c.Project.IterationsPerSprint <= 0 {
		return fmt.Errorf("project.iterations_per_sprint must be positive, got %d", c.Project.IterationsPerSprint)
	}

	if c.Policy.Epsilon < 0 || c.Policy.Epsilon > 1 {
		return fmt.Errorf("policy.epsilon must be in [0,1], got %g", c.Policy.Epsilon)
	}
	if c.Policy.Alpha <= 0 || c.Policy.Alpha > 1 {
		return fmt.Errorf("policy.alpha must be in (0,1], got %g", c.Policy.Alpha)
	}
	if c.Policy.Gamma < 0 || c.Policy.Gamma > 1 {
		return fmt.Errorf("policy.gamma must be in [0,1], got %g", c.Policy.Gamma)
	}
	if c.Policy.StateBuckets < 2 {
		return fmt.Errorf("policy.state_buckets must be at least 2, got %d", c.Policy.StateBuckets)
	}
	if c.Policy.EpsilonMin > c.Policy.EpsilonMax {
		return fmt.Errorf("policy.epsilon_min %g exceeds epsilon_max %g", c.Policy.EpsilonMin, c.Policy.EpsilonMax)
	}
	if c.Policy.AlphaMin > c.Policy.AlphaMax {
		return fmt.Errorf("policy.alpha_min %g exceeds alpha_max %g", c.Policy.AlphaMin, c.Policy.AlphaMax)
	}

	switch c.Context.Backend {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("context.backend must be chromem or qdrant, got %q", c.Context.Backend)
	}
	if c.Context.TopK <= 0 {
		return fmt.Errorf("context.top_k must be positive, got %d", c.Context.TopK)
	}
	if c.Context.MaxDocTokens <= 0 {
		return fmt.Errorf("context.max_doc_tokens must be positive, got %d", c.Context.MaxDocTokens)
	}
	if c.Context.VectorSize <= 0 {
		return fmt.Errorf("context.vector_size must be positive, got %d", c.Context.VectorSize)
	}

	if c.Recovery.MaxRetries < 0 {
		return fmt.Errorf("recovery.max_retries cannot be negative, got %d", c.Recovery.MaxRetries)
	}

	if c.VCS.CreatePR {
		if c.VCS.GitHubOwner == "" || c.VCS.GitHubRepo == "" {
			return fmt.Errorf("vcs.create_pr requires vcs.github_owner and vcs.github_repo")
		}
		if !c.VCS.GitHubToken.IsSet() {
			return fmt.Errorf("vcs.create_pr requires vcs.github_token")
		}
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port must be a valid port, got %d", c.Server.Port)
	}

	return nil
}
