package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Project.Goal = "build a CLI tool"
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, 3, cfg.Project.NumSprints)
	assert.Equal(t, 5, cfg.Project.IterationsPerSprint)
	assert.Equal(t, 0.1, cfg.Policy.Epsilon)
	assert.Equal(t, 0.1, cfg.Policy.Alpha)
	assert.Equal(t, 0.9, cfg.Policy.Gamma)
	assert.Equal(t, 10, cfg.Policy.StateBuckets)
	assert.Equal(t, "chromem", cfg.Context.Backend)
	assert.Equal(t, 5, cfg.Context.TopK)
	assert.Equal(t, 4000, cfg.Context.MaxDocTokens)
	assert.Equal(t, 3, cfg.Recovery.MaxRetries)
	assert.Equal(t, time.Second, cfg.Recovery.RetryBackoff.Duration())
}

func TestApplyDefaults_PerClassBreakers(t *testing.T) {
	cfg := validConfig()

	llm, ok := cfg.Recovery.Breakers["llm"]
	require.True(t, ok, "llm breaker should have a default")
	assert.Equal(t, 3, llm.FailureThreshold)
	assert.Equal(t, 30*time.Second, llm.ResetTimeout.Duration())

	commit, ok := cfg.Recovery.Breakers["commit"]
	require.True(t, ok)
	assert.Equal(t, 2, commit.FailureThreshold)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing goal", func(c *Config) { c.Project.Goal = "" }, "project.goal"},
		{"negative sprints", func(c *Config) { c.Project.NumSprints = -1 }, "num_sprints"},
		{"epsilon out of range", func(c *Config) { c.Policy.Epsilon = 1.5 }, "epsilon"},
		{"zero alpha", func(c *Config) { c.Policy.Alpha = -0.1 }, "alpha"},
		{"one bucket", func(c *Config) { c.Policy.StateBuckets = 1 }, "state_buckets"},
		{"bad backend", func(c *Config) { c.Context.Backend = "pinecone" }, "backend"},
		{"epsilon bounds inverted", func(c *Config) {
			c.Policy.EpsilonMin = 0.9
			c.Policy.EpsilonMax = 0.2
		}, "epsilon_min"},
		{"pr without token", func(c *Config) {
			c.VCS.CreatePR = true
			c.VCS.GitHubOwner = "fyrsmithlabs"
			c.VCS.GitHubRepo = "sprintd"
		}, "github_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoad_FileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sprintd.yaml")
	content := []byte(`
project:
  goal: "goal from file"
  num_sprints: 7
policy:
  epsilon: 0.2
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("SPRINTD_PROJECT_NUM_SPRINTS", "9")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "goal from file", cfg.Project.Goal)
	assert.Equal(t, 9, cfg.Project.NumSprints, "env should override file")
	assert.Equal(t, 0.2, cfg.Policy.Epsilon)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("SPRINTD_PROJECT_GOAL", "goal from env")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "goal from env", cfg.Project.Goal)
	assert.Equal(t, 3, cfg.Project.NumSprints)
}

func TestLoad_InvalidConfigFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err, "missing project.goal must fail validation")
	assert.Contains(t, err.Error(), "project.goal")
}

func TestTransformEnv(t *testing.T) {
	assert.Equal(t, "context.max_doc_tokens", transformEnv("SPRINTD_CONTEXT_MAX_DOC_TOKENS"))
	assert.Equal(t, "project.goal", transformEnv("SPRINTD_PROJECT_GOAL"))
	assert.Equal(t, "llm.base_url", transformEnv("SPRINTD_LLM_BASE_URL"))
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("hunter2")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "hunter2", s.Value())

	out, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hunter2")
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")), "negative durations rejected")
}
