package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWorkerConfig_MissingGoalFatal(t *testing.T) {
	t.Setenv("OATS_GOAL", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	_, err := LoadWorkerConfig()
	assert.ErrorIs(t, err, ErrMissingGoal)
}

func TestLoadWorkerConfig_MissingCredentialsFatal(t *testing.T) {
	t.Setenv("OATS_GOAL", "investigate")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := LoadWorkerConfig()
	assert.ErrorIs(t, err, ErrNoOracleCredentials)
}

func TestLoadWorkerConfig_Defaults(t *testing.T) {
	t.Setenv("OATS_GOAL", "investigate the crash loop")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("OATS_MAX_TURNS", "")
	t.Setenv("UFFLOW_LLM_PROVIDER", "")
	t.Setenv("UFFLOW_LLM_MODEL", "")

	cfg, err := LoadWorkerConfig()
	require.NoError(t, err)

	assert.Equal(t, "investigate the crash loop", cfg.Goal)
	assert.Equal(t, DefaultTurnBudget, cfg.TurnBudget)
	assert.Equal(t, DefaultToolsDir, cfg.ToolsDir)
	assert.Equal(t, DefaultResultsDir, cfg.ResultsDir)
	assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, DefaultAnthropicModel, cfg.LLM.Model)
	assert.Equal(t, float32(DefaultTemperature), cfg.LLM.Temperature)
	assert.Equal(t, DefaultMaxTokens, cfg.LLM.MaxTokens)
}

func TestLoadWorkerConfig_UfflowOverrides(t *testing.T) {
	t.Setenv("OATS_GOAL", "g")
	t.Setenv("OATS_MAX_TURNS", "25")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("UFFLOW_LLM_PROVIDER", "openai")
	t.Setenv("UFFLOW_LLM_MODEL", "gpt-4o-mini")
	t.Setenv("UFFLOW_TEMPERATURE", "0.7")
	t.Setenv("UFFLOW_MAX_TOKENS", "2048")
	t.Setenv("UFFLOW_PROMPT_VERSION", "v1")

	cfg, err := LoadWorkerConfig()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.TurnBudget)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 0.001)
	assert.Equal(t, 2048, cfg.LLM.MaxTokens)
	assert.Equal(t, "v1", cfg.LLM.PromptVersion)
}

func TestLoadWorkerConfig_InvalidTurns(t *testing.T) {
	t.Setenv("OATS_GOAL", "g")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	t.Setenv("OATS_MAX_TURNS", "abc")
	_, err := LoadWorkerConfig()
	assert.Error(t, err)

	t.Setenv("OATS_MAX_TURNS", "0")
	_, err = LoadWorkerConfig()
	assert.Error(t, err)
}

func TestLLMConfig_ProviderFallback(t *testing.T) {
	t.Setenv("OATS_GOAL", "g")
	t.Setenv("UFFLOW_LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := LoadWorkerConfig()
	require.NoError(t, err)

	// Configured provider has no key; the one with a key wins.
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, DefaultOpenAIModel, cfg.LLM.Model)
}

func TestLoadServerConfig_Defaults(t *testing.T) {
	for _, key := range []string{"OATS_LISTEN_ADDR", "OATS_NAMESPACE", "OATS_JOB_TTL", "OATS_HARD_DEADLINE"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultNamespace, cfg.DefaultNamespace)
	assert.Equal(t, DefaultJobTTL, cfg.JobTTL)
	assert.Equal(t, DefaultHardDeadline, cfg.HardDeadline)
}

func TestLoadServerConfig_Overrides(t *testing.T) {
	t.Setenv("OATS_LISTEN_ADDR", ":9999")
	t.Setenv("OATS_NAMESPACE", "sre-investigations")
	t.Setenv("OATS_JOB_TTL", "10m")
	t.Setenv("OATS_HARD_DEADLINE", "1h")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "sre-investigations", cfg.DefaultNamespace)
	assert.Equal(t, 10*time.Minute, cfg.JobTTL)
	assert.Equal(t, time.Hour, cfg.HardDeadline)
}

func TestLoadServerConfig_InvalidDuration(t *testing.T) {
	t.Setenv("OATS_JOB_TTL", "not-a-duration")
	_, err := LoadServerConfig()
	assert.Error(t, err)
}

func TestWorkerConfig_ResultPath(t *testing.T) {
	cfg := &WorkerConfig{ResultsDir: "/var/lib/oats/results"}
	assert.Equal(t, "/var/lib/oats/results/final_result_1700000000.txt", cfg.ResultPath(1700000000))
}

func TestWorkerConfig_EnsureScratchDir(t *testing.T) {
	cfg := &WorkerConfig{ScratchDir: filepath.Join(t.TempDir(), "scratch")}
	dir, err := cfg.EnsureScratchDir()
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.Equal(t, dir, cfg.ScratchDir)
}
