package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"DB_URL", "API_PORT", "BRANCH_PARALLELISM", "POLL_INTERVAL", "OPTIMIZER_MODEL", "GEMINI_API_KEY", "OPENAI_API_KEY", "DB_MAX_CONNS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.APIPort)
	assert.Equal(t, 1, cfg.BranchParallelism)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, "gpt-4o", cfg.OptimizerModel)
	assert.Contains(t, cfg.DBURL, "postgresql://")
	assert.Equal(t, cfg.DBURL, cfg.Pool().DSN)
	assert.Equal(t, int32(10), cfg.Pool().MaxConns)
	assert.Empty(t, cfg.Credentials().Gemini)
	assert.Empty(t, cfg.Credentials().OpenAI)
}

func TestLoad_EnvOverridesDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("GEMINI_API_KEY=from-file\nAPI_PORT=9000\n"), 0o600))

	t.Setenv("API_PORT", "7000")
	t.Setenv("GEMINI_API_KEY", "")
	os.Unsetenv("GEMINI_API_KEY")
	t.Cleanup(func() { os.Unsetenv("GEMINI_API_KEY") })

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.APIPort)
	assert.Equal(t, "from-file", cfg.GeminiAPIKey)
	assert.Equal(t, ":7000", Addr(cfg.APIPort))
}

func TestLoad_ClampsParallelism(t *testing.T) {
	t.Setenv("BRANCH_PARALLELISM", "0")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.BranchParallelism)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}
