package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escalaflow/scalegate/pkg/contracts"
)

var envKeys = []string{
	"SCALEGATE_ENGINE_URL", "SCALEGATE_ENGINE_TOKEN", "SCALEGATE_ENGINE_DIR", "SCALEGATE_ENGINE_VERSION",
	"SCALEGATE_ENGINE_COMMAND", "SCALEGATE_SECTOR", "SCALEGATE_ACTOR_ROLE", "SCALEGATE_ACTOR_NAME",
	"SCALEGATE_ACK_RULE", "SCALEGATE_ACK_MIN_LENGTH", "SCALEGATE_TIMEOUT", "SCALEGATE_RPS", "SCALEGATE_PROFILE",
	"LOG_LEVEL", "LOG_FORMAT", "DATABASE_URL", "REDIS_ADDR", "OTEL_ENABLED", "OTEL_ENDPOINT",
	"EXPORT_TARGET", "EXPORT_S3_ENDPOINT", "EXPORT_S3_REGION",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.EngineURL)
	assert.Equal(t, "CAIXA", cfg.Sector)
	assert.Equal(t, contracts.RoleOperator, cfg.Actor.Role)
	assert.Equal(t, 10, cfg.AckMinLength)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "file://exports", cfg.ExportTarget)
	assert.False(t, cfg.OTelEnabled)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCALEGATE_ENGINE_URL", "http://engine:9000")
	t.Setenv("SCALEGATE_ACTOR_ROLE", "admin")
	t.Setenv("SCALEGATE_TIMEOUT", "5s")
	t.Setenv("SCALEGATE_RPS", "2.5")
	t.Setenv("SCALEGATE_ENGINE_COMMAND", "uvicorn api.main:app --port 9000")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "http://engine:9000", cfg.EngineURL)
	assert.Equal(t, contracts.RoleAdmin, cfg.Actor.Role)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.InDelta(t, 2.5, cfg.RPS, 0.0001)
	assert.Equal(t, []string{"uvicorn", "api.main:app", "--port", "9000"}, cfg.EngineCommand)
	assert.True(t, cfg.OTelEnabled)
}

func TestLoadRejectsBadValues(t *testing.T) {
	for key, value := range map[string]string{
		"SCALEGATE_ACTOR_ROLE":     "GERENTE",
		"SCALEGATE_TIMEOUT":        "soon",
		"SCALEGATE_RPS":            "fast",
		"SCALEGATE_ACK_MIN_LENGTH": "0",
		"LOG_FORMAT":               "xml",
	} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}

func TestProfileThenEnvPrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	profile := filepath.Join(dir, "loja.yaml")
	require.NoError(t, os.WriteFile(profile, []byte(`
sector: ACOUGUE
actor:
  role: ADMIN
  name: Gerente Loja 12
ack:
  min_length: 20
engine:
  url: http://10.0.0.5:8000
  timeout: 10s
  command: [python, -m, uvicorn, apps.backend.main:app]
export:
  target: s3://relatorios/loja12
`), 0o600))

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SCALEGATE_PROFILE="+profile+"\nSCALEGATE_SECTOR=CAIXA\n"), 0o600))

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, profile, cfg.ProfilePath)
	assert.Equal(t, "CAIXA", cfg.Sector)
	assert.Equal(t, contracts.Actor{Role: contracts.RoleAdmin, Name: "Gerente Loja 12"}, cfg.Actor)
	assert.Equal(t, 20, cfg.AckMinLength)
	assert.Equal(t, "http://10.0.0.5:8000", cfg.EngineURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"python", "-m", "uvicorn", "apps.backend.main:app"}, cfg.EngineCommand)
	assert.Equal(t, "s3://relatorios/loja12", cfg.ExportTarget)
}

func TestLoadProfileErrors(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("actor:\n  role: CHEFE\n"), 0o600))
	_, err = LoadProfile(bad)
	assert.Error(t, err)
}
