package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("ETHICA_API_URL", "")
	t.Setenv("NEXT_PUBLIC_API_URL", "")
	t.Setenv("PORT", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultUpstreamURL, cfg.Upstream.BaseURL)
	assert.Equal(t, UpstreamKindHTTP, cfg.Upstream.Kind)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, time.Duration(0), cfg.Upstream.Timeout)
	assert.True(t, cfg.ExposesSource())
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.Relay.MaxBodyBytes)
	assert.Equal(t, int64(DefaultMaxRespBytes), cfg.Relay.MaxResponseBytes)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
upstream:
  baseURL: http://analysis.internal:8000/
  timeout: 3s
relay:
  exposeSource: false
  maxResponseBytes: 8388608
archive:
  driver: sqlite
`), 0o600))

	t.Run("file values", func(t *testing.T) {
		t.Setenv("ETHICA_API_URL", "")
		t.Setenv("NEXT_PUBLIC_API_URL", "")
		t.Setenv("PORT", "")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "http://analysis.internal:8000", cfg.Upstream.BaseURL)
		assert.Equal(t, 3*time.Second, cfg.Upstream.Timeout)
		assert.False(t, cfg.ExposesSource())
		assert.Equal(t, int64(8<<20), cfg.Relay.MaxResponseBytes)
		assert.Equal(t, "ethica.db", cfg.Archive.Path)
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("NEXT_PUBLIC_API_URL", "http://legacy:8000")
		t.Setenv("ETHICA_API_URL", "http://preferred:8000")
		t.Setenv("PORT", "7000")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "http://preferred:8000", cfg.Upstream.BaseURL)
		assert.Equal(t, 7000, cfg.Server.Port)
	})
}

func TestApplyEnv_LegacyVariable(t *testing.T) {
	env := map[string]string{"NEXT_PUBLIC_API_URL": "http://legacy:8000"}
	cfg := &Config{}
	cfg.ApplyEnv(func(k string) string { return env[k] })
	cfg.ApplyDefaults()
	assert.Equal(t, "http://legacy:8000", cfg.Upstream.BaseURL)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Upstream.Kind = UpstreamKindOpenAI
	assert.Error(t, cfg.Validate())
	cfg.OpenAI.APIKey = "sk-test"
	assert.NoError(t, cfg.Validate())

	cfg.Upstream.Kind = "grpc"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Archive.Driver = "oracle"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.RateLimit.Capacity = -1
	assert.Error(t, cfg.Validate())
}

func TestDSNs(t *testing.T) {
	cfg := Default()
	cfg.Archive.User = "u"
	cfg.Archive.Password = "p"
	cfg.Archive.Host = "db"
	cfg.Archive.Port = 3306
	cfg.Archive.Name = "ethica"

	assert.Equal(t, "u:p@tcp(db:3306)/ethica?parseTime=true&charset=utf8mb4&loc=UTC", cfg.MySQLDSN())
	cfg.Archive.Port = 5432
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=ethica sslmode=disable", cfg.PostgresDSN())
}
