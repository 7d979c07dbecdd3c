package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
)

type envTestConfig struct {
	Port int `env:"LIGHTHOUSE_TEST_PORT" envDefault:"8080"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig
	require.NoError(t, ParseEnv(&cfg))
	assert.Equal(t, 8080, cfg.Port)
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("LIGHTHOUSE_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "parse env:"), err.Error())
}

func TestServerConfigFromEnv(t *testing.T) {
	t.Setenv("LIGHTHOUSE_LISTEN_ADDR", ":4000")
	t.Setenv("LIGHTHOUSE_READY_TIMEOUT", "5s")
	t.Setenv("LIGHTHOUSE_LOG_LEVEL", "debug")

	var cfg Server
	require.NoError(t, ParseEnv(&cfg))
	assert.Equal(t, ":4000", cfg.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.ReadyTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "localhost", cfg.ProxyDomain)
	require.NoError(t, cfg.Validate())

	cfg.ReadyTimeout = 0
	require.Error(t, cfg.Validate())
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LIGHTHOUSE_TEST_A=file\nLIGHTHOUSE_TEST_B=file\n"), 0o644))
	t.Setenv("LIGHTHOUSE_TEST_A", "platform")
	t.Setenv("LIGHTHOUSE_TEST_B", "")
	os.Unsetenv("LIGHTHOUSE_TEST_B")

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "platform", os.Getenv("LIGHTHOUSE_TEST_A"))
	assert.Equal(t, "file", os.Getenv("LIGHTHOUSE_TEST_B"))

	require.NoError(t, LoadEnvFile(""))
	require.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func TestParseRecipe(t *testing.T) {
	r, err := ParseRecipe([]byte(`
base_image: python:3.12-slim
port: 8501
mode: env
launch:
  executable: streamlit
  args: [run, main.py]
healthcheck:
  path: /_stcore/health
`))
	require.NoError(t, err)
	assert.Equal(t, "python:3.12-slim", r.BaseImage)
	assert.Equal(t, 8501, r.Port)
	assert.Equal(t, domain.LaunchEnv, r.Mode)
	assert.Equal(t, []string{"run", "main.py"}, r.Launch.Args)
	assert.Equal(t, "--server.port", r.Launch.PortFlag)
	assert.Equal(t, domain.DefaultWorkDir, r.WorkDir)
	require.NotNil(t, r.HealthCheck)
}

func TestParseRecipeEmptyIsDefault(t *testing.T) {
	r, err := ParseRecipe(nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRecipe(), r)
}

func TestParseRecipeRejects(t *testing.T) {
	_, err := ParseRecipe([]byte("prot: 8080\n"))
	require.ErrorIs(t, err, domain.ErrInvalidRecipe)

	_, err = ParseRecipe([]byte("bind_address: 127.0.0.1\n"))
	require.ErrorIs(t, err, domain.ErrLoopbackBind)
}

func TestLoadRecipe(t *testing.T) {
	r, err := LoadRecipe("")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRecipe(), r)

	path := filepath.Join(t.TempDir(), "lighthouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\n"), 0o644))
	r, err = LoadRecipe(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, r.Port)

	_, err = LoadRecipe(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
