package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRecipeIsValid(t *testing.T) {
	r := DefaultRecipe()
	require.NoError(t, r.Validate())
	assert.Equal(t, 8080, r.Port)
	assert.Equal(t, "0.0.0.0", r.BindAddress)
}

func TestLaunchCommandArgv(t *testing.T) {
	argv := DefaultLaunchCommand().Argv("8080", "0.0.0.0")
	assert.Equal(t, []string{"streamlit", "run", "app.py", "--server.port=8080", "--server.address=0.0.0.0"}, argv)
}

func TestWithDefaultsKeepsOverrides(t *testing.T) {
	r := Recipe{Port: 9000, BaseImage: "python:3.12-slim"}.WithDefaults()
	assert.Equal(t, 9000, r.Port)
	assert.Equal(t, "python:3.12-slim", r.BaseImage)
	assert.Equal(t, DefaultManifest, r.Manifest)
	assert.Equal(t, LaunchExec, r.Mode)
}

func TestIsLoopback(t *testing.T) {
	for _, addr := range []string{"127.0.0.1", "localhost", "LOCALHOST", "::1", "[::1]", "127.1.2.3"} {
		assert.True(t, IsLoopback(addr), addr)
	}
	for _, addr := range []string{"0.0.0.0", "::", "10.0.0.1", ""} {
		assert.False(t, IsLoopback(addr), addr)
	}
}

func TestIsAllInterfaces(t *testing.T) {
	assert.True(t, IsAllInterfaces("0.0.0.0"))
	assert.True(t, IsAllInterfaces("[::]"))
	assert.False(t, IsAllInterfaces("127.0.0.1"))
	assert.False(t, IsAllInterfaces("example.com"))
}

func TestParsePort(t *testing.T) {
	p, err := ParsePort("8080/tcp")
	require.NoError(t, err)
	assert.Equal(t, 8080, p)

	_, err = ParsePort("0")
	require.ErrorIs(t, err, ErrInvalidRecipe)
	_, err = ParsePort("${PORT}")
	require.ErrorIs(t, err, ErrInvalidRecipe)
}
