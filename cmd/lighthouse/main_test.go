package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		renderPort, renderMode, renderOutput, recipeFile, lintManifest = 0, "", "", "", ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRenderCommand(t *testing.T) {
	out, err := execute(t, "", "render", "--port", "8501")
	require.NoError(t, err)
	assert.Contains(t, out, "EXPOSE 8501\n")
	assert.Contains(t, out, `"--server.port=8501"`)
}

func TestRenderCommandWithRecipeFile(t *testing.T) {
	dir := t.TempDir()
	recipePath := filepath.Join(dir, "lighthouse.yaml")
	require.NoError(t, os.WriteFile(recipePath, []byte("base_image: python:3.12-slim\n"), 0o644))
	outPath := filepath.Join(dir, "Dockerfile")

	_, err := execute(t, "", "render", "-f", recipePath, "-o", outPath, "--mode", "env")
	require.NoError(t, err)
	b, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "FROM python:3.12-slim\n"))
	assert.Contains(t, string(b), "${PORT:-8080}")
}

func TestLintCommand(t *testing.T) {
	rendered, err := execute(t, "", "render")
	require.NoError(t, err)

	out, err := execute(t, rendered, "lint", "-")
	require.NoError(t, err)
	assert.Empty(t, out)

	broken := strings.Replace(rendered, "EXPOSE 8080", "EXPOSE 9000", 1)
	out, err = execute(t, broken, "lint", "-")
	require.Error(t, err)
	assert.Contains(t, out, "[port-agreement]")
}

func TestRenderRejectsBadPort(t *testing.T) {
	_, err := execute(t, "", "render", "--port", "70000")
	require.Error(t, err)
}
