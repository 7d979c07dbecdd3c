package recipe_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
	"github.com/melih/lighthouse-deploy/internal/recipe"
)

// minimalServer stands in for app.py: it honours the same port/address flags.
const minimalServer = `import argparse
import http.server

parser = argparse.ArgumentParser()
parser.add_argument("--port", type=int, required=True)
parser.add_argument("--host", required=True)
args = parser.parse_args()


class Handler(http.server.BaseHTTPRequestHandler):
    def do_GET(self):
        self.send_response(200)
        self.end_headers()
        self.wfile.write(b"ok")


http.server.HTTPServer((args.host, args.port), Handler).serve_forever()
`

// checkTestcontainersAvailable reports whether a container engine can be reached.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

func TestBuildAndServe_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping integration test: no container engine available")
	}

	r := domain.DefaultRecipe()
	r.BaseImage = "python:3.12-slim"
	r.Launch = domain.LaunchCommand{
		Executable:  "python",
		Args:        []string{"app.py"},
		PortFlag:    "--port",
		AddressFlag: "--host",
	}

	dockerfile, err := recipe.Render(r)
	require.NoError(t, err)
	require.NoError(t, recipe.Check(dockerfile, recipe.OptionsFor(r)))

	// examplelib is not on the package index, so the manifest only documents it.
	dir := t.TempDir()
	files := map[string]string{
		"Dockerfile":       string(dockerfile),
		"requirements.txt": "# examplelib==1.0\n",
		"app.py":           minimalServer,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	port := nat.Port(fmt.Sprintf("%d/tcp", r.Port))
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			FromDockerfile: testcontainers.FromDockerfile{
				Context:    dir,
				Dockerfile: "Dockerfile",
			},
			ExposedPorts: []string{string(port)},
			WaitingFor:   wait.ForListeningPort(port).WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, testcontainers.TerminateContainer(ctr))
	}()

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	mapped, err := ctr.MappedPort(ctx, port)
	require.NoError(t, err)

	resp, err := http.Get(fmt.Sprintf("http://%s:%s/", host, mapped.Port()))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))
}
