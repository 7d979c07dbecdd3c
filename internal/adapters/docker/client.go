package docker

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/docker/docker/client"
)

var (
	shared     *client.Client
	sharedErr  error
	sharedOnce sync.Once
)

// Client returns the process-wide Docker client. Callers must not Close it.
func Client() (*client.Client, error) {
	sharedOnce.Do(func() {
		opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
		// DOCKER_HOST wins; otherwise pick the first engine socket that exists.
		if os.Getenv("DOCKER_HOST") == "" {
			if sock := engineSocket(socketCandidates()); sock != "" {
				opts = append(opts, client.WithHost("unix://"+sock))
			}
		}
		shared, sharedErr = client.NewClientWithOpts(opts...)
	})
	return shared, sharedErr
}

// socketCandidates lists rootful Docker first, then rootless Docker, Docker
// Desktop, Colima and Podman's Docker-compatible socket.
func socketCandidates() []string {
	paths := []string{"/var/run/docker.sock"}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		paths = append(paths, filepath.Join(dir, "docker.sock"))
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths,
			filepath.Join(home, ".docker", "run", "docker.sock"),
			filepath.Join(home, ".colima", "default", "docker.sock"),
		)
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		paths = append(paths, filepath.Join(dir, "podman", "podman.sock"))
	}
	return paths
}

func engineSocket(paths []string) string {
	for _, p := range paths {
		if fi, err := os.Stat(p); err == nil && fi.Mode()&os.ModeSocket != 0 {
			return p
		}
	}
	return ""
}
