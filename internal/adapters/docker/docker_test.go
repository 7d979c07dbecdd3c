package docker

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
)

func TestCreateConfigPublishesPortOnAllInterfaces(t *testing.T) {
	cfg, host, err := createConfig(domain.StartRequest{
		Image: "app:dev",
		Name:  "mp",
		Port:  8501,
		Env:   map[string]string{"TZ": "UTC", "API_KEY": "x"},
	})
	require.NoError(t, err)

	port := nat.Port("8501/tcp")
	assert.Contains(t, cfg.ExposedPorts, port)
	assert.Equal(t, []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: ""}}, host.PortBindings[port])
	assert.Equal(t, []string{"PORT=8501", "API_KEY=x", "TZ=UTC"}, cfg.Env)
	assert.Equal(t, "true", cfg.Labels[LabelManaged])
	assert.Equal(t, "mp", cfg.Labels[LabelApp])
	assert.Equal(t, "8501", cfg.Labels[LabelPort])
	assert.Equal(t, container.RestartPolicyDisabled, host.RestartPolicy.Name)
}

func TestCreateConfigDefaults(t *testing.T) {
	cfg, host, err := createConfig(domain.StartRequest{Image: "app:dev", HostPort: 18080, RestartPolicy: "on-failure"})
	require.NoError(t, err)
	assert.Equal(t, "app:dev", cfg.Labels[LabelApp])
	assert.Equal(t, "18080", host.PortBindings["8080/tcp"][0].HostPort)
	assert.Equal(t, container.RestartPolicyOnFailure, host.RestartPolicy.Name)
}

func TestCreateConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		req  domain.StartRequest
		want error
	}{
		{"port out of range", domain.StartRequest{Image: "a", Port: 70000}, domain.ErrInvalidRecipe},
		{"host port out of range", domain.StartRequest{Image: "a", HostPort: -1}, domain.ErrInvalidRecipe},
		{"disagreeing PORT", domain.StartRequest{Image: "a", Env: map[string]string{"PORT": "9000"}}, domain.ErrPortMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := createConfig(tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, _, err := createConfig(domain.StartRequest{Image: "a", RestartPolicy: "sometimes"})
	require.Error(t, err)
}

func TestFromSummary(t *testing.T) {
	c := fromSummary(types.Container{
		ID:     "0123456789abcdef0123",
		Names:  []string{"/mp"},
		Image:  "app:dev",
		State:  "running",
		Status: "Up 3 seconds",
		Labels: map[string]string{LabelPort: "8080"},
		Ports: []types.Port{
			{PrivatePort: 8080, PublicPort: 32768, Type: "tcp", IP: "0.0.0.0"},
		},
		NetworkSettings: &types.SummaryNetworkSettings{Networks: map[string]*network.EndpointSettings{
			"zeta":   {IPAddress: "10.0.0.9"},
			"bridge": {IPAddress: "172.17.0.2"},
		}},
	})
	assert.Equal(t, "0123456789ab", c.ID)
	assert.Equal(t, "mp", c.Name)
	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, 32768, c.HostPort)
	assert.Equal(t, "172.17.0.2", c.IPAddress)
	assert.True(t, c.Running())
}

func TestFromInspect(t *testing.T) {
	info := types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			ID:   "abcdef",
			Name: "/mp",
			State: &types.ContainerState{
				Status:    "exited",
				ExitCode:  3,
				StartedAt: "2024-05-01T10:00:00.123456789Z",
			},
		},
		Config: &container.Config{Image: "app:dev", Labels: map[string]string{LabelPort: "8080"}},
		NetworkSettings: &types.NetworkSettings{
			NetworkSettingsBase: types.NetworkSettingsBase{Ports: nat.PortMap{
				"8080/tcp": {{HostIP: "0.0.0.0", HostPort: "40001"}},
			}},
			Networks: map[string]*network.EndpointSettings{"bridge": {IPAddress: "172.17.0.3"}},
		},
	}
	inst := fromInspect(info)
	assert.Equal(t, "mp", inst.Name)
	assert.Equal(t, "app:dev", inst.Image)
	assert.Equal(t, domain.StateTerminated, inst.Lifecycle)
	assert.Equal(t, 3, inst.ExitCode)
	assert.Equal(t, 40001, inst.HostPort)
	assert.Equal(t, "172.17.0.3", inst.IPAddress)
	assert.Equal(t, 2024, inst.StartedAt.Year())

	assert.Equal(t, domain.StateBuilt, fromInspect(types.ContainerJSON{}).Lifecycle)
}

type fakeInspector struct {
	state    domain.InstanceState
	exitCode int
	calls    atomic.Int32
}

func (f *fakeInspector) InspectContainer(context.Context, string) (*domain.Instance, error) {
	f.calls.Add(1)
	return &domain.Instance{Lifecycle: f.state, ExitCode: f.exitCode}, nil
}

func TestWaiterServing(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		var conns []net.Conn
		defer func() {
			for _, c := range conns {
				c.Close()
			}
		}()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conns = append(conns, conn)
		}
	}()

	inst := &domain.Instance{Lifecycle: domain.StateStarting}
	inst.HostPort = ln.Addr().(*net.TCPAddr).Port

	w := NewWaiter(&fakeInspector{state: domain.StateLaunched}, "127.0.0.1", "", time.Second, nil)
	require.NoError(t, w.WaitReady(context.Background(), inst))
	assert.Equal(t, domain.StateServing, inst.Lifecycle)
}

func TestWaiterCrashBeforeReady(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	inst := &domain.Instance{Lifecycle: domain.StateLaunched}
	inst.ID = "abc"
	inst.HostPort = port

	w := NewWaiter(&fakeInspector{state: domain.StateTerminated, exitCode: 1}, "", "", 5*time.Second, nil)
	start := time.Now()
	err = w.WaitReady(context.Background(), inst)
	require.ErrorIs(t, err, domain.ErrNotReady)
	assert.Contains(t, err.Error(), "exited with code 1")
	assert.Equal(t, domain.StateTerminated, inst.Lifecycle)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWaiterTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ln.Close()

	inst := &domain.Instance{Lifecycle: domain.StateLaunched}
	inst.HostPort = ln.Addr().(*net.TCPAddr).Port

	f := &fakeInspector{state: domain.StateLaunched}
	err = NewWaiter(f, "", "", 100*time.Millisecond, nil).WaitReady(context.Background(), inst)
	require.ErrorIs(t, err, domain.ErrNotReady)
	assert.Equal(t, domain.StateLaunched, inst.Lifecycle)
	assert.Positive(t, f.calls.Load())
}

func TestWaiterNeedsHostPort(t *testing.T) {
	err := NewWaiter(&fakeInspector{}, "", "", time.Second, nil).WaitReady(context.Background(), &domain.Instance{})
	require.ErrorIs(t, err, domain.ErrNotReady)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "123456789012", shortID("1234567890123456"))
}

func TestEngineSocketSkipsRegularFiles(t *testing.T) {
	dir, err := os.MkdirTemp("", "lh")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	plain := filepath.Join(dir, "plain.sock")
	require.NoError(t, os.WriteFile(plain, nil, 0o600))
	sock := filepath.Join(dir, "engine.sock")
	l, err := net.Listen("unix", sock)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	assert.Equal(t, sock, engineSocket([]string{filepath.Join(dir, "missing.sock"), plain, sock}))
	assert.Empty(t, engineSocket([]string{plain}))
}

func TestResolvePortFromImage(t *testing.T) {
	exposes := func(ports ...nat.Port) *container.Config {
		set := nat.PortSet{}
		for _, p := range ports {
			set[p] = struct{}{}
		}
		return &container.Config{ExposedPorts: set}
	}

	tests := []struct {
		name      string
		requested int
		img       *container.Config
		want      int
		err       error
	}{
		{"image decides", 0, exposes("9000/tcp"), 9000, nil},
		{"udp ignored", 0, exposes("9000/tcp", "9000/udp"), 9000, nil},
		{"nothing exposed", 0, exposes(), domain.DefaultPort, nil},
		{"no config", 0, nil, domain.DefaultPort, nil},
		{"request agrees", 9000, exposes("9000/tcp"), 9000, nil},
		{"request without expose", 8501, exposes(), 8501, nil},
		{"request conflicts", 8080, exposes("9000/tcp"), 0, domain.ErrPortMismatch},
		{"several exposed", 0, exposes("8080/tcp", "9000/tcp"), 0, domain.ErrPortMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolvePort(tt.requested, tt.img)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// imageOnlyClient answers image inspection; any other call panics.
type imageOnlyClient struct {
	client.APIClient
	img types.ImageInspect
}

func (c *imageOnlyClient) ImageInspectWithRaw(context.Context, string) (types.ImageInspect, []byte, error) {
	return c.img, nil, nil
}

func TestStartContainerRefusesPortTheImageDoesNotExpose(t *testing.T) {
	cli := &imageOnlyClient{img: types.ImageInspect{Config: &container.Config{
		ExposedPorts: nat.PortSet{"9000/tcp": {}},
	}}}
	a := NewAdapter(cli, nil)

	_, err := a.StartContainer(context.Background(), domain.StartRequest{Image: "lighthouse/app:latest", Port: 8080})
	require.ErrorIs(t, err, domain.ErrPortMismatch)
	assert.Contains(t, err.Error(), "image exposes 9000")
}
