package docker

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
)

// Labels put on every managed container.
const (
	LabelManaged = "lighthouse.managed"
	LabelApp     = "lighthouse.app"
	LabelPort    = "lighthouse.port"
)

// resolvePort reconciles the requested container port with the image's
// EXPOSE declaration, the port the image says its launch command binds.
func resolvePort(requested int, img *container.Config) (int, error) {
	exposed, err := exposedPort(img)
	if err != nil {
		return 0, err
	}
	switch {
	case requested == 0 && exposed == 0:
		return domain.DefaultPort, nil
	case requested == 0:
		return exposed, nil
	case exposed != 0 && exposed != requested:
		return 0, fmt.Errorf("%w: port %d requested but the image exposes %d", domain.ErrPortMismatch, requested, exposed)
	}
	return requested, nil
}

// exposedPort returns the single TCP port the image exposes, or 0.
func exposedPort(img *container.Config) (int, error) {
	if img == nil {
		return 0, nil
	}
	var ports []int
	for p := range img.ExposedPorts {
		if p.Proto() == "tcp" {
			ports = append(ports, p.Int())
		}
	}
	switch len(ports) {
	case 0:
		return 0, nil
	case 1:
		return ports[0], nil
	}
	sort.Ints(ports)
	return 0, fmt.Errorf("%w: the image exposes %d ports %v, expected one", domain.ErrPortMismatch, len(ports), ports)
}

// createConfig publishes the app port on all host interfaces and passes the
// same port to the process through PORT.
func createConfig(req domain.StartRequest) (*container.Config, *container.HostConfig, error) {
	port := req.Port
	if port == 0 {
		port = domain.DefaultPort
	}
	if err := domain.ValidatePort(port); err != nil {
		return nil, nil, err
	}
	if req.HostPort != 0 {
		if err := domain.ValidatePort(req.HostPort); err != nil {
			return nil, nil, err
		}
	}
	if v, ok := req.Env["PORT"]; ok && v != strconv.Itoa(port) {
		return nil, nil, fmt.Errorf("%w: PORT=%s but the container port is %d", domain.ErrPortMismatch, v, port)
	}

	policy := container.RestartPolicy{Name: container.RestartPolicyMode(req.RestartPolicy)}
	if policy.Name == "" {
		policy.Name = container.RestartPolicyDisabled
	}
	if err := container.ValidateRestartPolicy(policy); err != nil {
		return nil, nil, err
	}

	app := req.Name
	if app == "" {
		app = req.Image
	}
	cport := containerPort(port)
	hostPort := ""
	if req.HostPort != 0 {
		hostPort = strconv.Itoa(req.HostPort)
	}

	cfg := &container.Config{
		Image:        req.Image,
		Env:          envList(req.Env, port),
		ExposedPorts: nat.PortSet{cport: struct{}{}},
		Labels: map[string]string{
			LabelManaged: "true",
			LabelApp:     app,
			LabelPort:    strconv.Itoa(port),
		},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			cport: []nat.PortBinding{{HostIP: domain.DefaultBindAddress, HostPort: hostPort}},
		},
		RestartPolicy: policy,
	}
	return cfg, hostCfg, nil
}

func containerPort(port int) nat.Port {
	return nat.Port(fmt.Sprintf("%d/tcp", port))
}

func envList(env map[string]string, port int) []string {
	out := make([]string, 0, len(env)+1)
	out = append(out, "PORT="+strconv.Itoa(port))
	keys := make([]string, 0, len(env))
	for k := range env {
		if k != "PORT" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

func fromSummary(c types.Container) domain.Container {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}
	out := domain.Container{
		ID:     shortID(c.ID),
		Name:   name,
		Image:  c.Image,
		Status: c.Status,
		State:  c.State,
		Port:   labelPort(c.Labels),
	}
	for _, p := range c.Ports {
		if int(p.PrivatePort) == out.Port && p.Type == "tcp" && p.PublicPort != 0 {
			out.HostPort = int(p.PublicPort)
			break
		}
	}
	if c.NetworkSettings != nil {
		out.IPAddress = firstIP(c.NetworkSettings.Networks)
	}
	return out
}

func fromInspect(info types.ContainerJSON) *domain.Instance {
	inst := &domain.Instance{Lifecycle: domain.StateBuilt}
	if info.ContainerJSONBase == nil {
		return inst
	}
	inst.ID = shortID(info.ID)
	inst.Name = strings.TrimPrefix(info.Name, "/")
	inst.Image = info.Image
	if info.Config != nil {
		inst.Image = info.Config.Image
		inst.Port = labelPort(info.Config.Labels)
	}
	if s := info.State; s != nil {
		inst.State = s.Status
		inst.Status = s.Status
		inst.ExitCode = s.ExitCode
		inst.Lifecycle = domain.StateFromRuntime(s.Status)
		if t, err := time.Parse(time.RFC3339Nano, s.StartedAt); err == nil {
			inst.StartedAt = t
		}
	}
	if ns := info.NetworkSettings; ns != nil {
		inst.IPAddress = ns.IPAddress
		if inst.IPAddress == "" {
			inst.IPAddress = firstIP(ns.Networks)
		}
		if inst.Port != 0 {
			for _, b := range ns.Ports[containerPort(inst.Port)] {
				if hp, err := strconv.Atoi(b.HostPort); err == nil {
					inst.HostPort = hp
					break
				}
			}
		}
	}
	return inst
}

func labelPort(labels map[string]string) int {
	port, err := strconv.Atoi(labels[LabelPort])
	if err != nil {
		return 0
	}
	return port
}

// firstIP picks the address on the alphabetically first network that has one.
func firstIP(networks map[string]*network.EndpointSettings) string {
	names := make([]string, 0, len(networks))
	for n := range networks {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if ep := networks[n]; ep != nil && ep.IPAddress != "" {
			return ep.IPAddress
		}
	}
	return ""
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
