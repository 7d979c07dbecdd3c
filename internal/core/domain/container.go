package domain

import "time"

// Container represents a managed app instance as the container runtime reports it.
type Container struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Status    string `json:"status"`
	State     string `json:"state"` // running, exited, etc.
	IPAddress string `json:"ip_address,omitempty"`
	Port      int    `json:"port,omitempty"`      // port inside the container
	HostPort  int    `json:"host_port,omitempty"` // published host port, 0 when unpublished
}

// Running reports whether the runtime considers the container alive.
func (c Container) Running() bool {
	return c.State == "running"
}

// StartRequest describes a new app instance.
type StartRequest struct {
	Image string `json:"image"`
	Name  string `json:"name"`
	// Port is the container port the launch command binds. Zero means DefaultPort.
	Port int `json:"port"`
	// HostPort publishes Port on the host. Zero lets the runtime pick a free port.
	HostPort int               `json:"host_port"`
	Env      map[string]string `json:"env,omitempty"`
	// RestartPolicy is passed through to the runtime. Empty means "no":
	// restarting is left to the orchestration platform.
	RestartPolicy string `json:"restart_policy,omitempty"`
}

// Instance is a started container plus its lifecycle state.
type Instance struct {
	Container
	Lifecycle InstanceState `json:"lifecycle"`
	ExitCode  int           `json:"exit_code"`
	StartedAt time.Time     `json:"started_at"`
}
