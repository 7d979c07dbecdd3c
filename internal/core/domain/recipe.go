package domain

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	// DefaultPort is the port the hosting platform routes traffic to.
	DefaultPort = 8080
	// DefaultBindAddress makes the server reachable from outside the container network namespace.
	DefaultBindAddress = "0.0.0.0"
	DefaultBaseImage   = "python:3.11-slim"
	DefaultWorkDir     = "/app"
	DefaultManifest    = "requirements.txt"
)

// LaunchMode selects how the port reaches the launch command.
type LaunchMode string

const (
	// LaunchExec hard-codes the port in a JSON-form command.
	LaunchExec LaunchMode = "exec"
	// LaunchEnv reads PORT at container start, falling back to the declared port.
	LaunchEnv LaunchMode = "env"
)

// LaunchCommand is the process started on container boot.
type LaunchCommand struct {
	Executable  string   `yaml:"executable" json:"executable"`
	Args        []string `yaml:"args" json:"args"`
	PortFlag    string   `yaml:"port_flag" json:"port_flag"`
	AddressFlag string   `yaml:"address_flag" json:"address_flag"`
}

// DefaultLaunchCommand starts the Streamlit app's built-in web server.
func DefaultLaunchCommand() LaunchCommand {
	return LaunchCommand{
		Executable:  "streamlit",
		Args:        []string{"run", "app.py"},
		PortFlag:    "--server.port",
		AddressFlag: "--server.address",
	}
}

// Argv returns the full argument vector binding port on address.
// The port is passed as a string so callers can substitute a shell expansion.
func (l LaunchCommand) Argv(port, address string) []string {
	argv := make([]string, 0, len(l.Args)+3)
	argv = append(argv, l.Executable)
	argv = append(argv, l.Args...)
	argv = append(argv, l.PortFlag+"="+port, l.AddressFlag+"="+address)
	return argv
}

var (
	// PortFlags are the port flags of Streamlit and the common Python servers.
	PortFlags = []string{"--server.port", "--port", "-p"}
	// AddressFlags are their bind address flags. Some take a host:port value.
	AddressFlags = []string{"--server.address", "--host", "--address", "--bind", "-b"}
)

// FlagValue finds the first of flags in argv in "--flag=value" or "--flag value"
// form. A "host:port" value is split and the port returned separately.
func FlagValue(argv []string, flags []string) (value, port string, ok bool) {
	for i, arg := range argv {
		for _, f := range flags {
			if f == "" {
				continue
			}
			switch {
			case strings.HasPrefix(arg, f+"="):
				value = strings.TrimPrefix(arg, f+"=")
			case arg == f && i+1 < len(argv):
				value = argv[i+1]
			default:
				continue
			}
			if host, p, err := net.SplitHostPort(value); err == nil {
				return host, p, true
			}
			return value, "", true
		}
	}
	return "", "", false
}

// HealthCheck renders an image-level HEALTHCHECK when Path is set.
type HealthCheck struct {
	Path     string `yaml:"path" json:"path"`
	Interval string `yaml:"interval" json:"interval"`
	Timeout  string `yaml:"timeout" json:"timeout"`
	Retries  int    `yaml:"retries" json:"retries"`
}

// Recipe is the build-and-launch contract of one application image.
type Recipe struct {
	BaseImage   string        `yaml:"base_image" json:"base_image"`
	WorkDir     string        `yaml:"workdir" json:"workdir"`
	Manifest    string        `yaml:"manifest" json:"manifest"`
	Port        int           `yaml:"port" json:"port"`
	BindAddress string        `yaml:"bind_address" json:"bind_address"`
	Mode        LaunchMode    `yaml:"mode" json:"mode"`
	Launch      LaunchCommand `yaml:"launch" json:"launch"`
	// Entrypoint optionally wraps the launch command, e.g. with the lighthouse launcher.
	Entrypoint  []string          `yaml:"entrypoint,omitempty" json:"entrypoint,omitempty"`
	InstallArgs []string          `yaml:"install_args,omitempty" json:"install_args,omitempty"`
	Excludes    []string          `yaml:"excludes,omitempty" json:"excludes,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
	HealthCheck *HealthCheck      `yaml:"healthcheck,omitempty" json:"healthcheck,omitempty"`
}

// DefaultRecipe packages app.py with its requirements on port 8080.
func DefaultRecipe() Recipe {
	return Recipe{
		BaseImage:   DefaultBaseImage,
		WorkDir:     DefaultWorkDir,
		Manifest:    DefaultManifest,
		Port:        DefaultPort,
		BindAddress: DefaultBindAddress,
		Mode:        LaunchExec,
		Launch:      DefaultLaunchCommand(),
		InstallArgs: []string{"--no-cache-dir"},
	}
}

// WithDefaults fills every zero field from DefaultRecipe.
func (r Recipe) WithDefaults() Recipe {
	def := DefaultRecipe()
	if r.BaseImage == "" {
		r.BaseImage = def.BaseImage
	}
	if r.WorkDir == "" {
		r.WorkDir = def.WorkDir
	}
	if r.Manifest == "" {
		r.Manifest = def.Manifest
	}
	if r.Port == 0 {
		r.Port = def.Port
	}
	if r.BindAddress == "" {
		r.BindAddress = def.BindAddress
	}
	if r.Mode == "" {
		r.Mode = def.Mode
	}
	if r.Launch.Executable == "" {
		r.Launch = def.Launch
	}
	if r.Launch.PortFlag == "" {
		r.Launch.PortFlag = def.Launch.PortFlag
	}
	if r.Launch.AddressFlag == "" {
		r.Launch.AddressFlag = def.Launch.AddressFlag
	}
	if r.InstallArgs == nil {
		r.InstallArgs = def.InstallArgs
	}
	return r
}

// Validate checks the invariants of the contract itself, independent of any rendering.
func (r Recipe) Validate() error {
	if r.BaseImage == "" {
		return fmt.Errorf("%w: base image is required", ErrInvalidRecipe)
	}
	if !strings.HasPrefix(r.WorkDir, "/") {
		return fmt.Errorf("%w: workdir %q must be absolute", ErrInvalidRecipe, r.WorkDir)
	}
	if r.Manifest == "" || strings.Contains(r.Manifest, "..") {
		return fmt.Errorf("%w: manifest path %q", ErrInvalidRecipe, r.Manifest)
	}
	if err := ValidatePort(r.Port); err != nil {
		return err
	}
	if IsLoopback(r.BindAddress) {
		return fmt.Errorf("%w: %s", ErrLoopbackBind, r.BindAddress)
	}
	if r.Launch.Executable == "" || r.Launch.PortFlag == "" || r.Launch.AddressFlag == "" {
		return fmt.Errorf("%w: launch command needs an executable, a port flag and an address flag", ErrInvalidRecipe)
	}
	switch r.Mode {
	case LaunchExec, LaunchEnv:
	default:
		return fmt.Errorf("%w: unknown launch mode %q", ErrInvalidRecipe, r.Mode)
	}
	return nil
}

// ValidatePort rejects values outside the TCP port range.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidRecipe, port)
	}
	return nil
}

// ParsePort parses a decimal TCP port, tolerating a "/tcp" suffix.
func ParsePort(s string) (int, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "/tcp")
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: port %q is not a number", ErrInvalidRecipe, s)
	}
	if err := ValidatePort(port); err != nil {
		return 0, err
	}
	return port, nil
}

// IsLoopback reports whether addr only accepts connections from inside the
// container's own network namespace.
func IsLoopback(addr string) bool {
	addr = strings.Trim(strings.TrimSpace(addr), "[]")
	if strings.EqualFold(addr, "localhost") {
		return true
	}
	ip := net.ParseIP(addr)
	return ip != nil && ip.IsLoopback()
}

// IsAllInterfaces reports whether addr is a wildcard bind address.
func IsAllInterfaces(addr string) bool {
	addr = strings.Trim(strings.TrimSpace(addr), "[]")
	ip := net.ParseIP(addr)
	return ip != nil && ip.IsUnspecified()
}
