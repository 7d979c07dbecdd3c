package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/shell"
	"mvdan.cc/sh/v3/syntax"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
)

// FlagNone disables appending a port or address flag.
const FlagNone = "none"

// Argv returns the app command line bound to port and address.
//
// With no args the default Streamlit command is used. "$PORT" references
// are expanded. A port or address already present, including the port of
// a host:port bind value, must agree with the configuration. A missing one
// is appended when the launch command has a known flag for it.
//
// A "sh -c <script>" command is left to the shell: the script is only
// inspected, and missing flags are appended to the script itself.
func Argv(args []string, cfg Config) ([]string, error) {
	port := strconv.Itoa(cfg.Port)
	if len(args) == 0 {
		return domain.DefaultLaunchCommand().Argv(port, cfg.BindAddress), nil
	}

	env := func(name string) string {
		switch name {
		case "PORT":
			return port
		case "LIGHTHOUSE_BIND_ADDRESS":
			return cfg.BindAddress
		}
		return os.Getenv(name)
	}

	if script, ok := shellScript(args); ok {
		words, err := shell.Fields(script, env)
		if err != nil {
			// Compound scripts cannot be read as one command line.
			return args, nil
		}
		missing, err := checkFlags(words, cfg, port)
		if err != nil {
			return nil, err
		}
		out := slices.Clone(args)
		for _, m := range missing {
			q, err := syntax.Quote(m, syntax.LangPOSIX)
			if err != nil {
				return nil, fmt.Errorf("quote %q: %w", m, err)
			}
			out[2] += " " + q
		}
		return out, nil
	}

	out := make([]string, 0, len(args)+2)
	for _, a := range args {
		if strings.Contains(a, "$") {
			expanded, err := shell.Expand(a, env)
			if err != nil {
				return nil, fmt.Errorf("expand %q: %w", a, err)
			}
			a = expanded
		}
		out = append(out, a)
	}
	missing, err := checkFlags(out, cfg, port)
	if err != nil {
		return nil, err
	}
	return append(out, missing...), nil
}

// checkFlags validates the port and address argv already passes and
// returns the flags still to add.
func checkFlags(argv []string, cfg Config, port string) ([]string, error) {
	portFlag, addrFlag := launchFlags(argv, cfg)

	address, addrPort, addrFound := domain.FlagValue(argv, append([]string{addrFlag}, domain.AddressFlags...))
	value, found := addrPort, addrPort != ""
	if v, p, ok := domain.FlagValue(argv, append([]string{portFlag}, domain.PortFlags...)); ok {
		value, found = v, true
		if p != "" {
			value = p
		}
	}

	var missing []string
	switch {
	case found && value != port:
		return nil, fmt.Errorf("%w: launch command passes port %s but PORT is %s", domain.ErrPortMismatch, value, port)
	case !found && portFlag != "":
		missing = append(missing, portFlag+"="+port)
	}
	switch {
	case addrFound && domain.IsLoopback(address):
		return nil, fmt.Errorf("%w: launch command binds %s", domain.ErrLoopbackBind, address)
	case !addrFound && addrFlag != "":
		missing = append(missing, addrFlag+"="+cfg.BindAddress)
	}
	return missing, nil
}

// launchFlags resolves the flags to append. Unset flags default to
// Streamlit's only when the command runs Streamlit.
func launchFlags(argv []string, cfg Config) (portFlag, addrFlag string) {
	def := domain.DefaultLaunchCommand()
	streamlit := runsStreamlit(argv)
	pick := func(v, fallback string) string {
		switch {
		case v == FlagNone:
			return ""
		case v != "":
			return v
		case streamlit:
			return fallback
		}
		return ""
	}
	return pick(cfg.PortFlag, def.PortFlag), pick(cfg.AddressFlag, def.AddressFlag)
}

// runsStreamlit looks at the executable and its module or wrapper, so
// "python -m streamlit" and "exec streamlit" count.
func runsStreamlit(argv []string) bool {
	for _, a := range argv[:min(len(argv), 3)] {
		if filepath.Base(a) == "streamlit" {
			return true
		}
	}
	return false
}

// shellScript returns the script of a "sh -c <script>" command line, the
// form Docker gives a shell-form CMD.
func shellScript(args []string) (string, bool) {
	if len(args) < 3 || args[1] != "-c" {
		return "", false
	}
	switch filepath.Base(args[0]) {
	case "sh", "bash", "dash", "ash":
		return args[2], true
	}
	return "", false
}
