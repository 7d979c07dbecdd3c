// Package recipe renders, parses and lints the container build recipe of the app.
package recipe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"mvdan.cc/sh/v3/syntax"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
)

// GeneratedDockerfile is the name the rendered recipe is injected under in a build context.
const GeneratedDockerfile = "Dockerfile.lighthouse"

// Step order matters for the build cache: the dependency layer only depends on the manifest.
const dockerfileTemplate = `FROM {{.BaseImage}}
{{range .Labels}}LABEL {{.}}
{{end -}}
WORKDIR {{.WorkDir}}
COPY {{.Manifest}} ./{{.ManifestDest}}
RUN {{.Install}}
COPY . .
{{if .Env}}ENV {{.Env}}
{{end -}}
EXPOSE {{.Port}}
{{if .HealthCheck}}HEALTHCHECK {{.HealthCheck}}
{{end -}}
{{if .Entrypoint}}ENTRYPOINT {{.Entrypoint}}
{{end -}}
CMD {{.Cmd}}
`

var tmpl = template.Must(template.New("Dockerfile").Parse(dockerfileTemplate))

type renderData struct {
	BaseImage    string
	Labels       []string
	WorkDir      string
	Manifest     string
	ManifestDest string
	Install      string
	Env          string
	Port         int
	HealthCheck  string
	Entrypoint   string
	Cmd          string
}

// Render produces the Dockerfile for r. The recipe is validated first.
func Render(r domain.Recipe) ([]byte, error) {
	r = r.WithDefaults()
	if err := r.Validate(); err != nil {
		return nil, err
	}

	data := renderData{
		BaseImage: r.BaseImage,
		Labels:    renderLabels(r.Labels),
		WorkDir:   r.WorkDir,
		Manifest:  r.Manifest,
		Port:      r.Port,
	}
	if dir := path.Dir(r.Manifest); dir != "." {
		data.ManifestDest = dir + "/"
	}

	install := []string{"pip", "install"}
	install = append(install, r.InstallArgs...)
	install = append(install, "-r", r.Manifest)
	data.Install = strings.Join(install, " ")

	port := strconv.Itoa(r.Port)
	switch r.Mode {
	case domain.LaunchExec:
		cmd, err := jsonArgs(r.Launch.Argv(port, r.BindAddress))
		if err != nil {
			return nil, err
		}
		data.Cmd = cmd
	case domain.LaunchEnv:
		data.Env = "PORT=" + port
		cmd, err := shellCommand(r.Launch, port, r.BindAddress)
		if err != nil {
			return nil, err
		}
		data.Cmd = cmd
	}

	if len(r.Entrypoint) > 0 {
		ep, err := jsonArgs(r.Entrypoint)
		if err != nil {
			return nil, err
		}
		data.Entrypoint = ep
	}
	if r.HealthCheck != nil && r.HealthCheck.Path != "" {
		hc, err := healthCheck(*r.HealthCheck, r.Port)
		if err != nil {
			return nil, err
		}
		data.HealthCheck = hc
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render recipe: %w", err)
	}
	return buf.Bytes(), nil
}

func jsonArgs(args []string) (string, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode arguments: %w", err)
	}
	return string(b), nil
}

// shellCommand renders a shell-form command that lets PORT override the declared port.
// exec keeps the app as PID 1 so stop signals reach it.
func shellCommand(l domain.LaunchCommand, port, address string) (string, error) {
	words := []string{"exec"}
	for _, arg := range append([]string{l.Executable}, l.Args...) {
		q, err := syntax.Quote(arg, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("failed to quote %q: %w", arg, err)
		}
		words = append(words, q)
	}
	words = append(words,
		l.PortFlag+`="${PORT:-`+port+`}"`,
		l.AddressFlag+"="+address,
	)
	return strings.Join(words, " "), nil
}

func healthCheck(hc domain.HealthCheck, port int) (string, error) {
	if !strings.HasPrefix(hc.Path, "/") {
		return "", fmt.Errorf("%w: healthcheck path %q must start with /", domain.ErrInvalidRecipe, hc.Path)
	}
	var opts []string
	if hc.Interval != "" {
		opts = append(opts, "--interval="+hc.Interval)
	}
	if hc.Timeout != "" {
		opts = append(opts, "--timeout="+hc.Timeout)
	}
	if hc.Retries > 0 {
		opts = append(opts, "--retries="+strconv.Itoa(hc.Retries))
	}
	url := fmt.Sprintf("http://127.0.0.1:%d%s", port, hc.Path)
	probe := fmt.Sprintf("import urllib.request; urllib.request.urlopen(%q, timeout=5)", url)
	cmd, err := jsonArgs([]string{"python", "-c", probe})
	if err != nil {
		return "", err
	}
	return strings.Join(append(opts, "CMD", cmd), " "), nil
}

func renderLabels(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, strconv.Quote(labels[k])))
	}
	return out
}
