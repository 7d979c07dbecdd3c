package recipe

import (
	"bytes"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/distribution/reference"
	"github.com/hashicorp/go-multierror"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
)

// Severity of a lint finding. Only errors fail Check.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rule names reported in violations.
const (
	RuleBaseImage     = "base-image"
	RuleBasePinned    = "base-pinned"
	RuleSingleStage   = "single-stage"
	RuleWorkdir       = "workdir"
	RuleInstall       = "install-present"
	RuleManifestFirst = "manifest-before-install"
	RuleSourceAfter   = "source-after-install"
	RuleSingleExpose  = "single-expose"
	RuleLaunch        = "launch-present"
	RulePortAgreement = "port-agreement"
	RuleBindAddress   = "bind-address"
	RuleLoopbackBind  = "loopback-bind"
)

// Violation is one lint finding.
type Violation struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Line     int      `json:"line,omitempty"`
	Message  string   `json:"message"`
	err      error
}

func (v Violation) Error() string {
	if v.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", v.Line, v.Rule, v.Message)
	}
	return fmt.Sprintf("%s: %s", v.Rule, v.Message)
}

func (v Violation) Unwrap() error {
	if v.err != nil {
		return v.err
	}
	return domain.ErrInvalidRecipe
}

// LintOptions tells the linter how to read the launch command.
type LintOptions struct {
	Manifest     string
	PortFlags    []string
	AddressFlags []string
}

// DefaultLintOptions recognises Streamlit and the common Python server flags.
func DefaultLintOptions() LintOptions {
	return LintOptions{
		Manifest:     domain.DefaultManifest,
		PortFlags:    slices.Clone(domain.PortFlags),
		AddressFlags: slices.Clone(domain.AddressFlags),
	}
}

// OptionsFor extends the defaults with the flags of r's launch command.
func OptionsFor(r domain.Recipe) LintOptions {
	r = r.WithDefaults()
	opts := DefaultLintOptions()
	opts.Manifest = r.Manifest
	opts.PortFlags = prependUnique(opts.PortFlags, r.Launch.PortFlag)
	opts.AddressFlags = prependUnique(opts.AddressFlags, r.Launch.AddressFlag)
	return opts
}

// Lint checks p against the build-and-launch contract.
func Lint(p *Parsed, opts LintOptions) []Violation {
	if opts.Manifest == "" {
		opts.Manifest = domain.DefaultManifest
	}
	l := &linter{p: p, opts: opts}
	l.baseImage()
	l.stages()
	l.order()
	port := l.expose()
	l.launch(port)
	return l.out
}

// Check lints content and returns every error-severity violation as one error.
func Check(content []byte, opts LintOptions) error {
	p, err := Parse(bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRecipe, err)
	}
	var result *multierror.Error
	for _, v := range Lint(p, opts) {
		if v.Severity == SeverityError {
			result = multierror.Append(result, v)
		}
	}
	return result.ErrorOrNil()
}

// HasErrors reports whether any violation is error severity.
func HasErrors(vs []Violation) bool {
	for _, v := range vs {
		if v.Severity == SeverityError {
			return true
		}
	}
	return false
}

type linter struct {
	p    *Parsed
	opts LintOptions
	out  []Violation
}

func (l *linter) add(rule string, sev Severity, line int, err error, format string, args ...any) {
	l.out = append(l.out, Violation{
		Rule:     rule,
		Severity: sev,
		Line:     line,
		Message:  fmt.Sprintf(format, args...),
		err:      err,
	})
}

func (l *linter) baseImage() {
	named, err := reference.ParseNormalizedNamed(l.p.BaseImage)
	if err != nil {
		l.add(RuleBaseImage, SeverityError, l.p.BaseLine, nil, "base image %q is not a valid reference: %v", l.p.BaseImage, err)
		return
	}
	if _, ok := named.(reference.Digested); ok {
		return
	}
	tagged, ok := named.(reference.Tagged)
	if !ok || tagged.Tag() == "latest" {
		l.add(RuleBasePinned, SeverityWarning, l.p.BaseLine, nil, "base image %q is not pinned to a version", l.p.BaseImage)
	}
}

// stages warns about multi-stage recipes. Only the final stage becomes the
// image, so earlier stages may contribute artifacts but never the install step.
func (l *linter) stages() {
	if l.p.Stages > 1 {
		l.add(RuleSingleStage, SeverityWarning, l.p.BaseLine, nil,
			"%d build stages; only the final stage (FROM %s) is checked", l.p.Stages, l.p.BaseImage)
	}
}

// order checks WORKDIR, then manifest copy, then install, then source copy.
func (l *linter) order() {
	var (
		workdirSeen  bool
		manifestLine int
		installLine  int
		sourceLine   int
	)
	manifest := path.Clean(l.opts.Manifest)

	for _, s := range l.p.Steps {
		switch s.Keyword {
		case "WORKDIR":
			workdirSeen = true
		case "COPY", "ADD":
			if hasFromFlag(s.Flags) {
				continue
			}
			if !workdirSeen {
				l.add(RuleWorkdir, SeverityWarning, s.Line, nil, "files are copied before a WORKDIR is set")
				workdirSeen = true
			}
			srcs := s.Args
			if len(srcs) > 1 {
				srcs = srcs[:len(srcs)-1]
			}
			for _, src := range srcs {
				switch clean := path.Clean(src); {
				case clean == "." || clean == "/" || clean == "*":
					if sourceLine == 0 {
						sourceLine = s.Line
					}
				case clean == manifest || path.Base(clean) == path.Base(manifest):
					if manifestLine == 0 {
						manifestLine = s.Line
					}
				}
			}
		case "RUN":
			if installLine == 0 && l.installs(s) {
				installLine = s.Line
			}
		}
	}

	if installLine == 0 {
		where := "no step"
		if l.p.Stages > 1 {
			where = "no step of the final stage"
		}
		l.add(RuleInstall, SeverityError, 0, nil, "%s installs the dependencies from %s", where, l.opts.Manifest)
		return
	}
	// A full source copy ahead of the install also brings the manifest; that
	// ordering is reported as source-after-install instead.
	sourceFirst := sourceLine != 0 && sourceLine < installLine
	if (manifestLine == 0 || manifestLine > installLine) && !sourceFirst {
		l.add(RuleManifestFirst, SeverityError, installLine, domain.ErrManifestMissing,
			"%s is not copied into the image before it is installed", l.opts.Manifest)
	}
	if sourceFirst {
		l.add(RuleSourceAfter, SeverityError, sourceLine, nil,
			"the full source tree is copied before dependencies are installed; every source change will reinstall them")
	}
}

func (l *linter) installs(s Step) bool {
	cmd := strings.Join(s.Args, " ")
	return strings.Contains(cmd, "install") && strings.Contains(cmd, path.Base(l.opts.Manifest))
}

// expose returns the single declared port, or 0.
func (l *linter) expose() int {
	steps := l.p.Find("EXPOSE")
	line := 0
	if len(steps) > 0 {
		line = steps[0].Line
	}
	switch len(l.p.Exposed) {
	case 0:
		l.add(RuleSingleExpose, SeverityError, 0, nil, "no port is exposed")
		return 0
	case 1:
	default:
		l.add(RuleSingleExpose, SeverityError, line, nil, "%d ports are exposed, expected exactly one", len(l.p.Exposed))
		return 0
	}
	raw := l.p.Exposed[0]
	if strings.HasSuffix(raw, "/udp") {
		l.add(RuleSingleExpose, SeverityError, line, nil, "exposed port %s is not TCP", raw)
		return 0
	}
	port, err := domain.ParsePort(raw)
	if err != nil {
		l.add(RuleSingleExpose, SeverityError, line, nil, "exposed port %q: %v", raw, err)
		return 0
	}
	return port
}

func (l *linter) launch(exposed int) {
	argv := l.p.Launch()
	line := l.p.LaunchLine
	if len(argv) == 0 {
		l.add(RuleLaunch, SeverityError, 0, nil, "no CMD or ENTRYPOINT starts the application")
		return
	}

	address, addrPort, addrFound := domain.FlagValue(argv, l.opts.AddressFlags)
	portValue, portFound := "", false
	if v, _, ok := domain.FlagValue(argv, l.opts.PortFlags); ok {
		portValue, portFound = v, true
	} else if addrPort != "" {
		portValue, portFound = addrPort, true
	}

	switch {
	case !portFound:
		l.add(RulePortAgreement, SeverityError, line, domain.ErrPortMismatch, "launch command does not pass a port flag")
	default:
		port, err := domain.ParsePort(portValue)
		switch {
		case err != nil:
			l.add(RulePortAgreement, SeverityError, line, domain.ErrPortMismatch,
				"launch port %q is not a literal port number", portValue)
		case exposed != 0 && port != exposed:
			l.add(RulePortAgreement, SeverityError, line, domain.ErrPortMismatch,
				"launch binds port %d but port %d is exposed", port, exposed)
		}
	}

	switch {
	case !addrFound:
		l.add(RuleBindAddress, SeverityError, line, nil, "launch command does not pass a bind address")
	case domain.IsLoopback(address):
		l.add(RuleLoopbackBind, SeverityError, line, domain.ErrLoopbackBind,
			"launch binds %s, which is unreachable from the platform router", address)
	case !domain.IsAllInterfaces(address):
		l.add(RuleBindAddress, SeverityWarning, line, nil, "launch binds %s instead of all interfaces", address)
	}
}

func hasFromFlag(flags []string) bool {
	for _, f := range flags {
		if strings.HasPrefix(f, "--from") {
			return true
		}
	}
	return false
}

func prependUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	out := []string{v}
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
