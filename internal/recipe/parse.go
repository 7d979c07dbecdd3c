package recipe

import (
	"fmt"
	"io"
	"strings"

	"github.com/moby/buildkit/frontend/dockerfile/parser"
	"mvdan.cc/sh/v3/shell"
)

// Step is one instruction of the final build stage.
type Step struct {
	Keyword  string   // upper case, e.g. "COPY"
	Args     []string // JSON-form elements, or the single shell-form string
	Flags    []string // e.g. "--from=builder"
	JSON     bool
	Line     int
	Original string
}

// Parsed is the recipe as the container-build tool will see it. Only the
// final stage is retained since that is the stage that becomes the image.
type Parsed struct {
	Stages     int
	BaseImage  string
	BaseLine   int
	Steps      []Step
	Env        map[string]string
	Exposed    []string
	Entrypoint []string
	Cmd        []string
	// LaunchLine is the line of the instruction that set the command.
	LaunchLine int
}

// Parse reads a Dockerfile.
func Parse(r io.Reader) (*Parsed, error) {
	res, err := parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse recipe: %w", err)
	}

	p := &Parsed{Env: map[string]string{}}
	for _, node := range res.AST.Children {
		step := Step{
			Keyword:  strings.ToUpper(node.Value),
			Flags:    node.Flags,
			JSON:     node.Attributes["json"],
			Line:     node.StartLine,
			Original: node.Original,
		}
		for n := node.Next; n != nil; n = n.Next {
			step.Args = append(step.Args, n.Value)
		}

		switch step.Keyword {
		case "FROM":
			p.Stages++
			*p = Parsed{Stages: p.Stages, Env: map[string]string{}}
			if len(step.Args) > 0 {
				p.BaseImage = step.Args[0]
			}
			p.BaseLine = step.Line
		case "ENV":
			for k, v := range envPairs(step.Args) {
				p.Env[k] = v
			}
		case "EXPOSE":
			p.Exposed = append(p.Exposed, step.Args...)
		case "ENTRYPOINT":
			argv, err := p.argv(step)
			if err != nil {
				return nil, err
			}
			p.Entrypoint = argv
			// ENTRYPOINT resets any CMD inherited so far.
			p.Cmd = nil
			p.LaunchLine = step.Line
		case "CMD":
			argv, err := p.argv(step)
			if err != nil {
				return nil, err
			}
			p.Cmd = argv
			p.LaunchLine = step.Line
		}
		p.Steps = append(p.Steps, step)
	}
	if p.Stages == 0 {
		return nil, fmt.Errorf("failed to parse recipe: no FROM instruction")
	}
	return p, nil
}

// Launch returns the argv the container starts: entrypoint followed by command.
func (p *Parsed) Launch() []string {
	argv := make([]string, 0, len(p.Entrypoint)+len(p.Cmd))
	argv = append(argv, p.Entrypoint...)
	return append(argv, p.Cmd...)
}

// Find returns the steps with the given keyword in order.
func (p *Parsed) Find(keyword string) []Step {
	var out []Step
	for _, s := range p.Steps {
		if s.Keyword == keyword {
			out = append(out, s)
		}
	}
	return out
}

// argv turns a CMD or ENTRYPOINT into the words the process receives. Shell
// form is split the way /bin/sh would, expanding variables from ENV
// instructions; anything else expands to empty so ${PORT:-8080} yields its default.
func (p *Parsed) argv(step Step) ([]string, error) {
	if step.JSON {
		return step.Args, nil
	}
	if len(step.Args) == 0 {
		return nil, nil
	}
	words, err := shell.Fields(strings.Join(step.Args, " "), func(name string) string {
		return p.Env[name]
	})
	if err != nil {
		return nil, fmt.Errorf("failed to split %s on line %d: %w", step.Keyword, step.Line, err)
	}
	if len(words) > 0 && words[0] == "exec" {
		words = words[1:]
	}
	return words, nil
}

// envPairs reads the key/value chain of an ENV node. The parser emits
// key, value, separator triples; older versions emitted plain pairs.
func envPairs(args []string) map[string]string {
	out := map[string]string{}
	stride := 2
	if len(args)%3 == 0 {
		stride = 3
		for i := 2; i < len(args); i += 3 {
			if args[i] != "=" && args[i] != "" {
				stride = 2
				break
			}
		}
	}
	for i := 0; i+1 < len(args); i += stride {
		out[args[i]] = strings.Trim(args[i+1], `"'`)
	}
	return out
}
