package builder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
)

var (
	stepLine  = regexp.MustCompile(`^Step (\d+)/\d+ : (.*)$`)
	cacheLine = regexp.MustCompile(`^\s*---> Using cache\s*$`)
	builtLine = regexp.MustCompile(`^Successfully built ([0-9a-f]+)\s*$`)
)

// DecodeOutput reads a classic-builder JSON message stream, copying the
// human-readable output to progress. Any error message in the stream fails
// the whole build.
func DecodeOutput(r io.Reader, progress io.Writer) (*domain.BuildResult, error) {
	if progress == nil {
		progress = io.Discard
	}
	res := &domain.BuildResult{}
	var partial strings.Builder

	handle := func(line string) {
		switch {
		case stepLine.MatchString(line):
			m := stepLine.FindStringSubmatch(line)
			idx, _ := strconv.Atoi(m[1])
			res.Steps = append(res.Steps, domain.BuildStep{Index: idx, Instruction: m[2]})
		case cacheLine.MatchString(line):
			if n := len(res.Steps); n > 0 {
				res.Steps[n-1].Cached = true
			}
		case builtLine.MatchString(line) && res.ImageID == "":
			res.ImageID = builtLine.FindStringSubmatch(line)[1]
		}
	}

	dec := json.NewDecoder(r)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: decode build output: %v", domain.ErrBuildFailed, err)
		}
		if msg.Error != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrBuildFailed, msg.Error.Message)
		}
		if msg.ErrorMessage != "" {
			return nil, fmt.Errorf("%w: %s", domain.ErrBuildFailed, msg.ErrorMessage)
		}
		if msg.Aux != nil {
			var aux struct {
				ID string `json:"ID"`
			}
			if err := json.Unmarshal(*msg.Aux, &aux); err == nil && aux.ID != "" {
				res.ImageID = aux.ID
			}
		}
		if msg.Stream == "" {
			continue
		}
		io.WriteString(progress, msg.Stream)

		partial.WriteString(msg.Stream)
		buf := partial.String()
		lines := strings.Split(buf, "\n")
		for _, line := range lines[:len(lines)-1] {
			handle(strings.TrimRight(line, "\r"))
		}
		partial.Reset()
		partial.WriteString(lines[len(lines)-1])
	}
	if rest := partial.String(); rest != "" {
		handle(rest)
	}

	if res.ImageID == "" {
		return nil, fmt.Errorf("%w: build finished without an image ID", domain.ErrBuildFailed)
	}
	return res, nil
}
