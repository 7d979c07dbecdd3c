// Package manifest reads pip requirement files.
//
// Only the subset of the format that a deployment recipe depends on is
// understood: one specifier per line with optional extras, version
// constraint and environment marker. Option lines (starting with "-") are
// kept verbatim and passed through to the installer.
package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
)

var (
	requirementRe = regexp.MustCompile(`^([A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?)\s*(\[[^\]]*\])?\s*([^;]*?)\s*(?:;\s*(.+))?$`)
	clauseRe      = regexp.MustCompile(`^(===|==|!=|~=|<=|>=|<|>)\s*([A-Za-z0-9.*+!_-]+)$`)
	separatorRe   = regexp.MustCompile(`[-_.]+`)
)

// Load reads and parses the manifest at path.
func Load(path string) (*domain.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrManifestMissing, path)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(path, data)
}

// Parse parses manifest content. Every line must parse and no two entries may
// conflict; there is no partial result.
func Parse(path string, data []byte) (*domain.Manifest, error) {
	m := &domain.Manifest{
		Path:   path,
		Digest: digest.FromBytes(data),
	}

	seen := make(map[string]domain.Requirement)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "-") {
			m.Options = append(m.Options, line)
			continue
		}

		req, err := ParseRequirement(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		req.Line = lineNo

		if prev, ok := seen[req.Name]; ok {
			if prev.Constraint != req.Constraint || prev.Marker != req.Marker {
				return nil, fmt.Errorf("%w: %s listed on line %d as %q and on line %d as %q",
					domain.ErrDependencyConflict, req.Name, prev.Line, prev.Constraint, req.Line, req.Constraint)
			}
			continue
		}
		seen[req.Name] = req
		m.Requirements = append(m.Requirements, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan manifest: %w", err)
	}
	return m, nil
}

// ParseRequirement parses one specifier such as "pandas[excel]>=2.0,<3; python_version>'3.8'".
func ParseRequirement(line string) (domain.Requirement, error) {
	match := requirementRe.FindStringSubmatch(strings.TrimSpace(line))
	if match == nil {
		return domain.Requirement{}, fmt.Errorf("%w: %q", domain.ErrInvalidRequirement, line)
	}

	req := domain.Requirement{
		Raw:    match[1],
		Name:   Normalize(match[1]),
		Marker: strings.TrimSpace(match[4]),
	}
	if extras := strings.Trim(match[2], "[]"); extras != "" {
		for _, e := range strings.Split(extras, ",") {
			if e = strings.TrimSpace(e); e != "" {
				req.Extras = append(req.Extras, Normalize(e))
			}
		}
	}

	constraint, err := normalizeConstraint(match[3])
	if err != nil {
		if errors.Is(err, domain.ErrDependencyConflict) {
			return domain.Requirement{}, fmt.Errorf("%q: %w", line, err)
		}
		return domain.Requirement{}, fmt.Errorf("%w: %q: %v", domain.ErrInvalidRequirement, line, err)
	}
	req.Constraint = constraint
	return req, nil
}

// Normalize applies PEP 503 name normalisation.
func Normalize(name string) string {
	return strings.ToLower(separatorRe.ReplaceAllString(name, "-"))
}

// normalizeConstraint validates each comma-separated clause and rejects a
// constraint that pins two different exact versions.
func normalizeConstraint(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if strings.HasPrefix(s, "@") {
		return "", errors.New("direct URL references are not supported")
	}

	var (
		clauses []string
		pinned  string
	)
	for _, raw := range strings.Split(s, ",") {
		clause := strings.Join(strings.Fields(raw), "")
		m := clauseRe.FindStringSubmatch(clause)
		if m == nil {
			return "", fmt.Errorf("malformed version clause %q", strings.TrimSpace(raw))
		}
		if m[1] == "==" || m[1] == "===" {
			if pinned != "" && pinned != m[2] {
				return "", fmt.Errorf("%w: pinned to both %s and %s", domain.ErrDependencyConflict, pinned, m[2])
			}
			pinned = m[2]
		}
		clauses = append(clauses, m[1]+m[2])
	}
	return strings.Join(clauses, ","), nil
}

func stripComment(line string) string {
	if i := strings.Index(line, "#"); i == 0 {
		return ""
	} else if i > 0 && (line[i-1] == ' ' || line[i-1] == '\t') {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}
