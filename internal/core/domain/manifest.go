package domain

import "github.com/opencontainers/go-digest"

// Requirement is one dependency specifier from the manifest.
type Requirement struct {
	// Name is the PEP 503 normalised project name.
	Name string `json:"name"`
	// Raw is the name as written.
	Raw        string   `json:"raw"`
	Extras     []string `json:"extras,omitempty"`
	Constraint string   `json:"constraint,omitempty"` // e.g. "==1.0" or ">=2,<3"
	Marker     string   `json:"marker,omitempty"`
	Line       int      `json:"line"`
}

// Pinned returns the exact version when the constraint is a single "==" clause.
func (r Requirement) Pinned() (string, bool) {
	if len(r.Constraint) > 2 && r.Constraint[:2] == "==" {
		v := r.Constraint[2:]
		for _, c := range v {
			if c == ',' || c == '*' {
				return "", false
			}
		}
		return v, true
	}
	return "", false
}

// Manifest is the declared third-party library set.
type Manifest struct {
	Path         string        `json:"path"`
	Requirements []Requirement `json:"requirements"`
	// Options holds pip option lines such as "--index-url ..." verbatim.
	Options []string      `json:"options,omitempty"`
	Digest  digest.Digest `json:"digest"`
}

// Names lists the normalised project names in manifest order.
func (m Manifest) Names() []string {
	names := make([]string, 0, len(m.Requirements))
	for _, r := range m.Requirements {
		names = append(names, r.Name)
	}
	return names
}
