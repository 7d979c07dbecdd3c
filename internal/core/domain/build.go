package domain

import (
	"strings"

	"github.com/opencontainers/go-digest"
)

// BuildRequest asks for one image build. Exactly one of SourceDir or RepoURL is set.
type BuildRequest struct {
	SourceDir string `json:"source_dir,omitempty"`
	RepoURL   string `json:"repo_url,omitempty"`
	Ref       string `json:"ref,omitempty"`
	Tag       string `json:"tag"`
	NoCache   bool   `json:"no_cache,omitempty"`
	Recipe    Recipe `json:"recipe"`
}

// BuildStep is one executed recipe instruction.
type BuildStep struct {
	Index       int    `json:"index"`
	Instruction string `json:"instruction"`
	Cached      bool   `json:"cached"`
}

// Keyword returns the upper-case instruction keyword, e.g. "RUN".
func (s BuildStep) Keyword() string {
	kw, _, _ := strings.Cut(strings.TrimSpace(s.Instruction), " ")
	return strings.ToUpper(kw)
}

// BuildResult describes a successfully built image.
type BuildResult struct {
	ImageID        string        `json:"image_id"`
	Tag            string        `json:"tag"`
	Steps          []BuildStep   `json:"steps"`
	ManifestDigest digest.Digest `json:"manifest_digest"`
}

// DependencyLayerCached reports whether the dependency install step was served
// from the build cache. It is false when no install step ran.
func (b BuildResult) DependencyLayerCached(manifest string) bool {
	for _, s := range b.Steps {
		if s.Keyword() == "RUN" && strings.Contains(s.Instruction, manifest) {
			return s.Cached
		}
	}
	return false
}
