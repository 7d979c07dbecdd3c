package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
)

// LoadRecipe reads a YAML recipe file. An empty path yields the default
// recipe; omitted fields take their defaults.
func LoadRecipe(path string) (domain.Recipe, error) {
	if path == "" {
		return domain.DefaultRecipe(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Recipe{}, fmt.Errorf("failed to read recipe file: %w", err)
	}
	r, err := ParseRecipe(data)
	if err != nil {
		return domain.Recipe{}, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// ParseRecipe decodes YAML recipe content, rejecting unknown fields.
func ParseRecipe(data []byte) (domain.Recipe, error) {
	var r domain.Recipe
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil && !errors.Is(err, io.EOF) {
		return domain.Recipe{}, fmt.Errorf("%w: %v", domain.ErrInvalidRecipe, err)
	}
	r = r.WithDefaults()
	if err := r.Validate(); err != nil {
		return domain.Recipe{}, err
	}
	return r, nil
}
