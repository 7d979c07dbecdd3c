package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
)

const appRequirements = `# data processor
streamlit>=1.30
pandas[excel] >= 2.0, <3
openpyxl==3.1.2
numpy ; python_version >= "3.9"

--extra-index-url https://pypi.example.com/simple
`

func TestParseRequirements(t *testing.T) {
	m, err := Parse("requirements.txt", []byte(appRequirements))
	require.NoError(t, err)

	assert.Equal(t, []string{"streamlit", "pandas", "openpyxl", "numpy"}, m.Names())
	assert.Equal(t, digest.FromString(appRequirements), m.Digest)
	assert.Equal(t, []string{"--extra-index-url https://pypi.example.com/simple"}, m.Options)

	pandas := m.Requirements[1]
	assert.Equal(t, []string{"excel"}, pandas.Extras)
	assert.Equal(t, ">=2.0,<3", pandas.Constraint)
	assert.Equal(t, 3, pandas.Line)

	v, ok := m.Requirements[2].Pinned()
	assert.True(t, ok)
	assert.Equal(t, "3.1.2", v)

	assert.Equal(t, `python_version >= "3.9"`, m.Requirements[3].Marker)
	assert.Empty(t, m.Requirements[3].Constraint)
}

func TestParseSingleExactPin(t *testing.T) {
	m, err := Parse("requirements.txt", []byte("examplelib==1.0\n"))
	require.NoError(t, err)
	require.Len(t, m.Requirements, 1)
	assert.Equal(t, "examplelib", m.Requirements[0].Name)
	assert.Equal(t, "==1.0", m.Requirements[0].Constraint)
}

func TestParseNormalizesNames(t *testing.T) {
	req, err := ParseRequirement("Ruamel_YAML.clib")
	require.NoError(t, err)
	assert.Equal(t, "ruamel-yaml-clib", req.Name)
	assert.Equal(t, "Ruamel_YAML.clib", req.Raw)
}

func TestParseDuplicateIdenticalIsAccepted(t *testing.T) {
	m, err := Parse("requirements.txt", []byte("pandas==2.0\nPandas==2.0\n"))
	require.NoError(t, err)
	assert.Len(t, m.Requirements, 1)
}

func TestParseConflicts(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"different pins across lines", "pandas==2.0\npandas==2.1\n"},
		{"pin and range across lines", "numpy==1.26\nnumpy>=2\n"},
		{"two pins in one clause list", "numpy==1.26,==2.0\n"},
		{"normalised names collide", "ruamel.yaml==0.17\nruamel_yaml==0.18\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse("requirements.txt", []byte(tt.content))
			require.ErrorIs(t, err, domain.ErrDependencyConflict)
			assert.Nil(t, m)
		})
	}
}

func TestParseInvalidLines(t *testing.T) {
	for _, line := range []string{
		"pandas=2.0",
		"pandas >> 2",
		"!!!",
		"pkg @ https://example.com/pkg.whl",
	} {
		t.Run(line, func(t *testing.T) {
			_, err := Parse("requirements.txt", []byte(line+"\n"))
			require.ErrorIs(t, err, domain.ErrInvalidRequirement)
		})
	}
}

func TestParseEmptyManifest(t *testing.T) {
	m, err := Parse("requirements.txt", []byte("# nothing to install\n\n"))
	require.NoError(t, err)
	assert.Empty(t, m.Requirements)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "requirements.txt"))
	require.ErrorIs(t, err, domain.ErrManifestMissing)
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.txt")
	require.NoError(t, os.WriteFile(path, []byte("streamlit\n"), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, m.Path)
	assert.Equal(t, []string{"streamlit"}, m.Names())
}

func TestDigestChangesWithContent(t *testing.T) {
	a, err := Parse("requirements.txt", []byte("streamlit\n"))
	require.NoError(t, err)
	b, err := Parse("requirements.txt", []byte("streamlit\npandas\n"))
	require.NoError(t, err)
	assert.NotEqual(t, a.Digest, b.Digest)
}
