package exclusion

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	s, err := Load(afero.NewMemMapFs(), "/config/text_files/excluded_files.txt")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Excluded("secrets.yaml"))
}

func TestLoadAndMatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/x.txt", []byte("secrets.yaml\n\n  *.bak  \nknown_devices.yaml\ntest_*.py\n"), 0o644))

	s, err := Load(fs, "/x.txt")
	require.NoError(t, err)
	assert.Equal(t, 4, s.Len())
	assert.True(t, s.Excluded("secrets.yaml"))
	assert.True(t, s.Excluded("configuration.yaml.bak"))
	assert.True(t, s.Excluded("test_switch.py"))
	assert.False(t, s.Excluded("automations.yaml"))

	assert.Equal(t, []string{"automations.yaml", "scripts.yaml"},
		s.Filter([]string{"automations.yaml", "secrets.yaml", "scripts.yaml", "known_devices.yaml"}))
}

func TestLoadInvalidPattern(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/x.txt", []byte("[unclosed\n"), 0o644))
	_, err := Load(fs, "/x.txt")
	assert.ErrorContains(t, err, "invalid exclusion pattern")
}

func TestNilSet(t *testing.T) {
	var s *Set
	assert.False(t, s.Excluded("anything"))
	assert.Equal(t, []string{"a"}, s.Filter([]string{"a"}))
}
