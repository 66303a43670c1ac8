package configuration

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSecrets(t *testing.T) {
	s, err := ParseSecrets([]byte(`
ha_access_token: abc
github_token: ghp_123
mqtt_port: 1883
nested:
  ignored: true
`))
	require.NoError(t, err)
	s.lookupEnv = func(string) (string, bool) { return "", false }
	assert.Equal(t, "abc", s.Get("ha_access_token"))
	assert.Equal(t, "1883", s.Get("mqtt_port"))
	assert.Equal(t, "", s.Get("nested"))
	assert.Equal(t, []string{"github_token", "ha_access_token", "mqtt_port"}, s.Keys())
}

func TestSecretsEnvOverride(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "from-env")
	s := NewSecrets(map[string]string{"github_token": "from-file"})
	assert.Equal(t, "from-env", s.Get("github_token"))

	v, ok := s.Lookup("not_there")
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestSecretsRequire(t *testing.T) {
	s := NewSecrets(map[string]string{"a": "1", "b": ""})
	_, err := s.Require("a", "b", "c")
	assert.EqualError(t, err, "missing secrets: b, c")

	vals, err := s.Require("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, vals)
}

func TestLoadSecretsMissingFile(t *testing.T) {
	_, err := LoadSecrets(filepath.Join(t.TempDir(), "secrets.yaml"))
	assert.Error(t, err)
}

func TestLoadSecretsBadYAML(t *testing.T) {
	_, err := LoadSecrets(writeFile(t, "secrets.yaml", "a: [unterminated"))
	assert.ErrorContains(t, err, "unable to parse secrets")
}
