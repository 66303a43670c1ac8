package configuration

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Secrets is a read-only view of a Home Assistant secrets.yaml. Environment
// variables named after the upper-cased key take precedence over file values.
type Secrets struct {
	values    map[string]string
	lookupEnv func(string) (string, bool)
}

// LoadSecrets reads the YAML secrets file at path. A missing file is an error.
func LoadSecrets(path string) (*Secrets, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read secrets file %q: %w", path, err)
	}
	return ParseSecrets(b)
}

// ParseSecrets decodes secrets from YAML. Non-string scalars are kept in
// their YAML text form.
func ParseSecrets(b []byte) (*Secrets, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("unable to parse secrets: %w", err)
	}
	values := make(map[string]string, len(raw))
	for k, n := range raw {
		if n.Kind != yaml.ScalarNode {
			continue
		}
		values[k] = n.Value
	}
	return NewSecrets(values), nil
}

// NewSecrets builds a store from fixed values, mostly for tests.
func NewSecrets(values map[string]string) *Secrets {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return &Secrets{values: cp, lookupEnv: os.LookupEnv}
}

// Get returns the secret for key, or "" if it is not set anywhere.
func (s *Secrets) Get(key string) string {
	v, _ := s.Lookup(key)
	return v
}

func (s *Secrets) Lookup(key string) (string, bool) {
	if v, ok := s.lookupEnv(strings.ToUpper(key)); ok {
		return v, true
	}
	v, ok := s.values[key]
	return v, ok
}

// Keys lists the keys present in the file, sorted.
func (s *Secrets) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Require returns the values for all keys or an error naming the missing ones.
func (s *Secrets) Require(keys ...string) ([]string, error) {
	out := make([]string, len(keys))
	var missing []string
	for i, k := range keys {
		v := s.Get(k)
		if v == "" {
			missing = append(missing, k)
		}
		out[i] = v
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing secrets: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
