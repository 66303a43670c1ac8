// Package exclusion reads the list of glob patterns naming files that must
// never be mirrored.
package exclusion

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Set is an immutable list of glob patterns in filepath.Match syntax.
type Set struct {
	patterns []string
}

// New validates patterns and returns a set holding a copy of them.
func New(patterns ...string) (*Set, error) {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid exclusion pattern %q: %w", p, err)
		}
		out = append(out, p)
	}
	return &Set{patterns: out}, nil
}

// Load reads one pattern per line from path. A missing file yields an empty set.
func Load(fs afero.Fs, path string) (*Set, error) {
	f, err := fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Set{}, nil
		}
		return nil, fmt.Errorf("unable to open exclusion file: %w", err)
	}
	defer f.Close()

	var patterns []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		patterns = append(patterns, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("unable to read exclusion file: %w", err)
	}
	return New(patterns...)
}

// Excluded reports whether name matches any pattern.
func (s *Set) Excluded(name string) bool {
	if s == nil {
		return false
	}
	for _, p := range s.patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.patterns)
}

// Filter returns the names not excluded, keeping their order.
func (s *Set) Filter(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !s.Excluded(n) {
			out = append(out, n)
		}
	}
	return out
}
