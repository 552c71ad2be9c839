// Package story loads story files: a title, a start passage and a directive
// AST per passage, encoded as JSON or YAML.
package story

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/campfire/pkg/directive"
)

var ErrInvalidStory = errors.New("invalid story")

// Story is a loaded story file.
type Story struct {
	Title    string                       `json:"title" yaml:"title"`
	Start    string                       `json:"start" yaml:"start"`
	Passages map[string][]*directive.Node `json:"passages" yaml:"passages"`
}

// Passage implements engine.PassageSource. Callers get a copy.
func (s *Story) Passage(id string) ([]*directive.Node, bool) {
	nodes, ok := s.Passages[id]
	if !ok {
		return nil, false
	}
	return directive.CloneAll(nodes), true
}

// IDs lists passage ids in sorted order.
func (s *Story) IDs() []string {
	ids := make([]string, 0, len(s.Passages))
	for id := range s.Passages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StartID returns the start passage, or the first id when none is named.
func (s *Story) StartID() string {
	if s.Start != "" {
		return s.Start
	}
	if ids := s.IDs(); len(ids) > 0 {
		return ids[0]
	}
	return ""
}

// Load reads a story file, choosing the decoder by extension.
func Load(path string) (*Story, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read story file %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

func ParseJSON(data []byte) (*Story, error) {
	var s Story
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStory, err)
	}
	return &s, s.validate()
}

func ParseYAML(data []byte) (*Story, error) {
	var s Story
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStory, err)
	}
	return &s, s.validate()
}

func (s *Story) validate() error {
	if len(s.Passages) == 0 {
		return fmt.Errorf("%w: no passages", ErrInvalidStory)
	}
	if s.Start != "" {
		if _, ok := s.Passages[s.Start]; !ok {
			return fmt.Errorf("%w: start passage %q does not exist", ErrInvalidStory, s.Start)
		}
	}
	return nil
}
