// Package templates loads reusable prompt templates. A template has a base
// prompt with {placeholder} markers, default generation parameters and
// optional example values for each placeholder.
package templates

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/manash/pollgen/pkg/models"
)

var (
	ErrTemplateNotFound   = errors.New("template not found")
	ErrMissingPlaceholder = errors.New("missing placeholder value")
)

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

type Params struct {
	Width  int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height int    `json:"height,omitempty" yaml:"height,omitempty"`
	Model  string `json:"model,omitempty" yaml:"model,omitempty"`
	Seed   *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
	NoLogo *bool  `json:"nologo,omitempty" yaml:"nologo,omitempty"`
}

func (p Params) Overrides() models.Overrides {
	return models.Overrides{
		Width:  p.Width,
		Height: p.Height,
		Model:  p.Model,
		Seed:   p.Seed,
		NoLogo: p.NoLogo,
	}
}

type Placeholder struct {
	Examples []string `json:"examples" yaml:"examples"`
}

type Template struct {
	Base         string                 `json:"base" yaml:"base"`
	Params       Params                 `json:"params" yaml:"params"`
	Placeholders map[string]Placeholder `json:"placeholders,omitempty" yaml:"placeholders,omitempty"`
}

// PlaceholderNames returns the marker names in the order they first appear in
// the base prompt.
func (t Template) PlaceholderNames() []string {
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(t.Base, -1) {
		if !slices.Contains(names, m[1]) {
			names = append(names, m[1])
		}
	}
	return names
}

type Set struct {
	templates map[string]Template
}

func NewSet(templates map[string]Template) *Set {
	if templates == nil {
		templates = map[string]Template{}
	}
	return &Set{templates: templates}
}

// Load reads a template file. A missing file yields an empty set; .yaml and
// .yml files are decoded as YAML, anything else as JSON.
func Load(path string, logger *zap.Logger) (*Set, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("template file not found", zap.String("path", path))
		return NewSet(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}

	templates := map[string]Template{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &templates)
	default:
		err = json.Unmarshal(data, &templates)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates %s: %w", path, err)
	}

	logger.Info("templates loaded", zap.String("path", path), zap.Int("count", len(templates)))
	return NewSet(templates), nil
}

func (s *Set) Names() []string {
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *Set) Get(name string) (Template, bool) {
	t, ok := s.templates[name]
	return t, ok
}

// Apply fills the base prompt of the named template with vars and returns it
// together with the template's parameters.
func (s *Set) Apply(name string, vars map[string]string) (string, models.Overrides, error) {
	t, ok := s.templates[name]
	if !ok {
		return "", models.Overrides{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}

	var missing []string
	prompt := placeholderRe.ReplaceAllStringFunc(t.Base, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := vars[key]
		if !ok {
			if !slices.Contains(missing, key) {
				missing = append(missing, key)
			}
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", models.Overrides{}, fmt.Errorf("%w: %s", ErrMissingPlaceholder, strings.Join(missing, ", "))
	}

	return prompt, t.Params.Overrides(), nil
}

// RandomExample picks one example value for a placeholder, or "" when the
// template defines none.
func (s *Set) RandomExample(name, placeholder string) string {
	t, ok := s.templates[name]
	if !ok {
		return ""
	}
	examples := t.Placeholders[placeholder].Examples
	if len(examples) == 0 {
		return ""
	}
	return examples[rand.IntN(len(examples))]
}
