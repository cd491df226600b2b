package batch

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/manash/pollgen/pkg/models"
)

var ErrNoPrompts = errors.New("no prompts found")

// Item is one prompt of a batch. Zero fields fall back to the batch defaults.
type Item struct {
	Index  int
	Prompt string
	Width  int
	Height int
	Model  string
	Seed   *int64
	NoLogo *bool
}

func (it Item) Overrides() models.Overrides {
	return models.Overrides{
		Width:  it.Width,
		Height: it.Height,
		Model:  it.Model,
		Seed:   it.Seed,
		NoLogo: it.NoLogo,
	}
}

// entry is the structured file form of an Item, shared by JSON and YAML.
type entry struct {
	Prompt string `json:"prompt" yaml:"prompt"`
	Width  int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height int    `json:"height,omitempty" yaml:"height,omitempty"`
	Model  string `json:"model,omitempty" yaml:"model,omitempty"`
	Seed   *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
	NoLogo *bool  `json:"nologo,omitempty" yaml:"nologo,omitempty"`
}

// ParseFile picks the parser from the extension: .json, .yaml/.yml, or plain
// text for .txt and extensionless files.
func ParseFile(path string) ([]Item, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open prompt file: %w", err)
	}
	defer file.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return ParseJSON(file)
	case ".yaml", ".yml":
		return ParseYAML(file)
	case ".txt", "":
		return ParseText(file)
	default:
		return nil, fmt.Errorf("unsupported prompt file %q: use .txt, .json or .yaml", ext)
	}
}

// ParseText reads one prompt per line, skipping blank lines and # comments.
func ParseText(r io.Reader) ([]Item, error) {
	var prompts []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			prompts = append(prompts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prompt file: %w", err)
	}

	items := FromPrompts(prompts)
	if len(items) == 0 {
		return nil, ErrNoPrompts
	}
	return items, nil
}

// ParseJSON reads an array of {prompt, width, height, model, seed, nologo}.
func ParseJSON(r io.Reader) ([]Item, error) {
	var entries []entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to parse JSON prompt file: %w", err)
	}
	return fromEntries(entries)
}

// ParseYAML reads the same list as ParseJSON in YAML form.
func ParseYAML(r io.Reader) ([]Item, error) {
	var entries []entry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML prompt file: %w", err)
	}
	return fromEntries(entries)
}

func fromEntries(entries []entry) ([]Item, error) {
	if len(entries) == 0 {
		return nil, ErrNoPrompts
	}

	items := make([]Item, 0, len(entries))
	for i, e := range entries {
		n := i + 1
		if strings.TrimSpace(e.Prompt) == "" {
			return nil, fmt.Errorf("item %d: %w", n, models.ErrEmptyPrompt)
		}
		if e.Width < 0 || e.Height < 0 {
			return nil, fmt.Errorf("item %d: %w", n, models.ErrInvalidDimensions)
		}
		items = append(items, Item{
			Index:  n,
			Prompt: e.Prompt,
			Width:  e.Width,
			Height: e.Height,
			Model:  e.Model,
			Seed:   e.Seed,
			NoLogo: e.NoLogo,
		})
	}
	return items, nil
}

// FromPrompts numbers prompts given directly on the command line.
func FromPrompts(prompts []string) []Item {
	items := make([]Item, 0, len(prompts))
	for _, p := range prompts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		items = append(items, Item{Index: len(items) + 1, Prompt: p})
	}
	return items
}
