package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonTemplates = `{
  "portrait": {
    "base": "portrait of {subject} in {style} style, {subject} smiling",
    "params": {"width": 768, "height": 1024, "model": "flux"},
    "placeholders": {
      "subject": {"examples": ["an astronaut", "a cat"]},
      "style": {"examples": ["oil painting"]}
    }
  },
  "landscape": {
    "base": "wide landscape at dusk",
    "params": {"width": 1920, "height": 1080, "nologo": true, "seed": 0}
  }
}`

const yamlTemplates = `
logo:
  base: "minimal logo for {brand}"
  params:
    width: 512
    height: 512
  placeholders:
    brand:
      examples: ["acme"]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_JSON(t *testing.T) {
	set, err := Load(writeFile(t, "templates.json", jsonTemplates), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"landscape", "portrait"}, set.Names())

	tpl, ok := set.Get("portrait")
	require.True(t, ok)
	assert.Equal(t, []string{"subject", "style"}, tpl.PlaceholderNames())
}

func TestLoad_YAML(t *testing.T) {
	set, err := Load(writeFile(t, "templates.yaml", yamlTemplates), nil)
	require.NoError(t, err)

	prompt, o, err := set.Apply("logo", map[string]string{"brand": "pollgen"})
	require.NoError(t, err)
	assert.Equal(t, "minimal logo for pollgen", prompt)
	assert.Equal(t, 512, o.Width)
	assert.Equal(t, "acme", set.RandomExample("logo", "brand"))
}

func TestLoad_MissingFile(t *testing.T) {
	set, err := Load(filepath.Join(t.TempDir(), "nope.json"), nil)
	require.NoError(t, err)
	assert.Empty(t, set.Names())
}

func TestLoad_Malformed(t *testing.T) {
	_, err := Load(writeFile(t, "templates.json", `{"broken":`), nil)
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	set, err := Load(writeFile(t, "templates.json", jsonTemplates), nil)
	require.NoError(t, err)

	t.Run("fills every occurrence", func(t *testing.T) {
		prompt, o, err := set.Apply("portrait", map[string]string{"subject": "a fox", "style": "ukiyo-e"})
		require.NoError(t, err)
		assert.Equal(t, "portrait of a fox in ukiyo-e style, a fox smiling", prompt)
		assert.Equal(t, 768, o.Width)
		assert.Equal(t, 1024, o.Height)
		assert.Equal(t, "flux", o.Model)
		assert.Nil(t, o.Seed)
	})

	t.Run("explicit zero seed and nologo", func(t *testing.T) {
		prompt, o, err := set.Apply("landscape", nil)
		require.NoError(t, err)
		assert.Equal(t, "wide landscape at dusk", prompt)
		require.NotNil(t, o.Seed)
		assert.Equal(t, int64(0), *o.Seed)
		require.NotNil(t, o.NoLogo)
		assert.True(t, *o.NoLogo)
	})

	t.Run("missing value", func(t *testing.T) {
		_, _, err := set.Apply("portrait", map[string]string{"subject": "a fox"})
		assert.ErrorIs(t, err, ErrMissingPlaceholder)
		assert.Contains(t, err.Error(), "style")
	})

	t.Run("unknown template", func(t *testing.T) {
		_, _, err := set.Apply("nope", nil)
		assert.ErrorIs(t, err, ErrTemplateNotFound)
	})
}

func TestRandomExample(t *testing.T) {
	set, err := Load(writeFile(t, "templates.json", jsonTemplates), nil)
	require.NoError(t, err)

	for range 10 {
		assert.Contains(t, []string{"an astronaut", "a cat"}, set.RandomExample("portrait", "subject"))
	}
	assert.Equal(t, "", set.RandomExample("landscape", "subject"))
	assert.Equal(t, "", set.RandomExample("nope", "subject"))
}
