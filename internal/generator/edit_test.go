package generator

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manash/pollgen/pkg/models"
)

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.png")
	require.NoError(t, os.WriteFile(path, []byte("src"), 0644))
	return path
}

// failModels answers 404 for the listed models and an image for the rest.
func failModels(names ...string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		model := r.URL.Query().Get("model")
		for _, n := range names {
			if n == model {
				w.WriteHeader(http.StatusNotFound)
				return
			}
		}
		serveImage(w, r)
	}
}

func TestEdit_FirstModelSucceeds(t *testing.T) {
	env := newTestEnv(t, serveImage, withSeed(5))

	path, ok := env.gen.Edit(context.Background(), "add a hat", writeSource(t), models.Overrides{})
	require.True(t, ok)
	assert.Equal(t, 1, env.server.count())
	assert.Equal(t, 1, env.uploader.calls)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "edit_kontext_add_a_hat_"))

	q := env.server.request(0).URL.Query()
	assert.Equal(t, "kontext", q.Get("model"))
	assert.Equal(t, env.uploader.url, q.Get("image"))
	assert.Equal(t, "5", q.Get("seed"))
	assert.Equal(t, "1024", q.Get("width"))
	assert.Equal(t, "false", q.Get("nologo"))
}

func TestEdit_FallbackStopsAtFirstSuccess(t *testing.T) {
	env := newTestEnv(t, failModels("kontext"), withSeed(5))

	path, ok := env.gen.Edit(context.Background(), "add a hat", writeSource(t), models.Overrides{})
	require.True(t, ok)
	assert.Equal(t, 2, env.server.count(), "third model must not be tried")
	assert.True(t, strings.HasPrefix(filepath.Base(path), "edit_flux_add_a_hat_"))

	second := env.server.request(1)
	assert.Equal(t, "flux", second.URL.Query().Get("model"))
	assert.Equal(t, env.uploader.url, second.URL.Query().Get("reference"))
	assert.Empty(t, second.URL.Query().Get("image"))
	assert.Equal(t, "/prompt/based+on+reference+image%2C+add+a+hat", second.URL.EscapedPath())

	assert.Equal(t, "5", env.server.request(0).URL.Query().Get("seed"))
	assert.Equal(t, "5", second.URL.Query().Get("seed"), "seed is drawn once per edit")

	stats := env.gen.Statistics()
	assert.Zero(t, stats.Errors)
	assert.Zero(t, stats.ImagesGenerated)
}

func TestEdit_PreferredModelFirst(t *testing.T) {
	tests := []struct {
		name      string
		configure models.EditModel
		override  string
		want      []string
	}{
		{"configured flux-kontext", models.EditFluxKontext, "", []string{"flux-kontext", "kontext", "flux"}},
		{"override flux", models.EditKontext, "flux", []string{"flux", "kontext", "flux-kontext"}},
		{"non-edit override ignored", models.EditKontext, "turbo", []string{"kontext", "flux", "flux-kontext"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, failModels("kontext", "flux", "flux-kontext"), withEditModel(tt.configure))

			_, ok := env.gen.Edit(context.Background(), "x", writeSource(t), models.Overrides{Model: tt.override})
			assert.False(t, ok)

			require.Equal(t, len(tt.want), env.server.count())
			for i, want := range tt.want {
				assert.Equal(t, want, env.server.request(i).URL.Query().Get("model"))
			}
		})
	}
}

func TestEdit_AllModelsFail(t *testing.T) {
	env := newTestEnv(t, failModels("kontext", "flux", "flux-kontext"))

	path, ok := env.gen.Edit(context.Background(), "add a hat", writeSource(t), models.Overrides{})
	assert.False(t, ok)
	assert.Empty(t, path)
	assert.Equal(t, 3, env.server.count())
	assert.Equal(t, 1, env.gen.Statistics().Errors)
}

func TestEdit_MissingSource(t *testing.T) {
	env := newTestEnv(t, serveImage)

	_, ok := env.gen.Edit(context.Background(), "x", filepath.Join(t.TempDir(), "nope.png"), models.Overrides{})
	assert.False(t, ok)
	assert.Zero(t, env.uploader.calls)
	assert.Zero(t, env.server.count())
	assert.Equal(t, 1, env.gen.Statistics().Errors)
}

func TestEdit_UploadFailureAborts(t *testing.T) {
	env := newTestEnv(t, serveImage)
	env.uploader.err = errors.New("gofile down")

	_, ok := env.gen.Edit(context.Background(), "x", writeSource(t), models.Overrides{})
	assert.False(t, ok)
	assert.Zero(t, env.server.count())
	assert.Equal(t, 1, env.gen.Statistics().Errors)
}

func TestEdit_RejectsPrivateUploadURL(t *testing.T) {
	env := newTestEnv(t, serveImage)
	env.uploader.url = "https://127.0.0.1/download/x.png"

	_, ok := env.gen.Edit(context.Background(), "x", writeSource(t), models.Overrides{})
	assert.False(t, ok)
	assert.Zero(t, env.server.count())
}

func TestEdit_NoUploader(t *testing.T) {
	env := newTestEnv(t, serveImage)
	env.gen.uploader = nil

	_, ok := env.gen.Edit(context.Background(), "x", writeSource(t), models.Overrides{})
	assert.False(t, ok)
	assert.Equal(t, 1, env.gen.Statistics().Errors)
}

func TestEdit_TranslatesPrompt(t *testing.T) {
	env := newTestEnv(t, serveImage)
	env.translator.out = "add a red hat"

	path, ok := env.gen.Edit(context.Background(), "añade un sombrero rojo", writeSource(t), models.Overrides{})
	require.True(t, ok)
	assert.Equal(t, 1, env.translator.calls)
	assert.Equal(t, "/prompt/add+a+red+hat", env.server.request(0).URL.EscapedPath())
	assert.True(t, strings.HasPrefix(filepath.Base(path), "edit_kontext_add_a_red_hat_"))
}
