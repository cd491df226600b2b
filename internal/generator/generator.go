// Package generator turns prompts into saved images. Generate consults the
// cache before calling the image API; Edit uploads a source image and walks
// the edit model fallback chain. Both contain every expected failure and
// report only success or absence to the caller.
package generator

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/manash/pollgen/internal/fetch"
	"github.com/manash/pollgen/internal/pollinations"
	"github.com/manash/pollgen/internal/translate"
	"github.com/manash/pollgen/pkg/models"
)

var (
	ErrSourceNotFound = errors.New("source image not found")
	ErrAllEditsFailed = errors.New("all edit models failed")
	ErrNoUploader     = errors.New("no uploader configured")
)

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, query url.Values, header http.Header) (*fetch.Response, error)
}

type Cache interface {
	Lookup(ctx context.Context, prompt string, params map[string]any) (string, bool)
	Put(ctx context.Context, prompt string, params map[string]any, path string) error
}

type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

type Saver interface {
	Save(r io.Reader, label string) (string, error)
}

// Config holds the values every call starts from. Defaults.Seed is ignored:
// a seed is drawn per call unless the caller overrides it.
type Config struct {
	Defaults  models.Params
	Endpoint  pollinations.Endpoint
	Token     string
	EditModel models.EditModel
}

// Deps are the collaborators a Generator drives. Cache, Uploader and
// Translator may be nil.
type Deps struct {
	Fetcher    Fetcher
	Saver      Saver
	Cache      Cache
	Uploader   Uploader
	Translator translate.Translator
	Logger     *zap.Logger
	Seed       func() int64
	Now        func() time.Time
}

type Generator struct {
	cfg        Config
	fetcher    Fetcher
	saver      Saver
	cache      Cache
	uploader   Uploader
	translator translate.Translator
	logger     *zap.Logger
	seed       func() int64
	now        func() time.Time
	stats      stats
}

func New(cfg Config, deps Deps) *Generator {
	g := &Generator{
		cfg:        cfg,
		fetcher:    deps.Fetcher,
		saver:      deps.Saver,
		cache:      deps.Cache,
		uploader:   deps.Uploader,
		translator: deps.Translator,
		logger:     deps.Logger,
		seed:       deps.Seed,
		now:        deps.Now,
	}
	if g.cfg.Endpoint.BaseURL == "" {
		g.cfg.Endpoint = pollinations.NewEndpoint("")
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	if g.seed == nil {
		g.seed = func() int64 { return rand.Int64N(models.SeedLimit) }
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// Statistics returns a snapshot of the session counters.
func (g *Generator) Statistics() models.Statistics {
	return g.stats.snapshot()
}

// params merges o over the configured defaults and draws a seed when o does
// not carry one.
func (g *Generator) params(o models.Overrides) models.Params {
	p := o.Merge(g.cfg.Defaults)
	if o.Seed == nil {
		p.Seed = g.seed()
	}
	return p
}

// Generate returns the path of an image for prompt. A cache hit returns the
// stored path without translating or calling the API.
func (g *Generator) Generate(ctx context.Context, prompt string, o models.Overrides) (string, bool) {
	start := g.now()

	if strings.TrimSpace(prompt) == "" {
		g.fail("generate", models.ErrEmptyPrompt)
		return "", false
	}

	params := g.params(o)
	if err := params.Validate(); err != nil {
		g.fail("generate", err)
		return "", false
	}
	key := params.Map()

	if g.cache != nil {
		if path, ok := g.cache.Lookup(ctx, prompt, key); ok {
			g.stats.recordHit()
			g.logger.Info("image loaded from cache", zap.String("path", path))
			return path, true
		}
	}

	g.logger.Info("generating image", zap.String("prompt", prompt), zap.Int64("seed", params.Seed))
	translated := translate.Prompt(ctx, g.translator, prompt, g.logger)

	resp, err := g.fetcher.Fetch(ctx,
		g.cfg.Endpoint.PromptURL(translated),
		pollinations.GenerateQuery(params),
		pollinations.AuthHeader(g.cfg.Token),
	)
	if err != nil {
		g.fail("generate", err)
		return "", false
	}

	path, err := g.save(resp, translated)
	if err != nil {
		g.fail("generate", err)
		return "", false
	}

	if g.cache != nil {
		if err := g.cache.Put(ctx, prompt, key, path); err != nil {
			g.logger.Warn("failed to cache image", zap.String("path", path), zap.Error(err))
		}
	}

	elapsed := g.now().Sub(start)
	g.stats.recordGenerated(elapsed)
	g.logger.Info("image generated", zap.String("path", path), zap.Duration("elapsed", elapsed))
	return path, true
}

func (g *Generator) save(resp *fetch.Response, label string) (string, error) {
	defer resp.Body.Close()
	return g.saver.Save(resp.Body, label)
}

func (g *Generator) fail(op string, err error, fields ...zap.Field) {
	g.stats.recordError()
	g.logger.Error(op+" failed", append(fields, zap.Error(err))...)
}
