package generator

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/manash/pollgen/internal/image"
	"github.com/manash/pollgen/internal/pollinations"
	"github.com/manash/pollgen/internal/security"
	"github.com/manash/pollgen/internal/translate"
	"github.com/manash/pollgen/pkg/models"
)

// Edit applies prompt to the image at sourcePath. The source is uploaded
// once, then each edit model is tried in order until one produces an image.
// If o.Model names an edit model it is tried first; otherwise the configured
// edit model is. Successful edits are not cached and do not change the
// generation counters.
func (g *Generator) Edit(ctx context.Context, prompt, sourcePath string, o models.Overrides) (string, bool) {
	g.logger.Info("editing image", zap.String("source", sourcePath), zap.String("prompt", prompt))

	if _, err := os.Stat(sourcePath); err != nil {
		g.fail("edit", fmt.Errorf("%w: %s", ErrSourceNotFound, sourcePath), zap.String("path", sourcePath))
		return "", false
	}

	if g.uploader == nil {
		g.fail("edit", ErrNoUploader)
		return "", false
	}
	publicURL, err := g.uploader.Upload(ctx, sourcePath)
	if err != nil {
		g.fail("edit", fmt.Errorf("upload aborted edit: %w", err), zap.String("path", sourcePath))
		return "", false
	}
	if err := security.ValidatePublicURL(publicURL); err != nil {
		g.fail("edit", fmt.Errorf("upload returned unusable URL: %w", err))
		return "", false
	}

	translated := translate.Prompt(ctx, g.translator, prompt, g.logger)
	params := g.params(o)

	for _, attempt := range models.EditPlan(g.preferredEditModel(o)) {
		path, err := g.tryEdit(ctx, attempt, translated, publicURL, params)
		if err != nil {
			g.logger.Warn("edit attempt failed", zap.String("model", attempt.ModelName), zap.Error(err))
			continue
		}
		g.logger.Info("edit succeeded", zap.String("model", attempt.ModelName), zap.String("path", path))
		return path, true
	}

	g.fail("edit", ErrAllEditsFailed)
	return "", false
}

func (g *Generator) preferredEditModel(o models.Overrides) models.EditModel {
	if o.Model != "" {
		if m, err := models.ParseEditModel(o.Model); err == nil {
			return m
		}
		g.logger.Warn("not an edit model, using configured one", zap.String("model", o.Model))
	}
	return g.cfg.EditModel
}

func (g *Generator) tryEdit(ctx context.Context, attempt models.EditAttempt, translated, publicURL string, params models.Params) (string, error) {
	g.logger.Info("trying edit model", zap.String("model", attempt.ModelName))

	resp, err := g.fetcher.Fetch(ctx,
		g.cfg.Endpoint.PromptURL(attempt.PromptPrefix+translated),
		pollinations.EditQuery(attempt, publicURL, params),
		pollinations.AuthHeader(g.cfg.Token),
	)
	if err != nil {
		return "", err
	}
	return g.save(resp, image.EditLabel(attempt.ModelName, translated))
}
