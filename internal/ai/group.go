package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

// fallbackGenerator tries each generator in turn until one answers.
type fallbackGenerator struct {
	items []IGenerator
}

func NewFallbackGenerator(items ...IGenerator) IGenerator {
	switch len(items) {
	case 0:
		return nil
	case 1:
		return items[0]
	}
	return &fallbackGenerator{items: items}
}

func (g *fallbackGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var errs []error
	for i, item := range g.items {
		res, err := item.Generate(ctx, prompt)
		if err == nil {
			return res, nil
		}
		errs = append(errs, err)
		logutil.GetLogger(ctx).Warn("generator failed, trying next", zap.Int("index", i), zap.Error(err))
	}
	return "", fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
}

// fallbackEmbedder only mixes embedders of the same model, otherwise
// vectors from different members would not be comparable.
type fallbackEmbedder struct {
	model string
	items []IEmbedder
}

func NewFallbackEmbedder(items ...IEmbedder) (IEmbedder, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no embedder configured", appErr.ErrConfig)
	}
	model := items[0].ModelName()
	for _, item := range items[1:] {
		if item.ModelName() != model {
			return nil, fmt.Errorf("%w: embedder %s does not match %s", appErr.ErrConfig, item.ModelName(), model)
		}
	}
	if len(items) == 1 {
		return items[0], nil
	}
	return &fallbackEmbedder{model: model, items: items}, nil
}

func (g *fallbackEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	var errs []error
	for i, item := range g.items {
		res, err := item.Embed(ctx, text, taskType)
		if err == nil {
			return res, nil
		}
		errs = append(errs, err)
		logutil.GetLogger(ctx).Warn("embedder failed, trying next", zap.Int("index", i), zap.Error(err))
	}
	return nil, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
}

func (g *fallbackEmbedder) ModelName() string {
	return g.model
}
