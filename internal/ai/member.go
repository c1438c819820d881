package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

// Member is one provider of a fallback group, tried in configuration order.
type Member struct {
	Provider        IProvider
	CompletionModel string
}

// BuildGroup composes the embedder and generator used for answering. Each
// member's embedder retries on its own before the next member is tried.
// Members whose embeddings come from a different model than the first
// member are used for completions only.
func BuildGroup(ctx context.Context, members []Member, embedModel string, attempts int, delay time.Duration) (IEmbedder, IGenerator, error) {
	if len(members) == 0 {
		return nil, nil, fmt.Errorf("%w: no ai provider configured", appErr.ErrConfig)
	}
	var (
		embedders  []IEmbedder
		generators []IGenerator
	)
	for _, m := range members {
		generators = append(generators, NewGenerator(m.Provider, m.CompletionModel))
		e := NewEmbedder(m.Provider, embedModel)
		if len(embedders) > 0 && e.ModelName() != embedders[0].ModelName() {
			logutil.GetLogger(ctx).Warn("provider serves another embedding model, using it for completions only",
				zap.String("provider", m.Provider.Name()), zap.String("model", e.ModelName()))
			continue
		}
		embedders = append(embedders, WithRetry(e, attempts, delay))
	}
	embedder, err := NewFallbackEmbedder(embedders...)
	if err != nil {
		return nil, nil, err
	}
	return embedder, NewFallbackGenerator(generators...), nil
}
