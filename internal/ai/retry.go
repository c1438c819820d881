package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

const (
	DefaultRetryAttempts = 10
	DefaultRetryDelay    = 20 * time.Second
)

type retryEmbedder struct {
	next     IEmbedder
	attempts int
	delay    time.Duration
}

// WithRetry retries failed embedding calls with a fixed delay. Permanent
// failures such as a missing api key are returned at once.
func WithRetry(next IEmbedder, attempts int, delay time.Duration) IEmbedder {
	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}
	if delay < 0 {
		delay = 0
	}
	return &retryEmbedder{next: next, attempts: attempts, delay: delay}
}

func (r *retryEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		res, err := r.next.Embed(ctx, text, taskType)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if permanent(err) {
			return nil, err
		}
		if attempt == r.attempts {
			break
		}
		logutil.GetLogger(ctx).Warn("embedding failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("delay", r.delay), zap.Error(err))
		timer := time.NewTimer(r.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", r.attempts, lastErr)
}

// permanent reports errors another attempt cannot fix.
func permanent(err error) bool {
	if errors.Is(err, ErrUnavailable) || errors.Is(err, appErr.ErrInvalidRequest) ||
		errors.Is(err, appErr.ErrConfig) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.HTTPStatusCode
		return code >= 400 && code < 500 && code != http.StatusTooManyRequests && code != http.StatusRequestTimeout
	}
	return false
}

func (r *retryEmbedder) ModelName() string {
	return r.next.ModelName()
}
