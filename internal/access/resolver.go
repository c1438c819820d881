package access

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/polymath/internal/library"
	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

// Resolution is what a bearer token unlocks plus how restricted results are
// reported back.
type Resolution struct {
	AllowedTags            map[string]struct{}
	IncludeRestrictedCount bool
	RestrictedMessage      string
}

// Visible reports whether a chunk carrying tag may be returned. Untagged
// chunks are always visible.
func (r Resolution) Visible(tag string) bool {
	if tag == "" {
		return true
	}
	_, ok := r.AllowedTags[tag]
	return ok
}

type Resolver struct {
	provider Provider
}

func NewResolver(provider Provider) *Resolver {
	return &Resolver{provider: provider}
}

func (r *Resolver) Resolve(ctx context.Context, token string) (Resolution, error) {
	res := Resolution{AllowedTags: map[string]struct{}{}}
	if r == nil || r.provider == nil {
		return res, nil
	}
	cfg, err := r.provider.Load(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %v", appErr.ErrConfig, err)
	}
	if cfg == nil {
		return res, nil
	}
	res.IncludeRestrictedCount, res.RestrictedMessage = cfg.policy()
	if token == "" {
		return res, nil
	}
	if cfg.Tokens == nil {
		return Resolution{}, fmt.Errorf("%w: trust configuration does not contain a tokens table", appErr.ErrConfig)
	}
	privateTag := cfg.DefaultPrivateAccessTag
	if privateTag == "" {
		privateTag = library.DefaultPrivateAccessTag
	}
	for _, userID := range cfg.userIDs() {
		record := cfg.Tokens[userID]
		if record == nil || record.Token == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(record.Token), []byte(token)) != 1 {
			continue
		}
		tags := record.AccessTags
		if tags == nil {
			tags = []string{privateTag}
		}
		for _, tag := range tags {
			res.AllowedTags[tag] = struct{}{}
		}
		logutil.GetLogger(ctx).Debug("access token resolved", zap.String("user_id", userID), zap.Int("tags", len(res.AllowedTags)))
		return res, nil
	}
	return res, nil
}
