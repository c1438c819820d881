package access

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Provider hands out the current trust configuration. A nil config with a
// nil error means no configuration is present.
type Provider interface {
	Load(ctx context.Context) (*Config, error)
}

// FileProvider reads the file on every call, so the latest write is always
// observed by the next check.
type FileProvider struct {
	path string
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

func (p *FileProvider) Load(ctx context.Context) (*Config, error) {
	if p.path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read trust configuration: %w", err)
	}
	return ParseConfig(data)
}

type StaticProvider struct {
	cfg *Config
}

func NewStaticProvider(cfg *Config) *StaticProvider {
	return &StaticProvider{cfg: cfg}
}

func (p *StaticProvider) Load(ctx context.Context) (*Config, error) {
	return p.cfg, nil
}

// CachedProvider serves the last successfully loaded configuration. Changes
// become visible after the next Reload, so staleness is bounded by the
// reload schedule.
type CachedProvider struct {
	next    Provider
	current atomic.Pointer[Config]
}

func NewCachedProvider(ctx context.Context, next Provider) (*CachedProvider, error) {
	p := &CachedProvider{next: next}
	if err := p.Reload(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *CachedProvider) Load(ctx context.Context) (*Config, error) {
	return p.current.Load(), nil
}

func (p *CachedProvider) Reload(ctx context.Context) error {
	cfg, err := p.next.Load(ctx)
	if err != nil {
		logutil.GetLogger(ctx).Error("reload trust configuration failed, keeping previous", zap.Error(err))
		return err
	}
	p.current.Store(cfg)
	tokens := 0
	if cfg != nil {
		tokens = len(cfg.Tokens)
	}
	logutil.GetLogger(ctx).Info("trust configuration reloaded", zap.Bool("present", cfg != nil), zap.Int("users", tokens))
	return nil
}
