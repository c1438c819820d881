package config

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"

	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

const (
	defaultAccessFile        = "host.SECRET.json"
	defaultLibraryReloadSpec = "*/10 * * * *"
	defaultCacheCleanupSpec  = "0 3 * * *"
	defaultCacheKeepDays     = 30
	defaultLRUSize           = 1024
	defaultLRUTTLSeconds     = 3600
	defaultAITimeoutSeconds  = 60
	defaultRetryAttempts     = 10
	defaultRetryDelaySeconds = 20
	defaultRateLimitMs       = 200
	defaultCompletionModel   = "gpt-3.5-turbo-instruct"
)

type Config struct {
	Port          int              `json:"port"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Libraries     []LibraryConfig  `json:"libraries"`
	Access        AccessConfig     `json:"access"`
	AI            AIConfig         `json:"ai"`
	EmbedCache    EmbedCacheConfig `json:"embed_cache"`
	Schedule      ScheduleConfig   `json:"schedule"`
	CORSAllowlist []string         `json:"cors_allowlist"`
	RateLimitMs   int              `json:"rate_limit_ms"`

	// TrustedProxies lists peers whose X-Forwarded-For and X-Real-IP
	// headers are believed when keying the rate limiter.
	TrustedProxies []string `json:"trusted_proxies"`
}

// LibraryConfig is one source of library documents. Every *.json object in
// the store is loaded and stamped with AccessTag, or with the default
// private tag when Private is set.
type LibraryConfig struct {
	Name      string          `json:"name"`
	FileStore FileStoreConfig `json:"file_store"`
	Prefix    string          `json:"prefix"`
	AccessTag string          `json:"access_tag"`
	Private   bool            `json:"private"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AccessConfig struct {
	File string `json:"file"`
	// ReloadSpec caches the trust configuration and refreshes it on this
	// schedule. Empty means the file is read on every request.
	ReloadSpec string `json:"reload_spec"`
}

type AIConfig struct {
	Provider        string      `json:"provider"`
	Data            interface{} `json:"data"`
	EmbedModelID    string      `json:"embed_model_id"`
	CompletionModel string      `json:"completion_model"`
	Timeout         int         `json:"timeout"`
	MaxInputChars   int         `json:"max_input_chars"`
	Retry           RetryConfig `json:"retry"`
	// Fallbacks are tried in order when the primary provider fails.
	Fallbacks []AIFallbackConfig `json:"fallbacks"`
}

type AIFallbackConfig struct {
	Provider        string      `json:"provider"`
	Data            interface{} `json:"data"`
	CompletionModel string      `json:"completion_model"`
}

type RetryConfig struct {
	Attempts     int `json:"attempts"`
	DelaySeconds int `json:"delay_seconds"`
}

type EmbedCacheConfig struct {
	LRUSize       int      `json:"lru_size"`
	LRUTTLSeconds int      `json:"lru_ttl_seconds"`
	DB            DBConfig `json:"db"`
	KeepDays      int      `json:"keep_days"`
}

type DBConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

type ScheduleConfig struct {
	LibraryReload string `json:"library_reload"`
	CacheCleanup  string `json:"cache_cleanup"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config: %v", appErr.ErrConfig, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used by the one-shot commands when no
// config file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.Access.File == "" {
		c.Access.File = defaultAccessFile
	}
	if c.AI.Provider == "" {
		c.AI.Provider = "openai"
	}
	if c.AI.CompletionModel == "" {
		c.AI.CompletionModel = defaultCompletionModel
	}
	for i := range c.AI.Fallbacks {
		if c.AI.Fallbacks[i].CompletionModel == "" {
			c.AI.Fallbacks[i].CompletionModel = c.AI.CompletionModel
		}
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = defaultAITimeoutSeconds
	}
	if c.AI.Retry.Attempts <= 0 {
		c.AI.Retry.Attempts = defaultRetryAttempts
	}
	if c.AI.Retry.DelaySeconds < 0 {
		c.AI.Retry.DelaySeconds = 0
	} else if c.AI.Retry.DelaySeconds == 0 {
		c.AI.Retry.DelaySeconds = defaultRetryDelaySeconds
	}
	if c.EmbedCache.LRUSize == 0 {
		c.EmbedCache.LRUSize = defaultLRUSize
	}
	if c.EmbedCache.LRUTTLSeconds == 0 {
		c.EmbedCache.LRUTTLSeconds = defaultLRUTTLSeconds
	}
	if c.EmbedCache.KeepDays <= 0 {
		c.EmbedCache.KeepDays = defaultCacheKeepDays
	}
	if c.Schedule.LibraryReload == "" {
		c.Schedule.LibraryReload = defaultLibraryReloadSpec
	}
	if c.Schedule.CacheCleanup == "" {
		c.Schedule.CacheCleanup = defaultCacheCleanupSpec
	}
	if c.RateLimitMs == 0 {
		c.RateLimitMs = defaultRateLimitMs
	}
	for i := range c.Libraries {
		lib := &c.Libraries[i]
		if lib.FileStore.Type == "" {
			lib.FileStore.Type = "local"
		}
		if lib.Name == "" {
			lib.Name = fmt.Sprintf("library-%d", i)
		}
	}
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port is required", appErr.ErrConfig)
	}
	if len(c.Libraries) == 0 {
		return fmt.Errorf("%w: at least one library source is required", appErr.ErrConfig)
	}
	seen := make(map[string]bool, len(c.Libraries))
	for _, lib := range c.Libraries {
		if seen[lib.Name] {
			return fmt.Errorf("%w: duplicate library name %q", appErr.ErrConfig, lib.Name)
		}
		seen[lib.Name] = true
		switch strings.ToLower(lib.FileStore.Type) {
		case "local", "s3":
		default:
			return fmt.Errorf("%w: library %s: file_store.type must be local or s3", appErr.ErrConfig, lib.Name)
		}
		if lib.Private && lib.AccessTag != "" {
			return fmt.Errorf("%w: library %s: private and access_tag are mutually exclusive", appErr.ErrConfig, lib.Name)
		}
	}
	for _, item := range c.TrustedProxies {
		if !validProxy(strings.TrimSpace(item)) {
			return fmt.Errorf("%w: trusted_proxies: %q is not an address or cidr", appErr.ErrConfig, item)
		}
	}
	for i, fb := range c.AI.Fallbacks {
		if strings.TrimSpace(fb.Provider) == "" {
			return fmt.Errorf("%w: ai.fallbacks[%d].provider is required", appErr.ErrConfig, i)
		}
	}
	if driver := c.EmbedCache.DB.Driver; driver != "" {
		if driver != "postgres" && driver != "sqlite" {
			return fmt.Errorf("%w: embed_cache.db.driver must be postgres or sqlite", appErr.ErrConfig)
		}
		if c.EmbedCache.DB.DSN == "" {
			return fmt.Errorf("%w: embed_cache.db.dsn is required", appErr.ErrConfig)
		}
	}
	return nil
}

func validProxy(item string) bool {
	if _, err := netip.ParsePrefix(item); err == nil {
		return true
	}
	_, err := netip.ParseAddr(item)
	return err == nil
}
