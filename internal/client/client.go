package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/xxxsen/polymath/internal/library"
	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

const (
	DefaultConfigFile = "client.SECRET.json"
	// DefaultCount is the token budget asked from each server.
	DefaultCount = 1500
)

type ServerConfig struct {
	Endpoint    string `json:"endpoint"`
	DevEndpoint string `json:"dev_endpoint"`
	Token       string `json:"token"`
}

type Config struct {
	Servers map[string]ServerConfig `json:"servers"`
}

// LoadConfig reads the client configuration. A missing file is an empty
// configuration.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{Servers: map[string]ServerConfig{}}, nil
		}
		return nil, fmt.Errorf("read client config: %w", err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: decode client config: %v", appErr.ErrConfig, err)
	}
	if cfg.Servers == nil {
		cfg.Servers = map[string]ServerConfig{}
	}
	return cfg, nil
}

// Targets resolves the servers to query. Names present in the config use
// its endpoint (dev_endpoint when dev is set) and token; anything else is
// taken as a raw endpoint without a token. No names means every configured
// server, in name order.
func (c *Config) Targets(names []string, dev bool) []Target {
	if len(names) == 0 {
		for name := range c.Servers {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	out := make([]Target, 0, len(names))
	for _, name := range names {
		server, ok := c.Servers[name]
		if !ok {
			out = append(out, Target{Name: name, Endpoint: name})
			continue
		}
		endpoint := server.Endpoint
		if dev && server.DevEndpoint != "" {
			endpoint = server.DevEndpoint
		}
		out = append(out, Target{Name: name, Endpoint: endpoint, Token: server.Token})
	}
	return out
}

type Target struct {
	Name     string
	Endpoint string
	Token    string
}

type Client struct {
	target Target
	http   *http.Client
	count  int
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func WithCount(count int) Option {
	return func(cl *Client) {
		cl.count = count
	}
}

func New(target Target, opts ...Option) *Client {
	c := &Client{
		target: target,
		http:   &http.Client{Timeout: 60 * time.Second},
		count:  DefaultCount,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string {
	return c.target.Name
}

type queryBody struct {
	Version             int    `json:"version"`
	AccessToken         string `json:"access_token"`
	QueryEmbeddingModel string `json:"query_embedding_model"`
	Count               int    `json:"count"`
	QueryEmbedding      string `json:"query_embedding,omitempty"`
	Sort                string `json:"sort,omitempty"`
}

// Query asks the server for context. A nil vector requests a random
// selection instead of a similarity ranking.
func (c *Client) Query(ctx context.Context, vector []float32) (*library.Library, error) {
	body := queryBody{
		Version:             library.CurrentVersion,
		AccessToken:         c.target.Token,
		QueryEmbeddingModel: library.EmbeddingModelID,
		Count:               c.count,
	}
	if vector == nil {
		body.Sort = "random"
	} else {
		body.QueryEmbedding = library.EncodeVector(vector)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target.Endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", appErr.ErrUnavailable, c.target.Name, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", c.target.Name, err)
	}
	var probe struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %s returned %s: %s", appErr.ErrUnavailable, c.target.Name, resp.Status, strings.TrimSpace(string(raw)))
	}
	if probe.Error != nil {
		return nil, fmt.Errorf("%w: server %s returned an error: %s", appErr.ErrUnavailable, c.target.Name, *probe.Error)
	}
	lib, err := library.Load(raw)
	if err != nil {
		return nil, fmt.Errorf("response from %s: %w", c.target.Name, err)
	}
	return lib, nil
}
