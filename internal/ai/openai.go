package ai

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultMaxTokens   = 256
	defaultTemperature = 0.7
)

type openAIConfig struct {
	APIKey      string   `json:"api_key"`
	BaseURL     string   `json:"base_url"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature *float32 `json:"temperature"`
}

type openAIProvider struct {
	name        string
	client      *openai.Client
	hasKey      bool
	maxTokens   int
	temperature float32
}

func (p *openAIProvider) Name() string {
	return p.name
}

func (p *openAIProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	if !p.hasKey {
		return "", ErrUnavailable
	}
	if strings.Contains(model, "instruct") {
		return p.complete(ctx, model, prompt)
	}
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s response has no choices", p.name)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// complete serves instruct models, which only speak the legacy completions
// endpoint.
func (p *openAIProvider) complete(ctx context.Context, model string, prompt string) (string, error) {
	resp, err := p.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       model,
		Prompt:      prompt,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s response has no choices", p.name)
	}
	return strings.TrimSpace(resp.Choices[0].Text), nil
}

func (p *openAIProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	if !p.hasKey {
		return nil, ErrUnavailable
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("%s embedding: %w", p.name, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%s response has no embeddings", p.name)
	}
	values := resp.Data[0].Embedding
	out := make([]float32, len(values))
	for i := range values {
		out[i] = float32(values[i])
	}
	return out, nil
}

func newOpenAICompatible(name string, cfg *openAIConfig, keyEnv string, defaultBaseURL string, httpClient *http.Client) *openAIProvider {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(keyEnv))
	}
	clientCfg := openai.DefaultConfig(key)
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.BaseURL = baseURL
	} else if defaultBaseURL != "" {
		clientCfg.BaseURL = defaultBaseURL
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	provider := &openAIProvider{
		name:        name,
		client:      openai.NewClientWithConfig(clientCfg),
		hasKey:      key != "",
		maxTokens:   cfg.MaxTokens,
		temperature: defaultTemperature,
	}
	if provider.maxTokens <= 0 {
		provider.maxTokens = defaultMaxTokens
	}
	if cfg.Temperature != nil {
		provider.temperature = *cfg.Temperature
	}
	return provider
}

func createOpenAIFactory(args interface{}) (IProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return newOpenAICompatible("openai", cfg, "OPENAI_API_KEY", "", nil), nil
}

func init() {
	Register("openai", createOpenAIFactory)
	Register("openai.com", createOpenAIFactory)
}
