package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

const answerPromptTemplate = "Answer the question as truthfully as possible using the provided context, " +
	"and if the answer is not contained within the text below, say \"I don't know.\"\n\n" +
	"Context:\n%s \n\nQuestion:\n%s\n\nAnswer:"

func AnswerPrompt(question string, contexts []string) string {
	return fmt.Sprintf(answerPromptTemplate, strings.Join(contexts, "\n\n"), question)
}

type AnswererConfig struct {
	Timeout       time.Duration
	MaxInputChars int
}

// Answerer asks the generator a question grounded on retrieved context.
type Answerer struct {
	gen IGenerator
	cfg AnswererConfig
}

func NewAnswerer(gen IGenerator, cfg AnswererConfig) *Answerer {
	return &Answerer{gen: gen, cfg: cfg}
}

func (a *Answerer) Answer(ctx context.Context, question string, contexts []string) (string, error) {
	if a.gen == nil {
		return "", fmt.Errorf("%w: generator not configured", ErrUnavailable)
	}
	prompt := AnswerPrompt(question, contexts)
	if a.cfg.MaxInputChars > 0 {
		if runes := []rune(prompt); len(runes) > a.cfg.MaxInputChars {
			return "", fmt.Errorf("%w: prompt has %d characters, limit is %d", appErr.ErrInvalidRequest, len(runes), a.cfg.MaxInputChars)
		}
	}
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}
	resp, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}
