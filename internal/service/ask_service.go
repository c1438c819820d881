package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/polymath/internal/ai"
	"github.com/xxxsen/polymath/internal/library"
	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
	"github.com/xxxsen/polymath/internal/query"
)

// DefaultContextTokens is the token budget for context gathered from the
// local library.
const DefaultContextTokens = 2048

type LibraryGetter interface {
	Current() *library.Library
}

// RemoteQuerier fetches context from another server.
type RemoteQuerier interface {
	Name() string
	Query(ctx context.Context, vector []float32) (*library.Library, error)
}

type AskRequest struct {
	Question     string
	ContextQuery string
	AccessToken  string
	// Random picks context at random instead of by similarity; nothing is
	// embedded.
	Random bool
}

type AskResult struct {
	Answer  string         `json:"answer"`
	Sources []library.Info `json:"sources"`
	// Messages carries notices from remote servers, such as omitted
	// restricted results.
	Messages []string `json:"messages,omitempty"`
	Context  []string `json:"-"`
}

// Retrieved is the context gathered for a question.
type Retrieved struct {
	Library  *library.Library
	Messages []string
}

type AskService struct {
	libraries LibraryGetter
	remotes   []RemoteQuerier
	engine    *query.Engine
	embedder  ai.IEmbedder
	answerer  *ai.Answerer
	budget    int
}

type AskOption func(*AskService)

func WithRemotes(remotes ...RemoteQuerier) AskOption {
	return func(s *AskService) {
		s.remotes = append(s.remotes, remotes...)
	}
}

func WithContextBudget(tokens int) AskOption {
	return func(s *AskService) {
		s.budget = tokens
	}
}

// NewAskService builds the retrieval plus completion flow. libraries may be
// nil when only remote servers are queried.
func NewAskService(libraries LibraryGetter, engine *query.Engine, embedder ai.IEmbedder, answerer *ai.Answerer, opts ...AskOption) *AskService {
	s := &AskService{
		libraries: libraries,
		engine:    engine,
		embedder:  embedder,
		answerer:  answerer,
		budget:    DefaultContextTokens,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retrieve gathers the context library for req without calling the
// completion model. An empty local library is skipped so remote servers
// can still answer.
func (s *AskService) Retrieve(ctx context.Context, req AskRequest) (*Retrieved, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", appErr.ErrInvalidRequest)
	}
	var vector []float32
	if !req.Random {
		contextQuery := strings.TrimSpace(req.ContextQuery)
		if contextQuery == "" {
			contextQuery = question
		}
		if s.embedder == nil {
			return nil, fmt.Errorf("%w: embedder not configured", ai.ErrUnavailable)
		}
		var err error
		vector, err = s.embedder.Embed(ctx, contextQuery, ai.TaskRetrievalQuery)
		if err != nil {
			return nil, err
		}
	}
	out := &Retrieved{Library: library.New(query.DefaultOmit())}
	if s.libraries != nil {
		if local := s.libraries.Current(); local.Len() > 0 {
			res, err := s.engine.Query(ctx, local, s.localRequest(vector, req.AccessToken))
			if err != nil {
				return nil, err
			}
			if err := out.Library.Extend(res); err != nil {
				return nil, err
			}
		}
	}
	for _, remote := range s.remotes {
		res, err := remote.Query(ctx, vector)
		if err != nil {
			return nil, err
		}
		if err := out.Library.Extend(res); err != nil {
			return nil, fmt.Errorf("merge context from %s: %w", remote.Name(), err)
		}
		if msg := res.Message(); msg != "" {
			out.Messages = append(out.Messages, remote.Name()+" said: "+msg)
		}
		logutil.GetLogger(ctx).Debug("remote context merged", zap.String("server", remote.Name()), zap.Int("chunks", res.Len()))
	}
	return out, nil
}

func (s *AskService) localRequest(vector []float32, token string) *query.Request {
	version := library.CurrentVersion
	req := &query.Request{
		Version:     &version,
		Count:       s.budget,
		CountType:   query.CountToken,
		Sort:        query.SortRandom,
		Omit:        query.DefaultOmit(),
		AccessToken: token,
	}
	if vector != nil {
		req.Sort = query.SortSimilarity
		req.QueryEmbedding = vector
		req.QueryEmbeddingModel = library.EmbeddingModelID
	}
	return req
}

func (s *AskService) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	retrieved, err := s.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}
	contexts := retrieved.Library.Texts()
	if s.answerer == nil {
		return nil, fmt.Errorf("%w: generator not configured", ai.ErrUnavailable)
	}
	answer, err := s.answerer.Answer(ctx, strings.TrimSpace(req.Question), contexts)
	if err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("question answered", zap.Int("context_chunks", len(contexts)), zap.Bool("random", req.Random))
	return &AskResult{
		Answer:   answer,
		Sources:  retrieved.Library.UniqueInfos(),
		Messages: retrieved.Messages,
		Context:  contexts,
	}, nil
}
