package query

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strconv"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/polymath/internal/access"
	"github.com/xxxsen/polymath/internal/library"
	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

const restrictedMessagePrefix = "Restricted results were omitted. "

type Engine struct {
	resolver *access.Resolver
	budgeter *Budgeter
}

func NewEngine(resolver *access.Resolver, budgeter *Budgeter) *Engine {
	if budgeter == nil {
		budgeter = NewBudgeter(nil)
	}
	return &Engine{resolver: resolver, budgeter: budgeter}
}

// Query runs req against lib and returns a new library holding the visible
// selection. lib is never modified.
func (e *Engine) Query(ctx context.Context, lib *library.Library, req *Request) (*library.Library, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	omit := req.Omit
	for _, f := range lib.Omit().Fields() {
		if f != library.FieldSimilarity {
			omit = omit.With(f)
		}
	}
	ids, scores, err := e.order(lib, req)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: sort %s resolved to no chunks", appErr.ErrInvalidRequest, req.Sort)
	}
	if req.Sort == SortRandom {
		omit = omit.With(library.FieldEmbedding, library.FieldSimilarity)
	}
	if req.SortReversed {
		for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
			ids[i], ids[j] = ids[j], ids[i]
		}
	}
	selection := e.budgeter.Select(ids, lib, req.Count, req.CountType)

	resolution, err := e.resolver.Resolve(ctx, req.AccessToken)
	if err != nil {
		return nil, err
	}

	result := library.New(omit)
	included, restricted := 0, 0
	for _, id := range selection.IDs {
		chunk := lib.Chunk(id)
		if !resolution.Visible(chunk.AccessTag) {
			restricted++
			continue
		}
		included++
		if omit.WholeChunk() {
			continue
		}
		chunk.Text = selection.Texts[id]
		chunk.Similarity = nil
		if scores != nil {
			score := scores[id]
			chunk.Similarity = &score
		}
		if err := result.SetChunk(id, chunk); err != nil {
			return nil, fmt.Errorf("%w: assemble response: %v", appErr.ErrInternal, err)
		}
	}
	result.SetCountChunks(included)
	if resolution.IncludeRestrictedCount {
		result.SetCountRestricted(restricted)
	}
	if resolution.RestrictedMessage != "" && restricted > 0 {
		result.SetMessage(restrictedMessagePrefix + resolution.RestrictedMessage)
	}
	logutil.GetLogger(ctx).Debug("query finished",
		zap.String("sort", string(req.Sort)),
		zap.Bool("reversed", req.SortReversed),
		zap.Int("candidates", len(ids)),
		zap.Int("selected", len(selection.IDs)),
		zap.Int("included", included),
		zap.Int("restricted", restricted))
	return result, nil
}

// order resolves the candidate ids. scores is only set for similarity
// ordering.
func (e *Engine) order(lib *library.Library, req *Request) ([]string, map[string]float64, error) {
	switch req.Sort {
	case SortSimilarity:
		if req.QueryEmbedding == nil {
			return nil, nil, fmt.Errorf("%w: sort similarity requires a query_embedding", appErr.ErrInvalidRequest)
		}
		ranked, err := Rank(req.QueryEmbedding, lib)
		if err != nil {
			return nil, nil, err
		}
		ids := make([]string, 0, len(ranked))
		scores := make(map[string]float64, len(ranked))
		for _, item := range ranked {
			ids = append(ids, item.ID)
			scores[item.ID] = item.Score
		}
		return ids, scores, nil
	case SortRandom:
		ids := lib.ChunkIDs()
		shuffle(ids, req.Seed)
		return ids, nil, nil
	case SortAny:
		return lib.ChunkIDs(), nil, nil
	}
	return nil, nil, fmt.Errorf("%w: invalid type of sort was specified", appErr.ErrInvalidRequest)
}

func shuffle(ids []string, seed Seed) {
	swap := func(i, j int) { ids[i], ids[j] = ids[j], ids[i] }
	if !seed.IsSet() {
		rand.Shuffle(len(ids), swap)
		return
	}
	s := seedValue(seed)
	rand.New(rand.NewPCG(s, s)).Shuffle(len(ids), swap)
}

func seedValue(seed Seed) uint64 {
	if n, err := strconv.ParseInt(string(seed), 10, 64); err == nil {
		return uint64(n)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	return h.Sum64()
}
