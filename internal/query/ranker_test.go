package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/polymath/internal/library"
	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

func TestRankOrdersByDotProduct(t *testing.T) {
	lib := buildLibrary(t,
		fixtureChunk{id: "b", text: "b", tokens: 1, vector: vector(1)},
		fixtureChunk{id: "a", text: "a", tokens: 1, vector: vector(0)},
	)
	ranked, err := Rank(vector(0), lib)
	require.NoError(t, err)
	require.Equal(t, []Scored{{ID: "a", Score: 1}, {ID: "b", Score: 0}}, ranked)
}

func TestRankBreaksTiesByIDDescending(t *testing.T) {
	lib := buildLibrary(t,
		fixtureChunk{id: "m", text: "m", tokens: 1, vector: vector(1)},
		fixtureChunk{id: "z", text: "z", tokens: 1, vector: vector(1)},
		fixtureChunk{id: "a", text: "a", tokens: 1, vector: vector(1)},
		fixtureChunk{id: "top", text: "top", tokens: 1, vector: mixed(map[int]float32{0: 0.5, 1: 0.5})},
	)
	ranked, err := Rank(vector(0), lib)
	require.NoError(t, err)
	ids := make([]string, 0, len(ranked))
	for _, item := range ranked {
		ids = append(ids, item.ID)
	}
	require.Equal(t, []string{"top", "z", "m", "a"}, ids)
}

func TestRankRejectsDimensionMismatch(t *testing.T) {
	lib := buildLibrary(t, fixtureChunk{id: "a", text: "a", tokens: 1})
	_, err := Rank([]float32{1, 0}, lib)
	require.True(t, errors.Is(err, appErr.ErrInvalidRequest))
}

func TestRankRejectsMissingEmbedding(t *testing.T) {
	omit, err := library.OmitFields(library.FieldEmbedding)
	require.NoError(t, err)
	lib := library.New(omit)
	tokens := 1
	require.NoError(t, lib.SetChunk("a", &library.Chunk{Text: "a", TokenCount: &tokens, Info: library.Info{"url": "u"}}))
	_, err = Rank(vector(0), lib)
	require.True(t, errors.Is(err, appErr.ErrInvalidRequest))
}
