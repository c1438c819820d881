package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/polymath/internal/library"
)

func vector(hot int) []float32 {
	v := make([]float32, library.ExpectedEmbeddingLength(library.EmbeddingModelID))
	v[hot] = 1
	return v
}

func mixed(weights map[int]float32) []float32 {
	v := make([]float32, library.ExpectedEmbeddingLength(library.EmbeddingModelID))
	for i, w := range weights {
		v[i] = w
	}
	return v
}

type fixtureChunk struct {
	id     string
	text   string
	tokens int
	vector []float32
	tag    string
}

func buildLibrary(t *testing.T, chunks ...fixtureChunk) *library.Library {
	t.Helper()
	lib := library.New(library.OmitNothing())
	for _, c := range chunks {
		tokens := c.tokens
		v := c.vector
		if v == nil {
			v = vector(0)
		}
		require.NoError(t, lib.SetChunk(c.id, &library.Chunk{
			Text:       c.text,
			Embedding:  v,
			TokenCount: &tokens,
			Info:       library.Info{"url": "https://example.com/" + c.id},
			AccessTag:  c.tag,
		}))
	}
	return lib
}

func intPtr(v int) *int {
	return &v
}
