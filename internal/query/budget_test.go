package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/polymath/internal/library"
)

func threeChunks(t *testing.T) *library.Library {
	return buildLibrary(t,
		fixtureChunk{id: "a", text: "alpha", tokens: 5},
		fixtureChunk{id: "b", text: "bravo", tokens: 5},
		fixtureChunk{id: "c", text: "charlie", tokens: 5},
	)
}

func TestSelectTokenBudget(t *testing.T) {
	lib := threeChunks(t)
	sel := NewBudgeter(nil).Select([]string{"a", "b", "c"}, lib, 12, CountToken)
	require.Equal(t, []string{"a", "b"}, sel.IDs)
	require.Equal(t, "alpha", sel.Texts["a"])
	require.Equal(t, "bravo", sel.Texts["b"])
}

func TestSelectExactFit(t *testing.T) {
	lib := threeChunks(t)
	sel := NewBudgeter(nil).Select([]string{"a", "b", "c"}, lib, 10, CountToken)
	require.Equal(t, []string{"a", "b"}, sel.IDs)
}

func TestSelectTruncatesOversizedFirstChunk(t *testing.T) {
	lib := threeChunks(t)
	sel := NewBudgeter(nil).Select([]string{"a", "b", "c"}, lib, 3, CountToken)
	require.Equal(t, []string{"a"}, sel.IDs)
	require.Equal(t, "alp", sel.Texts["a"])
}

func TestSelectTruncatesByRunes(t *testing.T) {
	lib := buildLibrary(t, fixtureChunk{id: "a", text: "héllo wörld", tokens: 9})
	sel := NewBudgeter(nil).Select([]string{"a"}, lib, 4, CountToken)
	require.Equal(t, "héll", sel.Texts["a"])
}

func TestSelectChunkBudget(t *testing.T) {
	lib := threeChunks(t)
	sel := NewBudgeter(nil).Select([]string{"c", "a", "b"}, lib, 2, CountChunk)
	require.Equal(t, []string{"c", "a"}, sel.IDs)
	require.Equal(t, "charlie", sel.Texts["c"])
}

func TestSelectNegativeLimitIsUnlimited(t *testing.T) {
	lib := threeChunks(t)
	require.Len(t, NewBudgeter(nil).Select([]string{"a", "b", "c"}, lib, -1, CountToken).IDs, 3)
	require.Len(t, NewBudgeter(nil).Select([]string{"a", "b", "c"}, lib, -1, CountChunk).IDs, 3)
}

func TestSelectUsesCounterWhenTokenCountMissing(t *testing.T) {
	omit, err := library.OmitFields(library.FieldTokenCount)
	require.NoError(t, err)
	lib := library.New(omit)
	for _, id := range []string{"a", "b"} {
		require.NoError(t, lib.SetChunk(id, &library.Chunk{
			Text:      "one two three",
			Embedding: vector(0),
			Info:      library.Info{"url": "https://example.com/" + id},
		}))
	}
	calls := 0
	counter := func(text string) int {
		calls++
		return 3
	}
	sel := NewBudgeter(counter).Select([]string{"a", "b"}, lib, 5, CountToken)
	require.Equal(t, []string{"a"}, sel.IDs)
	require.Equal(t, 2, calls)
}

func TestSelectSkipsUnknownIDs(t *testing.T) {
	lib := threeChunks(t)
	sel := NewBudgeter(nil).Select([]string{"missing", "a"}, lib, 2, CountChunk)
	require.Equal(t, []string{"a"}, sel.IDs)
}
