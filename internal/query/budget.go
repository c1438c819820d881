package query

import (
	"github.com/xxxsen/polymath/internal/library"
)

type CountType string

const (
	CountToken CountType = "token"
	CountChunk CountType = "chunk"
)

// TokenCounter is used for chunks that carry no token_count.
type TokenCounter func(text string) int

type Budgeter struct {
	countTokens TokenCounter
}

func NewBudgeter(counter TokenCounter) *Budgeter {
	return &Budgeter{countTokens: counter}
}

type Selection struct {
	IDs   []string
	Texts map[string]string
}

func (s *Selection) add(id, text string) {
	s.IDs = append(s.IDs, id)
	s.Texts[id] = text
}

// Select walks ids in order and keeps chunk texts until limit is reached. A
// negative limit means no limit. With a token budget the first chunk alone
// may exceed it; it is then cut to limit characters, which only
// approximates a token limit. Separators between chunks are not counted.
func (b *Budgeter) Select(ids []string, lib *library.Library, limit int, kind CountType) *Selection {
	sel := &Selection{Texts: make(map[string]string)}
	total := 0
	for _, id := range ids {
		if kind == CountChunk && limit >= 0 && len(sel.IDs) >= limit {
			break
		}
		text, ok := lib.Text(id)
		if !ok {
			continue
		}
		total += b.tokens(lib, id, text)
		if kind != CountChunk && limit >= 0 && total > limit {
			if len(sel.IDs) == 0 {
				sel.add(id, truncate(text, limit))
			}
			break
		}
		sel.add(id, text)
	}
	return sel
}

func (b *Budgeter) tokens(lib *library.Library, id, text string) int {
	if n, ok := lib.TokenCount(id); ok {
		return n
	}
	if b == nil || b.countTokens == nil {
		return 0
	}
	return b.countTokens(text)
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if limit >= len(runes) {
		return text
	}
	return string(runes[:limit])
}
