package query

import (
	"fmt"
	"sort"

	"github.com/xxxsen/polymath/internal/library"
	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

type Scored struct {
	ID    string
	Score float64
}

// Rank scores every chunk by the dot product of its embedding with vector
// and orders them highest first. Equal scores are ordered by id, highest
// first, which keeps results identical to earlier deployments.
func Rank(vector []float32, lib *library.Library) ([]Scored, error) {
	out := make([]Scored, 0, lib.Len())
	var err error
	lib.Each(func(id string, c *library.Chunk) {
		if err != nil {
			return
		}
		if c.Embedding == nil {
			err = fmt.Errorf("%w: chunk %s has no embedding to rank", appErr.ErrInvalidRequest, id)
			return
		}
		if len(c.Embedding) != len(vector) {
			err = fmt.Errorf("%w: query embedding has %d dimensions, chunk %s has %d", appErr.ErrInvalidRequest, len(vector), id, len(c.Embedding))
			return
		}
		out = append(out, Scored{ID: id, Score: dot(vector, c.Embedding)})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// dot assumes both vectors are unit length, so it stands in for cosine
// similarity.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
