package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/xxxsen/polymath/internal/library"
	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

type SortKind string

const (
	SortSimilarity SortKind = "similarity"
	SortAny        SortKind = "any"
	SortRandom     SortKind = "random"
)

var (
	legalSorts      = map[SortKind]bool{SortSimilarity: true, SortAny: true, SortRandom: true}
	legalCountTypes = map[CountType]bool{CountToken: true, CountChunk: true}
)

// DefaultOmit is applied when a request carries no omit value.
func DefaultOmit() library.Omit {
	omit, _ := library.OmitFields(library.FieldEmbedding)
	return omit
}

// Request is a normalized query. Build it with RawRequest.Normalize.
type Request struct {
	Version             *int
	QueryEmbedding      []float32
	QueryEmbeddingModel string
	Count               int
	CountType           CountType
	Sort                SortKind
	SortReversed        bool
	Seed                Seed
	Omit                library.Omit
	AccessToken         string
}

// Seed accepts a JSON number or string. The empty seed means "not seeded".
type Seed string

func (s *Seed) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = Seed(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("seed must be a number or string: %w", err)
	}
	*s = Seed(n.String())
	return nil
}

func (s Seed) IsSet() bool {
	return s != "" && s != "0"
}

// RawRequest is the wire form of a query, as posted by clients.
type RawRequest struct {
	Version             *int          `json:"version"`
	QueryEmbedding      string        `json:"query_embedding"`
	QueryEmbeddingModel string        `json:"query_embedding_model"`
	Count               int           `json:"count"`
	CountType           string        `json:"count_type"`
	Sort                string        `json:"sort"`
	SortReversed        bool          `json:"sort_reversed"`
	Seed                Seed          `json:"seed"`
	Omit                *library.Omit `json:"omit"`
	AccessToken         string        `json:"access_token"`
}

// RawRequestFromValues reads a form encoded query. Repeated omit values are
// treated as the list form.
func RawRequestFromValues(values url.Values) (*RawRequest, error) {
	raw := &RawRequest{
		QueryEmbedding:      values.Get("query_embedding"),
		QueryEmbeddingModel: values.Get("query_embedding_model"),
		CountType:           values.Get("count_type"),
		Sort:                values.Get("sort"),
		Seed:                Seed(values.Get("seed")),
		AccessToken:         values.Get("access_token"),
	}
	if v := strings.TrimSpace(values.Get("version")); v != "" {
		version, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: version must be an integer", appErr.ErrInvalidRequest)
		}
		raw.Version = &version
	}
	if v := strings.TrimSpace(values.Get("count")); v != "" {
		count, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: count must be an integer", appErr.ErrInvalidRequest)
		}
		raw.Count = count
	}
	if v := strings.TrimSpace(values.Get("sort_reversed")); v != "" {
		reversed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: sort_reversed must be a boolean", appErr.ErrInvalidRequest)
		}
		raw.SortReversed = reversed
	}
	if items, ok := values["omit"]; ok {
		var (
			omit library.Omit
			err  error
		)
		if len(items) == 1 {
			omit, err = library.ParseOmitString(items[0])
		} else {
			omit, err = library.ParseOmitList(items)
		}
		if err != nil {
			return nil, err
		}
		raw.Omit = &omit
	}
	return raw, nil
}

// Normalize applies defaults and checks everything that does not depend on
// the library being queried.
func (r *RawRequest) Normalize() (*Request, error) {
	req := &Request{
		Version:             r.Version,
		QueryEmbeddingModel: r.QueryEmbeddingModel,
		Count:               r.Count,
		CountType:           CountType(r.CountType),
		Sort:                SortKind(r.Sort),
		SortReversed:        r.SortReversed,
		Seed:                r.Seed,
		AccessToken:         r.AccessToken,
	}
	if req.CountType == "" {
		req.CountType = CountToken
	}
	if req.Sort == "" {
		req.Sort = SortSimilarity
	}
	if r.Omit != nil {
		req.Omit = *r.Omit
	} else {
		req.Omit = DefaultOmit()
	}
	if r.QueryEmbedding != "" {
		vector, err := library.DecodeVector(r.QueryEmbedding)
		if err != nil {
			return nil, fmt.Errorf("%w: query_embedding: %v", appErr.ErrInvalidRequest, err)
		}
		req.QueryEmbedding = vector
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *Request) Validate() error {
	if r.Count <= 0 {
		return fmt.Errorf("%w: count must be greater than 0", appErr.ErrInvalidRequest)
	}
	if r.Version == nil || *r.Version != library.CurrentVersion {
		return fmt.Errorf("%w: version must be set to %d", appErr.ErrInvalidRequest, library.CurrentVersion)
	}
	if r.QueryEmbedding != nil && r.QueryEmbeddingModel != library.EmbeddingModelID {
		return fmt.Errorf("%w: if query_embedding is passed, query_embedding_model must be %s but it was %q",
			appErr.ErrInvalidRequest, library.EmbeddingModelID, r.QueryEmbeddingModel)
	}
	if !legalSorts[r.Sort] {
		return fmt.Errorf("%w: sort %q is not one of similarity, any, random", appErr.ErrInvalidRequest, r.Sort)
	}
	if !legalCountTypes[r.CountType] {
		return fmt.Errorf("%w: count_type %q is not one of token, chunk", appErr.ErrInvalidRequest, r.CountType)
	}
	if r.QueryEmbedding != nil {
		if expected := library.ExpectedEmbeddingLength(r.QueryEmbeddingModel); len(r.QueryEmbedding) != expected {
			return fmt.Errorf("%w: query_embedding must have %d dimensions, got %d", appErr.ErrInvalidRequest, expected, len(r.QueryEmbedding))
		}
	}
	return nil
}
