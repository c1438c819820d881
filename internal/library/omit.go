package library

import (
	"encoding/json"
	"fmt"
	"strings"

	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

type Field string

const (
	FieldText       Field = "text"
	FieldEmbedding  Field = "embedding"
	FieldTokenCount Field = "token_count"
	FieldInfo       Field = "info"
	FieldAccessTag  Field = "access_tag"
	FieldSimilarity Field = "similarity"
)

const omitWholeChunkKey = "*"

var omittableFields = map[Field]bool{
	FieldSimilarity: true,
	FieldEmbedding:  true,
	FieldTokenCount: true,
	FieldInfo:       true,
	FieldAccessTag:  true,
}

// Omit is the normalized omit policy: nothing, a set of fields, or the whole
// chunk. The zero value omits nothing.
type Omit struct {
	whole  bool
	fields []Field
}

func OmitNothing() Omit {
	return Omit{}
}

func OmitWholeChunk() Omit {
	return Omit{whole: true}
}

func OmitFields(fields ...Field) (Omit, error) {
	items := make([]string, 0, len(fields))
	for _, f := range fields {
		items = append(items, string(f))
	}
	return ParseOmitList(items)
}

// ParseOmitString parses the comma separated form ("embedding,similarity").
func ParseOmitString(value string) (Omit, error) {
	return ParseOmitList(strings.Split(value, ","))
}

// ParseOmitList parses the list form. "" and "*" must appear alone.
func ParseOmitList(items []string) (Omit, error) {
	if len(items) == 0 {
		return Omit{}, nil
	}
	var out Omit
	seen := make(map[Field]bool, len(items))
	for _, item := range items {
		switch {
		case item == "":
			if len(items) != 1 {
				return Omit{}, fmt.Errorf("%w: if '' is provided it must be the only omit item", appErr.ErrInvalidRequest)
			}
		case item == omitWholeChunkKey:
			if len(items) != 1 {
				return Omit{}, fmt.Errorf("%w: if '*' is provided it must be the only omit item", appErr.ErrInvalidRequest)
			}
			out.whole = true
		case omittableFields[Field(item)]:
			if !seen[Field(item)] {
				seen[Field(item)] = true
				out.fields = append(out.fields, Field(item))
			}
		default:
			return Omit{}, fmt.Errorf("%w: illegal omit key %q", appErr.ErrInvalidRequest, item)
		}
	}
	return out, nil
}

func (o Omit) WholeChunk() bool {
	return o.whole
}

func (o Omit) Omits(f Field) bool {
	for _, item := range o.fields {
		if item == f {
			return true
		}
	}
	return false
}

func (o Omit) Fields() []Field {
	out := make([]Field, len(o.fields))
	copy(out, o.fields)
	return out
}

func (o Omit) IsZero() bool {
	return !o.whole && len(o.fields) == 0
}

// With returns the policy that additionally omits fields. A whole-chunk
// policy already omits everything and is returned unchanged.
func (o Omit) With(fields ...Field) Omit {
	if o.whole {
		return o
	}
	out := Omit{fields: o.Fields()}
	for _, f := range fields {
		if !omittableFields[f] || out.Omits(f) {
			continue
		}
		out.fields = append(out.fields, f)
	}
	return out
}

func (o Omit) String() string {
	if o.whole {
		return omitWholeChunkKey
	}
	items := make([]string, 0, len(o.fields))
	for _, f := range o.fields {
		items = append(items, string(f))
	}
	return strings.Join(items, ",")
}

// MarshalJSON writes the canonical configuration: a single string when there
// is at most one item, a list otherwise.
func (o Omit) MarshalJSON() ([]byte, error) {
	if o.whole || len(o.fields) <= 1 {
		return json.Marshal(o.String())
	}
	items := make([]string, 0, len(o.fields))
	for _, f := range o.fields {
		items = append(items, string(f))
	}
	return json.Marshal(items)
}

func (o *Omit) UnmarshalJSON(data []byte) error {
	var err error
	var parsed Omit
	switch trimmed := strings.TrimSpace(string(data)); {
	case trimmed == "null":
		parsed = Omit{}
	case strings.HasPrefix(trimmed, "["):
		var items []string
		if err = json.Unmarshal(data, &items); err != nil {
			return err
		}
		parsed, err = ParseOmitList(items)
	default:
		var value string
		if err = json.Unmarshal(data, &value); err != nil {
			return err
		}
		parsed, err = ParseOmitString(value)
	}
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
