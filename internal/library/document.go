package library

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is the wire form of a library.
type Document struct {
	Version        int      `json:"version"`
	EmbeddingModel string   `json:"embedding_model"`
	Content        Content  `json:"content"`
	Omit           Omit     `json:"omit"`
	Details        *Details `json:"details,omitempty"`
}

type ChunkDocument struct {
	Text       *string  `json:"text,omitempty"`
	Embedding  *string  `json:"embedding,omitempty"`
	TokenCount *int     `json:"token_count,omitempty"`
	Info       Info     `json:"info,omitempty"`
	AccessTag  *string  `json:"access_tag,omitempty"`
	Similarity *float64 `json:"similarity,omitempty"`
}

type Counts struct {
	Chunks     *int `json:"chunks,omitempty"`
	Restricted *int `json:"restricted,omitempty"`
}

type Details struct {
	Counts  *Counts `json:"counts,omitempty"`
	Message string  `json:"message,omitempty"`
}

// Content is the ordered id -> chunk mapping. JSON object order is kept on
// both decode and encode; a repeated key keeps its first position and its
// last value.
type Content struct {
	IDs    []string
	Chunks map[string]*ChunkDocument
}

func (c *Content) Set(id string, chunk *ChunkDocument) {
	if c.Chunks == nil {
		c.Chunks = make(map[string]*ChunkDocument)
	}
	if _, ok := c.Chunks[id]; !ok {
		c.IDs = append(c.IDs, id)
	}
	c.Chunks[id] = chunk
}

func (c Content) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range c.IDs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(c.Chunks[id])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Content) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = Content{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("content must be an object")
	}
	out := Content{Chunks: make(map[string]*ChunkDocument)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("content key must be a string")
		}
		chunk := &ChunkDocument{}
		if err := dec.Decode(chunk); err != nil {
			return fmt.Errorf("decode chunk %s: %w", id, err)
		}
		out.Set(id, chunk)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}
