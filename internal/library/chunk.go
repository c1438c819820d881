package library

// Info is the free-form chunk metadata. "url" is required.
type Info map[string]interface{}

func (i Info) URL() string {
	if i == nil {
		return ""
	}
	url, _ := i["url"].(string)
	return url
}

func (i Info) HasURL() bool {
	if i == nil {
		return false
	}
	_, ok := i["url"]
	return ok
}

func (i Info) Clone() Info {
	if i == nil {
		return nil
	}
	return cloneValue(map[string]interface{}(i)).(map[string]interface{})
}

// Chunk is one retrievable unit. Optional fields are nil (or empty for
// AccessTag) when absent.
type Chunk struct {
	Text       string
	Embedding  []float32
	TokenCount *int
	Info       Info
	AccessTag  string
	Similarity *float64
}

func (c *Chunk) Clone() *Chunk {
	if c == nil {
		return nil
	}
	out := &Chunk{
		Text:      c.Text,
		Embedding: cloneVector(c.Embedding),
		Info:      c.Info.Clone(),
		AccessTag: c.AccessTag,
	}
	if c.TokenCount != nil {
		v := *c.TokenCount
		out.TokenCount = &v
	}
	if c.Similarity != nil {
		v := *c.Similarity
		out.Similarity = &v
	}
	return out
}

func (c *Chunk) clear(f Field) {
	switch f {
	case FieldEmbedding:
		c.Embedding = nil
	case FieldTokenCount:
		c.TokenCount = nil
	case FieldInfo:
		c.Info = nil
	case FieldAccessTag:
		c.AccessTag = ""
	case FieldSimilarity:
		c.Similarity = nil
	}
}

// ChunkUpdate carries the fields to set on a chunk; nil fields are left as is.
type ChunkUpdate struct {
	Text       *string
	Embedding  []float32
	TokenCount *int
	Info       Info
	AccessTag  *string
	Similarity *float64
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case Info:
		return Info(cloneValue(map[string]interface{}(val)).(map[string]interface{}))
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return val
	}
}
