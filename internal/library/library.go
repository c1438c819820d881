package library

import (
	"encoding/json"
	"fmt"
	"os"

	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

const (
	CurrentVersion          = 0
	EmbeddingModelID        = "openai.com:text-embedding-ada-002"
	DefaultPrivateAccessTag = "unpublished"
)

var expectedEmbeddingLength = map[string]int{
	EmbeddingModelID: 1536,
}

func ExpectedEmbeddingLength(modelID string) int {
	return expectedEmbeddingLength[modelID]
}

// Library is a validated, versioned set of chunks. Every instance is valid:
// it is built by New or Load and every mutator keeps the invariants.
type Library struct {
	embeddingModel  string
	ids             []string
	chunks          map[string]*Chunk
	omit            Omit
	countChunks     *int
	countRestricted *int
	message         string
}

// New returns an empty library for the supported version and model.
func New(omit Omit) *Library {
	return &Library{
		embeddingModel: EmbeddingModelID,
		chunks:         make(map[string]*Chunk),
		omit:           omit,
	}
}

type loadOptions struct {
	accessTag string
}

type LoadOption func(*loadOptions)

// WithAccessTag stamps every loaded chunk with tag.
func WithAccessTag(tag string) LoadOption {
	return func(o *loadOptions) {
		o.accessTag = tag
	}
}

type rawDocument struct {
	Version        *int     `json:"version"`
	EmbeddingModel string   `json:"embedding_model"`
	Content        Content  `json:"content"`
	Omit           Omit     `json:"omit"`
	Details        *Details `json:"details"`
}

// Load parses the wire encoding, decodes embeddings and validates the result.
func Load(data []byte, opts ...LoadOption) (*Library, error) {
	options := &loadOptions{}
	for _, opt := range opts {
		opt(options)
	}
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode library: %v", appErr.ErrSchema, err)
	}
	if raw.Version == nil || *raw.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: version invalid", appErr.ErrSchema)
	}
	if raw.EmbeddingModel != EmbeddingModelID {
		return nil, fmt.Errorf("%w: invalid embedding model %q", appErr.ErrSchema, raw.EmbeddingModel)
	}
	if raw.Omit.WholeChunk() && len(raw.Content.IDs) > 0 {
		return nil, fmt.Errorf("%w: omit configured to omit all chunks but they were present", appErr.ErrSchema)
	}
	lib := New(raw.Omit)
	lib.embeddingModel = raw.EmbeddingModel
	for _, id := range raw.Content.IDs {
		chunk, err := lib.chunkFromDocument(id, raw.Content.Chunks[id])
		if err != nil {
			return nil, err
		}
		if options.accessTag != "" && !lib.omit.Omits(FieldAccessTag) {
			chunk.AccessTag = options.accessTag
		}
		lib.ids = append(lib.ids, id)
		lib.chunks[id] = chunk
	}
	if raw.Details != nil {
		lib.message = raw.Details.Message
		if raw.Details.Counts != nil {
			lib.countChunks = copyInt(raw.Details.Counts.Chunks)
			lib.countRestricted = copyInt(raw.Details.Counts.Restricted)
		}
	}
	return lib, nil
}

func LoadFile(path string, opts ...LoadOption) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read library %s: %w", path, err)
	}
	lib, err := Load(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("load library %s: %w", path, err)
	}
	return lib, nil
}

func (l *Library) chunkFromDocument(id string, doc *ChunkDocument) (*Chunk, error) {
	if doc == nil {
		doc = &ChunkDocument{}
	}
	present := map[Field]bool{
		FieldEmbedding:  doc.Embedding != nil,
		FieldTokenCount: doc.TokenCount != nil,
		FieldInfo:       doc.Info != nil,
		FieldAccessTag:  doc.AccessTag != nil,
		FieldSimilarity: doc.Similarity != nil,
	}
	for _, f := range l.omit.fields {
		if present[f] {
			return nil, fmt.Errorf("%w: expected %s to be omitted but it was included", appErr.ErrSchema, f)
		}
	}
	if doc.Text == nil {
		return nil, fmt.Errorf("%w: %s is missing text", appErr.ErrSchema, id)
	}
	chunk := &Chunk{
		Text:       *doc.Text,
		TokenCount: copyInt(doc.TokenCount),
		Info:       doc.Info.Clone(),
	}
	if doc.Embedding != nil {
		vector, err := DecodeVector(*doc.Embedding)
		if err != nil {
			return nil, fmt.Errorf("%w: %s embedding: %v", appErr.ErrSchema, id, err)
		}
		chunk.Embedding = vector
	}
	if doc.AccessTag != nil {
		chunk.AccessTag = *doc.AccessTag
	}
	if doc.Similarity != nil {
		v := *doc.Similarity
		chunk.Similarity = &v
	}
	if err := l.validateChunk(id, chunk); err != nil {
		return nil, err
	}
	return chunk, nil
}

func (l *Library) validateChunk(id string, c *Chunk) error {
	if !l.omit.Omits(FieldEmbedding) {
		if c.Embedding == nil {
			return fmt.Errorf("%w: %s is missing embedding", appErr.ErrSchema, id)
		}
		expected := ExpectedEmbeddingLength(l.embeddingModel)
		if len(c.Embedding) != expected {
			return fmt.Errorf("%w: %s had the wrong length of embedding, expected %d", appErr.ErrSchema, id, expected)
		}
	}
	if !l.omit.Omits(FieldTokenCount) && c.TokenCount == nil {
		return fmt.Errorf("%w: %s is missing token_count", appErr.ErrSchema, id)
	}
	if !l.omit.Omits(FieldInfo) {
		if c.Info == nil {
			return fmt.Errorf("%w: %s is missing info", appErr.ErrSchema, id)
		}
		if !c.Info.HasURL() {
			return fmt.Errorf("%w: %s info is missing required url", appErr.ErrSchema, id)
		}
	}
	return nil
}

func (l *Library) strip(c *Chunk) {
	for _, f := range l.omit.fields {
		c.clear(f)
	}
}

func (l *Library) Version() int {
	return CurrentVersion
}

func (l *Library) EmbeddingModel() string {
	return l.embeddingModel
}

func (l *Library) Omit() Omit {
	return l.omit
}

// SetOmit changes the policy and strips the newly omitted fields.
func (l *Library) SetOmit(omit Omit) error {
	if omit.WholeChunk() && len(l.ids) > 0 {
		return fmt.Errorf("%w: cannot omit whole chunks of a non-empty library", appErr.ErrSchema)
	}
	l.omit = omit
	for _, c := range l.chunks {
		l.strip(c)
	}
	return nil
}

func (l *Library) Len() int {
	return len(l.ids)
}

// ChunkIDs returns the ids in natural (insertion) order.
func (l *Library) ChunkIDs() []string {
	out := make([]string, len(l.ids))
	copy(out, l.ids)
	return out
}

// Chunk returns a copy of the chunk, or nil if absent.
func (l *Library) Chunk(id string) *Chunk {
	return l.chunks[id].Clone()
}

func (l *Library) Text(id string) (string, bool) {
	c, ok := l.chunks[id]
	if !ok {
		return "", false
	}
	return c.Text, true
}

func (l *Library) TokenCount(id string) (int, bool) {
	c, ok := l.chunks[id]
	if !ok || c.TokenCount == nil {
		return 0, false
	}
	return *c.TokenCount, true
}

// Each calls fn for every chunk in order. The chunk must not be modified.
func (l *Library) Each(fn func(id string, c *Chunk)) {
	for _, id := range l.ids {
		fn(id, l.chunks[id])
	}
}

// SetChunk stores a copy of c under id after applying the omit policy. A
// whole-chunk library ignores writes.
func (l *Library) SetChunk(id string, c *Chunk) error {
	if l.omit.WholeChunk() {
		return nil
	}
	chunk := c.Clone()
	l.strip(chunk)
	if err := l.validateChunk(id, chunk); err != nil {
		return err
	}
	l.put(id, chunk)
	return nil
}

// UpdateChunk sets individual fields of an existing chunk, or creates one
// when every required field is supplied.
func (l *Library) UpdateChunk(id string, update ChunkUpdate) error {
	if l.omit.WholeChunk() {
		return nil
	}
	chunk := l.chunks[id].Clone()
	if chunk == nil {
		if update.Text == nil {
			return fmt.Errorf("%w: %s is missing text", appErr.ErrSchema, id)
		}
		chunk = &Chunk{}
	}
	if update.Text != nil {
		chunk.Text = *update.Text
	}
	if update.Embedding != nil {
		chunk.Embedding = cloneVector(update.Embedding)
	}
	if update.TokenCount != nil {
		chunk.TokenCount = copyInt(update.TokenCount)
	}
	if update.Info != nil {
		chunk.Info = update.Info.Clone()
	}
	if update.AccessTag != nil {
		chunk.AccessTag = *update.AccessTag
	}
	if update.Similarity != nil {
		v := *update.Similarity
		chunk.Similarity = &v
	}
	l.strip(chunk)
	if err := l.validateChunk(id, chunk); err != nil {
		return err
	}
	l.put(id, chunk)
	return nil
}

// DeleteChunkFields removes optional fields from a chunk. Removing a field
// the policy requires fails and leaves the chunk untouched.
func (l *Library) DeleteChunkFields(id string, fields ...Field) error {
	current, ok := l.chunks[id]
	if !ok {
		return nil
	}
	chunk := current.Clone()
	for _, f := range fields {
		if f == FieldText {
			return fmt.Errorf("%w: text cannot be removed from %s", appErr.ErrSchema, id)
		}
		chunk.clear(f)
	}
	if err := l.validateChunk(id, chunk); err != nil {
		return err
	}
	l.chunks[id] = chunk
	return nil
}

func (l *Library) DeleteChunk(id string) {
	if _, ok := l.chunks[id]; !ok {
		return
	}
	delete(l.chunks, id)
	for i, item := range l.ids {
		if item == id {
			l.ids = append(l.ids[:i], l.ids[i+1:]...)
			break
		}
	}
}

func (l *Library) put(id string, c *Chunk) {
	if _, ok := l.chunks[id]; !ok {
		l.ids = append(l.ids, id)
	}
	l.chunks[id] = c
}

// Extend merges other's chunks into l. On id collision the later chunk
// wins. Nothing is modified if any chunk cannot be accepted.
func (l *Library) Extend(other *Library) error {
	if other.embeddingModel != l.embeddingModel {
		return fmt.Errorf("%w: the other library had a different embedding model", appErr.ErrMerge)
	}
	if l.omit.WholeChunk() {
		return nil
	}
	staged := make([]*Chunk, 0, len(other.ids))
	for _, id := range other.ids {
		chunk := other.chunks[id].Clone()
		l.strip(chunk)
		if err := l.validateChunk(id, chunk); err != nil {
			return fmt.Errorf("%w: %v", appErr.ErrMerge, err)
		}
		staged = append(staged, chunk)
	}
	for i, id := range other.ids {
		l.put(id, staged[i])
	}
	return nil
}

func (l *Library) CountChunks() int {
	if l.countChunks == nil {
		return 0
	}
	return *l.countChunks
}

func (l *Library) SetCountChunks(n int) {
	l.countChunks = &n
}

func (l *Library) CountRestricted() int {
	if l.countRestricted == nil {
		return 0
	}
	return *l.countRestricted
}

func (l *Library) SetCountRestricted(n int) {
	l.countRestricted = &n
}

func (l *Library) Message() string {
	return l.message
}

func (l *Library) SetMessage(message string) {
	l.message = message
}

// Serializable returns an independent wire document. access_tag is dropped
// unless includeAccessTag is set.
func (l *Library) Serializable(includeAccessTag bool) *Document {
	doc := &Document{
		Version:        CurrentVersion,
		EmbeddingModel: l.embeddingModel,
		Content:        Content{IDs: make([]string, 0, len(l.ids)), Chunks: make(map[string]*ChunkDocument, len(l.ids))},
		Omit:           l.omit,
	}
	for _, id := range l.ids {
		c := l.chunks[id]
		text := c.Text
		out := &ChunkDocument{
			Text:       &text,
			TokenCount: copyInt(c.TokenCount),
			Info:       c.Info.Clone(),
		}
		if c.Embedding != nil {
			encoded := EncodeVector(c.Embedding)
			out.Embedding = &encoded
		}
		if includeAccessTag && c.AccessTag != "" {
			tag := c.AccessTag
			out.AccessTag = &tag
		}
		if c.Similarity != nil {
			v := *c.Similarity
			out.Similarity = &v
		}
		doc.Content.Set(id, out)
	}
	if l.countChunks != nil || l.countRestricted != nil || l.message != "" {
		doc.Details = &Details{Message: l.message}
		if l.countChunks != nil || l.countRestricted != nil {
			doc.Details.Counts = &Counts{
				Chunks:     copyInt(l.countChunks),
				Restricted: copyInt(l.countRestricted),
			}
		}
	}
	return doc
}

func (l *Library) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Serializable(false))
}

// Save writes the serialized library with tab indentation.
func (l *Library) Save(path string) error {
	data, err := json.MarshalIndent(l.Serializable(false), "", "\t")
	if err != nil {
		return fmt.Errorf("encode library: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write library: %w", err)
	}
	return os.Rename(tmp, path)
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
