package library

import (
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
)

func testVector(hot int) []float32 {
	v := make([]float32, ExpectedEmbeddingLength(EmbeddingModelID))
	v[hot] = 1
	return v
}

func testChunk(text, url string, tokens int) *Chunk {
	return &Chunk{
		Text:       text,
		Embedding:  testVector(0),
		TokenCount: &tokens,
		Info:       Info{"url": url},
	}
}

func testDocument(t *testing.T, mutate func(doc map[string]interface{})) []byte {
	t.Helper()
	chunk := map[string]interface{}{
		"text":        "hello world",
		"embedding":   EncodeVector(testVector(1)),
		"token_count": 2,
		"info":        map[string]interface{}{"url": "https://example.com/a", "title": "A"},
	}
	doc := map[string]interface{}{
		"version":         0,
		"embedding_model": EmbeddingModelID,
		"content": map[string]interface{}{
			"a": chunk,
		},
	}
	if mutate != nil {
		mutate(doc)
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func firstChunk(doc map[string]interface{}) map[string]interface{} {
	return doc["content"].(map[string]interface{})["a"].(map[string]interface{})
}

func TestVectorRoundTripIsBitExact(t *testing.T) {
	values := []float32{0, -0, 1, -1.5, math.MaxFloat32, math.SmallestNonzeroFloat32, float32(math.Inf(-1)), math.Float32frombits(0x7fc00001)}
	encoded := EncodeVector(values)
	decoded, err := DecodeVector(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(values))
	for i := range values {
		require.Equal(t, math.Float32bits(values[i]), math.Float32bits(decoded[i]))
	}
	require.Equal(t, encoded, EncodeVector(decoded))
}

func TestDecodeVectorRejectsBadInput(t *testing.T) {
	_, err := DecodeVector("not base64!")
	require.Error(t, err)
	_, err = DecodeVector("AAA=")
	require.Error(t, err)
}

func TestCanonicalID(t *testing.T) {
	id := CanonicalID("https://example.com", "some text")
	require.Len(t, id, 64)
	require.Equal(t, id, CanonicalID("https://example.com", "some text"))
	require.Equal(t, id, CanonicalID("  https://example.com\n", "\tsome text  "))
	require.NotEqual(t, id, CanonicalID("https://example.com/x", "some text"))
	require.NotEqual(t, id, CanonicalID("https://example.com", "other text"))
	require.Equal(t, "d8550fcb890436b92190651df3cdc0b0652f62ff2f71b152b7d9f368f27737c8", id)
	require.Equal(t, CanonicalID("u", "t"), CanonicalIDForChunk(&Chunk{Text: "t", Info: Info{"url": "u"}}))
}

func TestParseOmit(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		whole   bool
		fields  []Field
		wantErr bool
	}{
		{name: "empty", input: ""},
		{name: "single", input: "embedding", fields: []Field{FieldEmbedding}},
		{name: "multiple", input: "embedding,similarity", fields: []Field{FieldEmbedding, FieldSimilarity}},
		{name: "duplicates collapse", input: "info,info", fields: []Field{FieldInfo}},
		{name: "whole", input: "*", whole: true},
		{name: "whole with others", input: "*,embedding", wantErr: true},
		{name: "empty with others", input: ",embedding", wantErr: true},
		{name: "text is not omittable", input: "text", wantErr: true},
		{name: "case sensitive", input: "Embedding", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOmitString(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, appErr.ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.whole, got.WholeChunk())
			require.Equal(t, len(tt.fields), len(got.Fields()))
			for i, f := range tt.fields {
				require.Equal(t, f, got.Fields()[i])
			}
		})
	}
}

func TestOmitJSON(t *testing.T) {
	var o Omit
	require.NoError(t, json.Unmarshal([]byte(`["embedding","info"]`), &o))
	require.True(t, o.Omits(FieldInfo))
	data, err := json.Marshal(o)
	require.NoError(t, err)
	require.JSONEq(t, `["embedding","info"]`, string(data))

	require.NoError(t, json.Unmarshal([]byte(`"similarity"`), &o))
	data, err = json.Marshal(o)
	require.NoError(t, err)
	require.Equal(t, `"similarity"`, string(data))

	data, err = json.Marshal(OmitWholeChunk())
	require.NoError(t, err)
	require.Equal(t, `"*"`, string(data))

	require.Error(t, json.Unmarshal([]byte(`"bogus"`), &o))
}

func TestOmitWith(t *testing.T) {
	o := OmitNothing().With(FieldEmbedding, FieldSimilarity, FieldEmbedding)
	require.Equal(t, "embedding,similarity", o.String())
	require.True(t, OmitWholeChunk().With(FieldEmbedding).WholeChunk())
}

func TestLoadValid(t *testing.T) {
	lib, err := Load(testDocument(t, nil))
	require.NoError(t, err)
	require.Equal(t, 1, lib.Len())
	c := lib.Chunk("a")
	require.Equal(t, "hello world", c.Text)
	require.Equal(t, float32(1), c.Embedding[1])
	require.Equal(t, 2, *c.TokenCount)
	require.Equal(t, "https://example.com/a", c.Info.URL())
	require.Empty(t, c.AccessTag)
}

func TestLoadRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(doc map[string]interface{})
	}{
		{name: "wrong version", mutate: func(doc map[string]interface{}) { doc["version"] = 1 }},
		{name: "missing version", mutate: func(doc map[string]interface{}) { delete(doc, "version") }},
		{name: "foreign model", mutate: func(doc map[string]interface{}) { doc["embedding_model"] = "other:model" }},
		{name: "whole chunk omit with content", mutate: func(doc map[string]interface{}) { doc["omit"] = "*" }},
		{name: "missing text", mutate: func(doc map[string]interface{}) { delete(firstChunk(doc), "text") }},
		{name: "missing embedding", mutate: func(doc map[string]interface{}) { delete(firstChunk(doc), "embedding") }},
		{name: "short embedding", mutate: func(doc map[string]interface{}) {
			firstChunk(doc)["embedding"] = EncodeVector([]float32{1, 0})
		}},
		{name: "missing token count", mutate: func(doc map[string]interface{}) { delete(firstChunk(doc), "token_count") }},
		{name: "missing info", mutate: func(doc map[string]interface{}) { delete(firstChunk(doc), "info") }},
		{name: "missing url", mutate: func(doc map[string]interface{}) {
			firstChunk(doc)["info"] = map[string]interface{}{"title": "x"}
		}},
		{name: "omitted field present", mutate: func(doc map[string]interface{}) { doc["omit"] = "embedding" }},
		{name: "illegal omit", mutate: func(doc map[string]interface{}) { doc["omit"] = "bogus" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(testDocument(t, tt.mutate))
			require.ErrorIs(t, err, appErr.ErrSchema)
		})
	}
}

func TestLoadHonorsOmitPolicy(t *testing.T) {
	lib, err := Load(testDocument(t, func(doc map[string]interface{}) {
		doc["omit"] = []string{"embedding", "token_count"}
		delete(firstChunk(doc), "embedding")
		delete(firstChunk(doc), "token_count")
	}))
	require.NoError(t, err)
	require.Nil(t, lib.Chunk("a").Embedding)
	require.Nil(t, lib.Chunk("a").TokenCount)
}

func TestLoadKeepsDocumentOrder(t *testing.T) {
	raw := `{"version":0,"embedding_model":"` + EmbeddingModelID + `","content":{` +
		`"z":{"text":"z","embedding":"` + EncodeVector(testVector(0)) + `","token_count":1,"info":{"url":"u"}},` +
		`"a":{"text":"a","embedding":"` + EncodeVector(testVector(0)) + `","token_count":1,"info":{"url":"u"}},` +
		`"m":{"text":"m","embedding":"` + EncodeVector(testVector(0)) + `","token_count":1,"info":{"url":"u"}}}}`
	lib, err := Load([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, []string{"z", "a", "m"}, lib.ChunkIDs())

	data, err := json.Marshal(lib)
	require.NoError(t, err)
	again, err := Load(data)
	require.NoError(t, err)
	require.Equal(t, []string{"z", "a", "m"}, again.ChunkIDs())
}

func TestLoadWithAccessTag(t *testing.T) {
	lib, err := Load(testDocument(t, nil), WithAccessTag("team"))
	require.NoError(t, err)
	require.Equal(t, "team", lib.Chunk("a").AccessTag)

	lib, err = Load(testDocument(t, func(doc map[string]interface{}) { doc["omit"] = "access_tag" }), WithAccessTag("team"))
	require.NoError(t, err)
	require.Empty(t, lib.Chunk("a").AccessTag)
}

func TestSerializableStripsAccessTag(t *testing.T) {
	lib := New(OmitNothing())
	c := testChunk("secret text", "https://example.com/s", 3)
	c.AccessTag = "secret"
	require.NoError(t, lib.SetChunk("s", c))

	doc := lib.Serializable(false)
	require.Nil(t, doc.Content.Chunks["s"].AccessTag)
	data, err := json.Marshal(lib)
	require.NoError(t, err)
	require.NotContains(t, string(data), "access_tag")

	doc = lib.Serializable(true)
	require.Equal(t, "secret", *doc.Content.Chunks["s"].AccessTag)
}

func TestSerializableDoesNotAlias(t *testing.T) {
	lib := New(OmitNothing())
	require.NoError(t, lib.SetChunk("a", testChunk("text", "https://example.com", 1)))
	doc := lib.Serializable(false)
	doc.Content.Chunks["a"].Info["url"] = "changed"
	*doc.Content.Chunks["a"].TokenCount = 99
	require.Equal(t, "https://example.com", lib.Chunk("a").Info.URL())
	require.Equal(t, 1, *lib.Chunk("a").TokenCount)

	got := lib.Chunk("a")
	got.Embedding[0] = 42
	require.Equal(t, float32(1), lib.Chunk("a").Embedding[0])
}

func TestSetChunkAppliesOmit(t *testing.T) {
	omit, err := OmitFields(FieldEmbedding, FieldInfo)
	require.NoError(t, err)
	lib := New(omit)
	require.NoError(t, lib.SetChunk("a", testChunk("text", "u", 1)))
	c := lib.Chunk("a")
	require.Nil(t, c.Embedding)
	require.Nil(t, c.Info)

	require.NoError(t, lib.UpdateChunk("a", ChunkUpdate{Embedding: testVector(2)}))
	require.Nil(t, lib.Chunk("a").Embedding)
}

func TestSetChunkValidates(t *testing.T) {
	lib := New(OmitNothing())
	c := testChunk("text", "u", 1)
	c.Embedding = []float32{1}
	require.ErrorIs(t, lib.SetChunk("a", c), appErr.ErrSchema)
	require.Equal(t, 0, lib.Len())

	text := "only text"
	require.ErrorIs(t, lib.UpdateChunk("b", ChunkUpdate{Text: &text}), appErr.ErrSchema)
}

func TestWholeChunkLibraryAcceptsNoWrites(t *testing.T) {
	lib := New(OmitWholeChunk())
	require.NoError(t, lib.SetChunk("a", testChunk("text", "u", 1)))
	require.Equal(t, 0, lib.Len())

	lib = New(OmitNothing())
	require.NoError(t, lib.SetChunk("a", testChunk("text", "u", 1)))
	require.ErrorIs(t, lib.SetOmit(OmitWholeChunk()), appErr.ErrSchema)
}

func TestDeleteChunkFields(t *testing.T) {
	lib := New(OmitNothing())
	c := testChunk("text", "u", 1)
	c.AccessTag = "tag"
	require.NoError(t, lib.SetChunk("a", c))
	require.NoError(t, lib.DeleteChunkFields("a", FieldAccessTag))
	require.Empty(t, lib.Chunk("a").AccessTag)
	require.ErrorIs(t, lib.DeleteChunkFields("a", FieldInfo), appErr.ErrSchema)
	require.NotNil(t, lib.Chunk("a").Info)

	lib.DeleteChunk("a")
	require.Equal(t, 0, lib.Len())
	require.Nil(t, lib.Chunk("a"))
}

func TestExtend(t *testing.T) {
	dst := New(OmitNothing())
	require.NoError(t, dst.SetChunk("a", testChunk("a1", "u", 1)))
	require.NoError(t, dst.SetChunk("b", testChunk("b1", "u", 1)))
	src := New(OmitNothing())
	require.NoError(t, src.SetChunk("b", testChunk("b2", "u", 1)))
	require.NoError(t, src.SetChunk("c", testChunk("c2", "u", 1)))

	require.NoError(t, dst.Extend(src))
	require.Equal(t, []string{"a", "b", "c"}, dst.ChunkIDs())
	require.Equal(t, "b2", dst.Chunk("b").Text)
}

func TestExtendRejectsDifferentModel(t *testing.T) {
	dst := New(OmitNothing())
	require.NoError(t, dst.SetChunk("a", testChunk("a1", "u", 1)))
	src := New(OmitNothing())
	src.embeddingModel = "other:model"

	require.ErrorIs(t, dst.Extend(src), appErr.ErrMerge)
	require.Equal(t, []string{"a"}, dst.ChunkIDs())
}

func TestExtendIsAllOrNothing(t *testing.T) {
	dst := New(OmitNothing())
	src, err := Load(testDocument(t, func(doc map[string]interface{}) {
		doc["omit"] = "embedding"
		delete(firstChunk(doc), "embedding")
	}))
	require.NoError(t, err)
	require.ErrorIs(t, dst.Extend(src), appErr.ErrMerge)
	require.Equal(t, 0, dst.Len())
}

func TestSaveAndLoadFile(t *testing.T) {
	lib := New(OmitNothing())
	require.NoError(t, lib.SetChunk("a", testChunk("alpha", "https://example.com/a", 5)))
	lib.SetCountChunks(1)
	path := filepath.Join(t.TempDir(), "library.json")
	require.NoError(t, lib.Save(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, lib.ChunkIDs(), loaded.ChunkIDs())
	require.Equal(t, lib.Chunk("a"), loaded.Chunk("a"))
	require.Equal(t, 1, loaded.CountChunks())
}

func TestUniqueInfos(t *testing.T) {
	lib := New(OmitNothing())
	low, high := 0.1, 0.9
	a := testChunk("a", "https://example.com/1", 1)
	a.Similarity = &low
	b := testChunk("b", "https://example.com/2", 1)
	b.Similarity = &high
	c := testChunk("c", "https://example.com/1", 1)
	c.Similarity = &low
	require.NoError(t, lib.SetChunk("a", a))
	require.NoError(t, lib.SetChunk("b", b))
	require.NoError(t, lib.SetChunk("c", c))

	infos := lib.UniqueInfos()
	require.Len(t, infos, 2)
	require.Equal(t, "https://example.com/2", infos[0].URL())
	require.Equal(t, "https://example.com/1", infos[1].URL())
	require.Equal(t, []string{"a", "b", "c"}, lib.Texts())
}
