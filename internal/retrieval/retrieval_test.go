package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/spa-concierge/pkg/logging"
)

// keywordEmbedder maps text onto three axes: hours, nails, massage.
type keywordEmbedder struct {
	calls int
	err   error
}

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		vec := []float32{0.01, 0.01, 0.01}
		if strings.Contains(lower, "hour") || strings.Contains(lower, "open") {
			vec[0] = 1
		}
		if strings.Contains(lower, "nail") {
			vec[1] = 1
		}
		if strings.Contains(lower, "massage") {
			vec[2] = 1
		}
		out[i] = vec
	}
	return out, nil
}

type fakeSearcher struct {
	passages []Passage
	err      error
	gotK     int
	gotColl  Collection
}

func (f *fakeSearcher) Search(_ context.Context, collection Collection, _ string, k int) ([]Passage, error) {
	f.gotK = k
	f.gotColl = collection
	return f.passages, f.err
}

func TestRetrieverJoinsPassagesInOrder(t *testing.T) {
	searcher := &fakeSearcher{passages: []Passage{
		{Content: "We open at 9am."},
		{Content: "We close at 7pm."},
		{Content: "We open at 9am."},
	}}
	r := NewRetriever(searcher, 0)

	got, err := r.Retrieve(context.Background(), "hours?", WebDocs)
	require.NoError(t, err)
	assert.Equal(t, "We open at 9am.\n\nWe close at 7pm.\n\nWe open at 9am.", got)
	assert.Equal(t, DefaultTopK, searcher.gotK)
	assert.Equal(t, WebDocs, searcher.gotColl)
}

func TestRetrieverEmptyAndError(t *testing.T) {
	got, err := NewRetriever(&fakeSearcher{}, 5).Retrieve(context.Background(), "q", CompanyDocs)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = NewRetriever(&fakeSearcher{err: errors.New("down")}, 5).Retrieve(context.Background(), "q", CompanyDocs)
	require.Error(t, err)
}

func TestParseCollection(t *testing.T) {
	c, err := ParseCollection(" web_docs ")
	require.NoError(t, err)
	assert.Equal(t, WebDocs, c)

	_, err = ParseCollection("db/pdf")
	require.Error(t, err)
}

func TestVectorStoreRanksByCosine(t *testing.T) {
	store := NewVectorStore(&keywordEmbedder{})
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, WebDocs, []string{
		"Gel nails start at $35.",
		"We are open 9am to 7pm.",
		"Hot stone massage lasts 60 minutes.",
	}))
	require.NoError(t, store.Add(ctx, CompanyDocs, []string{"Nail care guide."}))

	got, err := store.Search(ctx, WebDocs, "What are your opening hours?", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "We are open 9am to 7pm.", got[0].Content)
	assert.Greater(t, got[0].Score, got[1].Score)

	got, err = store.Search(ctx, CompanyDocs, "nails", 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestVectorStoreEmptyCollectionSkipsEmbedding(t *testing.T) {
	embedder := &keywordEmbedder{}
	store := NewVectorStore(embedder)
	got, err := store.Search(context.Background(), WebDocs, "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, embedder.calls)
}

type fakeEmbeddingAPI struct {
	resp openai.EmbeddingResponse
	err  error
}

func (f *fakeEmbeddingAPI) CreateEmbeddings(_ context.Context, _ openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	return f.resp, f.err
}

func TestOpenAIEmbedderOrdersByIndex(t *testing.T) {
	api := &fakeEmbeddingAPI{resp: openai.EmbeddingResponse{Data: []openai.Embedding{
		{Index: 1, Embedding: []float32{0, 1}},
		{Index: 0, Embedding: []float32{1, 0}},
	}}}
	vecs, err := NewOpenAIEmbedder(api, "").Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)

	api.resp.Data = api.resp.Data[:1]
	_, err = NewOpenAIEmbedder(api, "").Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
}

type fakeInvokeAPI struct {
	inputs []string
	err    error
}

func (f *fakeInvokeAPI) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	var payload struct {
		InputText string `json:"inputText"`
	}
	if err := json.Unmarshal(in.Body, &payload); err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, payload.InputText)
	return &bedrockruntime.InvokeModelOutput{Body: []byte(`{"embedding":[0.5,0.25]}`)}, nil
}

func TestBedrockEmbedder(t *testing.T) {
	api := &fakeInvokeAPI{}
	vecs, err := NewBedrockEmbedder(api, "").Embed(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, api.inputs)
	assert.Equal(t, [][]float32{{0.5, 0.25}, {0.5, 0.25}}, vecs)

	_, err = NewBedrockEmbedder(&fakeInvokeAPI{err: errors.New("throttled")}, "m").Embed(context.Background(), []string{"x"})
	require.Error(t, err)
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisChunkRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRedisChunkRepository(newTestRedis(t))

	require.NoError(t, repo.Append(ctx, WebDocs, []string{"a", "b"}))
	require.NoError(t, repo.Append(ctx, WebDocs, []string{"c"}))
	require.NoError(t, repo.Append(ctx, WebDocs, nil))

	got, err := repo.Get(ctx, WebDocs)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	version, err := repo.Version(ctx, WebDocs)
	require.NoError(t, err)
	assert.Zero(t, version)

	require.NoError(t, repo.Replace(ctx, WebDocs, []string{"z"}))
	got, err = repo.Get(ctx, WebDocs)
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, got)
	version, err = repo.Version(ctx, WebDocs)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	require.NoError(t, repo.Append(ctx, CompanyDocs, []string{"pdf"}))
	collections, err := repo.Collections(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Collection{WebDocs, CompanyDocs}, collections)
}

func TestIndexHydratesAcrossProcesses(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	logger := logging.NewWithWriter("error", &bytes.Buffer{})

	writer := NewIndex(NewRedisChunkRepository(client), NewVectorStore(&keywordEmbedder{}), logger)
	readerStore := NewVectorStore(&keywordEmbedder{})
	reader := NewIndex(NewRedisChunkRepository(client), readerStore, logger)

	require.NoError(t, writer.Index(ctx, WebDocs, []string{"We are open 9am to 7pm.", "Gel nails start at $35."}))

	got, err := reader.Search(ctx, WebDocs, "opening hours", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "We are open 9am to 7pm.", got[0].Content)

	require.NoError(t, writer.Index(ctx, WebDocs, []string{"Massage packages available."}))
	_, err = reader.Search(ctx, WebDocs, "massage", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, readerStore.Len(WebDocs))

	require.NoError(t, writer.Reset(ctx, WebDocs, []string{"Closed for renovation."}))
	got, err = reader.Search(ctx, WebDocs, "massage", 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Closed for renovation.", got[0].Content)
}

func TestIndexSearchSurvivesHydrationFailure(t *testing.T) {
	logger := logging.NewWithWriter("error", &bytes.Buffer{})
	repo := NewMemoryChunkRepository()
	require.NoError(t, repo.Append(context.Background(), WebDocs, []string{"x"}))

	idx := NewIndex(repo, NewVectorStore(&keywordEmbedder{err: errors.New("embed down")}), logger)
	got, err := idx.Search(context.Background(), WebDocs, "x", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}
