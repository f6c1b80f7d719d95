package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/regqa/pkg/llm"
)

type fakeEmbeddingClient struct {
	calls int
	err   error
	dim   int
}

func (c *fakeEmbeddingClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, c.dim)
		v[0] = float32(len(text))
		out[i] = v
	}
	return out, nil
}

func TestNewEmbedderWithConfig(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   "nomic-embed-text:latest",
		BaseURL: "http://localhost:11434",
	}, nil)
	assert.NoError(t, err)
	assert.NotNil(t, emb)
}

func TestEmbedQueryUsesCache(t *testing.T) {
	client := &fakeEmbeddingClient{dim: 768}
	emb, err := llm.NewEmbedderWithClient(llm.EmbedderConfig{CacheSize: 8}, client, nil)
	require.NoError(t, err)

	first, err := emb.EmbedQuery(context.Background(), "Qual é a duração da prova?")
	require.NoError(t, err)
	second, err := emb.EmbedQuery(context.Background(), "Qual é a duração da prova?")
	require.NoError(t, err)

	assert.Len(t, first, 768)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.calls)
}

func TestEmbedQueryWithoutCache(t *testing.T) {
	client := &fakeEmbeddingClient{dim: 4}
	emb, err := llm.NewEmbedderWithClient(llm.EmbedderConfig{}, client, nil)
	require.NoError(t, err)

	_, err = emb.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	_, err = emb.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
}

func TestEmbedQueryError(t *testing.T) {
	cause := errors.New("ollama down")
	emb, err := llm.NewEmbedderWithClient(llm.EmbedderConfig{CacheSize: 8}, &fakeEmbeddingClient{err: cause}, nil)
	require.NoError(t, err)

	_, err = emb.EmbedQuery(context.Background(), "q")
	assert.ErrorIs(t, err, cause)
}

func TestEmbedDocuments(t *testing.T) {
	client := &fakeEmbeddingClient{dim: 3}
	emb, err := llm.NewEmbedderWithClient(llm.EmbedderConfig{BatchSize: 2}, client, nil)
	require.NoError(t, err)

	chunks := []string{"This is the first chunk.", "And this is the second chunk.", "Another chunk."}
	vectors, err := emb.EmbedDocuments(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, vectors, len(chunks))
	for i := range vectors {
		assert.Equal(t, float32(len(chunks[i])), vectors[i][0])
	}

	empty, err := emb.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
