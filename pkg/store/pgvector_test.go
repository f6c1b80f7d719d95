package store_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/regqa/internal/models"
	"github.com/xhad/regqa/pkg/store"
)

const dim = 8

// wordEmbedder hashes words into a small vector so similar texts land close together.
type wordEmbedder struct{}

func (wordEmbedder) vector(text string) []float32 {
	v := make([]float32, dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := 0
		for _, r := range w {
			h = (h*31 + int(r)) % dim
		}
		v[h]++
	}
	v[dim-1] += 0.01
	return v
}

func (e wordEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e wordEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func testConfig(t *testing.T) store.VectorStoreConfig {
	t.Helper()
	conn := os.Getenv("REGQA_TEST_DATABASE_URL")
	if conn == "" {
		t.Skip("REGQA_TEST_DATABASE_URL not set")
	}
	return store.VectorStoreConfig{
		ConnString: conn,
		TableName:  fmt.Sprintf("test_chunks_%d", os.Getpid()),
		VectorDim:  dim,
		BatchSize:  2,
	}
}

func TestOpenMissingTable(t *testing.T) {
	config := testConfig(t)
	config.TableName = "regqa_table_that_does_not_exist"

	_, err := store.Open(context.Background(), config, wordEmbedder{}, nil)
	assert.ErrorIs(t, err, store.ErrIndexMissing)
}

func TestVectorStore(t *testing.T) {
	ctx := context.Background()
	config := testConfig(t)

	s, err := store.NewWithConfig(ctx, config, wordEmbedder{}, nil)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.EnsureSchema(ctx))

	docs := []models.ProcessedDocument{
		{
			Document: models.Document{
				ID:       "regulamento_p4",
				Source:   "regulamento.pdf",
				Title:    "Regulamento OBG",
				Page:     4,
				Metadata: map[string]interface{}{"source": "regulamento.pdf", "page": 4},
			},
			Chunks: []string{
				"A prova terá duração de três horas",
				"As equipes têm até três alunos",
				"Inscrições abertas em março",
			},
		},
	}

	written := 0
	require.NoError(t, s.Store(ctx, docs, func(n int) { written += n }))
	assert.Equal(t, 3, written)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	opened, err := store.Opener(config, wordEmbedder{}, nil)(ctx, "")
	require.NoError(t, err)
	defer opened.Close()

	results, err := opened.SimilaritySearch(ctx, "duração da prova", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, strings.HasPrefix(results[0].ID, "regulamento_p4_"))
	assert.Equal(t, 4, results[0].Page)
	assert.Equal(t, "Regulamento OBG", results[0].Metadata["title"])

	again, err := opened.SimilaritySearch(ctx, "duração da prova", 2)
	require.NoError(t, err)
	assert.Equal(t, results, again)
}
