package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
)

func embedServer(t *testing.T, dimension int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		require.Equal(t, "/api/embed", r.URL.Path)
		if calls != nil {
			calls.Add(1)
		}

		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		embeddings := make([][]float32, len(req.Input))
		for i := range req.Input {
			vector := make([]float32, dimension)
			// Deterministic per-input values so stability is checkable
			for d := range vector {
				vector[d] = float32(len(req.Input[i])) / float32(d+1)
			}
			embeddings[i] = vector
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": embeddings})
	}))
}

func testEmbeddingConfig(url string) *common.EmbeddingsConfig {
	cfg := common.NewDefaultConfig().Embeddings
	cfg.URL = url
	return &cfg
}

func TestGenerateEmbedding_SingleText(t *testing.T) {
	server := embedServer(t, 384, nil)
	defer server.Close()

	svc := NewService(testEmbeddingConfig(server.URL), arbor.NewLogger())

	vector, err := svc.GenerateEmbedding(context.Background(), "senior backend engineer")
	require.NoError(t, err)
	assert.Len(t, vector, 384)

	_, err = svc.GenerateEmbedding(context.Background(), "")
	assert.Error(t, err)
}

func TestGenerateEmbeddings_BatchesUpstreamCalls(t *testing.T) {
	var calls atomic.Int32
	server := embedServer(t, 384, &calls)
	defer server.Close()

	cfg := testEmbeddingConfig(server.URL)
	cfg.BatchSize = 32
	svc := NewService(cfg, arbor.NewLogger())

	texts := make([]string, 70)
	for i := range texts {
		texts[i] = "job description text"
	}

	vectors, err := svc.GenerateEmbeddings(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vectors, 70)
	assert.Equal(t, int32(3), calls.Load()) // 32 + 32 + 6
}

func TestGenerateEmbeddings_Stability(t *testing.T) {
	server := embedServer(t, 384, nil)
	defer server.Close()

	svc := NewService(testEmbeddingConfig(server.URL), arbor.NewLogger())

	first, err := svc.GenerateEmbedding(context.Background(), "identical input")
	require.NoError(t, err)
	second, err := svc.GenerateEmbedding(context.Background(), "identical input")
	require.NoError(t, err)

	for i := range first {
		assert.InDelta(t, first[i], second[i], 1e-6)
	}
}

func TestGenerateEmbeddings_DimensionMismatchRejected(t *testing.T) {
	server := embedServer(t, 128, nil) // wrong dimension
	defer server.Close()

	svc := NewService(testEmbeddingConfig(server.URL), arbor.NewLogger())

	_, err := svc.GenerateEmbedding(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestIsAvailable(t *testing.T) {
	server := embedServer(t, 384, nil)
	svc := NewService(testEmbeddingConfig(server.URL), arbor.NewLogger())
	assert.True(t, svc.IsAvailable(context.Background()))

	server.Close()
	assert.False(t, svc.IsAvailable(context.Background()))
}

func TestJobText(t *testing.T) {
	text := JobText("Engineer", []string{"London"}, []string{"go", "sql"}, "Build things")
	assert.Contains(t, text, "Engineer")
	assert.Contains(t, text, "London")
	assert.Contains(t, text, "go")
	assert.Contains(t, text, "Build things")

	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'x'
	}
	truncated := JobText("T", nil, nil, string(long))
	assert.Less(t, len(truncated), 2100)
}

func TestCandidateText(t *testing.T) {
	text := CandidateText([]string{"software_engineering"}, "senior", []string{"go"}, "I like distributed systems")
	assert.Contains(t, text, "software_engineering")
	assert.Contains(t, text, "senior")
	assert.Contains(t, text, "distributed systems")
}
