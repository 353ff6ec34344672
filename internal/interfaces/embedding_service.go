package interfaces

import (
	"context"
)

// EmbeddingService generates fixed-dimension (D=384) vector embeddings for
// job and candidate text. Implementations must be safe to call concurrently
// from multiple callers.
type EmbeddingService interface {
	// GenerateEmbedding embeds a single piece of text.
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// GenerateEmbeddings embeds a batch of texts in as few upstream calls as
	// possible (default batch size 32), returning one vector per input in order.
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName and Dimension report the embedding model in use.
	ModelName() string
	Dimension() int

	// IsAvailable checks whether the embedding backend is reachable.
	IsAvailable(ctx context.Context) bool
}
