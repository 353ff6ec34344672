package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
	"github.com/ternarybob/hunt/internal/interfaces"
)

// Service implements EmbeddingService against an Ollama-compatible endpoint.
// Batches are sent as one upstream call per batchSize inputs; the http.Client
// is safe for concurrent callers.
type Service struct {
	baseURL   string
	modelName string
	dimension int
	batchSize int
	logger    arbor.ILogger
	client    *http.Client
}

// NewService creates a new embedding service from config
func NewService(config *common.EmbeddingsConfig, logger arbor.ILogger) interfaces.EmbeddingService {
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Service{
		baseURL:   config.URL,
		modelName: config.Model,
		dimension: config.Dimension,
		batchSize: batchSize,
		logger:    logger,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// GenerateEmbedding creates a vector embedding for one text
func (s *Service) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	vectors, err := s.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GenerateEmbeddings embeds a batch of texts, issuing one upstream call per
// batchSize inputs and returning one vector per input in order.
func (s *Service) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("text at index %d is empty", i)
		}
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := s.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// embedBatch issues one /api/embed call for a batch of inputs
func (s *Service) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"model": s.modelName,
		"input": texts,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/api/embed", s.baseURL),
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding backend returned status %d", resp.StatusCode)
	}

	var result struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding backend returned %d vectors for %d inputs", len(result.Embeddings), len(texts))
	}
	for i, vector := range result.Embeddings {
		if len(vector) != s.dimension {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(vector), s.dimension)
		}
	}

	s.logger.Debug().
		Int("batch_size", len(texts)).
		Int("dimension", s.dimension).
		Msg("Generated embedding batch")

	return result.Embeddings, nil
}

// ModelName returns the model name
func (s *Service) ModelName() string {
	return s.modelName
}

// Dimension returns the embedding dimension
func (s *Service) Dimension() int {
	return s.dimension
}

// IsAvailable checks if the embedding backend is reachable
func (s *Service) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/api/tags", s.baseURL),
		nil,
	)
	if err != nil {
		return false
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Embedding backend not available")
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// JobText builds the embedding input for a canonical job: title, locations,
// skills, and the truncated description.
func JobText(title string, locations, skills []string, description string) string {
	const maxDescription = 2000
	if len(description) > maxDescription {
		description = description[:maxDescription]
	}
	text := title
	for _, location := range locations {
		text += " " + location
	}
	for _, skill := range skills {
		text += " " + skill
	}
	if description != "" {
		text += "\n" + description
	}
	return text
}

// CandidateText builds the embedding input for a candidate profile: role
// families, seniority, skills, and free profile text.
func CandidateText(roleFamilies []string, seniority string, skills []string, profileText string) string {
	text := ""
	for _, family := range roleFamilies {
		text += family + " "
	}
	if seniority != "" {
		text += seniority + " "
	}
	for _, skill := range skills {
		text += skill + " "
	}
	if profileText != "" {
		text += "\n" + profileText
	}
	return text
}
