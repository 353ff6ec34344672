package discovery

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/services/fetcher"
)

// CatalogSource pulls candidates from an external JSON company catalog: an
// endpoint returning `{"companies": [{"name": ..., "domain": ...}, ...]}`.
type CatalogSource struct {
	url     string
	enabled bool
	fetcher *fetcher.Service
	logger  arbor.ILogger
}

// NewCatalogSource creates a catalog source reading from url
func NewCatalogSource(url string, enabled bool, fetchSvc *fetcher.Service, logger arbor.ILogger) *CatalogSource {
	return &CatalogSource{url: url, enabled: enabled, fetcher: fetchSvc, logger: logger}
}

func (s *CatalogSource) Name() string        { return "catalog" }
func (s *CatalogSource) Description() string { return "External JSON company catalog endpoint" }

func (s *CatalogSource) IsEnabled() bool {
	return s.enabled && s.url != ""
}

// Produce fetches the catalog endpoint and returns up to limit candidates
func (s *CatalogSource) Produce(ctx context.Context, limit int) ([]Candidate, error) {
	if s.url == "" {
		return nil, fmt.Errorf("catalog source has no URL configured")
	}

	var payload struct {
		Companies []Candidate `json:"companies"`
	}
	if err := s.fetcher.GetJSON(ctx, s.url, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch catalog %s: %w", s.url, err)
	}

	candidates := payload.Companies
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	for i := range candidates {
		candidates[i].Source = s.Name()
	}

	s.logger.Debug().
		Int("count", len(candidates)).
		Str("url", s.url).
		Msg("Catalog source produced candidates")

	return candidates, nil
}
