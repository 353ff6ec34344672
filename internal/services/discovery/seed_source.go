package discovery

import (
	"context"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"
)

// seedFileFormat is the TOML shape of a seed list:
//
//	[[company]]
//	name = "Acme"
//	domain = "acme.test"
//	careers_url = "https://acme.test/careers"
type seedFileFormat struct {
	Company []Candidate `toml:"company"`
}

// SeedSource reads a static company list from a TOML file. Used for
// bootstrap and tests.
type SeedSource struct {
	path    string
	enabled bool
	logger  arbor.ILogger
}

// NewSeedSource creates a seed source reading from path
func NewSeedSource(path string, enabled bool, logger arbor.ILogger) *SeedSource {
	return &SeedSource{path: path, enabled: enabled, logger: logger}
}

func (s *SeedSource) Name() string        { return "seed" }
func (s *SeedSource) Description() string { return "Static company list from a TOML seed file" }
func (s *SeedSource) IsEnabled() bool     { return s.enabled }

// Produce reads up to limit candidates from the seed file
func (s *SeedSource) Produce(ctx context.Context, limit int) ([]Candidate, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", s.path, err)
	}

	var file seedFileFormat
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", s.path, err)
	}

	candidates := file.Company
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	for i := range candidates {
		candidates[i].Source = s.Name()
	}

	s.logger.Debug().
		Int("count", len(candidates)).
		Str("path", s.path).
		Msg("Seed source produced candidates")

	return candidates, nil
}
