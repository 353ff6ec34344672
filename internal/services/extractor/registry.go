package extractor

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/hunt/internal/models"
)

// Extractor turns one company's listing source (vendor API or careers page)
// into raw job records. One implementation per ATS vendor plus the LLM
// fallback for custom sites. Adding a vendor is a registry entry plus an
// implementation, no core changes.
type Extractor interface {
	// ATSType identifies which vendor this extractor serves
	ATSType() models.ATSType

	// List returns the company's current raw jobs. An empty result is valid
	// (no open roles); errors mean the listing source itself failed.
	List(ctx context.Context, company *models.Company) ([]*models.RawJob, error)
}

// Registry holds extractors keyed by ATS type.
type Registry struct {
	extractors map[models.ATSType]Extractor
	mu         sync.RWMutex
}

// NewRegistry creates an empty extractor registry
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[models.ATSType]Extractor)}
}

// Register adds an extractor for its ATS type
func (r *Registry) Register(e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[e.ATSType()] = e
}

// Get returns the extractor for an ATS type
func (r *Registry) Get(ats models.ATSType) (Extractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[ats]
	if !ok {
		return nil, fmt.Errorf("no extractor registered for ats type: %s", ats)
	}
	return e, nil
}

// Types returns the registered ATS types
func (r *Registry) Types() []models.ATSType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]models.ATSType, 0, len(r.extractors))
	for ats := range r.extractors {
		types = append(types, ats)
	}
	return types
}
