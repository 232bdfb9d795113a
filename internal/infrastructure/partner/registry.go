package partner

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/shipquote/backend/internal/domain"
)

// Registry maps partner ids to their implementations
type Registry struct {
	mu       sync.RWMutex
	partners map[string]domain.Partner
}

var _ domain.PartnerDirectory = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{partners: make(map[string]domain.Partner)}
}

func (r *Registry) Register(p domain.Partner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.partners[p.ID()]; ok {
		return fmt.Errorf("partner %q already registered", p.ID())
	}
	r.partners[p.ID()] = p
	return nil
}

func (r *Registry) Get(id string) (domain.Partner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.partners[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrPartnerUnknown, id)
	}
	return p, nil
}

// IDs lists registered partners in sorted order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.partners))
	for id := range r.partners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close shuts down every partner, collecting their errors
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for id, p := range r.partners {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
