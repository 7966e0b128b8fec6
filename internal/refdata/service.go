package refdata

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Store is the persistence contract the service consumes; defined here so the
// service depends on behavior, not on a store package.
type Store interface {
	List(ctx context.Context, category Category) ([]string, error)
	Add(ctx context.Context, category Category, value string) error
	Remove(ctx context.Context, category Category, value string) error
	ListSections(ctx context.Context) ([]SectionDefinition, error)
}

type cachedValues struct {
	values   []string
	storedAt time.Time
}

type cachedSections struct {
	sections []SectionDefinition
	storedAt time.Time
}

// Service fronts the store with a read-through TTL cache. Reference data is
// read on every workflow page, so reads dominate; staleness within the TTL is
// acceptable for data mutated elsewhere, but a mutation through this service
// invalidates synchronously so it can never mask itself.
type Service struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	values   map[Category]cachedValues
	sections *cachedSections
	now      func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs the reference data service. A non-positive ttl
// disables caching.
func NewService(store Store, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		store:  store,
		ttl:    ttl,
		logger: slog.Default(),
		values: make(map[Category]cachedValues),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the current values for a category, cached up to the TTL.
func (s *Service) List(ctx context.Context, category Category) ([]string, error) {
	if _, err := ParseCategory(string(category)); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if cached, ok := s.values[category]; ok && s.fresh(cached.storedAt) {
		values := slices.Clone(cached.values)
		s.mu.Unlock()
		return values, nil
	}
	s.mu.Unlock()

	values, err := s.store.List(ctx, category)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.values[category] = cachedValues{values: slices.Clone(values), storedAt: s.now()}
	s.mu.Unlock()
	return values, nil
}

// ListSections returns the ordered checklist definitions, cached up to the TTL.
func (s *Service) ListSections(ctx context.Context) ([]SectionDefinition, error) {
	s.mu.Lock()
	if c := s.sections; c != nil && s.fresh(c.storedAt) {
		sections := slices.Clone(c.sections)
		s.mu.Unlock()
		return sections, nil
	}
	s.mu.Unlock()

	sections, err := s.store.ListSections(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.sections = &cachedSections{sections: slices.Clone(sections), storedAt: s.now()}
	s.mu.Unlock()
	return sections, nil
}

// Add stores a new value and synchronously drops the category from the cache,
// so the mutation is visible to the very next read.
func (s *Service) Add(ctx context.Context, category Category, value string) error {
	if _, err := ParseCategory(string(category)); err != nil {
		return err
	}
	if err := s.store.Add(ctx, category, value); err != nil {
		return err
	}
	s.invalidate(category)
	s.logger.InfoContext(ctx, "reference value added", "category", category, "value", value)
	return nil
}

// Remove deletes a value with the same synchronous invalidation as Add.
func (s *Service) Remove(ctx context.Context, category Category, value string) error {
	if _, err := ParseCategory(string(category)); err != nil {
		return err
	}
	if err := s.store.Remove(ctx, category, value); err != nil {
		return err
	}
	s.invalidate(category)
	s.logger.InfoContext(ctx, "reference value removed", "category", category, "value", value)
	return nil
}

func (s *Service) invalidate(category Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, category)
	if category == CategorySection {
		s.sections = nil
	}
}

func (s *Service) fresh(storedAt time.Time) bool {
	return s.ttl > 0 && s.now().Sub(storedAt) < s.ttl
}
