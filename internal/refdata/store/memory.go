package store

import (
	"context"
	"slices"
	"sync"

	"routeaudit/internal/refdata"
)

// Memory keeps reference data in process memory for tests and development.
type Memory struct {
	mu       sync.RWMutex
	values   map[refdata.Category][]string
	sections []refdata.SectionDefinition
	nextID   int
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		values: make(map[refdata.Category][]string),
		nextID: 1,
	}
}

func (s *Memory) List(_ context.Context, category refdata.Category) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if category == refdata.CategorySection {
		titles := make([]string, 0, len(s.sections))
		for _, sec := range s.sections {
			titles = append(titles, sec.Title)
		}
		return titles, nil
	}
	return slices.Clone(s.values[category]), nil
}

func (s *Memory) Add(_ context.Context, category refdata.Category, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if category == refdata.CategorySection {
		for _, sec := range s.sections {
			if sec.Title == value {
				return ErrAlreadyExists
			}
		}
		s.sections = append(s.sections, refdata.SectionDefinition{ID: s.nextID, Title: value})
		s.nextID++
		return nil
	}
	if slices.Contains(s.values[category], value) {
		return ErrAlreadyExists
	}
	s.values[category] = append(s.values[category], value)
	return nil
}

func (s *Memory) Remove(_ context.Context, category refdata.Category, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if category == refdata.CategorySection {
		for i, sec := range s.sections {
			if sec.Title == value {
				// Surviving sections keep their IDs.
				s.sections = append(s.sections[:i], s.sections[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	}
	i := slices.Index(s.values[category], value)
	if i < 0 {
		return ErrNotFound
	}
	s.values[category] = append(s.values[category][:i], s.values[category][i+1:]...)
	return nil
}

func (s *Memory) ListSections(_ context.Context) ([]refdata.SectionDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sections), nil
}
