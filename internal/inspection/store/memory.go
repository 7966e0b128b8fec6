package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"routeaudit/internal/inspection/models"
)

// Memory keeps audits in process memory. It backs tests and development; it
// intentionally favors clarity over performance.
type Memory struct {
	mu     sync.RWMutex
	audits map[string]*models.Audit
	now    func() time.Time
}

// NewMemory constructs an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{audits: make(map[string]*models.Audit), now: time.Now}
}

// WithClock overrides the time source for tests.
func (s *Memory) WithClock(now func() time.Time) *Memory {
	s.now = now
	return s
}

func (s *Memory) Create(_ context.Context, identification models.Identification) (*models.Audit, error) {
	audit, err := models.NewAudit(identification, s.now())
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits[audit.ID] = audit
	return audit.Clone(), nil
}

func (s *Memory) RecordSection(_ context.Context, auditID string, entry models.SectionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	audit, ok := s.audits[auditID]
	if !ok {
		return ErrNotFound
	}
	if err := audit.CanRecordSection(); err != nil {
		return ErrFinalized
	}
	audit.ApplySection(entry)
	return nil
}

func (s *Memory) Load(_ context.Context, auditID string) (*models.Audit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	audit, ok := s.audits[auditID]
	if !ok {
		return nil, ErrNotFound
	}
	return audit.Clone(), nil
}

func (s *Memory) ListActive(_ context.Context) ([]models.AuditSummary, error) {
	return s.list(models.StatusActive), nil
}

func (s *Memory) ListFinalized(_ context.Context) ([]models.AuditSummary, error) {
	return s.list(models.StatusFinalized), nil
}

func (s *Memory) list(status models.Status) []models.AuditSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summaries := make([]models.AuditSummary, 0)
	for _, audit := range s.audits {
		if audit.Status != status {
			continue
		}
		summaries = append(summaries, models.AuditSummary{
			AuditID:        audit.ID,
			Identification: audit.Identification,
			CreatedAt:      audit.CreatedAt,
			Status:         audit.Status,
			SectionCount:   len(audit.Sections),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries
}

func (s *Memory) Finalize(_ context.Context, auditID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	audit, ok := s.audits[auditID]
	if !ok {
		return ErrNotFound
	}
	if !audit.IsActive() {
		// Idempotent repeat.
		return nil
	}
	audit.ApplyFinalize()
	return nil
}
