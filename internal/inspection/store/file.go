package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"routeaudit/internal/inspection/models"
	dErrors "routeaudit/pkg/domain-errors"
)

const manifestName = "manifest.json"

// manifest is the durable per-audit document. Photo records are append-only;
// Load resolves the latest record per section ID so a re-submitted section
// supersedes the earlier one without rewriting history.
type manifest struct {
	AuditID        string                `json:"audit_id"`
	CreatedAt      time.Time             `json:"created_at"`
	Status         models.Status         `json:"status"`
	Identification models.Identification `json:"identification"`
	Photos         []photoRecord         `json:"photos"`
}

type photoRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	SectionID     int       `json:"section_id"`
	SectionTitle  string    `json:"section_title"`
	PhotoFilename string    `json:"photo_filename,omitempty"`
	Observation   string    `json:"observation"`
}

// File persists each audit as a directory holding manifest.json plus sibling
// image files. The photo file is written before its manifest record, so a
// crash between the two leaves an orphan image that Load ignores; a manifest
// record is the sole authority on whether a section was recorded.
type File struct {
	dir string
	now func() time.Time

	// locks serializes mutations per audit ID so concurrent resumes of the
	// same audit cannot interleave manifest rewrites.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFile constructs a file gateway rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit data directory unavailable")
	}
	return &File{dir: dir, now: time.Now, locks: make(map[string]*sync.Mutex)}, nil
}

// WithClock overrides the time source for tests.
func (s *File) WithClock(now func() time.Time) *File {
	s.now = now
	return s
}

func (s *File) lockFor(auditID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[auditID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[auditID] = l
	}
	return l
}

func (s *File) auditDir(auditID string) (string, error) {
	// IDs are generated internally, but never trust them as path segments.
	if auditID == "" || auditID != filepath.Base(auditID) {
		return "", ErrNotFound
	}
	return filepath.Join(s.dir, auditID), nil
}

func (s *File) Create(_ context.Context, identification models.Identification) (*models.Audit, error) {
	audit, err := models.NewAudit(identification, s.now())
	if err != nil {
		return nil, err
	}
	dir, err := s.auditDir(audit.ID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "create audit directory")
	}
	m := manifest{
		AuditID:        audit.ID,
		CreatedAt:      audit.CreatedAt,
		Status:         audit.Status,
		Identification: audit.Identification,
		Photos:         []photoRecord{},
	}
	if err := s.writeManifest(dir, m); err != nil {
		// The audit must not count as started; remove the half-made directory.
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return audit, nil
}

func (s *File) RecordSection(_ context.Context, auditID string, entry models.SectionEntry) error {
	lock := s.lockFor(auditID)
	lock.Lock()
	defer lock.Unlock()

	dir, err := s.auditDir(auditID)
	if err != nil {
		return err
	}
	m, err := s.readManifest(dir)
	if err != nil {
		return err
	}
	if m.Status != models.StatusActive {
		return ErrFinalized
	}

	recordedAt := entry.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = s.now()
	}
	record := photoRecord{
		Timestamp:    recordedAt,
		SectionID:    entry.SectionID,
		SectionTitle: entry.Title,
		Observation:  entry.Observation,
	}
	if entry.HasPhoto() {
		// Image first, manifest second: an interrupted write leaves an orphan
		// file, never a manifest record pointing at missing bytes.
		record.PhotoFilename = fmt.Sprintf("section_%d_%d.png", entry.SectionID, recordedAt.UnixNano())
		if err := os.WriteFile(filepath.Join(dir, record.PhotoFilename), entry.Photo, 0o644); err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "write section photo")
		}
	}
	m.Photos = append(m.Photos, record)
	return s.writeManifest(dir, m)
}

func (s *File) Load(_ context.Context, auditID string) (*models.Audit, error) {
	dir, err := s.auditDir(auditID)
	if err != nil {
		return nil, err
	}
	m, err := s.readManifest(dir)
	if err != nil {
		return nil, err
	}
	return s.buildAudit(dir, m)
}

func (s *File) buildAudit(dir string, m manifest) (*models.Audit, error) {
	audit := &models.Audit{
		ID:             m.AuditID,
		CreatedAt:      m.CreatedAt,
		Status:         m.Status,
		Identification: m.Identification,
		Sections:       make(map[int]models.SectionEntry),
	}
	// Records are appended in arrival order; a later record for the same
	// section replaces the earlier one wholesale.
	for _, record := range m.Photos {
		entry := models.SectionEntry{
			SectionID:   record.SectionID,
			Title:       record.SectionTitle,
			Observation: record.Observation,
			RecordedAt:  record.Timestamp,
		}
		if record.PhotoFilename != "" {
			photo, err := os.ReadFile(filepath.Join(dir, record.PhotoFilename))
			if err != nil {
				// A manifest record whose image cannot be read counts as not
				// recorded; the previous entry for the section survives.
				continue
			}
			entry.Photo = photo
		}
		audit.ApplySection(entry)
	}
	return audit, nil
}

func (s *File) ListActive(ctx context.Context) ([]models.AuditSummary, error) {
	return s.list(ctx, models.StatusActive)
}

func (s *File) ListFinalized(ctx context.Context) ([]models.AuditSummary, error) {
	return s.list(ctx, models.StatusFinalized)
}

func (s *File) list(_ context.Context, status models.Status) ([]models.AuditSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "read audit data directory")
	}
	summaries := make([]models.AuditSummary, 0)
	for _, dirEntry := range entries {
		if !dirEntry.IsDir() {
			continue
		}
		m, err := s.readManifest(filepath.Join(s.dir, dirEntry.Name()))
		if err != nil {
			// Directories without a readable manifest are half-created
			// audits; skip them rather than failing the whole listing.
			continue
		}
		if m.Status != status {
			continue
		}
		summaries = append(summaries, models.AuditSummary{
			AuditID:        m.AuditID,
			Identification: m.Identification,
			CreatedAt:      m.CreatedAt,
			Status:         m.Status,
			SectionCount:   countSections(m),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func countSections(m manifest) int {
	seen := make(map[int]struct{})
	for _, record := range m.Photos {
		seen[record.SectionID] = struct{}{}
	}
	return len(seen)
}

func (s *File) Finalize(_ context.Context, auditID string) error {
	lock := s.lockFor(auditID)
	lock.Lock()
	defer lock.Unlock()

	dir, err := s.auditDir(auditID)
	if err != nil {
		return err
	}
	m, err := s.readManifest(dir)
	if err != nil {
		return err
	}
	if m.Status == models.StatusFinalized {
		// Idempotent repeat.
		return nil
	}
	m.Status = models.StatusFinalized
	return s.writeManifest(dir, m)
}

func (s *File) readManifest(dir string) (manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return manifest{}, ErrNotFound
		}
		return manifest{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "read audit manifest")
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return manifest{}, dErrors.Wrap(err, dErrors.CodePersistence, "decode audit manifest")
	}
	return m, nil
}

// writeManifest replaces the manifest atomically so readers never observe a
// torn document.
func (s *File) writeManifest(dir string, m manifest) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "encode audit manifest")
	}
	tmp := filepath.Join(dir, manifestName+".tmp")
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "write audit manifest")
	}
	if err := os.Rename(tmp, filepath.Join(dir, manifestName)); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "replace audit manifest")
	}
	return nil
}
