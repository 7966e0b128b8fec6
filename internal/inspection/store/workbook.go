package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"routeaudit/internal/inspection/models"
	dErrors "routeaudit/pkg/domain-errors"
)

const (
	auditsSheet        = "ActiveAudits"
	registrationsSheet = "PhotoRegistrations"
)

var auditsHeader = []interface{}{"AuditID", "CreatedAt", "Status", "Date", "Leader", "Team", "Route", "Machine"}

var registrationsHeader = []interface{}{"AuditID", "Timestamp", "SectionID", "SectionTitle", "Observation", "PhotoBase64"}

// photoCellChars splits encoded photos across continuation cells. A cell
// string caps at 32,767 characters and excelize truncates silently beyond
// that, so a photo never fits a single cell once it passes ~24 KB.
const photoCellChars = 30000

// Workbook persists audits in an xlsx workbook: one mutable row per audit on
// the ActiveAudits sheet, one append-only row per section event on the
// PhotoRegistrations sheet. Load takes the latest registration per section
// ID. Each operation is a single whole-workbook save, which closes the
// partial-write window between photo and metadata.
type Workbook struct {
	path string
	now  func() time.Time

	// The workbook is a single document; one lock serializes every mutation,
	// which also satisfies per-audit serialization.
	mu sync.Mutex
}

// NewWorkbook constructs a workbook gateway at path, creating the workbook
// with its two sheets when absent.
func NewWorkbook(path string) (*Workbook, error) {
	s := &Workbook{path: path, now: time.Now}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s, nil
}

// WithClock overrides the time source for tests.
func (s *Workbook) WithClock(now func() time.Time) *Workbook {
	s.now = now
	return s
}

// open loads the workbook, initializing sheets and headers on first use.
// Callers must hold s.mu.
func (s *Workbook) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "open audit workbook")
	}
	f = excelize.NewFile()
	if err := f.SetSheetName("Sheet1", auditsSheet); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "initialize audit workbook")
	}
	if _, err := f.NewSheet(registrationsSheet); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "initialize audit workbook")
	}
	if err := f.SetSheetRow(auditsSheet, "A1", &auditsHeader); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "initialize audit workbook")
	}
	if err := f.SetSheetRow(registrationsSheet, "A1", &registrationsHeader); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "initialize audit workbook")
	}
	if err := f.SaveAs(s.path); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "save audit workbook")
	}
	return f, nil
}

func (s *Workbook) save(f *excelize.File) error {
	if err := f.Save(); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "save audit workbook")
	}
	return nil
}

func (s *Workbook) Create(_ context.Context, identification models.Identification) (*models.Audit, error) {
	audit, err := models.NewAudit(identification, s.now())
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(auditsSheet)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "read audits sheet")
	}
	row := []interface{}{
		audit.ID,
		audit.CreatedAt.UTC().Format(time.RFC3339Nano),
		string(audit.Status),
		identification.Date,
		identification.Leader,
		identification.Team,
		identification.Route,
		identification.Machine,
	}
	cell := fmt.Sprintf("A%d", len(rows)+1)
	if err := f.SetSheetRow(auditsSheet, cell, &row); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "append audit row")
	}
	if err := s.save(f); err != nil {
		return nil, err
	}
	return audit, nil
}

// findAuditRow returns the 1-based row index and parsed audit header for an
// ID, or ErrNotFound. Callers must hold s.mu.
func (s *Workbook) findAuditRow(f *excelize.File, auditID string) (int, *models.Audit, error) {
	rows, err := f.GetRows(auditsSheet)
	if err != nil {
		return 0, nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "read audits sheet")
	}
	for i, row := range rows {
		if i == 0 || len(row) == 0 || row[0] != auditID {
			continue
		}
		audit := &models.Audit{
			ID:       auditID,
			Status:   models.StatusActive,
			Sections: make(map[int]models.SectionEntry),
		}
		if len(row) > 1 {
			audit.CreatedAt, _ = time.Parse(time.RFC3339Nano, row[1])
		}
		if len(row) > 2 {
			audit.Status = models.Status(row[2])
		}
		if len(row) > 7 {
			audit.Identification = models.Identification{
				Date:    row[3],
				Leader:  row[4],
				Team:    row[5],
				Route:   row[6],
				Machine: row[7],
			}
		}
		return i + 1, audit, nil
	}
	return 0, nil, ErrNotFound
}

func (s *Workbook) RecordSection(_ context.Context, auditID string, entry models.SectionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	_, audit, err := s.findAuditRow(f, auditID)
	if err != nil {
		return err
	}
	if audit.Status != models.StatusActive {
		return ErrFinalized
	}

	recordedAt := entry.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = s.now()
	}
	rows, err := f.GetRows(registrationsSheet)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "read registrations sheet")
	}
	row := []interface{}{
		auditID,
		recordedAt.UTC().Format(time.RFC3339Nano),
		strconv.Itoa(entry.SectionID),
		entry.Title,
		entry.Observation,
	}
	for encoded := base64.StdEncoding.EncodeToString(entry.Photo); encoded != ""; {
		n := min(len(encoded), photoCellChars)
		row = append(row, encoded[:n])
		encoded = encoded[n:]
	}
	cell := fmt.Sprintf("A%d", len(rows)+1)
	if err := f.SetSheetRow(registrationsSheet, cell, &row); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "append registration row")
	}
	return s.save(f)
}

func (s *Workbook) Load(_ context.Context, auditID string) (*models.Audit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	_, audit, err := s.findAuditRow(f, auditID)
	if err != nil {
		return nil, err
	}
	rows, err := f.GetRows(registrationsSheet)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "read registrations sheet")
	}
	// Rows are appended in arrival order; the last row per section wins.
	// GetRows drops trailing empty cells, so an entry with an empty
	// observation and no photo legitimately comes back four cells wide.
	for i, row := range rows {
		if i == 0 || len(row) < 4 || row[0] != auditID {
			continue
		}
		sectionID, err := strconv.Atoi(row[2])
		if err != nil {
			continue
		}
		entry := models.SectionEntry{
			SectionID: sectionID,
			Title:     row[3],
		}
		if len(row) > 4 {
			entry.Observation = row[4]
		}
		entry.RecordedAt, _ = time.Parse(time.RFC3339Nano, row[1])
		if len(row) > 5 {
			// Photos span continuation cells from column F onward.
			encoded := strings.Join(row[5:], "")
			photo, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				// Undecodable photo cells count as not recorded; the previous
				// entry for the section survives.
				continue
			}
			entry.Photo = photo
		}
		audit.ApplySection(entry)
	}
	return audit, nil
}

func (s *Workbook) ListActive(ctx context.Context) ([]models.AuditSummary, error) {
	return s.list(ctx, models.StatusActive)
}

func (s *Workbook) ListFinalized(ctx context.Context) ([]models.AuditSummary, error) {
	return s.list(ctx, models.StatusFinalized)
}

func (s *Workbook) list(_ context.Context, status models.Status) ([]models.AuditSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sectionCounts, err := s.sectionCounts(f)
	if err != nil {
		return nil, err
	}
	rows, err := f.GetRows(auditsSheet)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "read audits sheet")
	}
	summaries := make([]models.AuditSummary, 0)
	for i, row := range rows {
		if i == 0 || len(row) < 8 {
			continue
		}
		if models.Status(row[2]) != status {
			continue
		}
		createdAt, _ := time.Parse(time.RFC3339Nano, row[1])
		summaries = append(summaries, models.AuditSummary{
			AuditID: row[0],
			Identification: models.Identification{
				Date:    row[3],
				Leader:  row[4],
				Team:    row[5],
				Route:   row[6],
				Machine: row[7],
			},
			CreatedAt:    createdAt,
			Status:       status,
			SectionCount: sectionCounts[row[0]],
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func (s *Workbook) sectionCounts(f *excelize.File) (map[string]int, error) {
	rows, err := f.GetRows(registrationsSheet)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "read registrations sheet")
	}
	seen := make(map[string]map[string]struct{})
	for i, row := range rows {
		if i == 0 || len(row) < 3 {
			continue
		}
		if seen[row[0]] == nil {
			seen[row[0]] = make(map[string]struct{})
		}
		seen[row[0]][row[2]] = struct{}{}
	}
	counts := make(map[string]int, len(seen))
	for auditID, sections := range seen {
		counts[auditID] = len(sections)
	}
	return counts, nil
}

func (s *Workbook) Finalize(_ context.Context, auditID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rowIndex, audit, err := s.findAuditRow(f, auditID)
	if err != nil {
		return err
	}
	if audit.Status == models.StatusFinalized {
		// Idempotent repeat.
		return nil
	}
	cell := fmt.Sprintf("C%d", rowIndex)
	if err := f.SetCellValue(auditsSheet, cell, string(models.StatusFinalized)); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "update audit status")
	}
	return s.save(f)
}
