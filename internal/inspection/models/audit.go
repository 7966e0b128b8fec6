// Package models defines the audit record aggregate and its lifecycle rules.
package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "routeaudit/pkg/domain-errors"
)

// Status is the audit lifecycle state.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusFinalized Status = "FINALIZED"
)

// Identification is the fixed set of fields naming one inspection run. It is
// set at creation and immutable afterwards; re-identification means a new
// audit.
type Identification struct {
	Date    string `json:"date"`
	Leader  string `json:"leader"`
	Team    string `json:"team"`
	Route   string `json:"route"`
	Machine string `json:"machine"`
}

// Validate rejects identifications with empty fields.
func (id Identification) Validate() error {
	var missing []string
	for field, value := range map[string]string{
		"date":    id.Date,
		"leader":  id.Leader,
		"team":    id.Team,
		"route":   id.Route,
		"machine": id.Machine,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return dErrors.Newf(dErrors.CodeValidation, "identification missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// SectionEntry is one recorded checklist section: an observation and an
// optional photo. A later entry for the same section ID fully replaces an
// earlier one; entries are never merged.
type SectionEntry struct {
	SectionID   int       `json:"section_id"`
	Title       string    `json:"section_title"`
	Observation string    `json:"observation"`
	Photo       []byte    `json:"-"`
	RecordedAt  time.Time `json:"timestamp"`
}

// HasPhoto reports whether the entry carries photo bytes.
func (e SectionEntry) HasPhoto() bool { return len(e.Photo) > 0 }

// Audit is the aggregate for one inspection run.
//
// Invariants:
//   - ID and CreatedAt are immutable after construction
//   - Identification is immutable after construction
//   - Status transitions ACTIVE → FINALIZED exactly once, never back
//   - Sections is last-write-wins per section ID while ACTIVE and frozen
//     once FINALIZED
type Audit struct {
	ID             string               `json:"audit_id"`
	CreatedAt      time.Time            `json:"created_at"`
	Status         Status               `json:"status"`
	Identification Identification       `json:"identification"`
	Sections       map[int]SectionEntry `json:"-"`
}

// NewAudit constructs an ACTIVE audit with a fresh ID. The ID embeds the
// creation timestamp for operator-visible ordering plus a random suffix for
// uniqueness.
func NewAudit(identification Identification, now time.Time) (*Audit, error) {
	if err := identification.Validate(); err != nil {
		return nil, err
	}
	return &Audit{
		ID:             fmt.Sprintf("%s-%s", now.UTC().Format("20060102150405"), uuid.NewString()[:8]),
		CreatedAt:      now,
		Status:         StatusActive,
		Identification: identification,
		Sections:       make(map[int]SectionEntry),
	}, nil
}

// IsActive reports whether the audit still accepts section entries.
func (a *Audit) IsActive() bool { return a.Status == StatusActive }

// CanRecordSection checks the lifecycle rule for section mutation.
func (a *Audit) CanRecordSection() error {
	if !a.IsActive() {
		return dErrors.New(dErrors.CodeInvalidState, "audit is finalized and immutable")
	}
	return nil
}

// ApplySection upserts one entry, replacing any prior entry for the same
// section ID. Call CanRecordSection first.
func (a *Audit) ApplySection(entry SectionEntry) {
	if a.Sections == nil {
		a.Sections = make(map[int]SectionEntry)
	}
	a.Sections[entry.SectionID] = entry
}

// CanFinalize checks the ACTIVE → FINALIZED transition. A finalized audit
// reports AlreadyFinalized through CodeInvalidState so callers can treat a
// repeat as a no-op rather than a hard failure.
func (a *Audit) CanFinalize() error {
	if !a.IsActive() {
		return dErrors.New(dErrors.CodeInvalidState, "audit already finalized")
	}
	return nil
}

// ApplyFinalize marks the audit FINALIZED.
func (a *Audit) ApplyFinalize() {
	a.Status = StatusFinalized
}

// OrderedSections returns entries sorted by section ID, for media that need a
// stable serialization order.
func (a *Audit) OrderedSections() []SectionEntry {
	entries := make([]SectionEntry, 0, len(a.Sections))
	for _, e := range a.Sections {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].SectionID < entries[j].SectionID })
	return entries
}

// Clone returns a deep copy so callers can hand out audits without sharing
// the sections map or photo buffers.
func (a *Audit) Clone() *Audit {
	cp := *a
	cp.Sections = make(map[int]SectionEntry, len(a.Sections))
	for id, e := range a.Sections {
		if e.Photo != nil {
			photo := make([]byte, len(e.Photo))
			copy(photo, e.Photo)
			e.Photo = photo
		}
		cp.Sections[id] = e
	}
	return &cp
}

// AuditSummary is the listing projection for resumable and historical audits.
type AuditSummary struct {
	AuditID        string         `json:"audit_id"`
	Identification Identification `json:"identification"`
	CreatedAt      time.Time      `json:"created_at"`
	Status         Status         `json:"status"`
	SectionCount   int            `json:"section_count"`
}
