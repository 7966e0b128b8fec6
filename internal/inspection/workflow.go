// Package inspection orchestrates the audit lifecycle: start, per-section
// recording, finalize, report download, and resume. The workflow is an
// explicit state machine driven by discrete user actions; the persistence
// gateway is the sole source of truth for anything that must survive a
// restart.
package inspection

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"routeaudit/internal/inspection/models"
	"routeaudit/internal/inspection/store"
	"routeaudit/internal/platform/metrics"
	"routeaudit/internal/refdata"
	dErrors "routeaudit/pkg/domain-errors"
)

// State is the workflow position for one operator session.
type State string

const (
	StateNoActiveAudit  State = "NO_ACTIVE_AUDIT"
	StateAuditActive    State = "AUDIT_ACTIVE"
	StateAuditFinalized State = "AUDIT_FINALIZED"
)

// ReferenceData is the slice of the reference service the workflow consumes.
type ReferenceData interface {
	List(ctx context.Context, category refdata.Category) ([]string, error)
	ListSections(ctx context.Context) ([]refdata.SectionDefinition, error)
}

// Renderer produces the report document for a loaded audit.
type Renderer func(audit *models.Audit, sectionOrder []refdata.SectionDefinition) ([]byte, error)

// Namer derives the download filename for a rendered audit.
type Namer func(audit *models.Audit) string

// Workflow is the per-session controller. It holds at most one audit checked
// out for editing and writes through to the gateway on every mutation, so an
// interrupted session loses nothing that was submitted.
type Workflow struct {
	gateway  store.Gateway
	refdata  ReferenceData
	render   Renderer
	filename Namer
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu         sync.Mutex
	state      State
	auditID    string
	report     []byte
	reportName string
}

// NewWorkflow constructs a controller in NO_ACTIVE_AUDIT.
func NewWorkflow(gateway store.Gateway, reference ReferenceData, render Renderer, filename Namer, logger *slog.Logger, m *metrics.Metrics) *Workflow {
	return &Workflow{
		gateway:  gateway,
		refdata:  reference,
		render:   render,
		filename: filename,
		logger:   logger,
		metrics:  m,
		state:    StateNoActiveAudit,
	}
}

// State reports the current position and, when active or finalized, the
// checked-out audit ID.
func (w *Workflow) State() (State, string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.auditID
}

// Start creates a new audit from identification fields. Every reference
// category must have values first; an inspection cannot run against an empty
// checklist. On gateway failure the session stays in NO_ACTIVE_AUDIT.
func (w *Workflow) Start(ctx context.Context, identification models.Identification) (*models.Audit, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateAuditActive {
		return nil, dErrors.New(dErrors.CodeInvalidState, "an audit is already active; finalize or abandon it first")
	}
	if err := w.checkReferenceData(ctx); err != nil {
		return nil, err
	}
	audit, err := w.gateway.Create(ctx, identification)
	if err != nil {
		return nil, err
	}
	w.state = StateAuditActive
	w.auditID = audit.ID
	w.report = nil
	w.reportName = ""
	w.metrics.AuditsStarted.Inc()
	w.logger.InfoContext(ctx, "audit started", "audit_id", audit.ID, "leader", identification.Leader, "route", identification.Route)
	return audit, nil
}

// checkReferenceData verifies every category has at least one value. The
// lists are fetched in parallel with shared cancellation: on a durable
// backend each read may touch disk.
func (w *Workflow) checkReferenceData(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var empty []string
	for _, category := range refdata.Categories() {
		g.Go(func() error {
			values, err := w.refdata.List(ctx, category)
			if err != nil {
				return err
			}
			if len(values) == 0 {
				mu.Lock()
				empty = append(empty, string(category))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(empty) > 0 {
		sort.Strings(empty)
		return dErrors.Newf(dErrors.CodeValidation, "no %s registered; populate reference data first", strings.Join(empty, ", "))
	}
	return nil
}

// SubmitSection records one section entry, writing through to the gateway.
// Failures keep the session AUDIT_ACTIVE so the caller can retry with the
// same input.
func (w *Workflow) SubmitSection(ctx context.Context, entry models.SectionEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateAuditActive {
		return dErrors.New(dErrors.CodeInvalidState, "no active audit")
	}
	if entry.Title == "" {
		title, err := w.sectionTitle(ctx, entry.SectionID)
		if err != nil {
			return err
		}
		entry.Title = title
	}
	if err := w.gateway.RecordSection(ctx, w.auditID, entry); err != nil {
		return err
	}
	w.metrics.SectionsRecorded.Inc()
	w.logger.InfoContext(ctx, "section recorded",
		"audit_id", w.auditID,
		"section_id", entry.SectionID,
		"has_photo", entry.HasPhoto(),
	)
	return nil
}

func (w *Workflow) sectionTitle(ctx context.Context, sectionID int) (string, error) {
	sections, err := w.refdata.ListSections(ctx)
	if err != nil {
		return "", err
	}
	for _, def := range sections {
		if def.ID == sectionID {
			return def.Title, nil
		}
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "unknown section id %d", sectionID)
}

// Finalize loads the full record, renders the report, and only then marks
// the audit finalized, so a rendering failure leaves the audit ACTIVE and
// the operator retries without re-entering anything.
func (w *Workflow) Finalize(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateAuditActive {
		return "", dErrors.New(dErrors.CodeInvalidState, "no active audit")
	}
	audit, err := w.gateway.Load(ctx, w.auditID)
	if err != nil {
		return "", err
	}
	sections, err := w.refdata.ListSections(ctx)
	if err != nil {
		return "", err
	}
	document, err := w.render(audit, sections)
	if err != nil {
		w.metrics.RenderFailures.Inc()
		w.logger.ErrorContext(ctx, "report rendering failed", "audit_id", w.auditID, "error", err)
		return "", dErrors.Wrap(err, dErrors.CodeRender, "render audit report")
	}
	if err := w.gateway.Finalize(ctx, w.auditID); err != nil {
		return "", err
	}
	w.state = StateAuditFinalized
	w.report = document
	w.reportName = w.filename(audit)
	w.metrics.AuditsFinalized.Inc()
	w.metrics.ReportsRendered.Inc()
	w.logger.InfoContext(ctx, "audit finalized", "audit_id", w.auditID, "report", w.reportName)
	return w.reportName, nil
}

// Report hands out the rendered document while the session is in
// AUDIT_FINALIZED.
func (w *Workflow) Report() (string, []byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateAuditFinalized {
		return "", nil, dErrors.New(dErrors.CodeInvalidState, "no finalized report pending download")
	}
	return w.reportName, w.report, nil
}

// Acknowledge returns to NO_ACTIVE_AUDIT after the report was downloaded or
// dismissed.
func (w *Workflow) Acknowledge() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateAuditFinalized {
		return dErrors.New(dErrors.CodeInvalidState, "no finalized report pending")
	}
	w.reset()
	return nil
}

// Abandon detaches from the active audit without finalizing. The record stays
// ACTIVE and resumable.
func (w *Workflow) Abandon() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateAuditActive {
		return dErrors.New(dErrors.CodeInvalidState, "no active audit")
	}
	w.reset()
	return nil
}

func (w *Workflow) reset() {
	w.state = StateNoActiveAudit
	w.auditID = ""
	w.report = nil
	w.reportName = ""
}

// Resume checks out an existing ACTIVE audit, reconstructing its prior
// entries for display.
func (w *Workflow) Resume(ctx context.Context, auditID string) (*models.Audit, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateAuditActive {
		return nil, dErrors.New(dErrors.CodeInvalidState, "an audit is already active; finalize or abandon it first")
	}
	audit, err := w.gateway.Load(ctx, auditID)
	if err != nil {
		return nil, err
	}
	if !audit.IsActive() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "audit is finalized and cannot be resumed")
	}
	w.state = StateAuditActive
	w.auditID = audit.ID
	w.report = nil
	w.reportName = ""
	w.logger.InfoContext(ctx, "audit resumed", "audit_id", audit.ID, "sections", len(audit.Sections))
	return audit, nil
}

// Current loads the checked-out audit for display.
func (w *Workflow) Current(ctx context.Context) (*models.Audit, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateAuditActive {
		return nil, dErrors.New(dErrors.CodeInvalidState, "no active audit")
	}
	return w.gateway.Load(ctx, w.auditID)
}

// ListResumable enumerates audits any session may pick up, most recent first.
func (w *Workflow) ListResumable(ctx context.Context) ([]models.AuditSummary, error) {
	return w.gateway.ListActive(ctx)
}

// ListHistory enumerates finalized audits for the history display.
func (w *Workflow) ListHistory(ctx context.Context) ([]models.AuditSummary, error) {
	return w.gateway.ListFinalized(ctx)
}

// Manager hands each operator session its own workflow controller over the
// shared gateway and reference data.
type Manager struct {
	gateway  store.Gateway
	refdata  ReferenceData
	render   Renderer
	filename Namer
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*Workflow
}

// NewManager constructs the session registry.
func NewManager(gateway store.Gateway, reference ReferenceData, render Renderer, filename Namer, logger *slog.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		gateway:  gateway,
		refdata:  reference,
		render:   render,
		filename: filename,
		logger:   logger,
		metrics:  m,
		sessions: make(map[string]*Workflow),
	}
}

// Workflow returns the controller for a session, creating it on first use.
func (m *Manager) Workflow(sessionID string) (*Workflow, error) {
	if sessionID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing session")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, ok := m.sessions[sessionID]
	if !ok {
		wf = NewWorkflow(m.gateway, m.refdata, m.render, m.filename, m.logger.With("session", fmt.Sprintf("%.8s", sessionID)), m.metrics)
		m.sessions[sessionID] = wf
	}
	return wf, nil
}
