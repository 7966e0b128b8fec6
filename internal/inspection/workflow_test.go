package inspection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"routeaudit/internal/inspection/models"
	"routeaudit/internal/inspection/store"
	"routeaudit/internal/platform/metrics"
	"routeaudit/internal/refdata"
	refstore "routeaudit/internal/refdata/store"
	"routeaudit/internal/report"
	dErrors "routeaudit/pkg/domain-errors"
)

// WorkflowSuite drives the state machine against real in-memory stores and
// the real renderer.
type WorkflowSuite struct {
	suite.Suite
	ctx      context.Context
	gateway  store.Gateway
	refstore *refstore.Memory
	workflow *Workflow
}

func (s *WorkflowSuite) SetupTest() {
	s.ctx = context.Background()
	s.gateway = store.NewMemory()
	s.refstore = refstore.NewMemory()
	s.workflow = s.newWorkflow(report.Render)
}

func (s *WorkflowSuite) newWorkflow(render Renderer) *Workflow {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reference := refdata.NewService(s.refstore, 0, refdata.WithLogger(logger))
	return NewWorkflow(s.gateway, reference, render, report.Filename, logger, metrics.NewForTesting())
}

func (s *WorkflowSuite) seedReferenceData() {
	for category, values := range map[refdata.Category][]string{
		refdata.CategoryLeader:  {"Ana"},
		refdata.CategoryTeam:    {"A"},
		refdata.CategoryRoute:   {"R1"},
		refdata.CategoryMachine: {"M1"},
		refdata.CategorySection: {"Check EPI", "Clean machine"},
	} {
		for _, v := range values {
			s.Require().NoError(s.refstore.Add(s.ctx, category, v))
		}
	}
}

func (s *WorkflowSuite) identification() models.Identification {
	return models.Identification{Date: "2024-01-10", Leader: "Ana", Team: "A", Route: "R1", Machine: "M1"}
}

func TestWorkflowSuite(t *testing.T) {
	suite.Run(t, new(WorkflowSuite))
}

func (s *WorkflowSuite) TestStartRequiresReferenceData() {
	_, err := s.workflow.Start(s.ctx, s.identification())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	state, _ := s.workflow.State()
	s.Equal(StateNoActiveAudit, state)
}

// The end-to-end scenario: start, record a text section and a photo section,
// finalize, download. The document carries the identification and section
// content, and the pre-finalize load preserves the empty observation exactly.
func (s *WorkflowSuite) TestFullLifecycle() {
	s.seedReferenceData()

	audit, err := s.workflow.Start(s.ctx, s.identification())
	s.Require().NoError(err)
	state, checkedOut := s.workflow.State()
	s.Equal(StateAuditActive, state)
	s.Equal(audit.ID, checkedOut)

	s.Require().NoError(s.workflow.SubmitSection(s.ctx, models.SectionEntry{
		SectionID: 1, Title: "Check EPI", Observation: "ok",
	}))
	photo := []byte("\x89PNG\r\n\x1a\ntruncated")
	s.Require().NoError(s.workflow.SubmitSection(s.ctx, models.SectionEntry{
		SectionID: 2, Title: "Clean machine", Observation: "", Photo: photo,
	}))

	loaded, err := s.workflow.Current(s.ctx)
	s.Require().NoError(err)
	s.Require().Contains(loaded.Sections, 2)
	s.Equal("", loaded.Sections[2].Observation, "empty observation must not be dropped")
	s.Equal(photo, loaded.Sections[2].Photo)

	name, err := s.workflow.Finalize(s.ctx)
	s.Require().NoError(err)
	s.Contains(name, "Route_Ana_2024-01-10_")

	state, _ = s.workflow.State()
	s.Equal(StateAuditFinalized, state)

	downloadName, document, err := s.workflow.Report()
	s.Require().NoError(err)
	s.Equal(name, downloadName)
	doc := string(document)
	for _, want := range []string{"Ana", "R1", "Check EPI", "ok", "Clean machine"} {
		s.Contains(doc, want)
	}
	// The photo bytes are not a decodable image, so the renderer leaves its
	// inline marker; the document still covers every section.
	s.Contains(doc, "Error embedding photo for section 2")

	s.Require().NoError(s.workflow.Acknowledge())
	state, _ = s.workflow.State()
	s.Equal(StateNoActiveAudit, state)

	active, err := s.workflow.ListResumable(s.ctx)
	s.Require().NoError(err)
	s.Empty(active, "finalized audit must leave the active listing")

	history, err := s.workflow.ListHistory(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(audit.ID, history[0].AuditID)
}

func (s *WorkflowSuite) TestSubmitResolvesTitleFromReferenceData() {
	s.seedReferenceData()
	_, err := s.workflow.Start(s.ctx, s.identification())
	s.Require().NoError(err)

	s.Require().NoError(s.workflow.SubmitSection(s.ctx, models.SectionEntry{SectionID: 2, Observation: "done"}))

	loaded, err := s.workflow.Current(s.ctx)
	s.Require().NoError(err)
	s.Equal("Clean machine", loaded.Sections[2].Title)
}

func (s *WorkflowSuite) TestSubmitUnknownSection() {
	s.seedReferenceData()
	_, err := s.workflow.Start(s.ctx, s.identification())
	s.Require().NoError(err)

	err = s.workflow.SubmitSection(s.ctx, models.SectionEntry{SectionID: 99, Observation: "?"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	state, _ := s.workflow.State()
	s.Equal(StateAuditActive, state, "failed submit keeps the audit active for retry")
}

// A rendering failure keeps the audit ACTIVE; a retry finalizes without
// re-entering any data.
func (s *WorkflowSuite) TestRenderFailureIsRetryable() {
	failures := 1
	flaky := func(audit *models.Audit, order []refdata.SectionDefinition) ([]byte, error) {
		if failures > 0 {
			failures--
			return nil, errors.New("font cache corrupted")
		}
		return report.Render(audit, order)
	}
	s.workflow = s.newWorkflow(flaky)
	s.seedReferenceData()

	_, err := s.workflow.Start(s.ctx, s.identification())
	s.Require().NoError(err)
	s.Require().NoError(s.workflow.SubmitSection(s.ctx, models.SectionEntry{SectionID: 1, Observation: "ok"}))

	_, err = s.workflow.Finalize(s.ctx)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeRender))

	state, _ := s.workflow.State()
	s.Equal(StateAuditActive, state)

	loaded, err := s.workflow.Current(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, loaded.Status, "audit must not be finalized when rendering failed")

	_, err = s.workflow.Finalize(s.ctx)
	s.Require().NoError(err)
	state, _ = s.workflow.State()
	s.Equal(StateAuditFinalized, state)
}

func (s *WorkflowSuite) TestStartWhileActiveRefused() {
	s.seedReferenceData()
	_, err := s.workflow.Start(s.ctx, s.identification())
	s.Require().NoError(err)

	_, err = s.workflow.Start(s.ctx, s.identification())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *WorkflowSuite) TestAbandonAndResume() {
	s.seedReferenceData()
	audit, err := s.workflow.Start(s.ctx, s.identification())
	s.Require().NoError(err)
	s.Require().NoError(s.workflow.SubmitSection(s.ctx, models.SectionEntry{SectionID: 1, Observation: "halfway"}))

	s.Require().NoError(s.workflow.Abandon())
	state, _ := s.workflow.State()
	s.Equal(StateNoActiveAudit, state)

	active, err := s.workflow.ListResumable(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 1, "abandoned audit stays resumable")

	resumed, err := s.workflow.Resume(s.ctx, audit.ID)
	s.Require().NoError(err)
	s.Require().Contains(resumed.Sections, 1)
	s.Equal("halfway", resumed.Sections[1].Observation)
}

func (s *WorkflowSuite) TestResumeFinalizedRefused() {
	s.seedReferenceData()
	audit, err := s.workflow.Start(s.ctx, s.identification())
	s.Require().NoError(err)
	_, err = s.workflow.Finalize(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.workflow.Acknowledge())

	_, err = s.workflow.Resume(s.ctx, audit.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *WorkflowSuite) TestManagerReusesSessionWorkflows() {
	s.seedReferenceData()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reference := refdata.NewService(s.refstore, 0, refdata.WithLogger(logger))
	manager := NewManager(s.gateway, reference, report.Render, report.Filename, logger, metrics.NewForTesting())

	first, err := manager.Workflow("session-1")
	s.Require().NoError(err)
	again, err := manager.Workflow("session-1")
	s.Require().NoError(err)
	s.Same(first, again)

	other, err := manager.Workflow("session-2")
	s.Require().NoError(err)
	s.NotSame(first, other)

	_, err = manager.Workflow("")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	// Two sessions can hold different audits concurrently; the gateway keeps
	// them separate.
	_, err = first.Start(s.ctx, s.identification())
	s.Require().NoError(err)
	otherID := s.identification()
	otherID.Leader = strings.ToUpper(otherID.Leader)
	_, err = other.Start(s.ctx, otherID)
	s.Require().NoError(err)

	active, err := first.ListResumable(s.ctx)
	s.Require().NoError(err)
	s.Len(active, 2)
}
