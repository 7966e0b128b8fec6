package httptransport

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"routeaudit/internal/inspection/models"
	dErrors "routeaudit/pkg/domain-errors"
)

// maxPhotoBytes bounds uploaded section photos.
const maxPhotoBytes = 10 << 20

type startAuditRequest struct {
	Date    string `json:"date"`
	Leader  string `json:"leader"`
	Team    string `json:"team"`
	Route   string `json:"route"`
	Machine string `json:"machine"`
}

type auditView struct {
	AuditID        string                `json:"audit_id"`
	CreatedAt      time.Time             `json:"created_at"`
	Status         models.Status         `json:"status"`
	Identification models.Identification `json:"identification"`
	Sections       []sectionView         `json:"sections"`
}

type sectionView struct {
	SectionID   int       `json:"section_id"`
	Title       string    `json:"title"`
	Observation string    `json:"observation"`
	HasPhoto    bool      `json:"has_photo"`
	RecordedAt  time.Time `json:"recorded_at"`
}

func viewOf(audit *models.Audit) auditView {
	view := auditView{
		AuditID:        audit.ID,
		CreatedAt:      audit.CreatedAt,
		Status:         audit.Status,
		Identification: audit.Identification,
		Sections:       []sectionView{},
	}
	for _, entry := range audit.OrderedSections() {
		view.Sections = append(view.Sections, sectionView{
			SectionID:   entry.SectionID,
			Title:       entry.Title,
			Observation: entry.Observation,
			HasPhoto:    entry.HasPhoto(),
			RecordedAt:  entry.RecordedAt,
		})
	}
	return view
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	workflow, err := h.workflow(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req startAuditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Date == "" {
		req.Date = time.Now().Format("2006-01-02")
	}
	audit, err := workflow.Start(r.Context(), models.Identification{
		Date:    req.Date,
		Leader:  req.Leader,
		Team:    req.Team,
		Route:   req.Route,
		Machine: req.Machine,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(audit))
}

type resumeRequest struct {
	AuditID string `json:"audit_id"`
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	workflow, err := h.workflow(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req resumeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	audit, err := workflow.Resume(r.Context(), req.AuditID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(audit))
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	workflow, err := h.workflow(r)
	if err != nil {
		writeError(w, err)
		return
	}
	summaries, err := workflow.ListResumable(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audits": summaries})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	workflow, err := h.workflow(r)
	if err != nil {
		writeError(w, err)
		return
	}
	summaries, err := workflow.ListHistory(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audits": summaries})
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	workflow, err := h.workflow(r)
	if err != nil {
		writeError(w, err)
		return
	}
	audit, err := workflow.Current(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(audit))
}

// handleSubmitSection accepts multipart form data: section_id, observation,
// and an optional photo file part.
func (h *Handler) handleSubmitSection(w http.ResponseWriter, r *http.Request) {
	workflow, err := h.workflow(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "expected multipart form data"))
		return
	}
	sectionID, err := strconv.Atoi(r.FormValue("section_id"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "section_id must be an integer"))
		return
	}
	entry := models.SectionEntry{
		SectionID:   sectionID,
		Title:       r.FormValue("title"),
		Observation: r.FormValue("observation"),
		RecordedAt:  time.Now(),
	}
	if file, _, err := r.FormFile("photo"); err == nil {
		defer file.Close()
		// Read one byte past the cap so an oversize upload is rejected
		// rather than stored truncated.
		photo, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
		if err != nil {
			writeError(w, dErrors.New(dErrors.CodeValidation, "unable to read photo upload"))
			return
		}
		if len(photo) > maxPhotoBytes {
			writeError(w, dErrors.New(dErrors.CodeValidation, "photo exceeds the upload size limit"))
			return
		}
		entry.Photo = photo
	}
	if err := workflow.SubmitSection(r.Context(), entry); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	workflow, err := h.workflow(r)
	if err != nil {
		writeError(w, err)
		return
	}
	name, err := workflow.Finalize(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"report": name})
}

func (h *Handler) handleDownloadReport(w http.ResponseWriter, r *http.Request) {
	workflow, err := h.workflow(r)
	if err != nil {
		writeError(w, err)
		return
	}
	name, document, err := workflow.Report()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(document)
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	workflow, err := h.workflow(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := workflow.Acknowledge(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAbandon(w http.ResponseWriter, r *http.Request) {
	workflow, err := h.workflow(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := workflow.Abandon(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
