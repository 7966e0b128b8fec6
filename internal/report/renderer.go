// Package report renders a finalized-or-loaded audit record into a paginated
// PDF document.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/go-pdf/fpdf"

	"routeaudit/internal/inspection/models"
	"routeaudit/internal/refdata"
	dErrors "routeaudit/pkg/domain-errors"
)

const (
	documentTitle  = "Route Leadership Report"
	footerBrand    = "Generated by RouteAudit"
	photoObjPrefix = "section-photo-"
)

// Render transforms an audit into PDF bytes. Layout and content are a pure
// function of the audit and the section ordering; only the embedded creation
// timestamp varies between runs.
//
// Sections render one per page in the order given by sectionOrder (the
// reference data ordering at render time), not entry insertion order. Entries
// whose section no longer exists in the ordering are appended afterwards in
// section ID order so historical audits never lose recorded data. A photo
// that fails to decode becomes a visible inline error marker; rendering
// always continues.
func Render(audit *models.Audit, sectionOrder []refdata.SectionDefinition) ([]byte, error) {
	if audit == nil {
		return nil, dErrors.New(dErrors.CodeRender, "nil audit")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	// Uncompressed content streams keep the document inspectable byte-wise.
	pdf.SetCompression(false)
	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 10, documentTitle, "", 1, "C", false, 0, "")
		pdf.Ln(10)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.CellFormat(0, 10, footerBrand, "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	renderIdentification(pdf, audit)

	pdf.Ln(10)
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "2. Inspection Details", "", 1, "L", false, 0, "")

	for i, entry := range orderedEntries(audit, sectionOrder) {
		if i > 0 {
			pdf.AddPage()
		}
		renderSection(pdf, entry)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeRender, "assemble report document")
	}
	return buf.Bytes(), nil
}

// Filename names the downloadable artifact deterministically from the leader,
// the audit date, and the audit ID.
func Filename(audit *models.Audit) string {
	leader := strings.ReplaceAll(strings.TrimSpace(audit.Identification.Leader), " ", "-")
	return fmt.Sprintf("Route_%s_%s_%s.pdf", leader, audit.Identification.Date, audit.ID)
}

// renderIdentification writes the fixed-order identification block.
func renderIdentification(pdf *fpdf.Fpdf, audit *models.Audit) {
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "1. Route Identification", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	id := audit.Identification
	pdf.MultiCell(0, 8, fmt.Sprintf(
		"Date: %s\nLeader: %s\nTeam: %s\nRoute: %s\nMachine: %s",
		id.Date, id.Leader, id.Team, id.Route, id.Machine,
	), "", "L", false)
}

// orderedEntries resolves the render order: reference ordering first, then
// orphaned historical entries by section ID.
func orderedEntries(audit *models.Audit, sectionOrder []refdata.SectionDefinition) []models.SectionEntry {
	entries := make([]models.SectionEntry, 0, len(audit.Sections))
	rendered := make(map[int]struct{}, len(audit.Sections))
	for _, def := range sectionOrder {
		if entry, ok := audit.Sections[def.ID]; ok {
			entries = append(entries, entry)
			rendered[def.ID] = struct{}{}
		}
	}
	var orphans []models.SectionEntry
	for id, entry := range audit.Sections {
		if _, ok := rendered[id]; !ok {
			orphans = append(orphans, entry)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].SectionID < orphans[j].SectionID })
	return append(entries, orphans...)
}

func renderSection(pdf *fpdf.Fpdf, entry models.SectionEntry) {
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 10, fmt.Sprintf("Section: %s", entry.Title), "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 12)
	observation := entry.Observation
	if strings.TrimSpace(observation) == "" {
		observation = "(none)"
	}
	pdf.MultiCell(0, 8, fmt.Sprintf("Observation: %s", observation), "", "L", false)

	if !entry.HasPhoto() {
		pdf.Ln(5)
		return
	}

	normalized, err := normalizePhoto(entry.Photo)
	if err != nil {
		renderPhotoError(pdf, entry.SectionID)
		return
	}
	name := fmt.Sprintf("%s%d-%d", photoObjPrefix, entry.SectionID, entry.RecordedAt.UnixNano())
	pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(normalized))
	if pdf.Err() {
		// Registration failures stay local to the section, like decode
		// failures.
		pdf.ClearError()
		renderPhotoError(pdf, entry.SectionID)
		return
	}
	pdf.ImageOptions(name, 30, pdf.GetY()+2, 150, 0, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	if pdf.Err() {
		pdf.ClearError()
		renderPhotoError(pdf, entry.SectionID)
		return
	}
	pdf.Ln(5)
}

// renderPhotoError leaves a visible inline marker instead of aborting the
// document.
func renderPhotoError(pdf *fpdf.Fpdf, sectionID int) {
	pdf.SetTextColor(255, 0, 0)
	pdf.CellFormat(0, 10, fmt.Sprintf("Error embedding photo for section %d", sectionID), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(5)
}
