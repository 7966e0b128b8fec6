package report

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeaudit/internal/inspection/models"
	"routeaudit/internal/refdata"
)

func tinyPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func sampleAudit(t *testing.T) *models.Audit {
	t.Helper()
	audit, err := models.NewAudit(models.Identification{
		Date:    "2024-01-10",
		Leader:  "Ana",
		Team:    "A",
		Route:   "R1",
		Machine: "M1",
	}, time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return audit
}

func sectionOrder() []refdata.SectionDefinition {
	return []refdata.SectionDefinition{
		{ID: 1, Title: "Check EPI"},
		{ID: 2, Title: "Clean machine"},
	}
}

// The end-to-end scenario from the workflow: identification, a text-only
// section, a photo section with empty observation.
func TestRenderFullAudit(t *testing.T) {
	audit := sampleAudit(t)
	audit.ApplySection(models.SectionEntry{SectionID: 1, Title: "Check EPI", Observation: "ok", RecordedAt: audit.CreatedAt})
	audit.ApplySection(models.SectionEntry{SectionID: 2, Title: "Clean machine", Observation: "", Photo: tinyPNG(t, 32, 24), RecordedAt: audit.CreatedAt})

	out, err := Render(audit, sectionOrder())
	require.NoError(t, err)
	require.NotEmpty(t, out)

	doc := string(out)
	assert.True(t, strings.HasPrefix(doc, "%PDF-"))
	for _, want := range []string{"Ana", "R1", "Check EPI", "ok", "Clean machine"} {
		assert.Contains(t, doc, want)
	}
	assert.Equal(t, 1, strings.Count(doc, "/Subtype /Image"), "exactly one embedded image")
	assert.Contains(t, doc, "(none)", "empty observation renders an explicit marker")
	assert.NotContains(t, doc, "Error embedding photo")
}

// A corrupt photo must not abort the document; the other sections still
// render and the failure is visible inline.
func TestRenderSurvivesCorruptPhoto(t *testing.T) {
	audit := sampleAudit(t)
	audit.ApplySection(models.SectionEntry{SectionID: 1, Title: "Check EPI", Observation: "ok", RecordedAt: audit.CreatedAt})
	audit.ApplySection(models.SectionEntry{SectionID: 2, Title: "Clean machine", Observation: "dirty", Photo: []byte("not an image at all"), RecordedAt: audit.CreatedAt})

	out, err := Render(audit, sectionOrder())
	require.NoError(t, err)

	doc := string(out)
	assert.Contains(t, doc, "Check EPI")
	assert.Contains(t, doc, "Clean machine")
	assert.Contains(t, doc, "Error embedding photo for section 2")
	assert.Equal(t, 0, strings.Count(doc, "/Subtype /Image"))
}

func TestRenderSectionsWithoutPhotoOrObservation(t *testing.T) {
	audit := sampleAudit(t)
	audit.ApplySection(models.SectionEntry{SectionID: 1, Title: "Check EPI", RecordedAt: audit.CreatedAt})

	out, err := Render(audit, sectionOrder())
	require.NoError(t, err)
	assert.Contains(t, string(out), "(none)")
}

// Render order follows the reference ordering at render time, with entries
// for removed sections appended rather than dropped.
func TestRenderOrderFollowsReferenceOrdering(t *testing.T) {
	audit := sampleAudit(t)
	audit.ApplySection(models.SectionEntry{SectionID: 2, Title: "Clean machine", Observation: "later", RecordedAt: audit.CreatedAt})
	audit.ApplySection(models.SectionEntry{SectionID: 1, Title: "Check EPI", Observation: "first", RecordedAt: audit.CreatedAt})
	audit.ApplySection(models.SectionEntry{SectionID: 9, Title: "Removed section", Observation: "historical", RecordedAt: audit.CreatedAt})

	entries := orderedEntries(audit, sectionOrder())
	require.Len(t, entries, 3)
	assert.Equal(t, 1, entries[0].SectionID)
	assert.Equal(t, 2, entries[1].SectionID)
	assert.Equal(t, 9, entries[2].SectionID, "orphaned entry appended at the end")

	out, err := Render(audit, sectionOrder())
	require.NoError(t, err)
	doc := string(out)
	assert.Less(t, strings.Index(doc, "Check EPI"), strings.Index(doc, "Clean machine"))
	assert.Contains(t, doc, "Removed section")
}

func TestRenderDownscalesLargePhotos(t *testing.T) {
	raw := tinyPNG(t, maxPhotoWidth*2, 64)
	normalized, err := normalizePhoto(raw)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(normalized))
	require.NoError(t, err)
	assert.Equal(t, maxPhotoWidth, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy(), "aspect ratio preserved")
}

func TestFilename(t *testing.T) {
	audit := sampleAudit(t)
	audit.Identification.Leader = "Ana Souza"
	name := Filename(audit)
	assert.True(t, strings.HasPrefix(name, "Route_Ana-Souza_2024-01-10_"))
	assert.True(t, strings.HasSuffix(name, ".pdf"))
	assert.Contains(t, name, audit.ID)
}
