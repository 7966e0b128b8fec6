package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeaudit/internal/inspection/models"
)

// An image file with no manifest record is the residue of a write interrupted
// between the photo and manifest steps. It must be invisible to Load.
func TestFileGatewayIgnoresOrphanImages(t *testing.T) {
	dir := t.TempDir()
	gateway, err := NewFile(dir)
	require.NoError(t, err)
	ctx := context.Background()

	audit, err := gateway.Create(ctx, testIdentification())
	require.NoError(t, err)
	require.NoError(t, gateway.RecordSection(ctx, audit.ID, models.SectionEntry{
		SectionID: 1, Title: "Check EPI", Observation: "ok",
	}))

	orphan := filepath.Join(dir, audit.ID, "section_2_999.png")
	require.NoError(t, os.WriteFile(orphan, []byte("interrupted upload"), 0o644))

	loaded, err := gateway.Load(ctx, audit.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Sections, 1)
	assert.NotContains(t, loaded.Sections, 2)
}

// A manifest record whose image file is unreadable counts as "section not
// recorded": the previous entry for that section survives.
func TestFileGatewayDropsRecordsWithMissingImages(t *testing.T) {
	dir := t.TempDir()
	gateway, err := NewFile(dir)
	require.NoError(t, err)
	ctx := context.Background()

	audit, err := gateway.Create(ctx, testIdentification())
	require.NoError(t, err)
	require.NoError(t, gateway.RecordSection(ctx, audit.ID, models.SectionEntry{
		SectionID: 1, Title: "Check EPI", Observation: "first pass",
	}))
	require.NoError(t, gateway.RecordSection(ctx, audit.ID, models.SectionEntry{
		SectionID: 1, Title: "Check EPI", Observation: "second pass", Photo: []byte("photo-bytes"),
	}))

	// Simulate the image vanishing after the manifest write.
	auditDir := filepath.Join(dir, audit.ID)
	raw, err := os.ReadFile(filepath.Join(auditDir, manifestName))
	require.NoError(t, err)
	var m manifest
	require.NoError(t, json.Unmarshal(raw, &m))
	require.Len(t, m.Photos, 2)
	require.NotEmpty(t, m.Photos[1].PhotoFilename)
	require.NoError(t, os.Remove(filepath.Join(auditDir, m.Photos[1].PhotoFilename)))

	loaded, err := gateway.Load(ctx, audit.ID)
	require.NoError(t, err)
	require.Contains(t, loaded.Sections, 1)
	assert.Equal(t, "first pass", loaded.Sections[1].Observation)
	assert.False(t, loaded.Sections[1].HasPhoto())
}

// Audits persist across gateway restarts, including resumability.
func TestFileGatewaySurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	gateway, err := NewFile(dir)
	require.NoError(t, err)
	ctx := context.Background()

	audit, err := gateway.Create(ctx, testIdentification())
	require.NoError(t, err)
	require.NoError(t, gateway.RecordSection(ctx, audit.ID, models.SectionEntry{
		SectionID: 1, Title: "Check EPI", Observation: "ok", Photo: []byte("photo"),
	}))

	reopened, err := NewFile(dir)
	require.NoError(t, err)

	active, err := reopened.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, audit.ID, active[0].AuditID)

	loaded, err := reopened.Load(ctx, audit.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("photo"), loaded.Sections[1].Photo)
}

func TestFileGatewayRejectsPathTraversal(t *testing.T) {
	gateway, err := NewFile(t.TempDir())
	require.NoError(t, err)

	_, err = gateway.Load(context.Background(), "../escape")
	assert.ErrorIs(t, err, ErrNotFound)
}
