package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "routeaudit/pkg/domain-errors"
)

func validIdentification() Identification {
	return Identification{
		Date:    "2024-01-10",
		Leader:  "Ana",
		Team:    "A",
		Route:   "R1",
		Machine: "M1",
	}
}

func TestNewAudit(t *testing.T) {
	now := time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC)
	audit, err := NewAudit(validIdentification(), now)
	require.NoError(t, err)

	assert.Equal(t, StatusActive, audit.Status)
	assert.Equal(t, now, audit.CreatedAt)
	assert.Contains(t, audit.ID, "20240110083000-")
	assert.Empty(t, audit.Sections)

	other, err := NewAudit(validIdentification(), now)
	require.NoError(t, err)
	assert.NotEqual(t, audit.ID, other.ID, "ids must be unique even within one second")
}

func TestNewAuditRejectsMissingFields(t *testing.T) {
	id := validIdentification()
	id.Leader = ""
	id.Route = "  "
	_, err := NewAudit(id, time.Now())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Contains(t, err.Error(), "leader")
	assert.Contains(t, err.Error(), "route")
}

func TestApplySectionLastWriteWins(t *testing.T) {
	audit, err := NewAudit(validIdentification(), time.Now())
	require.NoError(t, err)

	audit.ApplySection(SectionEntry{SectionID: 2, Title: "Clean machine", Observation: "first"})
	audit.ApplySection(SectionEntry{SectionID: 2, Title: "Clean machine", Observation: "second", Photo: []byte{1, 2}})

	require.Len(t, audit.Sections, 1)
	assert.Equal(t, "second", audit.Sections[2].Observation)
	assert.Equal(t, []byte{1, 2}, audit.Sections[2].Photo)
}

func TestFinalizeIsIrreversible(t *testing.T) {
	audit, err := NewAudit(validIdentification(), time.Now())
	require.NoError(t, err)

	require.NoError(t, audit.CanFinalize())
	audit.ApplyFinalize()

	assert.False(t, audit.IsActive())
	err = audit.CanFinalize()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	err = audit.CanRecordSection()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func TestOrderedSections(t *testing.T) {
	audit, err := NewAudit(validIdentification(), time.Now())
	require.NoError(t, err)
	audit.ApplySection(SectionEntry{SectionID: 5, Title: "e"})
	audit.ApplySection(SectionEntry{SectionID: 1, Title: "a"})
	audit.ApplySection(SectionEntry{SectionID: 3, Title: "c"})

	ordered := audit.OrderedSections()
	require.Len(t, ordered, 3)
	assert.Equal(t, []int{1, 3, 5}, []int{ordered[0].SectionID, ordered[1].SectionID, ordered[2].SectionID})
}

func TestCloneIsDeep(t *testing.T) {
	audit, err := NewAudit(validIdentification(), time.Now())
	require.NoError(t, err)
	audit.ApplySection(SectionEntry{SectionID: 1, Title: "a", Photo: []byte{9}})

	cp := audit.Clone()
	entry := cp.Sections[1]
	entry.Photo[0] = 0
	cp.Sections[2] = SectionEntry{SectionID: 2}

	assert.Equal(t, byte(9), audit.Sections[1].Photo[0], "photo buffer must not be shared")
	assert.Len(t, audit.Sections, 1, "sections map must not be shared")
}
