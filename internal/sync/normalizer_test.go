package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roster-sync/internal/dto"
	"roster-sync/internal/entities"
	"roster-sync/internal/portal"
)

func TestNormalize_Scenario(t *testing.T) {
	nodes, ok := portal.MatchPayload([]byte(`{"data":{"employmentsInScheduleTimeRange":{"edges":[
		{"node":{"userId":"u1","computedName":"Alex Kim","email":"a@x.com","currentStatus":"Active","duringFrom":"2024-01-01"}},
		{"node":{"userId":"u2","computedName":"Sam Lee","email":"","currentStatus":"Active"}}
	]}}}`))
	require.True(t, ok)

	records := Normalize(nodes)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "u1", rec.ID)
	assert.Equal(t, "Alex Kim", rec.Name)
	assert.Equal(t, "a@x.com", rec.Email)
	assert.Equal(t, "2024-01-01", rec.JoinedDate)
	assert.Equal(t, "Unassigned", rec.Department)
	assert.Equal(t, 0, rec.Progress)
	assert.Equal(t, entities.Stats{Speed: 50, Accuracy: 50, Hospitality: 50, Knowledge: 50, Leadership: 50}, rec.Stats)
	assert.Equal(t, entities.DefaultRole, rec.Role)
	assert.Equal(t, entities.DefaultStatus, rec.OnboardingStatus)
}

func TestNormalize_TerminationExclusion(t *testing.T) {
	records := Normalize([]dto.ExternalEmployeeNode{
		{ID: "t1", Name: "Gone", Email: "g@x.com", CurrentStatus: "Terminated"},
		{ID: "a1", Name: "Here", Email: "h@x.com", CurrentStatus: "active"},
	})
	require.Len(t, records, 1)
	assert.Equal(t, "a1", records[0].ID)
}

func TestNormalize_DropsUnmatchable(t *testing.T) {
	records := Normalize([]dto.ExternalEmployeeNode{
		{ID: "u1", Email: "   "},
		{ID: "", Email: "x@x.com"},
		{ID: " u3 ", Name: " Pat ", Email: " p@x.com ", Image: "https://cdn/p.png"},
	})
	require.Len(t, records, 1)
	assert.Equal(t, "u3", records[0].ID)
	assert.Equal(t, "Pat", records[0].Name)
	assert.Equal(t, "p@x.com", records[0].Email)
	assert.Equal(t, "https://cdn/p.png", records[0].Image)
}

func TestNormalize_EmptyInput(t *testing.T) {
	assert.Empty(t, Normalize(nil))
}
