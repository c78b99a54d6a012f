package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shenikar/waste_incident_sync/internal/models"
)

func TestSummarize(t *testing.T) {
	now := time.Date(2024, time.May, 20, 15, 0, 0, 0, time.UTC)
	at := func(days int) int64 { return now.AddDate(0, 0, -days).UnixMilli() }

	merged := newIncident("m", models.StatusReported, models.SeverityLow, at(1))
	merged.MasterIncidentID = models.StringPtr("a")

	set := []*models.Incident{
		newIncident("a", models.StatusReported, models.SeverityHigh, at(0)),
		newIncident("b", models.StatusInProgress, models.SeverityMedium, at(0)),
		newIncident("c", models.StatusResolved, models.SeverityHigh, at(3)),
		newIncident("d", models.StatusRejected, models.SeverityLow, at(7)),
		newIncident("old", models.StatusResolved, models.SeverityLow, at(30)),
		merged,
	}

	st := Summarize(set, now)
	assert.Equal(t, 6, st.Total)
	assert.Equal(t, 3, st.Pending)
	assert.Equal(t, 2, st.Resolved)
	assert.Equal(t, 1, st.Rejected)
	assert.Equal(t, 1, st.Merged)
	assert.Equal(t, 2, st.BySeverity["High"])
	assert.Equal(t, 6, st.ByType["Overflowing Bin"])
	assert.Equal(t, 1, st.ByStatus["In Progress"])

	require.Len(t, st.LastWeek, 8)
	assert.Equal(t, DayCount{Day: "2024-05-13", Count: 1}, st.LastWeek[0])
	assert.Equal(t, DayCount{Day: "2024-05-17", Count: 1}, st.LastWeek[4])
	assert.Equal(t, DayCount{Day: "2024-05-19", Count: 1}, st.LastWeek[6])
	assert.Equal(t, DayCount{Day: "2024-05-20", Count: 2}, st.LastWeek[7])
}

func TestSummarize_Empty(t *testing.T) {
	st := Summarize(nil, time.Now())
	assert.Zero(t, st.Total)
	assert.Len(t, st.LastWeek, 8)
	assert.NotNil(t, st.ByType)
}
