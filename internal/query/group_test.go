package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shenikar/waste_incident_sync/internal/models"
)

func TestDayLabel(t *testing.T) {
	now := time.Date(2024, time.January, 1, 9, 30, 0, 0, time.UTC)

	assert.Equal(t, LabelToday, DayLabel(now.Add(-9*time.Hour), now))
	assert.Equal(t, LabelYesterday, DayLabel(now.Add(-10*time.Hour), now))
	assert.Equal(t, "30 December 2023", DayLabel(now.AddDate(0, 0, -2), now))
}

func TestGroupByDay(t *testing.T) {
	now := time.Date(2024, time.May, 20, 12, 0, 0, 0, time.UTC)
	set := Apply([]*models.Incident{
		newIncident("a", models.StatusReported, models.SeverityLow, now.Add(-time.Hour).UnixMilli()),
		newIncident("b", models.StatusReported, models.SeverityLow, now.Add(-2*time.Hour).UnixMilli()),
		newIncident("c", models.StatusReported, models.SeverityLow, now.AddDate(0, 0, -1).UnixMilli()),
		newIncident("d", models.StatusReported, models.SeverityLow, now.AddDate(0, 0, -5).UnixMilli()),
	}, Filter{})

	groups := GroupByDay(set, now)
	require.Len(t, groups, 3)
	assert.Equal(t, LabelToday, groups[0].Label)
	assert.Equal(t, []string{"a", "b"}, ids(groups[0].Incidents))
	assert.Equal(t, LabelYesterday, groups[1].Label)
	assert.Equal(t, "15 May 2024", groups[2].Label)

	assert.Empty(t, GroupByDay(nil, now))
}
