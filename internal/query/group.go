package query

import (
	"time"

	"github.com/shenikar/waste_incident_sync/internal/models"
)

const (
	LabelToday     = "Today"
	LabelYesterday = "Yesterday"
	dayLabelLayout = "02 January 2006"
)

// DayGroup - инциденты одного календарного дня
type DayGroup struct {
	Label     string             `json:"label"`
	Incidents []*models.Incident `json:"incidents"`
}

// GroupByDay раскладывает упорядоченный набор по дням создания, сохраняя
// порядок. Группы идут в порядке первого появления дня.
func GroupByDay(incidents []*models.Incident, now time.Time) []DayGroup {
	groups := make([]DayGroup, 0)
	index := make(map[string]int)
	for _, inc := range incidents {
		label := DayLabel(inc.CreatedAt(), now)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, DayGroup{Label: label})
		}
		groups[i].Incidents = append(groups[i].Incidents, inc)
	}
	return groups
}

// DayLabel возвращает Today, Yesterday или дату вида "02 January 2006"
func DayLabel(t, now time.Time) string {
	t = t.In(now.Location())
	day := startOfDay(t)
	today := startOfDay(now)
	switch {
	case day.Equal(today):
		return LabelToday
	case day.Equal(today.AddDate(0, 0, -1)):
		return LabelYesterday
	}
	return t.Format(dayLabelLayout)
}
