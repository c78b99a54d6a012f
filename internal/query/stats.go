package query

import (
	"time"

	"github.com/shenikar/waste_incident_sync/internal/models"
)

const dayKeyLayout = "2006-01-02"

// statsWindowDays - сколько предыдущих дней (кроме сегодняшнего) попадает в тренд
const statsWindowDays = 7

type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// Stats - сводка для панели администратора
type Stats struct {
	Total      int            `json:"total"`
	Pending    int            `json:"pending"`
	Resolved   int            `json:"resolved"`
	Rejected   int            `json:"rejected"`
	Merged     int            `json:"merged"`
	ByType     map[string]int `json:"byType"`
	ByStatus   map[string]int `json:"byStatus"`
	BySeverity map[string]int `json:"bySeverity"`
	// LastWeek - число инцидентов по дням от now-7 до now включительно, по возрастанию
	LastWeek []DayCount `json:"lastWeek"`
}

// Summarize считает сводку по набору. Дни берутся в часовом поясе now.
func Summarize(incidents []*models.Incident, now time.Time) Stats {
	st := Stats{
		ByType:     make(map[string]int),
		ByStatus:   make(map[string]int),
		BySeverity: make(map[string]int),
		LastWeek:   make([]DayCount, 0, statsWindowDays+1),
	}

	today := startOfDay(now)
	index := make(map[string]int, statsWindowDays+1)
	for i := statsWindowDays; i >= 0; i-- {
		day := today.AddDate(0, 0, -i).Format(dayKeyLayout)
		index[day] = len(st.LastWeek)
		st.LastWeek = append(st.LastWeek, DayCount{Day: day})
	}

	for _, inc := range incidents {
		st.Total++
		switch {
		case inc.Status.IsPending():
			st.Pending++
		case inc.Status == models.StatusResolved:
			st.Resolved++
		case inc.Status == models.StatusRejected:
			st.Rejected++
		}
		if inc.IsMerged() {
			st.Merged++
		}
		st.ByType[inc.Type]++
		st.ByStatus[string(inc.Status)]++
		st.BySeverity[string(inc.Severity)]++

		day := inc.CreatedAt().In(now.Location()).Format(dayKeyLayout)
		if i, ok := index[day]; ok {
			st.LastWeek[i].Count++
		}
	}
	return st
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
