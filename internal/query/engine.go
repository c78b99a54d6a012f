package query

import (
	"sort"

	"github.com/shenikar/waste_incident_sync/internal/models"
)

// Apply фильтрует и сортирует набор. Функция чистая: входной срез не
// меняется, а порядок полностью определен, поэтому одинаковые входы
// всегда дают одинаковую последовательность. Пустой результат - пустой
// срез, не nil.
func Apply(incidents []*models.Incident, f Filter) []*models.Incident {
	f = f.Normalize()

	out := make([]*models.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if inc != nil && f.match(inc) {
			out = append(out, inc)
		}
	}

	sort.SliceStable(out, less(out, f.Sort))
	return out
}

func less(items []*models.Incident, mode SortMode) func(i, j int) bool {
	newest := func(a, b *models.Incident) bool {
		if a.Timestamp != b.Timestamp {
			return a.Timestamp > b.Timestamp
		}
		return a.ID < b.ID
	}

	switch mode {
	case SortOldest:
		return func(i, j int) bool {
			a, b := items[i], items[j]
			if a.Timestamp != b.Timestamp {
				return a.Timestamp < b.Timestamp
			}
			return a.ID < b.ID
		}
	case SortSeverity:
		return func(i, j int) bool {
			a, b := items[i], items[j]
			if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
				return ra > rb
			}
			return newest(a, b)
		}
	}
	return func(i, j int) bool {
		return newest(items[i], items[j])
	}
}
