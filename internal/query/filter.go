// Package query строит отфильтрованные и упорядоченные представления
// набора инцидентов.
package query

import (
	"fmt"
	"strings"

	"github.com/shenikar/waste_incident_sync/internal/models"
)

// StatusBucket - группа статусов для фильтра
type StatusBucket string

const (
	BucketAll      StatusBucket = "All"
	BucketPending  StatusBucket = "Pending"
	BucketResolved StatusBucket = "Resolved"
)

// ParseBucket разбирает группу без учета регистра; пустая строка - All
func ParseBucket(s string) (StatusBucket, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return BucketAll, nil
	}
	for _, b := range []StatusBucket{BucketAll, BucketPending, BucketResolved} {
		if strings.EqualFold(s, string(b)) {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status bucket %q", models.ErrInvalidInput, s)
}

// Contains сообщает, входит ли статус в группу
func (b StatusBucket) Contains(s models.Status) bool {
	switch b {
	case BucketPending:
		return s.IsPending()
	case BucketResolved:
		return s == models.StatusResolved
	}
	return true
}

// SortMode - порядок выдачи
type SortMode string

const (
	SortNewest   SortMode = "Newest"
	SortOldest   SortMode = "Oldest"
	SortSeverity SortMode = "Severity"
)

// ParseSort разбирает порядок без учета регистра; пустая строка - Newest
func ParseSort(s string) (SortMode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SortNewest, nil
	}
	for _, m := range []SortMode{SortNewest, SortOldest, SortSeverity} {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: unknown sort mode %q", models.ErrInvalidInput, s)
}

// DateRange - интервал по времени создания (мс), обе границы включены
type DateRange struct {
	From int64
	To   int64
}

func (r DateRange) Contains(ts int64) bool {
	return ts >= r.From && ts <= r.To
}

// GeoRadius - круг на местности
type GeoRadius struct {
	Center       models.Location
	RadiusMeters float64
}

// Filter - независимо изменяемые критерии выборки
type Filter struct {
	Text     string
	Bucket   StatusBucket
	Range    *DateRange
	Sort     SortMode
	Category string
	Near     *GeoRadius
}

// Normalize подставляет значения по умолчанию
func (f Filter) Normalize() Filter {
	f.Text = strings.TrimSpace(f.Text)
	f.Category = strings.TrimSpace(f.Category)
	if f.Bucket == "" {
		f.Bucket = BucketAll
	}
	if f.Sort == "" {
		f.Sort = SortNewest
	}
	return f
}

// Validate проверяет согласованность критериев
func (f Filter) Validate() error {
	if f.Range != nil && f.Range.From > f.Range.To {
		return fmt.Errorf("%w: date range starts after it ends", models.ErrInvalidInput)
	}
	if f.Near != nil {
		if !f.Near.Center.Valid() {
			return fmt.Errorf("%w: invalid radius center", models.ErrInvalidInput)
		}
		if f.Near.RadiusMeters <= 0 {
			return fmt.Errorf("%w: radius must be positive", models.ErrInvalidInput)
		}
	}
	return nil
}

func (f Filter) match(inc *models.Incident) bool {
	if !f.Bucket.Contains(inc.Status) {
		return false
	}
	if f.Range != nil && !f.Range.Contains(inc.Timestamp) {
		return false
	}
	if f.Category != "" && !strings.EqualFold(inc.Type, f.Category) {
		return false
	}
	if f.Text != "" && !matchText(inc, f.Text) {
		return false
	}
	if f.Near != nil {
		loc, err := models.ParseLocation(inc.Location)
		if err != nil || loc.DistanceMeters(f.Near.Center) > f.Near.RadiusMeters {
			return false
		}
	}
	return true
}

func matchText(inc *models.Incident, text string) bool {
	needle := strings.ToLower(text)
	for _, field := range []string{inc.Type, inc.Description, inc.ID, inc.ReportedBy} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
