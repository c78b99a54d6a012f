package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout - формат человекочитаемой даты инцидента
const DateLayout = "2006-01-02 15:04:05"

// Status - статус инцидента в жизненном цикле
type Status string

const (
	StatusReported   Status = "Reported"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusRejected   Status = "Rejected"
)

// Statuses перечисляет все допустимые статусы
var Statuses = []Status{StatusReported, StatusInProgress, StatusResolved, StatusRejected}

// ParseStatus разбирает статус без учета регистра
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
}

// IsTerminal сообщает, что из статуса больше нет переходов
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// CheckOverwrite запрещает записи, уводящие закрытый инцидент из
// терминального статуса. Запись с тем же статусом допустима.
func CheckOverwrite(stored, next *Incident) error {
	if !stored.Status.IsTerminal() || stored.Status == next.Status {
		return nil
	}
	return &TransitionError{
		From:   stored.Status,
		To:     next.Status,
		Reason: "stale write over a closed incident",
		Err:    ErrInvalidTransition,
	}
}

// IsPending - Reported или In Progress
func (s Status) IsPending() bool {
	return s == StatusReported || s == StatusInProgress
}

// Severity - серьезность инцидента
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// ParseSeverity разбирает серьезность без учета регистра
func ParseSeverity(s string) (Severity, error) {
	for _, sev := range []Severity{SeverityLow, SeverityMedium, SeverityHigh} {
		if strings.EqualFold(strings.TrimSpace(s), string(sev)) {
			return sev, nil
		}
	}
	return "", fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, s)
}

// Rank возвращает вес для сортировки: High > Medium > Low > неизвестное
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Categories - фиксированный набор категорий
var Categories = []string{
	"Illegal Dumping",
	"Overflowing Bin",
	"Damaged Bin",
	"Littering",
	"Hazardous Waste",
	"Other",
}

// Incident - сообщение о проблеме с отходами.
// Поля совпадают со схемой удаленного хранилища.
type Incident struct {
	ID               string   `json:"id"`
	Type             string   `json:"type"`
	Description      string   `json:"description"`
	Location         string   `json:"location"`
	ImageURIs        []string `json:"imageUris"`
	Status           Status   `json:"status"`
	Severity         Severity `json:"severity"`
	Timestamp        int64    `json:"timestamp"`
	ReportedBy       string   `json:"reportedBy"`
	Date             string   `json:"date"`
	AfterImageURI    *string  `json:"afterImageUri,omitempty"`
	ResolvedComment  *string  `json:"resolvedComment,omitempty"`
	AssignedTo       *string  `json:"assignedTo,omitempty"`
	MasterIncidentID *string  `json:"masterIncidentId,omitempty"`
	MergedIDs        []string `json:"mergedIds"`
}

// CreatedAt возвращает момент создания
func (i *Incident) CreatedAt() time.Time {
	return time.UnixMilli(i.Timestamp)
}

// IsMerged сообщает, что инцидент слит в другой
func (i *Incident) IsMerged() bool {
	return i.MasterIncidentID != nil && *i.MasterIncidentID != ""
}

// Clone возвращает глубокую копию. Записи в кеше и снимках заменяются целиком,
// поэтому изменения всегда делаются на копии.
func (i *Incident) Clone() *Incident {
	if i == nil {
		return nil
	}
	c := *i
	c.ImageURIs = append([]string(nil), i.ImageURIs...)
	c.MergedIDs = append([]string(nil), i.MergedIDs...)
	c.AfterImageURI = cloneString(i.AfterImageURI)
	c.ResolvedComment = cloneString(i.ResolvedComment)
	c.AssignedTo = cloneString(i.AssignedTo)
	c.MasterIncidentID = cloneString(i.MasterIncidentID)
	return &c
}

// FormatDate форматирует метку времени (мс) в DateLayout
func FormatDate(timestamp int64) string {
	return time.UnixMilli(timestamp).Format(DateLayout)
}

// StringPtr возвращает указатель на копию строки
func StringPtr(s string) *string {
	return &s
}

// StringValue разыменовывает указатель, nil дает пустую строку
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
