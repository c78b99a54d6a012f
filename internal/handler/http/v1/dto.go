package v1

import (
	"time"

	"github.com/shenikar/waste_incident_sync/internal/query"
)

// IncidentRequest DTO для создания и редактирования инцидента
// @Description DTO для создания и редактирования инцидента
type IncidentRequest struct {
	Type        string   `json:"type" validate:"required,max=64"`
	Description string   `json:"description" validate:"required,max=2000"`
	Latitude    *float64 `json:"latitude" validate:"required,latitude"`
	Longitude   *float64 `json:"longitude" validate:"required,longitude"`
	ImageURIs   []string `json:"imageUris,omitempty" validate:"max=10,dive,required"`
	Severity    string   `json:"severity,omitempty" validate:"omitempty,oneof=Low Medium High"`
}

// TransitionRequest DTO для смены статуса
// @Description Для Resolved нужен proofImageRef, proofUrl или ранее сохраненное фото
type TransitionRequest struct {
	Status        string `json:"status" validate:"required"`
	ProofImageRef string `json:"proofImageRef,omitempty"`
	ProofURL      string `json:"proofUrl,omitempty" validate:"omitempty,url"`
	Comment       string `json:"comment,omitempty" validate:"max=1000"`
}

// AssignRequest DTO для назначения ответственного
type AssignRequest struct {
	Assignee string `json:"assignee" validate:"required,max=128"`
}

// MergeRequest DTO для слияния дубликата с основным инцидентом
type MergeRequest struct {
	MasterID string `json:"masterId" validate:"required"`
}

// ClassifyRequest DTO для запроса подсказки категории
type ClassifyRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description DTO для ответа с информацией об инциденте
type IncidentResponse struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	Description      string    `json:"description"`
	Location         string    `json:"location"`
	Latitude         *float64  `json:"latitude,omitempty"`
	Longitude        *float64  `json:"longitude,omitempty"`
	ImageURIs        []string  `json:"imageUris"`
	Status           string    `json:"status"`
	Severity         string    `json:"severity"`
	Timestamp        int64     `json:"timestamp"`
	CreatedAt        time.Time `json:"createdAt"`
	Date             string    `json:"date"`
	ReportedBy       string    `json:"reportedBy"`
	AfterImageURI    *string   `json:"afterImageUri,omitempty"`
	ResolvedComment  *string   `json:"resolvedComment,omitempty"`
	AssignedTo       *string   `json:"assignedTo,omitempty"`
	MasterIncidentID *string   `json:"masterIncidentId,omitempty"`
	MergedIDs        []string  `json:"mergedIds"`
}

// ListResponse DTO для ответа со списком инцидентов
type ListResponse struct {
	Incidents []*IncidentResponse `json:"incidents"`
	Count     int                 `json:"count"`
	Degraded  bool                `json:"degraded"`
	// Groups заполняется при group=day
	Groups []DayGroupResponse `json:"groups,omitempty"`
}

// DayGroupResponse - инциденты одного дня: Today, Yesterday или дата
type DayGroupResponse struct {
	Label     string              `json:"label"`
	Incidents []*IncidentResponse `json:"incidents"`
}

// StatsResponse DTO для сводной статистики
type StatsResponse struct {
	query.Stats
	Degraded bool `json:"degraded"`
}

// SuggestionResponse DTO для подсказки классификатора
type SuggestionResponse struct {
	Category string `json:"category"`
	Severity string `json:"severity"`
}

// LiveEvent - одно событие потока /incidents/live
type LiveEvent struct {
	// Stream - идентификатор потока для PATCH /incidents/live/{stream}
	Stream    string              `json:"stream"`
	Version   uint64              `json:"version"`
	Incidents []*IncidentResponse `json:"incidents"`
	Groups    []DayGroupResponse  `json:"groups,omitempty"`
	Total     int                 `json:"total"`
	Degraded  bool                `json:"degraded"`
	Error     string              `json:"error,omitempty"`
	At        time.Time           `json:"at"`
}

// LiveStatsEvent - одно событие потока /incidents/stats/live
type LiveStatsEvent struct {
	query.Stats
	Degraded bool      `json:"degraded"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// LiveFilterPatch DTO для изменения критериев открытого живого запроса.
// Отсутствующие поля не меняются.
// @Description Изменение критериев открытого живого запроса
type LiveFilterPatch struct {
	Q          *string    `json:"q,omitempty"`
	Status     *string    `json:"status,omitempty"`
	Sort       *string    `json:"sort,omitempty"`
	Category   *string    `json:"category,omitempty"`
	From       *string    `json:"from,omitempty"`
	To         *string    `json:"to,omitempty"`
	ClearRange bool       `json:"clearRange,omitempty"`
	Near       *NearPatch `json:"near,omitempty"`
	ClearNear  bool       `json:"clearNear,omitempty"`
}

// LiveFilterResponse - состояние потока после изменения критериев.
// Version и Count нулевые, пока не пришел первый снимок.
type LiveFilterResponse struct {
	Stream  string `json:"stream"`
	Version uint64 `json:"version"`
	Count   int    `json:"count"`
}

// NearPatch - центр и радиус поиска рядом
type NearPatch struct {
	Latitude     *float64 `json:"latitude" validate:"required,latitude"`
	Longitude    *float64 `json:"longitude" validate:"required,longitude"`
	RadiusMeters float64  `json:"radiusMeters" validate:"gt=0"`
}
