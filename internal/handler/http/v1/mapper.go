package v1

import (
	"time"

	"github.com/shenikar/waste_incident_sync/internal/models"
	"github.com/shenikar/waste_incident_sync/internal/query"
	"github.com/shenikar/waste_incident_sync/internal/service"
)

// DTOToIncidentInput преобразует DTO создания/редактирования во входные данные сервиса
func DTOToIncidentInput(dto IncidentRequest) service.IncidentInput {
	location := ""
	if dto.Latitude != nil && dto.Longitude != nil {
		location = models.Location{Lat: *dto.Latitude, Lon: *dto.Longitude}.String()
	}
	return service.IncidentInput{
		Type:        dto.Type,
		Description: dto.Description,
		Location:    location,
		ImageURIs:   dto.ImageURIs,
		Severity:    models.Severity(dto.Severity),
	}
}

// DTOToTransitionRequest преобразует DTO смены статуса
func DTOToTransitionRequest(dto TransitionRequest) service.TransitionRequest {
	return service.TransitionRequest{
		Status:        models.Status(dto.Status),
		ProofImageRef: dto.ProofImageRef,
		ProofURL:      dto.ProofURL,
		Comment:       dto.Comment,
	}
}

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа.
// Координаты заполняются, только если строку местоположения удалось разобрать.
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	resp := &IncidentResponse{
		ID:               model.ID,
		Type:             model.Type,
		Description:      model.Description,
		Location:         model.Location,
		ImageURIs:        model.ImageURIs,
		Status:           string(model.Status),
		Severity:         string(model.Severity),
		Timestamp:        model.Timestamp,
		CreatedAt:        model.CreatedAt().UTC(),
		Date:             model.Date,
		ReportedBy:       model.ReportedBy,
		AfterImageURI:    model.AfterImageURI,
		ResolvedComment:  model.ResolvedComment,
		AssignedTo:       model.AssignedTo,
		MasterIncidentID: model.MasterIncidentID,
		MergedIDs:        model.MergedIDs,
	}
	if resp.ImageURIs == nil {
		resp.ImageURIs = []string{}
	}
	if resp.MergedIDs == nil {
		resp.MergedIDs = []string{}
	}
	if loc, err := models.ParseLocation(model.Location); err == nil {
		resp.Latitude = &loc.Lat
		resp.Longitude = &loc.Lon
	}
	return resp
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(models []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}

// GroupsToResponse раскладывает упорядоченный набор по дням создания
func GroupsToResponse(incidents []*models.Incident, now time.Time) []DayGroupResponse {
	groups := query.GroupByDay(incidents, now)
	responses := make([]DayGroupResponse, len(groups))
	for i, g := range groups {
		responses[i] = DayGroupResponse{Label: g.Label, Incidents: ModelsToIncidentResponses(g.Incidents)}
	}
	return responses
}

// ResultToLiveEvent преобразует пересчет живого представления в событие потока
func ResultToLiveEvent(stream string, res query.Result) LiveEvent {
	ev := LiveEvent{
		Stream:    stream,
		Version:   res.Version,
		Incidents: ModelsToIncidentResponses(res.Incidents),
		Total:     res.Total,
		Degraded:  res.Degraded,
		At:        res.At.UTC(),
	}
	if res.Err != nil {
		ev.Error = "incident store unavailable"
	}
	return ev
}

// ResultToLiveStatsEvent считает сводку по пересчету живого представления
func ResultToLiveStatsEvent(res query.Result, now time.Time) LiveStatsEvent {
	ev := LiveStatsEvent{
		Stats:    query.Summarize(res.Incidents, now),
		Degraded: res.Degraded,
		At:       res.At.UTC(),
	}
	if res.Err != nil {
		ev.Error = "incident store unavailable"
	}
	return ev
}
