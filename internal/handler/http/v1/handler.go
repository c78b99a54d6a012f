package v1

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/waste_incident_sync/internal/config"
	"github.com/shenikar/waste_incident_sync/internal/models"
	"github.com/shenikar/waste_incident_sync/internal/query"
	"github.com/shenikar/waste_incident_sync/internal/service"
)

// FeedOpener открывает живую подписку на запрос (обычно Coordinator.Subscribe)
type FeedOpener func(q models.QueryDescriptor) query.Feed

type Handler struct {
	incidentService  service.IncidentService
	lifecycleService service.LifecycleService
	openFeed         FeedOpener
	logger           *logrus.Logger
	validate         *validator.Validate
	cfg              *config.Config
	streams          *liveStreams
	now              func() time.Time
}

func NewHandler(incidentService service.IncidentService, lifecycleService service.LifecycleService, openFeed FeedOpener, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		incidentService:  incidentService,
		lifecycleService: lifecycleService,
		openFeed:         openFeed,
		logger:           logger,
		validate:         validator.New(),
		cfg:              cfg,
		streams:          newLiveStreams(),
		now:              time.Now,
	}
}

// bind разбирает и валидирует тело запроса; при ошибке ответ уже записан
func (h *Handler) bind(c *gin.Context, log *logrus.Entry, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// @Summary Create a new incident
// @Description Report a new waste incident. The incident is created in status Reported.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param incident body IncidentRequest true "Incident creation request"
// @Success 201 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 422 {object} map[string]string "Write rejected by the store"
// @Failure 503 {object} map[string]string "Incident store unavailable"
// @Router /incidents [post]
func (h *Handler) createIncident(c *gin.Context) {
	var input IncidentRequest
	actor := identityFrom(c)
	log := h.logger.WithField("method", "createIncident").WithField("user_id", actor.UserID)

	if !h.bind(c, log, &input) {
		return
	}

	incident, err := h.incidentService.CreateIncident(c.Request.Context(), actor, DTOToIncidentInput(input))
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, ModelToIncidentResponse(incident))
}

// @Summary List incidents
// @Description One-shot filtered query. Citizens see their own reports, admins see all unless mine=true.
// @Tags Incidents
// @Produce json
// @Security ApiKeyAuth
// @Param q query string false "Text search"
// @Param status query string false "Status bucket" Enums(All, Pending, Resolved)
// @Param sort query string false "Sort mode" Enums(Newest, Oldest, Severity)
// @Param category query string false "Category"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD), inclusive"
// @Param lat query number false "Center latitude"
// @Param lon query number false "Center longitude"
// @Param radius query number false "Radius in meters"
// @Param mine query bool false "Only own reports"
// @Param group query string false "Grouping" Enums(none, day)
// @Success 200 {object} ListResponse
// @Success 304 "Not Modified"
// @Failure 400 {object} map[string]string "Invalid filter"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 503 {object} map[string]string "Incident store unavailable and nothing cached"
// @Router /incidents [get]
func (h *Handler) listIncidents(c *gin.Context) {
	actor := identityFrom(c)
	log := h.logger.WithField("method", "listIncidents").WithField("user_id", actor.UserID)

	filter, mine, err := parseFilter(c)
	if err != nil {
		writeError(c, log, err)
		return
	}
	byDay, err := parseGroup(c)
	if err != nil {
		writeError(c, log, err)
		return
	}

	result, err := h.incidentService.ListIncidents(c.Request.Context(), actor, mine, filter)
	if err != nil {
		writeError(c, log, err)
		return
	}

	etag := fmt.Sprintf("%q", models.Fingerprint(result.Incidents))
	if result.Degraded {
		etag = "W/" + etag
	}
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	resp := ListResponse{
		Incidents: ModelsToIncidentResponses(result.Incidents),
		Count:     len(result.Incidents),
		Degraded:  result.Degraded,
	}
	if byDay {
		resp.Groups = GroupsToResponse(result.Incidents, h.now())
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Get incident by ID
// @Description Get a single incident. Served from the local cache when the store is unreachable.
// @Tags Incidents
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 503 {object} map[string]string "Incident store unavailable"
// @Router /incidents/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	id := c.Param("id")
	log := h.logger.WithField("method", "getIncident").WithField("id", id)

	incident, err := h.incidentService.GetIncident(c.Request.Context(), identityFrom(c), id)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Update an existing incident
// @Description Edit an own incident while it is still Reported.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param incident body IncidentRequest true "Incident update request"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 403 {object} map[string]string "Not the reporter"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 409 {object} map[string]string "Incident is no longer editable"
// @Router /incidents/{id} [put]
func (h *Handler) updateIncident(c *gin.Context) {
	id := c.Param("id")
	log := h.logger.WithField("method", "updateIncident").WithField("id", id)

	var input IncidentRequest
	if !h.bind(c, log, &input) {
		return
	}

	incident, err := h.incidentService.UpdateIncident(c.Request.Context(), identityFrom(c), id, DTOToIncidentInput(input))
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Delete an incident
// @Description Delete an incident. Allowed for the reporter and for admins.
// @Tags Incidents
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 204 "No Content"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Incident not found"
// @Router /incidents/{id} [delete]
func (h *Handler) deleteIncident(c *gin.Context) {
	id := c.Param("id")
	log := h.logger.WithField("method", "deleteIncident").WithField("id", id)

	if err := h.incidentService.DeleteIncident(c.Request.Context(), identityFrom(c), id); err != nil {
		writeError(c, log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Change incident status
// @Description Admin-only status transition. Resolved requires a proof image.
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param transition body TransitionRequest true "Transition request"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 403 {object} map[string]string "Admins only"
// @Failure 409 {object} map[string]string "Transition not allowed or proof missing"
// @Failure 502 {object} map[string]string "Proof upload failed"
// @Router /incidents/{id}/status [post]
func (h *Handler) changeStatus(c *gin.Context) {
	id := c.Param("id")
	log := h.logger.WithField("method", "changeStatus").WithField("id", id)

	var input TransitionRequest
	if !h.bind(c, log, &input) {
		return
	}

	incident, err := h.lifecycleService.Transition(c.Request.Context(), identityFrom(c), id, DTOToTransitionRequest(input))
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Assign an incident
// @Description Admin-only assignment of an open incident.
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param assign body AssignRequest true "Assignee"
// @Success 200 {object} IncidentResponse
// @Failure 403 {object} map[string]string "Admins only"
// @Failure 409 {object} map[string]string "Incident is closed"
// @Router /incidents/{id}/assign [post]
func (h *Handler) assignIncident(c *gin.Context) {
	id := c.Param("id")
	log := h.logger.WithField("method", "assignIncident").WithField("id", id)

	var input AssignRequest
	if !h.bind(c, log, &input) {
		return
	}

	incident, err := h.lifecycleService.Assign(c.Request.Context(), identityFrom(c), id, input.Assignee)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Merge a duplicate incident
// @Description Admin-only merge of the incident into a master incident.
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Duplicate incident ID"
// @Param merge body MergeRequest true "Master incident"
// @Success 200 {object} IncidentResponse
// @Failure 403 {object} map[string]string "Admins only"
// @Failure 409 {object} map[string]string "Merge would form a chain"
// @Router /incidents/{id}/merge [post]
func (h *Handler) mergeIncident(c *gin.Context) {
	id := c.Param("id")
	log := h.logger.WithField("method", "mergeIncident").WithField("id", id)

	var input MergeRequest
	if !h.bind(c, log, &input) {
		return
	}

	incident, err := h.lifecycleService.Merge(c.Request.Context(), identityFrom(c), id, input.MasterID)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Get incident statistics
// @Description Totals per status, type and severity plus daily counts for the last week.
// @Tags Incidents
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} StatsResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 503 {object} map[string]string "Incident store unavailable"
// @Router /incidents/stats [get]
func (h *Handler) getStats(c *gin.Context) {
	log := h.logger.WithField("method", "getStats")

	result, err := h.incidentService.Stats(c.Request.Context(), identityFrom(c))
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, StatsResponse{Stats: result.Stats, Degraded: result.Degraded})
}

// @Summary Suggest category and severity
// @Description Ask the AI classifier for a category and severity. 204 when no suggestion is available.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body ClassifyRequest true "Description text"
// @Success 200 {object} SuggestionResponse
// @Success 204 "No suggestion"
// @Failure 400 {object} map[string]string "Invalid request body"
// @Router /classify [post]
func (h *Handler) classify(c *gin.Context) {
	log := h.logger.WithField("method", "classify")

	var input ClassifyRequest
	if !h.bind(c, log, &input) {
		return
	}

	suggestion := h.incidentService.Classify(c.Request.Context(), input.Text)
	if suggestion == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, SuggestionResponse{Category: suggestion.Category, Severity: string(suggestion.Severity)})
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
