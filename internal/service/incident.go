package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/waste_incident_sync/internal/models"
	"github.com/shenikar/waste_incident_sync/internal/query"
)

// IncidentSource определяет контракт удаленного авторитетного хранилища
type IncidentSource interface {
	Write(ctx context.Context, incident *models.Incident) error
	Get(ctx context.Context, id string) (*models.Incident, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q models.QueryDescriptor) ([]*models.Incident, error)
}

// LocalCache - чтение локального кеша и вытеснение через координатор
type LocalCache interface {
	CachedGet(id string) (*models.Incident, error)
	CachedQuery(q models.QueryDescriptor) ([]*models.Incident, error)
	Evict(id string) error
}

// Classifier - подсказка категории и серьезности по тексту
type Classifier interface {
	Classify(ctx context.Context, text string) (models.Suggestion, error)
}

// IncidentInput - поля, которые задает автор сообщения
type IncidentInput struct {
	Type        string
	Description string
	Location    string
	ImageURIs   []string
	Severity    models.Severity
}

// ListResult - результат разового запроса списка
type ListResult struct {
	Incidents []*models.Incident
	// Degraded - удаленное хранилище недоступно, данные из кеша
	Degraded bool
}

// StatsResult - сводка и признак деградации
type StatsResult struct {
	Stats    query.Stats
	Degraded bool
}

// IncidentService определяет контракт для сценариев автора сообщения и чтения
type IncidentService interface {
	CreateIncident(ctx context.Context, actor models.Identity, input IncidentInput) (*models.Incident, error)
	GetIncident(ctx context.Context, actor models.Identity, id string) (*models.Incident, error)
	UpdateIncident(ctx context.Context, actor models.Identity, id string, input IncidentInput) (*models.Incident, error)
	DeleteIncident(ctx context.Context, actor models.Identity, id string) error
	ListIncidents(ctx context.Context, actor models.Identity, mineOnly bool, filter query.Filter) (*ListResult, error)
	Stats(ctx context.Context, actor models.Identity) (*StatsResult, error)
	Classify(ctx context.Context, text string) *models.Suggestion
}

type incidentService struct {
	source     IncidentSource
	cache      LocalCache
	classifier Classifier
	logger     *logrus.Logger
	now        func() time.Time
}

// NewIncidentService создает сервис. classifier может быть nil:
// тогда подсказки не выдаются.
func NewIncidentService(source IncidentSource, cache LocalCache, classifier Classifier, logger *logrus.Logger) IncidentService {
	return &incidentService{
		source:     source,
		cache:      cache,
		classifier: classifier,
		logger:     logger,
		now:        time.Now,
	}
}

// ScopeFor возвращает дескриптор запроса, доступный пользователю:
// гражданин видит только свои сообщения, администратор - все.
func ScopeFor(actor models.Identity, mineOnly bool) models.QueryDescriptor {
	if actor.IsAdmin() && !mineOnly {
		return models.QueryDescriptor{}
	}
	return models.QueryDescriptor{ReportedBy: actor.UserID}
}

// CreateIncident создает инцидент; успех только после записи в удаленное хранилище
func (s *incidentService) CreateIncident(ctx context.Context, actor models.Identity, input IncidentInput) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "CreateIncident",
		"user_id": actor.UserID,
	})
	log.Info("Attempting to create a new incident")

	if actor.UserID == "" {
		return nil, fmt.Errorf("service: %w: identity required", models.ErrForbidden)
	}
	input, err := normalizeInput(input)
	if err != nil {
		log.WithError(err).Warn("Rejected incident input")
		return nil, fmt.Errorf("service: %w", err)
	}

	now := s.now()
	incident := &models.Incident{
		ID:          uuid.NewString(),
		Type:        input.Type,
		Description: input.Description,
		Location:    input.Location,
		ImageURIs:   input.ImageURIs,
		Status:      models.StatusReported,
		Severity:    input.Severity,
		Timestamp:   now.UnixMilli(),
		ReportedBy:  actor.UserID,
		Date:        now.Format(models.DateLayout),
		MergedIDs:   []string{},
	}

	if err := s.source.Write(ctx, incident); err != nil {
		log.WithError(err).Error("Failed to create incident in remote store")
		return nil, fmt.Errorf("service: could not create incident: %w", err)
	}

	log.WithField("incident_id", incident.ID).Info("Incident created successfully")
	return incident, nil
}

// GetIncident получает инцидент из удаленного хранилища,
// при его недоступности - из кеша.
func (s *incidentService) GetIncident(ctx context.Context, actor models.Identity, id string) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "GetIncident",
		"incident_id": id,
	})
	log.Info("Fetching incident by ID")

	incident, err := s.source.Get(ctx, id)
	if err == nil {
		return incident, nil
	}
	if !errors.Is(err, models.ErrRemoteUnavailable) {
		log.WithError(err).Warn("Failed to get incident from remote store")
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}

	cached, cacheErr := s.cache.CachedGet(id)
	if cacheErr != nil {
		log.WithError(err).Error("Remote store unavailable and incident is not cached")
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}
	log.Warn("Remote store unavailable, incident served from cache")
	return cached, nil
}

// UpdateIncident меняет поля сообщения. Только автор и только пока статус Reported.
func (s *incidentService) UpdateIncident(ctx context.Context, actor models.Identity, id string, input IncidentInput) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "UpdateIncident",
		"incident_id": id,
	})
	log.Info("Attempting to update incident")

	existing, err := s.source.Get(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Attempted to update an unavailable incident")
		return nil, fmt.Errorf("service: incident with id %s not found for update: %w", id, err)
	}
	if existing.ReportedBy != actor.UserID {
		return nil, fmt.Errorf("service: %w: only the reporter may edit incident %s", models.ErrForbidden, id)
	}
	if existing.Status != models.StatusReported {
		return nil, fmt.Errorf("service: %w: incident %s is %s, edits are allowed only while %s",
			models.ErrInvalidTransition, id, existing.Status, models.StatusReported)
	}

	input, err = normalizeInput(input)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	updated := existing.Clone()
	updated.Type = input.Type
	updated.Description = input.Description
	updated.Location = input.Location
	updated.ImageURIs = input.ImageURIs
	updated.Severity = input.Severity

	if err := s.source.Write(ctx, updated); err != nil {
		log.WithError(err).Error("Failed to update incident in remote store")
		return nil, fmt.Errorf("service: could not update incident: %w", err)
	}
	log.Info("Incident updated successfully")
	return updated, nil
}

// DeleteIncident удаляет инцидент из удаленного хранилища и кеша.
// Удалять может автор или администратор.
func (s *incidentService) DeleteIncident(ctx context.Context, actor models.Identity, id string) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "DeleteIncident",
		"incident_id": id,
	})
	log.Info("Attempting to delete incident")

	existing, err := s.source.Get(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Attempted to delete an unavailable incident")
		return fmt.Errorf("service: incident with id %s not found for delete: %w", id, err)
	}
	if !actor.IsAdmin() && existing.ReportedBy != actor.UserID {
		return fmt.Errorf("service: %w: only the reporter or an admin may delete incident %s", models.ErrForbidden, id)
	}

	if err := s.source.Delete(ctx, id); err != nil {
		log.WithError(err).Error("Failed to delete incident in remote store")
		return fmt.Errorf("service: could not delete incident: %w", err)
	}
	if err := s.cache.Evict(id); err != nil {
		log.WithError(err).Warn("Failed to evict deleted incident from cache")
	}

	log.Info("Incident deleted successfully")
	return nil
}

// ListIncidents выполняет разовый отфильтрованный запрос в пределах области пользователя
func (s *incidentService) ListIncidents(ctx context.Context, actor models.Identity, mineOnly bool, filter query.Filter) (*ListResult, error) {
	scope := ScopeFor(actor, mineOnly)
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "ListIncidents",
		"scope":   scope.Key(),
	})
	log.Info("Listing incidents")

	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	incidents, degraded, err := s.load(ctx, scope, log)
	if err != nil {
		return nil, err
	}

	result := &ListResult{Incidents: query.Apply(incidents, filter), Degraded: degraded}
	log.WithField("count", len(result.Incidents)).Info("Incidents listed successfully")
	return result, nil
}

// Stats считает сводку по области пользователя
func (s *incidentService) Stats(ctx context.Context, actor models.Identity) (*StatsResult, error) {
	scope := ScopeFor(actor, false)
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "Stats",
		"scope":   scope.Key(),
	})

	incidents, degraded, err := s.load(ctx, scope, log)
	if err != nil {
		return nil, err
	}
	return &StatsResult{Stats: query.Summarize(incidents, s.now()), Degraded: degraded}, nil
}

// Classify возвращает подсказку или nil; сбой классификатора не ошибка
func (s *incidentService) Classify(ctx context.Context, text string) *models.Suggestion {
	if s.classifier == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	suggestion, err := s.classifier.Classify(ctx, text)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"service": "incident",
			"method":  "Classify",
		}).WithError(err).Warn("Classifier unavailable, no suggestion")
		return nil
	}
	return &suggestion
}

// load читает набор из удаленного хранилища, при недоступности - из кеша
func (s *incidentService) load(ctx context.Context, scope models.QueryDescriptor, log *logrus.Entry) ([]*models.Incident, bool, error) {
	incidents, err := s.source.List(ctx, scope)
	if err == nil {
		return incidents, false, nil
	}
	if !errors.Is(err, models.ErrRemoteUnavailable) {
		log.WithError(err).Error("Failed to list incidents from remote store")
		return nil, false, fmt.Errorf("service: could not list incidents: %w", err)
	}

	cached, cacheErr := s.cache.CachedQuery(scope)
	if cacheErr != nil || len(cached) == 0 {
		log.WithError(err).Error("Remote store unavailable and cache is empty")
		return nil, false, fmt.Errorf("service: could not list incidents: %w", err)
	}
	log.Warn("Remote store unavailable, serving cached incidents")
	return cached, true, nil
}

func normalizeInput(in IncidentInput) (IncidentInput, error) {
	in.Type = strings.TrimSpace(in.Type)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)

	if in.Type == "" {
		return in, fmt.Errorf("%w: type is required", models.ErrInvalidInput)
	}
	if in.Description == "" {
		return in, fmt.Errorf("%w: description must not be empty", models.ErrInvalidInput)
	}
	loc, err := models.ParseLocation(in.Location)
	if err != nil {
		return in, err
	}
	in.Location = loc.String()

	if in.Severity == "" {
		in.Severity = models.SeverityMedium
	} else {
		sev, err := models.ParseSeverity(string(in.Severity))
		if err != nil {
			return in, err
		}
		in.Severity = sev
	}

	images := make([]string, 0, len(in.ImageURIs))
	for _, uri := range in.ImageURIs {
		if uri = strings.TrimSpace(uri); uri != "" {
			images = append(images, uri)
		}
	}
	in.ImageURIs = images
	return in, nil
}
