package service

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shenikar/waste_incident_sync/internal/models"
	"github.com/shenikar/waste_incident_sync/internal/webhook"
)

// ObjectStorage загружает локальное изображение и возвращает постоянный URL
type ObjectStorage interface {
	Upload(ctx context.Context, localRef string) (string, error)
}

// TransitionRequest - запрос смены статуса.
// Для Resolved нужно одно из: ProofImageRef (локальный файл, будет
// загружен), ProofURL (уже загруженное изображение) или afterImageUri,
// уже записанный в инциденте.
type TransitionRequest struct {
	Status        models.Status
	ProofImageRef string
	ProofURL      string
	Comment       string
}

// LifecycleService определяет контракт смены статуса, назначения и слияния
type LifecycleService interface {
	Transition(ctx context.Context, actor models.Identity, id string, req TransitionRequest) (*models.Incident, error)
	Assign(ctx context.Context, actor models.Identity, id, assignee string) (*models.Incident, error)
	Merge(ctx context.Context, actor models.Identity, duplicateID, masterID string) (*models.Incident, error)
}

type lifecycleService struct {
	source    IncidentSource
	storage   ObjectStorage
	publisher webhook.WebhookPublisher
	logger    *logrus.Logger
	now       func() time.Time
}

func NewLifecycleService(source IncidentSource, storage ObjectStorage, publisher webhook.WebhookPublisher, logger *logrus.Logger) LifecycleService {
	return &lifecycleService{
		source:    source,
		storage:   storage,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Transition меняет статус по таблице переходов. Статус, фото и комментарий
// пишутся одной записью. Если фото загружено, а запись не удалась,
// загруженный файл остается в хранилище.
func (s *lifecycleService) Transition(ctx context.Context, actor models.Identity, id string, req TransitionRequest) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "lifecycle",
		"method":      "Transition",
		"incident_id": id,
		"to":          req.Status,
	})

	if !actor.IsAdmin() {
		return nil, fmt.Errorf("service: %w: only admins may change status", models.ErrForbidden)
	}
	if !slices.Contains(models.Statuses, req.Status) {
		return nil, fmt.Errorf("service: %w: unknown status %q", models.ErrInvalidInput, req.Status)
	}
	if req.ProofImageRef != "" && req.ProofURL != "" {
		return nil, fmt.Errorf("service: %w: give either a local proof image or a proof url", models.ErrInvalidInput)
	}
	if req.ProofURL != "" && !isDurableURL(req.ProofURL) {
		return nil, fmt.Errorf("service: %w: proof url must be http(s)", models.ErrInvalidInput)
	}

	existing, err := s.source.Get(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to load incident for transition")
		return nil, fmt.Errorf("service: could not load incident: %w", err)
	}
	if existing.Status == req.Status {
		log.Info("Incident already has requested status")
		return existing, nil
	}

	rule, err := CheckTransition(existing.Status, req.Status)
	if err != nil {
		log.WithError(err).Warn("Transition rejected")
		return nil, fmt.Errorf("service: %w", err)
	}

	updated := existing.Clone()
	updated.Status = req.Status

	uploaded := ""
	if rule.RequiresProof {
		proof := req.ProofURL
		switch {
		case req.ProofImageRef != "":
			proof, err = s.storage.Upload(ctx, req.ProofImageRef)
			if err != nil {
				log.WithError(err).Error("Proof image upload failed, status left unchanged")
				return nil, fmt.Errorf("service: could not upload proof image: %w", err)
			}
			uploaded = proof
		case proof == "":
			proof = models.StringValue(existing.AfterImageURI)
		}
		if proof == "" {
			return nil, fmt.Errorf("service: %w", &models.TransitionError{
				From:   existing.Status,
				To:     req.Status,
				Reason: "no proof image supplied or on record",
				Err:    models.ErrResolutionProofRequired,
			})
		}
		updated.AfterImageURI = models.StringPtr(proof)
		if comment := strings.TrimSpace(req.Comment); comment != "" {
			updated.ResolvedComment = models.StringPtr(comment)
		}
	}

	if err := s.source.Write(ctx, updated); err != nil {
		entry := log.WithError(err)
		if uploaded != "" {
			entry = entry.WithField("orphaned_image", uploaded)
		}
		entry.Error("Failed to write status change")
		return nil, fmt.Errorf("service: could not change status: %w", err)
	}

	log.WithField("from", existing.Status).Info("Incident status changed")
	s.notify(ctx, webhook.EventStatusChanged, updated, log)
	return updated, nil
}

// Assign назначает ответственного администратора; только для незакрытых инцидентов
func (s *lifecycleService) Assign(ctx context.Context, actor models.Identity, id, assignee string) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "lifecycle",
		"method":      "Assign",
		"incident_id": id,
		"assignee":    assignee,
	})

	if !actor.IsAdmin() {
		return nil, fmt.Errorf("service: %w: only admins may assign incidents", models.ErrForbidden)
	}
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return nil, fmt.Errorf("service: %w: assignee is required", models.ErrInvalidInput)
	}

	existing, err := s.source.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: could not load incident: %w", err)
	}
	if existing.Status.IsTerminal() {
		return nil, fmt.Errorf("service: %w", &models.TransitionError{
			From:   existing.Status,
			To:     existing.Status,
			Reason: "cannot assign a closed incident",
			Err:    models.ErrInvalidTransition,
		})
	}
	if models.StringValue(existing.AssignedTo) == assignee {
		return existing, nil
	}

	updated := existing.Clone()
	updated.AssignedTo = models.StringPtr(assignee)
	if err := s.source.Write(ctx, updated); err != nil {
		log.WithError(err).Error("Failed to write assignment")
		return nil, fmt.Errorf("service: could not assign incident: %w", err)
	}

	log.Info("Incident assigned")
	s.notify(ctx, webhook.EventAssigned, updated, log)
	return updated, nil
}

// Merge сливает дубликат в основной инцидент. Статус дубликата не меняется.
// Записей две: сначала дубликат, потом основной; повтор после частичного
// сбоя дописывает основной.
func (s *lifecycleService) Merge(ctx context.Context, actor models.Identity, duplicateID, masterID string) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "lifecycle",
		"method":      "Merge",
		"incident_id": duplicateID,
		"master_id":   masterID,
	})

	if !actor.IsAdmin() {
		return nil, fmt.Errorf("service: %w: only admins may merge incidents", models.ErrForbidden)
	}
	if duplicateID == "" || masterID == "" || duplicateID == masterID {
		return nil, fmt.Errorf("service: %w: merge needs two different incidents", models.ErrInvalidInput)
	}

	duplicate, err := s.source.Get(ctx, duplicateID)
	if err != nil {
		return nil, fmt.Errorf("service: could not load duplicate: %w", err)
	}
	master, err := s.source.Get(ctx, masterID)
	if err != nil {
		return nil, fmt.Errorf("service: could not load master: %w", err)
	}

	alreadyLinked := models.StringValue(duplicate.MasterIncidentID) == masterID
	if err := checkMerge(duplicate, master, alreadyLinked); err != nil {
		log.WithError(err).Warn("Merge rejected")
		return nil, fmt.Errorf("service: %w", err)
	}

	wrote := false
	if !alreadyLinked {
		updated := duplicate.Clone()
		updated.MasterIncidentID = models.StringPtr(masterID)
		if err := s.source.Write(ctx, updated); err != nil {
			log.WithError(err).Error("Failed to mark duplicate as merged")
			return nil, fmt.Errorf("service: could not merge incident: %w", err)
		}
		duplicate = updated
		wrote = true
	}

	if !slices.Contains(master.MergedIDs, duplicateID) {
		updatedMaster := master.Clone()
		updatedMaster.MergedIDs = append(updatedMaster.MergedIDs, duplicateID)
		if err := s.source.Write(ctx, updatedMaster); err != nil {
			log.WithError(err).Error("Duplicate is merged but master was not updated")
			return nil, fmt.Errorf("service: could not update master incident: %w", err)
		}
		wrote = true
	}

	if !wrote {
		log.Info("Incident already merged")
		return duplicate, nil
	}
	log.Info("Incident merged")
	s.notify(ctx, webhook.EventMerged, duplicate, log)
	return duplicate, nil
}

func checkMerge(duplicate, master *models.Incident, alreadyLinked bool) error {
	switch {
	case duplicate.Status.IsTerminal() && !alreadyLinked:
		return fmt.Errorf("%w: duplicate %s is %s", models.ErrInvalidMerge, duplicate.ID, duplicate.Status)
	case duplicate.IsMerged() && !alreadyLinked:
		return fmt.Errorf("%w: %s is already merged into %s", models.ErrInvalidMerge, duplicate.ID, *duplicate.MasterIncidentID)
	case len(duplicate.MergedIDs) > 0:
		return fmt.Errorf("%w: %s is a master of other incidents", models.ErrInvalidMerge, duplicate.ID)
	case master.IsMerged():
		return fmt.Errorf("%w: master %s is itself merged into %s", models.ErrInvalidMerge, master.ID, *master.MasterIncidentID)
	}
	return nil
}

func (s *lifecycleService) notify(ctx context.Context, kind webhook.EventKind, incident *models.Incident, log *logrus.Entry) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, webhook.NewEvent(kind, incident, s.now())); err != nil {
		log.WithError(err).Warn("Failed to enqueue notification")
	}
}

func isDurableURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
