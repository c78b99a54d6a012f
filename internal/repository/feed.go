package repository

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shenikar/waste_incident_sync/internal/models"
)

// Lister - полное перечитывание набора для дескриптора
type Lister interface {
	List(ctx context.Context, q models.QueryDescriptor) ([]*models.Incident, error)
}

// Subscribe открывает живой канал по дескриптору. Канал сразу получает
// текущий набор, затем новый полный набор после каждого изменения.
// Ошибка перечитывания отправляется событием, подписка при этом не
// закрывается. Канал закрывается после отмены ctx.
func (r *IncidentRepository) Subscribe(ctx context.Context, q models.QueryDescriptor) <-chan models.FeedEvent {
	out := make(chan models.FeedEvent, 1)
	pubsub := r.redisClient.Subscribe(ctx, r.feed.Channel)

	notifications := make(chan struct{}, 1)
	go func() {
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case notifications <- struct{}{}:
				default:
				}
			}
		}
	}()

	log := r.logger.WithFields(logrus.Fields{
		"component": "incident_feed",
		"query":     q.Key(),
	})
	go runFeed(ctx, r, q, notifications, r.feed.ResyncInterval, log, out)
	return out
}

// runFeed перечитывает набор при каждом уведомлении и по таймеру.
// Одинаковые подряд снимки не отправляются повторно; после ошибки
// следующий успешный снимок отправляется всегда.
func runFeed(ctx context.Context, lister Lister, q models.QueryDescriptor, notifications <-chan struct{}, resync time.Duration, log *logrus.Entry, out chan<- models.FeedEvent) {
	defer close(out)

	ticker := time.NewTicker(resync)
	defer ticker.Stop()

	lastFingerprint := ""
	failed := false

	emit := func() bool {
		incidents, err := lister.List(ctx, q)
		if ctx.Err() != nil {
			return false
		}
		var event models.FeedEvent
		if err != nil {
			log.WithError(err).Warn("Failed to reload incident set")
			failed = true
			event = models.FeedEvent{Err: err}
		} else {
			fp := models.Fingerprint(incidents)
			if !failed && fp == lastFingerprint {
				return true
			}
			if failed {
				log.Info("Incident feed recovered")
			}
			failed = false
			lastFingerprint = fp
			event = models.FeedEvent{Incidents: incidents}
		}
		select {
		case out <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-notifications:
		case <-ticker.C:
		}
		if !emit() {
			return
		}
	}
}
