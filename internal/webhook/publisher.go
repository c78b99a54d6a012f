package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shenikar/waste_incident_sync/internal/models"
)

const (
	webhookQueueKey = "incident_notifications"
)

// EventKind - вид события жизненного цикла
type EventKind string

const (
	EventStatusChanged EventKind = "status_changed"
	EventAssigned      EventKind = "assigned"
	EventMerged        EventKind = "merged"
)

// WebhookEvent - уведомление об изменении инцидента
type WebhookEvent struct {
	Kind             EventKind     `json:"kind"`
	IncidentID       string        `json:"incident_id"`
	Status           models.Status `json:"status"`
	ReportedBy       string        `json:"reported_by"`
	AssignedTo       string        `json:"assigned_to,omitempty"`
	MasterIncidentID string        `json:"master_incident_id,omitempty"`
	Comment          string        `json:"comment,omitempty"`
	Timestamp        time.Time     `json:"timestamp"`
}

// NewEvent собирает событие по текущему состоянию инцидента
func NewEvent(kind EventKind, incident *models.Incident, at time.Time) WebhookEvent {
	return WebhookEvent{
		Kind:             kind,
		IncidentID:       incident.ID,
		Status:           incident.Status,
		ReportedBy:       incident.ReportedBy,
		AssignedTo:       models.StringValue(incident.AssignedTo),
		MasterIncidentID: models.StringValue(incident.MasterIncidentID),
		Comment:          models.StringValue(incident.ResolvedComment),
		Timestamp:        at,
	}
}

// WebhookPublisher - интерфейс для публикации вебхуков
type WebhookPublisher interface {
	Publish(ctx context.Context, event WebhookEvent) error
}

// RedisWebhookPublisher - реализация WebhookPublisher, использующая Redis
type RedisWebhookPublisher struct {
	redisClient *redis.Client
}

// NewRedisWebhookPublisher создает новый RedisWebhookPublisher
func NewRedisWebhookPublisher(client *redis.Client) *RedisWebhookPublisher {
	return &RedisWebhookPublisher{
		redisClient: client,
	}
}

// Publish публикует событие вебхука в очередь Redis
func (p *RedisWebhookPublisher) Publish(ctx context.Context, event WebhookEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	// LPUSH в голову списка, воркер забирает с хвоста через BRPOP
	if err := p.redisClient.LPush(ctx, webhookQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish webhook event to Redis: %w", err)
	}
	return nil
}
