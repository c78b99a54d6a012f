package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/waste_incident_sync/internal/models"
)

const selectIncidentColumns = `
	SELECT
		id,
		type,
		description,
		location,
		image_uris,
		status,
		severity,
		timestamp_ms,
		reported_by,
		date,
		after_image_uri,
		resolved_comment,
		assigned_to,
		master_incident_id,
		merged_ids
	FROM incidents`

// FeedOptions - параметры живого канала
type FeedOptions struct {
	// Channel - канал Redis pub/sub с идентификаторами измененных инцидентов
	Channel string
	// ResyncInterval - период контрольного перечитывания набора
	ResyncInterval time.Duration
}

// IncidentRepository - удаленное авторитетное хранилище инцидентов:
// строки в PostgreSQL, уведомления об изменениях через Redis pub/sub.
type IncidentRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
	logger      *logrus.Logger
	feed        FeedOptions
}

func NewIncidentRepository(db *pgxpool.Pool, redisClient *redis.Client, logger *logrus.Logger, feed FeedOptions) *IncidentRepository {
	if feed.Channel == "" {
		feed.Channel = "incidents:changes"
	}
	if feed.ResyncInterval <= 0 {
		feed.ResyncInterval = 30 * time.Second
	}
	return &IncidentRepository{
		db:          db,
		redisClient: redisClient,
		logger:      logger,
		feed:        feed,
	}
}

// Write сохраняет инцидент целиком (upsert, побеждает последняя запись).
// reported_by и timestamp_ms после создания не меняются. Закрытый инцидент
// принимает только записи с тем же статусом.
func (r *IncidentRepository) Write(ctx context.Context, incident *models.Incident) error {
	query := `
		INSERT INTO incidents (
			id, type, description, location, image_uris, status, severity,
			timestamp_ms, reported_by, date, after_image_uri, resolved_comment,
			assigned_to, master_incident_id, merged_ids
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			description = EXCLUDED.description,
			location = EXCLUDED.location,
			image_uris = EXCLUDED.image_uris,
			status = EXCLUDED.status,
			severity = EXCLUDED.severity,
			date = EXCLUDED.date,
			after_image_uri = EXCLUDED.after_image_uri,
			resolved_comment = EXCLUDED.resolved_comment,
			assigned_to = EXCLUDED.assigned_to,
			master_incident_id = EXCLUDED.master_incident_id,
			merged_ids = EXCLUDED.merged_ids,
			updated_at = NOW()
		WHERE incidents.status NOT IN ('Resolved', 'Rejected')
			OR incidents.status = EXCLUDED.status;
	`
	cmdTag, err := r.db.Exec(ctx, query,
		incident.ID,
		incident.Type,
		incident.Description,
		incident.Location,
		nonNil(incident.ImageURIs),
		string(incident.Status),
		string(incident.Severity),
		incident.Timestamp,
		incident.ReportedBy,
		incident.Date,
		incident.AfterImageURI,
		incident.ResolvedComment,
		incident.AssignedTo,
		incident.MasterIncidentID,
		nonNil(incident.MergedIDs),
	)
	if err != nil {
		return classifyError("write incident", err)
	}
	if cmdTag.RowsAffected() == 0 {
		stored, err := r.Get(ctx, incident.ID)
		if err != nil {
			return err
		}
		if err := models.CheckOverwrite(stored, incident); err != nil {
			return fmt.Errorf("write incident %s: %w", incident.ID, err)
		}
		return fmt.Errorf("write incident %s: %w: row was not updated", incident.ID, models.ErrWriteRejected)
	}

	r.notifyChange(ctx, incident.ID)
	return nil
}

// Get возвращает инцидент по id
func (r *IncidentRepository) Get(ctx context.Context, id string) (*models.Incident, error) {
	row := r.db.QueryRow(ctx, selectIncidentColumns+` WHERE id = $1;`, id)
	incident, err := scanIncident(row)
	if err != nil {
		return nil, classifyError(fmt.Sprintf("get incident %s", id), err)
	}
	return incident, nil
}

// Delete физически удаляет инцидент
func (r *IncidentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM incidents WHERE id = $1;`, id)
	if err != nil {
		return classifyError("delete incident", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("incident with id %s not found for delete: %w", id, models.ErrNotFound)
	}

	r.notifyChange(ctx, id)
	return nil
}

// List возвращает полный текущий набор для дескриптора: от новых к старым, затем по id
func (r *IncidentRepository) List(ctx context.Context, q models.QueryDescriptor) ([]*models.Incident, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if q.ReportedBy == "" {
		rows, err = r.db.Query(ctx, selectIncidentColumns+` ORDER BY timestamp_ms DESC, id ASC;`)
	} else {
		rows, err = r.db.Query(ctx, selectIncidentColumns+` WHERE reported_by = $1 ORDER BY timestamp_ms DESC, id ASC;`, q.ReportedBy)
	}
	if err != nil {
		return nil, classifyError("list incidents", err)
	}
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, classifyError("scan incident row", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("list iteration", err)
	}
	return incidents, nil
}

// notifyChange публикует id измененного инцидента. Ошибка публикации не
// отменяет уже выполненную запись: подписчики догонят на контрольном перечитывании.
func (r *IncidentRepository) notifyChange(ctx context.Context, id string) {
	if err := r.redisClient.Publish(ctx, r.feed.Channel, id).Err(); err != nil {
		r.logger.WithError(err).WithField("incident_id", id).Warn("Failed to publish incident change notification")
	}
}

func scanIncident(row pgx.Row) (*models.Incident, error) {
	var (
		incident models.Incident
		status   string
		severity string
	)
	err := row.Scan(
		&incident.ID,
		&incident.Type,
		&incident.Description,
		&incident.Location,
		&incident.ImageURIs,
		&status,
		&severity,
		&incident.Timestamp,
		&incident.ReportedBy,
		&incident.Date,
		&incident.AfterImageURI,
		&incident.ResolvedComment,
		&incident.AssignedTo,
		&incident.MasterIncidentID,
		&incident.MergedIDs,
	)
	if err != nil {
		return nil, err
	}
	incident.Status = models.Status(status)
	incident.Severity = models.Severity(severity)
	return &incident, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
