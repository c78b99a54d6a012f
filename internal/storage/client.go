// Package storage - клиент хранилища изображений
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/waste_incident_sync/internal/models"
)

// afterImagesPrefix - каталог фото-подтверждений устранения
const afterImagesPrefix = "after_images"

type uploadResponse struct {
	URL string `json:"url"`
}

// Client загружает локальные файлы и возвращает постоянный URL
type Client struct {
	httpClient *resty.Client
	logger     *logrus.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, logger *logrus.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

// Upload отправляет файл localRef как multipart под именем
// after_images/<uuid><расширение>. Любой сбой - models.ErrUploadFailed.
func (c *Client) Upload(ctx context.Context, localRef string) (string, error) {
	log := c.logger.WithFields(logrus.Fields{
		"component": "storage",
		"local_ref": localRef,
	})

	info, err := os.Stat(localRef)
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrUploadFailed, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", models.ErrUploadFailed, localRef)
	}

	objectName := path.Join(afterImagesPrefix, uuid.NewString()+strings.ToLower(filepath.Ext(localRef)))

	var result uploadResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFile("file", localRef).
		SetFormData(map[string]string{"name": objectName}).
		SetResult(&result).
		Post("/objects")
	if err != nil {
		log.WithError(err).Error("Image upload failed")
		return "", fmt.Errorf("%w: %w", models.ErrUploadFailed, err)
	}
	if !resp.IsSuccess() {
		log.WithField("status_code", resp.StatusCode()).Error("Image storage rejected upload")
		return "", fmt.Errorf("%w: storage responded %d", models.ErrUploadFailed, resp.StatusCode())
	}
	if result.URL == "" {
		return "", fmt.Errorf("%w: %w", models.ErrUploadFailed, errors.New("storage returned no url"))
	}

	log.WithField("url", result.URL).Info("Image uploaded")
	return result.URL, nil
}
