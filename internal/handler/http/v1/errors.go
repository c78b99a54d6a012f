package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/waste_incident_sync/internal/models"
)

// statusFor сопоставляет доменную ошибку HTTP-статусу
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrResolutionProofRequired),
		errors.Is(err, models.ErrInvalidMerge):
		return http.StatusConflict
	case errors.Is(err, models.ErrWriteRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrUploadFailed):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError пишет ответ с ошибкой. Текст 5xx-ошибок наружу не отдается.
func writeError(c *gin.Context, log *logrus.Entry, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}

	var terr *models.TransitionError
	if errors.As(err, &terr) {
		body["from"] = terr.From
		body["to"] = terr.To
	}

	switch status {
	case http.StatusInternalServerError:
		log.WithError(err).Error("Request failed")
		body = gin.H{"error": "internal server error"}
	case http.StatusServiceUnavailable:
		log.WithError(err).Error("Incident store unavailable")
		body = gin.H{"error": "incident store unavailable"}
	case http.StatusBadGateway:
		log.WithError(err).Error("Image upload failed")
		body = gin.H{"error": "image upload failed"}
	default:
		log.WithError(err).Warn("Request rejected")
	}
	c.JSON(status, body)
}
