// Package classifier подсказывает категорию и серьезность по описанию
// инцидента через Ollama-совместимый API.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/waste_incident_sync/internal/models"
)

const promptTemplate = `Analyze the following user's description of a waste problem.
Your task is to classify it into one of the following exact categories: [%s].
Also, estimate the severity as one of [Low, Medium, High] based on the description.
Provide the response ONLY in a valid JSON format like this: {"category": "CATEGORY_NAME", "severity": "SEVERITY_LEVEL"}

User Description: %q`

var errNoJSON = errors.New("no JSON object in model response")

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type rawSuggestion struct {
	Category string `json:"category"`
	Severity string `json:"severity"`
}

// Client - клиент POST /api/generate
type Client struct {
	httpClient *resty.Client
	model      string
	logger     *logrus.Logger
}

func NewClient(baseURL, model string, timeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		model:  model,
		logger: logger,
	}
}

// Classify возвращает подсказку. Неизвестная категория сводится к Other,
// неизвестная серьезность - к Medium.
func (c *Client) Classify(ctx context.Context, text string) (models.Suggestion, error) {
	prompt := fmt.Sprintf(promptTemplate, strings.Join(models.Categories, ", "), text)

	var result generateResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(generateRequest{Model: c.model, Prompt: prompt}).
		SetResult(&result).
		Post("/api/generate")
	if err != nil {
		return models.Suggestion{}, fmt.Errorf("classifier: request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return models.Suggestion{}, fmt.Errorf("classifier: model responded %d", resp.StatusCode())
	}

	suggestion, err := parseSuggestion(result.Response)
	if err != nil {
		c.logger.WithError(err).WithField("response", result.Response).Warn("Unparsable classifier response")
		return models.Suggestion{}, fmt.Errorf("classifier: %w", err)
	}
	return suggestion, nil
}

// parseSuggestion вырезает первый JSON-объект из ответа модели
func parseSuggestion(response string) (models.Suggestion, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end < start {
		return models.Suggestion{}, errNoJSON
	}

	var raw rawSuggestion
	if err := json.Unmarshal([]byte(response[start:end+1]), &raw); err != nil {
		return models.Suggestion{}, err
	}
	return normalize(raw), nil
}

func normalize(raw rawSuggestion) models.Suggestion {
	s := models.Suggestion{Category: "Other", Severity: models.SeverityMedium}
	for _, category := range models.Categories {
		if strings.EqualFold(strings.TrimSpace(raw.Category), category) {
			s.Category = category
			break
		}
	}
	if sev, err := models.ParseSeverity(raw.Severity); err == nil {
		s.Severity = sev
	}
	return s
}
