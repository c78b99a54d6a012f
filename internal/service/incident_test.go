package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/shenikar/waste_incident_sync/internal/models"
	"github.com/shenikar/waste_incident_sync/internal/query"
	"github.com/shenikar/waste_incident_sync/internal/service"
	"github.com/shenikar/waste_incident_sync/internal/service/mocks"
)

var (
	citizen = models.Identity{UserID: "citizen-1", Role: models.RoleCitizen}
	other   = models.Identity{UserID: "citizen-2", Role: models.RoleCitizen}
	admin   = models.Identity{UserID: "admin-1", Role: models.RoleAdmin}

	errDown = fmt.Errorf("list: %w", models.ErrRemoteUnavailable)
)

// newTestIncidentService - вспомогательная функция для создания инстанса сервиса с моками.
func newTestIncidentService(t *testing.T) (service.IncidentService, *mocks.MockIncidentSource, *mocks.MockLocalCache, *mocks.MockClassifier) {
	ctrl := gomock.NewController(t)
	sourceMock := mocks.NewMockIncidentSource(ctrl)
	cacheMock := mocks.NewMockLocalCache(ctrl)
	classifierMock := mocks.NewMockClassifier(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	svc := service.NewIncidentService(sourceMock, cacheMock, classifierMock, logger)
	return svc, sourceMock, cacheMock, classifierMock
}

func validInput() service.IncidentInput {
	return service.IncidentInput{
		Type:        "Overflowing Bin",
		Description: "  Bin has not been emptied for a week  ",
		Location:    "55.7558, 37.6173",
		ImageURIs:   []string{"https://cdn.example.org/a.jpg", " "},
	}
}

func storedIncident(id string, status models.Status) *models.Incident {
	return &models.Incident{
		ID:          id,
		Type:        "Littering",
		Description: "plastic bags",
		Location:    "55.75,37.61",
		Status:      status,
		Severity:    models.SeverityLow,
		Timestamp:   1716200000000,
		ReportedBy:  citizen.UserID,
		Date:        models.FormatDate(1716200000000),
		MergedIDs:   []string{},
	}
}

func TestCreateIncident_Success(t *testing.T) {
	svc, sourceMock, _, _ := newTestIncidentService(t)
	ctx := context.Background()

	var written *models.Incident
	sourceMock.EXPECT().
		Write(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, inc *models.Incident) error {
			written = inc
			return nil
		}).
		Times(1)

	before := time.Now().UnixMilli()
	incident, err := svc.CreateIncident(ctx, citizen, validInput())

	require.NoError(t, err)
	assert.Same(t, written, incident)
	_, err = uuid.Parse(incident.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusReported, incident.Status)
	assert.Equal(t, models.SeverityMedium, incident.Severity)
	assert.Equal(t, citizen.UserID, incident.ReportedBy)
	assert.Equal(t, "Bin has not been emptied for a week", incident.Description)
	assert.Equal(t, "55.7558,37.6173", incident.Location)
	assert.Equal(t, []string{"https://cdn.example.org/a.jpg"}, incident.ImageURIs)
	assert.GreaterOrEqual(t, incident.Timestamp, before)
	assert.Equal(t, models.FormatDate(incident.Timestamp), incident.Date)
	assert.False(t, incident.IsMerged())
}

func TestCreateIncident_ValidationErrors(t *testing.T) {
	svc, sourceMock, _, _ := newTestIncidentService(t)
	sourceMock.EXPECT().Write(gomock.Any(), gomock.Any()).Times(0) // Запись не должна выполняться

	cases := map[string]func(*service.IncidentInput){
		"empty description": func(in *service.IncidentInput) { in.Description = "   " },
		"missing type":      func(in *service.IncidentInput) { in.Type = "" },
		"bad location":      func(in *service.IncidentInput) { in.Location = "north of the river" },
		"bad severity":      func(in *service.IncidentInput) { in.Severity = "Catastrophic" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := svc.CreateIncident(context.Background(), citizen, in)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}

	_, err := svc.CreateIncident(context.Background(), models.Identity{}, validInput())
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestCreateIncident_RemoteError(t *testing.T) {
	svc, sourceMock, _, _ := newTestIncidentService(t)
	rejected := fmt.Errorf("write: %w: permission denied", models.ErrWriteRejected)

	sourceMock.EXPECT().Write(gomock.Any(), gomock.Any()).Return(rejected).Times(1)

	incident, err := svc.CreateIncident(context.Background(), citizen, validInput())
	assert.Nil(t, incident)
	assert.ErrorIs(t, err, models.ErrWriteRejected)
}

func TestGetIncident_FromRemote(t *testing.T) {
	svc, sourceMock, _, _ := newTestIncidentService(t)
	expected := storedIncident("inc-1", models.StatusReported)

	sourceMock.EXPECT().Get(gomock.Any(), "inc-1").Return(expected, nil).Times(1)

	incident, err := svc.GetIncident(context.Background(), citizen, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, expected, incident)
}

func TestGetIncident_FallsBackToCache(t *testing.T) {
	svc, sourceMock, cacheMock, _ := newTestIncidentService(t)
	cached := storedIncident("inc-1", models.StatusInProgress)

	sourceMock.EXPECT().Get(gomock.Any(), "inc-1").Return(nil, errDown).Times(1)
	cacheMock.EXPECT().CachedGet("inc-1").Return(cached, nil).Times(1)

	incident, err := svc.GetIncident(context.Background(), citizen, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, cached, incident)
}

func TestGetIncident_RemoteDownAndNotCached(t *testing.T) {
	svc, sourceMock, cacheMock, _ := newTestIncidentService(t)

	sourceMock.EXPECT().Get(gomock.Any(), "inc-1").Return(nil, errDown).Times(1)
	cacheMock.EXPECT().CachedGet("inc-1").Return(nil, models.ErrNotFound).Times(1)

	_, err := svc.GetIncident(context.Background(), citizen, "inc-1")
	assert.ErrorIs(t, err, models.ErrRemoteUnavailable)
}

func TestGetIncident_NotFoundSkipsCache(t *testing.T) {
	svc, sourceMock, cacheMock, _ := newTestIncidentService(t)

	sourceMock.EXPECT().Get(gomock.Any(), "missing").Return(nil, models.ErrNotFound).Times(1)
	cacheMock.EXPECT().CachedGet(gomock.Any()).Times(0)

	_, err := svc.GetIncident(context.Background(), citizen, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdateIncident_Success(t *testing.T) {
	svc, sourceMock, _, _ := newTestIncidentService(t)
	existing := storedIncident("inc-1", models.StatusReported)

	sourceMock.EXPECT().Get(gomock.Any(), "inc-1").Return(existing, nil).Times(1)
	sourceMock.EXPECT().
		Write(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, inc *models.Incident) error {
			assert.Equal(t, existing.Timestamp, inc.Timestamp)
			assert.Equal(t, existing.ReportedBy, inc.ReportedBy)
			return nil
		}).
		Times(1)

	in := validInput()
	in.Severity = "high"
	updated, err := svc.UpdateIncident(context.Background(), citizen, "inc-1", in)
	require.NoError(t, err)
	assert.Equal(t, "Overflowing Bin", updated.Type)
	assert.Equal(t, models.SeverityHigh, updated.Severity)
	assert.Equal(t, "Littering", existing.Type, "stored record must not be mutated")
}

func TestUpdateIncident_Rules(t *testing.T) {
	svc, sourceMock, _, _ := newTestIncidentService(t)
	sourceMock.EXPECT().Write(gomock.Any(), gomock.Any()).Times(0)

	sourceMock.EXPECT().Get(gomock.Any(), "inc-1").Return(storedIncident("inc-1", models.StatusReported), nil).Times(1)
	_, err := svc.UpdateIncident(context.Background(), other, "inc-1", validInput())
	assert.ErrorIs(t, err, models.ErrForbidden)

	sourceMock.EXPECT().Get(gomock.Any(), "inc-2").Return(storedIncident("inc-2", models.StatusInProgress), nil).Times(1)
	_, err = svc.UpdateIncident(context.Background(), citizen, "inc-2", validInput())
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestDeleteIncident(t *testing.T) {
	t.Run("reporter deletes and cache is evicted", func(t *testing.T) {
		svc, sourceMock, cacheMock, _ := newTestIncidentService(t)
		gomock.InOrder(
			sourceMock.EXPECT().Get(gomock.Any(), "inc-1").Return(storedIncident("inc-1", models.StatusReported), nil),
			sourceMock.EXPECT().Delete(gomock.Any(), "inc-1").Return(nil),
			cacheMock.EXPECT().Evict("inc-1").Return(nil),
		)
		assert.NoError(t, svc.DeleteIncident(context.Background(), citizen, "inc-1"))
	})

	t.Run("admin may delete any", func(t *testing.T) {
		svc, sourceMock, cacheMock, _ := newTestIncidentService(t)
		sourceMock.EXPECT().Get(gomock.Any(), "inc-1").Return(storedIncident("inc-1", models.StatusResolved), nil)
		sourceMock.EXPECT().Delete(gomock.Any(), "inc-1").Return(nil)
		cacheMock.EXPECT().Evict("inc-1").Return(errors.New("cache closed"))
		assert.NoError(t, svc.DeleteIncident(context.Background(), admin, "inc-1"))
	})

	t.Run("other citizen is forbidden", func(t *testing.T) {
		svc, sourceMock, cacheMock, _ := newTestIncidentService(t)
		sourceMock.EXPECT().Get(gomock.Any(), "inc-1").Return(storedIncident("inc-1", models.StatusReported), nil)
		sourceMock.EXPECT().Delete(gomock.Any(), gomock.Any()).Times(0)
		cacheMock.EXPECT().Evict(gomock.Any()).Times(0)
		assert.ErrorIs(t, svc.DeleteIncident(context.Background(), other, "inc-1"), models.ErrForbidden)
	})

	t.Run("remote failure keeps cache", func(t *testing.T) {
		svc, sourceMock, cacheMock, _ := newTestIncidentService(t)
		sourceMock.EXPECT().Get(gomock.Any(), "inc-1").Return(storedIncident("inc-1", models.StatusReported), nil)
		sourceMock.EXPECT().Delete(gomock.Any(), "inc-1").Return(errDown)
		cacheMock.EXPECT().Evict(gomock.Any()).Times(0)
		assert.ErrorIs(t, svc.DeleteIncident(context.Background(), citizen, "inc-1"), models.ErrRemoteUnavailable)
	})
}

func TestListIncidents_ScopesAndFilters(t *testing.T) {
	svc, sourceMock, _, _ := newTestIncidentService(t)
	resolved := storedIncident("b", models.StatusResolved)
	resolved.Timestamp++
	set := []*models.Incident{resolved, storedIncident("a", models.StatusReported)}

	sourceMock.EXPECT().List(gomock.Any(), models.QueryDescriptor{ReportedBy: citizen.UserID}).Return(set, nil).Times(1)
	res, err := svc.ListIncidents(context.Background(), citizen, false, query.Filter{Bucket: query.BucketPending})
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	require.Len(t, res.Incidents, 1)
	assert.Equal(t, "a", res.Incidents[0].ID)

	sourceMock.EXPECT().List(gomock.Any(), models.QueryDescriptor{}).Return(set, nil).Times(1)
	res, err = svc.ListIncidents(context.Background(), admin, false, query.Filter{})
	require.NoError(t, err)
	assert.Len(t, res.Incidents, 2)

	sourceMock.EXPECT().List(gomock.Any(), models.QueryDescriptor{ReportedBy: admin.UserID}).Return(nil, nil).Times(1)
	res, err = svc.ListIncidents(context.Background(), admin, true, query.Filter{})
	require.NoError(t, err)
	assert.NotNil(t, res.Incidents)
	assert.Empty(t, res.Incidents)
}

func TestListIncidents_DegradesToCache(t *testing.T) {
	svc, sourceMock, cacheMock, _ := newTestIncidentService(t)
	scope := models.QueryDescriptor{}

	sourceMock.EXPECT().List(gomock.Any(), scope).Return(nil, errDown).Times(2)
	cacheMock.EXPECT().CachedQuery(scope).Return([]*models.Incident{storedIncident("a", models.StatusReported)}, nil).Times(1)

	res, err := svc.ListIncidents(context.Background(), admin, false, query.Filter{})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Len(t, res.Incidents, 1)

	// Кеш пуст - ошибка всплывает
	cacheMock.EXPECT().CachedQuery(scope).Return([]*models.Incident{}, nil).Times(1)
	_, err = svc.ListIncidents(context.Background(), admin, false, query.Filter{})
	assert.ErrorIs(t, err, models.ErrRemoteUnavailable)
}

func TestListIncidents_InvalidFilter(t *testing.T) {
	svc, sourceMock, _, _ := newTestIncidentService(t)
	sourceMock.EXPECT().List(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.ListIncidents(context.Background(), admin, false, query.Filter{Range: &query.DateRange{From: 2, To: 1}})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestStats(t *testing.T) {
	svc, sourceMock, _, _ := newTestIncidentService(t)
	sourceMock.EXPECT().List(gomock.Any(), models.QueryDescriptor{}).Return([]*models.Incident{
		storedIncident("a", models.StatusReported),
		storedIncident("b", models.StatusResolved),
	}, nil).Times(1)

	res, err := svc.Stats(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.Total)
	assert.Equal(t, 1, res.Stats.Pending)
	assert.Equal(t, 1, res.Stats.Resolved)
}

func TestClassify(t *testing.T) {
	svc, _, _, classifierMock := newTestIncidentService(t)

	classifierMock.EXPECT().Classify(gomock.Any(), "oil leaking from barrels").
		Return(models.Suggestion{Category: "Hazardous Waste", Severity: models.SeverityHigh}, nil).Times(1)
	s := svc.Classify(context.Background(), "oil leaking from barrels")
	require.NotNil(t, s)
	assert.Equal(t, "Hazardous Waste", s.Category)

	classifierMock.EXPECT().Classify(gomock.Any(), gomock.Any()).Return(models.Suggestion{}, errors.New("timeout")).Times(1)
	assert.Nil(t, svc.Classify(context.Background(), "anything"))

	assert.Nil(t, svc.Classify(context.Background(), "  "))
}

func TestScopeFor(t *testing.T) {
	assert.Equal(t, models.QueryDescriptor{ReportedBy: "citizen-1"}, service.ScopeFor(citizen, false))
	assert.Equal(t, models.QueryDescriptor{}, service.ScopeFor(admin, false))
	assert.Equal(t, models.QueryDescriptor{ReportedBy: "admin-1"}, service.ScopeFor(admin, true))
}
