package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/shenikar/waste_incident_sync/internal/models"
	"github.com/shenikar/waste_incident_sync/internal/query"
	"github.com/shenikar/waste_incident_sync/internal/service"
	"github.com/shenikar/waste_incident_sync/internal/service/mocks"
	"github.com/shenikar/waste_incident_sync/internal/webhook"
	webhook_mocks "github.com/shenikar/waste_incident_sync/internal/webhook/mocks"
)

func newTestLifecycleService(t *testing.T) (service.LifecycleService, *mocks.MockIncidentSource, *mocks.MockObjectStorage, *webhook_mocks.MockWebhookPublisher) {
	ctrl := gomock.NewController(t)
	sourceMock := mocks.NewMockIncidentSource(ctrl)
	storageMock := mocks.NewMockObjectStorage(ctrl)
	webhookMock := webhook_mocks.NewMockWebhookPublisher(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	return service.NewLifecycleService(sourceMock, storageMock, webhookMock, logger), sourceMock, storageMock, webhookMock
}

func TestCheckTransition_Table(t *testing.T) {
	allowed := map[[2]models.Status]bool{
		{models.StatusReported, models.StatusInProgress}: false,
		{models.StatusReported, models.StatusRejected}:   false,
		{models.StatusInProgress, models.StatusRejected}: false,
		{models.StatusReported, models.StatusResolved}:   true,
		{models.StatusInProgress, models.StatusResolved}: true,
	}

	for _, from := range models.Statuses {
		for _, to := range models.Statuses {
			if from == to {
				continue
			}
			rule, err := service.CheckTransition(from, to)
			requiresProof, ok := allowed[[2]models.Status{from, to}]
			if !ok {
				assert.ErrorIs(t, err, models.ErrInvalidTransition, "%s -> %s", from, to)
				continue
			}
			require.NoError(t, err, "%s -> %s", from, to)
			assert.Equal(t, requiresProof, rule.RequiresProof, "%s -> %s", from, to)
		}
	}

	_, err := service.CheckTransition(models.StatusResolved, models.StatusInProgress)
	var terr *models.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, models.StatusResolved, terr.From)
}

func TestTransition_NonAdminForbidden(t *testing.T) {
	svc, sourceMock, _, _ := newTestLifecycleService(t)
	sourceMock.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.Transition(context.Background(), citizen, "inc-1", service.TransitionRequest{Status: models.StatusInProgress})
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestTransition_ToInProgressNotifies(t *testing.T) {
	svc, sourceMock, _, webhookMock := newTestLifecycleService(t)
	existing := storedIncident("inc-1", models.StatusReported)

	sourceMock.EXPECT().Get(gomock.Any(), "inc-1").Return(existing, nil)
	sourceMock.EXPECT().Write(gomock.Any(), gomock.Any()).Return(nil)
	webhookMock.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev webhook.WebhookEvent) error {
			assert.Equal(t, webhook.EventStatusChanged, ev.Kind)
			assert.Equal(t, "inc-1", ev.IncidentID)
			assert.Equal(t, models.StatusInProgress, ev.Status)
			return errors.New("redis down")
		})

	updated, err := svc.Transition(context.Background(), admin, "inc-1", service.TransitionRequest{Status: models.StatusInProgress})
	require.NoError(t, err, "notification failure must not fail the transition")
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Equal(t, models.StatusReported, existing.Status)
}

func TestTransition_SameStatusIsNoop(t *testing.T) {
	svc, sourceMock, _, webhookMock := newTestLifecycleService(t)
	existing := storedIncident("inc-1", models.StatusResolved)
	existing.AfterImageURI = models.StringPtr("https://cdn.example.org/after.jpg")

	sourceMock.EXPECT().Get(gomock.Any(), "inc-1").Return(existing, nil)
	sourceMock.EXPECT().Write(gomock.Any(), gomock.Any()).Times(0)
	webhookMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	updated, err := svc.Transition(context.Background(), admin, "inc-1", service.TransitionRequest{Status: models.StatusResolved})
	require.NoError(t, err)
	assert.Equal(t, existing, updated)
}

func TestTransition_FromTerminalFails(t *testing.T) {
	for _, from := range []models.Status{models.StatusResolved, models.StatusRejected} {
		svc, sourceMock, _, _ := newTestLifecycleService(t)
		sourceMock.EXPECT().Get(gomock.Any(), "inc-1").Return(storedIncident("inc-1", from), nil)
		sourceMock.EXPECT().Write(gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Transition(context.Background(), admin, "inc-1", service.TransitionRequest{Status: models.StatusInProgress})
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	}
}

func TestTransition_ResolveWithoutProofFails(t *testing.T) {
	svc, sourceMock, storageMock, _ := newTestLifecycleService(t)
	existing := storedIncident("inc-1", models.StatusInProgress)

	sourceMock.EXPECT().Get(gomock.Any(), "inc-1").Return(existing, nil)
	sourceMock.EXPECT().Write(gomock.Any(), gomock.Any()).Times(0)
	storageMock.EXPECT().Upload(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.Transition(context.Background(), admin, "inc-1", service.TransitionRequest{Status: models.StatusResolved, Comment: "done"})
	assert.ErrorIs(t, err, models.ErrResolutionProofRequired)
	assert.Equal(t, models.StatusInProgress, existing.Status)
}

func TestTransition_ResolveUploadsProof(t *testing.T) {
	svc, sourceMock, storageMock, webhookMock := newTestLifecycleService(t)
	const url = "https://cdn.example.org/after_images/1.jpg"

	sourceMock.EXPECT().Get(gomock.Any(), "inc-1").Return(storedIncident("inc-1", models.StatusReported), nil)
	gomock.InOrder(
		storageMock.EXPECT().Upload(gomock.Any(), "/tmp/after.jpg").Return(url, nil),
		sourceMock.EXPECT().
			Write(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, inc *models.Incident) error {
				assert.Equal(t, models.StatusResolved, inc.Status)
				assert.Equal(t, url, models.StringValue(inc.AfterImageURI))
				assert.Equal(t, "cleaned up", models.StringValue(inc.ResolvedComment))
				return nil
			}),
	)
	webhookMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	updated, err := svc.Transition(context.Background(), admin, "inc-1", service.TransitionRequest{
		Status:        models.StatusResolved,
		ProofImageRef: "/tmp/after.jpg",
		Comment:       " cleaned up ",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, updated.Status)
}

func TestTransition_UploadFailureSkipsWrite(t *testing.T) {
	svc, sourceMock, storageMock, webhookMock := newTestLifecycleService(t)

	sourceMock.EXPECT().Get(gomock.Any(), "inc-1").Return(storedIncident("inc-1", models.StatusReported), nil)
	storageMock.EXPECT().Upload(gomock.Any(), gomock.Any()).Return("", fmt.Errorf("%w: 500", models.ErrUploadFailed))
	sourceMock.EXPECT().Write(gomock.Any(), gomock.Any()).Times(0)
	webhookMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.Transition(context.Background(), admin, "inc-1", service.TransitionRequest{
		Status:        models.StatusResolved,
		ProofImageRef: "/tmp/after.jpg",
	})
	assert.ErrorIs(t, err, models.ErrUploadFailed)
}

func TestTransition_WriteFailureAfterUpload(t *testing.T) {
	svc, sourceMock, storageMock, webhookMock := newTestLifecycleService(t)

	sourceMock.EXPECT().Get(gomock.Any(), "inc-1").Return(storedIncident("inc-1", models.StatusReported), nil)
	storageMock.EXPECT().Upload(gomock.Any(), gomock.Any()).Return("https://cdn.example.org/x.jpg", nil)
	sourceMock.EXPECT().Write(gomock.Any(), gomock.Any()).Return(errDown)
	webhookMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.Transition(context.Background(), admin, "inc-1", service.TransitionRequest{
		Status:        models.StatusResolved,
		ProofImageRef: "/tmp/after.jpg",
	})
	assert.ErrorIs(t, err, models.ErrRemoteUnavailable)
}

func TestTransition_ResolveWithExistingOrDurableProof(t *testing.T) {
	svc, sourceMock, storageMock, webhookMock := newTestLifecycleService(t)
	storageMock.EXPECT().Upload(gomock.Any(), gomock.Any()).Times(0)
	webhookMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	onRecord := storedIncident("inc-1", models.StatusInProgress)
	onRecord.AfterImageURI = models.StringPtr("https://cdn.example.org/earlier.jpg")
	sourceMock.EXPECT().Get(gomock.Any(), "inc-1").Return(onRecord, nil)
	sourceMock.EXPECT().Write(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	updated, err := svc.Transition(context.Background(), admin, "inc-1", service.TransitionRequest{Status: models.StatusResolved})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.org/earlier.jpg", models.StringValue(updated.AfterImageURI))

	sourceMock.EXPECT().Get(gomock.Any(), "inc-2").Return(storedIncident("inc-2", models.StatusReported), nil)
	updated, err = svc.Transition(context.Background(), admin, "inc-2", service.TransitionRequest{
		Status:   models.StatusResolved,
		ProofURL: "https://cdn.example.org/given.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.org/given.jpg", models.StringValue(updated.AfterImageURI))
}

func TestTransition_InvalidRequests(t *testing.T) {
	svc, sourceMock, _, _ := newTestLifecycleService(t)
	sourceMock.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.Transition(context.Background(), admin, "inc-1", service.TransitionRequest{Status: "Archived"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.Transition(context.Background(), admin, "inc-1", service.TransitionRequest{Status: models.StatusResolved, ProofURL: "file:///etc/passwd"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.Transition(context.Background(), admin, "inc-1", service.TransitionRequest{
		Status:        models.StatusResolved,
		ProofURL:      "https://cdn.example.org/a.jpg",
		ProofImageRef: "/tmp/a.jpg",
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestAssign(t *testing.T) {
	svc, sourceMock, _, webhookMock := newTestLifecycleService(t)

	sourceMock.EXPECT().Get(gomock.Any(), "inc-1").Return(storedIncident("inc-1", models.StatusInProgress), nil)
	sourceMock.EXPECT().Write(gomock.Any(), gomock.Any()).Return(nil)
	webhookMock.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev webhook.WebhookEvent) error {
			assert.Equal(t, webhook.EventAssigned, ev.Kind)
			assert.Equal(t, "admin-2", ev.AssignedTo)
			return nil
		})

	updated, err := svc.Assign(context.Background(), admin, "inc-1", "admin-2")
	require.NoError(t, err)
	assert.Equal(t, "admin-2", models.StringValue(updated.AssignedTo))

	sourceMock.EXPECT().Get(gomock.Any(), "closed").Return(storedIncident("closed", models.StatusRejected), nil)
	_, err = svc.Assign(context.Background(), admin, "closed", "admin-2")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = svc.Assign(context.Background(), citizen, "inc-1", "admin-2")
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = svc.Assign(context.Background(), admin, "inc-1", " ")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestMerge_Success(t *testing.T) {
	svc, sourceMock, _, webhookMock := newTestLifecycleService(t)
	dup := storedIncident("dup", models.StatusReported)
	master := storedIncident("master", models.StatusInProgress)

	sourceMock.EXPECT().Get(gomock.Any(), "dup").Return(dup, nil)
	sourceMock.EXPECT().Get(gomock.Any(), "master").Return(master, nil)
	gomock.InOrder(
		sourceMock.EXPECT().
			Write(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, inc *models.Incident) error {
				assert.Equal(t, "dup", inc.ID)
				assert.Equal(t, "master", models.StringValue(inc.MasterIncidentID))
				assert.Equal(t, models.StatusReported, inc.Status)
				return nil
			}),
		sourceMock.EXPECT().
			Write(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, inc *models.Incident) error {
				assert.Equal(t, "master", inc.ID)
				assert.Equal(t, []string{"dup"}, inc.MergedIDs)
				return nil
			}),
	)
	webhookMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	merged, err := svc.Merge(context.Background(), admin, "dup", "master")
	require.NoError(t, err)
	assert.True(t, merged.IsMerged())
}

func TestMerge_RetryCompletesMaster(t *testing.T) {
	svc, sourceMock, _, webhookMock := newTestLifecycleService(t)
	dup := storedIncident("dup", models.StatusReported)
	dup.MasterIncidentID = models.StringPtr("master")

	sourceMock.EXPECT().Get(gomock.Any(), "dup").Return(dup, nil)
	sourceMock.EXPECT().Get(gomock.Any(), "master").Return(storedIncident("master", models.StatusReported), nil)
	sourceMock.EXPECT().
		Write(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, inc *models.Incident) error {
			assert.Equal(t, "master", inc.ID)
			return nil
		}).
		Times(1)
	webhookMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	_, err := svc.Merge(context.Background(), admin, "dup", "master")
	require.NoError(t, err)
}

func TestMerge_CompletedRetryWritesAndNotifiesNothing(t *testing.T) {
	svc, sourceMock, _, webhookMock := newTestLifecycleService(t)
	dup := storedIncident("dup", models.StatusReported)
	dup.MasterIncidentID = models.StringPtr("master")
	master := storedIncident("master", models.StatusReported)
	master.MergedIDs = []string{"dup"}

	sourceMock.EXPECT().Get(gomock.Any(), "dup").Return(dup, nil)
	sourceMock.EXPECT().Get(gomock.Any(), "master").Return(master, nil)
	sourceMock.EXPECT().Write(gomock.Any(), gomock.Any()).Times(0)
	webhookMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	merged, err := svc.Merge(context.Background(), admin, "dup", "master")
	require.NoError(t, err)
	assert.Equal(t, "master", models.StringValue(merged.MasterIncidentID))
}

func TestMerge_RejectsChains(t *testing.T) {
	cases := map[string]struct {
		dup    func() *models.Incident
		master func() *models.Incident
	}{
		"master already merged": {
			dup: func() *models.Incident { return storedIncident("dup", models.StatusReported) },
			master: func() *models.Incident {
				m := storedIncident("master", models.StatusReported)
				m.MasterIncidentID = models.StringPtr("root")
				return m
			},
		},
		"duplicate is a master": {
			dup: func() *models.Incident {
				d := storedIncident("dup", models.StatusReported)
				d.MergedIDs = []string{"x"}
				return d
			},
			master: func() *models.Incident { return storedIncident("master", models.StatusReported) },
		},
		"duplicate merged elsewhere": {
			dup: func() *models.Incident {
				d := storedIncident("dup", models.StatusReported)
				d.MasterIncidentID = models.StringPtr("another")
				return d
			},
			master: func() *models.Incident { return storedIncident("master", models.StatusReported) },
		},
		"duplicate closed": {
			dup:    func() *models.Incident { return storedIncident("dup", models.StatusResolved) },
			master: func() *models.Incident { return storedIncident("master", models.StatusReported) },
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc, sourceMock, _, _ := newTestLifecycleService(t)
			sourceMock.EXPECT().Get(gomock.Any(), "dup").Return(tc.dup(), nil)
			sourceMock.EXPECT().Get(gomock.Any(), "master").Return(tc.master(), nil)
			sourceMock.EXPECT().Write(gomock.Any(), gomock.Any()).Times(0)

			_, err := svc.Merge(context.Background(), admin, "dup", "master")
			assert.ErrorIs(t, err, models.ErrInvalidMerge)
		})
	}
}

func TestMerge_InvalidArguments(t *testing.T) {
	svc, sourceMock, _, _ := newTestLifecycleService(t)
	sourceMock.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.Merge(context.Background(), admin, "same", "same")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.Merge(context.Background(), citizen, "a", "b")
	assert.ErrorIs(t, err, models.ErrForbidden)
}

// memorySource - удаленное хранилище в памяти для сценарных тестов.
// Как и PostgreSQL-хранилище, не дает записи увести закрытый инцидент из терминального статуса.
type memorySource struct {
	mu   sync.Mutex
	rows map[string]*models.Incident
}

func newMemorySource() *memorySource {
	return &memorySource{rows: make(map[string]*models.Incident)}
}

func (m *memorySource) Write(_ context.Context, inc *models.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.rows[inc.ID]; ok {
		if err := models.CheckOverwrite(stored, inc); err != nil {
			return err
		}
	}
	m.rows[inc.ID] = inc.Clone()
	return nil
}

func (m *memorySource) Get(_ context.Context, id string) (*models.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.rows[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return inc.Clone(), nil
}

func (m *memorySource) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memorySource) List(_ context.Context, q models.QueryDescriptor) ([]*models.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Incident, 0, len(m.rows))
	for _, inc := range m.rows {
		if q.Matches(inc) {
			out = append(out, inc.Clone())
		}
	}
	return out, nil
}

type fixedStorage struct{ url string }

func (s fixedStorage) Upload(context.Context, string) (string, error) { return s.url, nil }

func TestScenario_CreateResolveAndTerminal(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	source := newMemorySource()
	ctrl := gomock.NewController(t)
	cacheMock := mocks.NewMockLocalCache(ctrl)

	incidents := service.NewIncidentService(source, cacheMock, nil, logger)
	lifecycle := service.NewLifecycleService(source, fixedStorage{url: "https://cdn.example.org/after.jpg"}, nil, logger)
	ctx := context.Background()

	in := validInput()
	in.Severity = models.SeverityHigh
	a, err := incidents.CreateIncident(ctx, citizen, in)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReported, a.Status)

	res, err := incidents.ListIncidents(ctx, admin, false, query.Filter{Bucket: query.BucketResolved})
	require.NoError(t, err)
	assert.Empty(t, res.Incidents)

	_, err = lifecycle.Transition(ctx, admin, a.ID, service.TransitionRequest{Status: models.StatusResolved, ProofImageRef: "/tmp/after.jpg"})
	require.NoError(t, err)

	res, err = incidents.ListIncidents(ctx, admin, false, query.Filter{Bucket: query.BucketResolved})
	require.NoError(t, err)
	require.Len(t, res.Incidents, 1)
	assert.Equal(t, a.ID, res.Incidents[0].ID)

	_, err = lifecycle.Transition(ctx, admin, a.ID, service.TransitionRequest{Status: models.StatusInProgress})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	stored, err := incidents.GetIncident(ctx, citizen, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, stored.Status)
}

// interleavedSource выполняет afterGet сразу после первого чтения,
// так что вызывающий продолжает работу с устаревшей копией
type interleavedSource struct {
	*memorySource
	once     sync.Once
	afterGet func()
}

func (s *interleavedSource) Get(ctx context.Context, id string) (*models.Incident, error) {
	inc, err := s.memorySource.Get(ctx, id)
	s.once.Do(s.afterGet)
	return inc, err
}

func TestAssign_StaleReadCannotReopenResolved(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	ctx := context.Background()

	source := newMemorySource()
	require.NoError(t, source.Write(ctx, storedIncident("inc-1", models.StatusReported)))

	resolver := service.NewLifecycleService(source, nil, nil, logger)
	racing := &interleavedSource{memorySource: source}
	racing.afterGet = func() {
		_, err := resolver.Transition(ctx, admin, "inc-1", service.TransitionRequest{
			Status:   models.StatusResolved,
			ProofURL: "https://cdn.example.org/after.jpg",
		})
		require.NoError(t, err)
	}
	assigner := service.NewLifecycleService(racing, nil, nil, logger)

	_, err := assigner.Assign(ctx, admin, "inc-1", "admin-2")
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	var terr *models.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, models.StatusResolved, terr.From)

	stored, err := source.Get(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, stored.Status)
	assert.Equal(t, "https://cdn.example.org/after.jpg", models.StringValue(stored.AfterImageURI))
	assert.Nil(t, stored.AssignedTo)
}

func TestUpdateIncident_StaleReadCannotReopenRejected(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	ctx := context.Background()

	source := newMemorySource()
	require.NoError(t, source.Write(ctx, storedIncident("inc-1", models.StatusReported)))

	rejecter := service.NewLifecycleService(source, nil, nil, logger)
	racing := &interleavedSource{memorySource: source}
	racing.afterGet = func() {
		_, err := rejecter.Transition(ctx, admin, "inc-1", service.TransitionRequest{Status: models.StatusRejected})
		require.NoError(t, err)
	}
	ctrl := gomock.NewController(t)
	incidents := service.NewIncidentService(racing, mocks.NewMockLocalCache(ctrl), nil, logger)

	in := validInput()
	in.Description = "edited after rejection"
	_, err := incidents.UpdateIncident(ctx, citizen, "inc-1", in)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	stored, err := source.Get(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, stored.Status)
}
