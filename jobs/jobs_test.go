package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/ngo-fms/fms/internal/jobs"
	"github.com/ngo-fms/fms/internal/rbac"
	"github.com/ngo-fms/fms/internal/session"
	"github.com/ngo-fms/fms/internal/users"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Queue: QueueDefault}, nil
}

func TestSessionEventNotifierEnqueuesByKind(t *testing.T) {
	enq := &fakeEnqueuer{}
	n := NewSessionEventNotifier(enq, nil)
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	n.Notify(context.Background(), session.Event{Kind: session.EventLogin, Email: "admin@gmail.com", Role: "admin", At: at})
	n.Notify(context.Background(), session.Event{Kind: session.EventLogout, Email: "admin@gmail.com", Role: "admin", At: at})

	require.Len(t, enq.tasks, 2)
	assert.Equal(t, TaskSessionLogin, enq.tasks[0].Type())
	assert.Equal(t, TaskSessionLogout, enq.tasks[1].Type())

	var event session.Event
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &event))
	assert.Equal(t, "admin@gmail.com", event.Email)
	assert.True(t, at.Equal(event.At))
}

func TestSessionEventNotifierSwallowsQueueFailure(t *testing.T) {
	enq := &fakeEnqueuer{err: errors.New("redis down")}
	n := NewSessionEventNotifier(enq, nil)

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), session.Event{Kind: session.EventLogin})
		n.Notify(context.Background(), session.Event{Kind: "refresh"})
	})
	assert.Empty(t, enq.tasks)
}

func TestSessionNotifierDrivesStore(t *testing.T) {
	enq := &fakeEnqueuer{}
	store := session.NewStore(session.NewMemoryPersister(), NewSessionEventNotifier(enq, nil), nil)

	require.NoError(t, store.Login(context.Background(), rbac.RoleVolunteer, "volunteer@gmail.com"))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskSessionLogin, enq.tasks[0].Type())
}

func TestSessionEventJobHandle(t *testing.T) {
	job := NewSessionEventJob(nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewSessionEventTask(session.Event{Kind: session.EventLogout, Email: "a@ngo.org", Role: "volunteer"})
	require.NoError(t, err)
	assert.NoError(t, job.Handle(context.Background(), task))

	err = job.Handle(context.Background(), asynq.NewTask(TaskSessionLogin, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	mismatched, err := json.Marshal(session.Event{Kind: session.EventLogout})
	require.NoError(t, err)
	err = job.Handle(context.Background(), asynq.NewTask(TaskSessionLogin, mismatched))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type listerFunc func(ctx context.Context, filter users.ListFilter) ([]users.User, error)

func (f listerFunc) List(ctx context.Context, filter users.ListFilter) ([]users.User, error) {
	return f(ctx, filter)
}

func TestPendingDigestJob(t *testing.T) {
	var seen users.ListFilter
	lister := listerFunc(func(_ context.Context, filter users.ListFilter) ([]users.User, error) {
		seen = filter
		return []users.User{{Email: "a@ngo.org"}, {Email: "b@ngo.org"}}, nil
	})
	job := NewPendingDigestJob(lister, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewPendingDigestTask(1)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, users.StatusPending, seen.Status)

	failing := NewPendingDigestJob(listerFunc(func(context.Context, users.ListFilter) ([]users.User, error) {
		return nil, errors.New("down")
	}), nil, nil)
	assert.Error(t, failing.Handle(context.Background(), task))
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return f.info, f.err }

func TestQueueHealthEndpoint(t *testing.T) {
	serve := func(h *Handler) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Route("/jobs", h.MountRoutes)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		return rr
	}

	rr := serve(NewHandler(fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Failed: 1}}, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":3,"failed":1}`, rr.Body.String())

	rr = serve(NewHandler(fakeInspector{err: errors.New("down")}, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = serve(NewHandler(nil, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestNewServeMuxSkipsIncompleteHandlers(t *testing.T) {
	called := false
	mux := NewServeMux([]TaskHandler{
		{Type: TaskSessionLogin, Handler: func(context.Context, *asynq.Task) error { called = true; return nil }},
		{Type: "", Handler: func(context.Context, *asynq.Task) error { return nil }},
		{Type: TaskSessionLogout},
	})
	require.NoError(t, mux.ProcessTask(context.Background(), asynq.NewTask(TaskSessionLogin, nil)))
	assert.True(t, called)
	assert.Error(t, mux.ProcessTask(context.Background(), asynq.NewTask(TaskSessionLogout, nil)))
}
