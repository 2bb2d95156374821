package scheduler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/valeevte/pricewatch/internal/ingestion"
)

type blockingRunner struct {
	started chan ingestion.Trigger
	release chan struct{}
	calls   atomic.Int32
	err     error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started: make(chan ingestion.Trigger, 16),
		release: make(chan struct{}),
	}
}

func (r *blockingRunner) RunCycle(ctx context.Context, trigger ingestion.Trigger) (ingestion.Summary, error) {
	r.calls.Add(1)
	r.started <- trigger
	select {
	case <-r.release:
	case <-ctx.Done():
		return ingestion.Summary{Trigger: trigger}, ctx.Err()
	}
	return ingestion.Summary{RunID: uuid.New(), Trigger: trigger, Status: ingestion.StatusSuccess, Processed: 2, Succeeded: 2}, r.err
}

type instantRunner struct{ calls atomic.Int32 }

func (r *instantRunner) RunCycle(_ context.Context, trigger ingestion.Trigger) (ingestion.Summary, error) {
	r.calls.Add(1)
	return ingestion.Summary{Trigger: trigger, Status: ingestion.StatusSuccess}, nil
}

func TestTriggerNowRejectsConcurrentCycle(t *testing.T) {
	runner := newBlockingRunner()
	s := New(context.Background(), runner, Config{Interval: time.Hour}, zap.NewNop())

	errCh := make(chan error, 1)
	go func() {
		_, err := s.TriggerNow(ingestion.TriggerManual)
		errCh <- err
	}()

	<-runner.started
	assert.True(t, s.CycleInProgress())

	_, err := s.TriggerNow(ingestion.TriggerManual)
	assert.ErrorIs(t, err, ErrCycleInProgress)

	close(runner.release)
	require.NoError(t, <-errCh)
	assert.False(t, s.CycleInProgress())
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestScheduledTickSkipsWhileManualCycleRuns(t *testing.T) {
	runner := newBlockingRunner()
	s := New(context.Background(), runner, Config{Interval: 10 * time.Millisecond}, zap.NewNop())

	go func() { _, _ = s.TriggerNow(ingestion.TriggerManual) }()
	assert.Equal(t, ingestion.TriggerManual, <-runner.started)

	require.NoError(t, s.Start())
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), runner.calls.Load())

	close(runner.release)
	require.NoError(t, s.Stop(context.Background()))
}

func TestStartStop(t *testing.T) {
	runner := &instantRunner{}
	s := New(context.Background(), runner, Config{Interval: 5 * time.Millisecond, RunOnStart: true}, zap.NewNop())

	assert.False(t, s.IsRunning())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(), ErrAlreadyRunning)

	assert.Eventually(t, func() bool { return runner.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())

	n := runner.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, runner.calls.Load())

	require.NoError(t, s.Stop(context.Background()))
}

func TestStopCancelsScheduledCycle(t *testing.T) {
	runner := newBlockingRunner()
	s := New(context.Background(), runner, Config{Interval: time.Hour, RunOnStart: true}, zap.NewNop())

	require.NoError(t, s.Start())
	<-runner.started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.CycleInProgress())
}

func TestTriggerNowRunsOnLifecycleContext(t *testing.T) {
	lifecycle, cancel := context.WithCancel(context.Background())
	runner := newBlockingRunner()
	s := New(lifecycle, runner, Config{}, zap.NewNop())

	errCh := make(chan error, 1)
	go func() {
		_, err := s.TriggerNow(ingestion.TriggerManual)
		errCh <- err
	}()
	<-runner.started

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

type fakeTrigger struct {
	summary ingestion.Summary
	err     error
}

func (f fakeTrigger) TriggerNow(ingestion.Trigger) (ingestion.Summary, error) {
	return f.summary, f.err
}

func postUpdate(t *testing.T, trig Trigger) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(trig, zap.NewNop()).RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/update-prices", nil))
	return w
}

func TestUpdatePricesHandler(t *testing.T) {
	w := postUpdate(t, fakeTrigger{summary: ingestion.Summary{Status: ingestion.StatusPartial, Processed: 3, Succeeded: 2, Failed: 1}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
	assert.Contains(t, w.Body.String(), `"failed":1`)

	w = postUpdate(t, fakeTrigger{err: ErrCycleInProgress})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"an ingestion cycle is already running"}`, w.Body.String())

	w = postUpdate(t, fakeTrigger{err: errors.New("list tracked products: connection refused")})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"price update failed"}`, w.Body.String())
}
