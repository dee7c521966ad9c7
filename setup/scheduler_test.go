package setup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"argus/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// orderRecorder collects domain setup completions in execution order.
type orderRecorder struct {
	mu    sync.Mutex
	order []string
}

func (r *orderRecorder) record(ref core.DependencyRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, ref.String())
}

func (r *orderRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *orderRecorder) indexOf(ref string) int {
	for i, got := range r.snapshot() {
		if got == ref {
			return i
		}
	}
	return -1
}

func newTestScheduler(t *testing.T, reg *core.Registry, cat *core.Catalog, opts SchedulerOptions) *Scheduler {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	loader := NewLoader(reg, cat, LoaderOptions{
		RetryInterval:    20 * time.Millisecond,
		RetryIntervalMax: 100 * time.Millisecond,
	}, logger)
	if opts.RetryInterval == 0 {
		opts.RetryInterval = 20 * time.Millisecond
		opts.RetryIntervalMax = 100 * time.Millisecond
	}
	return NewScheduler(reg, cat, loader, opts, logger)
}

// recordingDomain registers a domain factory that records completion order.
func recordingDomain(cat *core.Catalog, component, domain string, rec *orderRecorder) {
	cat.RegisterDomain(component, domain, func() core.DomainModule {
		return funcDomain{setup: func(_ context.Context, _ *core.Runtime, _ map[string]interface{}, identifier string) core.Result {
			rec.record(core.DependencyRef{Domain: domain, Identifier: identifier})
			return core.Ready()
		}}
	})
}

func TestScheduler_DependencyOrdering(t *testing.T) {
	reg := core.NewRegistry()
	cat := core.NewCatalog()
	rec := &orderRecorder{}

	recordingDomain(cat, "camera", "camera", rec)
	recordingDomain(cat, "detector", "object_detector", rec)

	cam := core.NewComponent("camera front", "camera", nil)
	det := core.NewComponent("detector", "detector", nil)
	// The dependent is queued first to prove ordering comes from waits,
	// not from submission order.
	queueDomain(reg, det, "object_detector", "front",
		[]core.DependencyRef{{Domain: "camera", Identifier: "front"}}, nil)
	queueDomain(reg, cam, "camera", "front", nil, nil)

	s := newTestScheduler(t, reg, cat, SchedulerOptions{Concurrency: 4})
	require.NoError(t, s.Run(context.Background()))

	order := rec.snapshot()
	require.Len(t, order, 2)
	assert.Less(t, rec.indexOf("camera:front"), rec.indexOf("object_detector:front"))

	for _, task := range reg.Tasks() {
		assert.True(t, task.Result(), "task %s should have succeeded", task.Ref())
	}
}

func TestScheduler_SharedDependencyRunsOnce(t *testing.T) {
	reg := core.NewRegistry()
	cat := core.NewCatalog()

	var cameraRuns int32
	cat.RegisterDomain("camera", "camera", func() core.DomainModule {
		return funcDomain{setup: func(context.Context, *core.Runtime, map[string]interface{}, string) core.Result {
			atomic.AddInt32(&cameraRuns, 1)
			return core.Ready()
		}}
	})
	rec := &orderRecorder{}
	recordingDomain(cat, "detector", "object_detector", rec)
	recordingDomain(cat, "recorder", "recorder", rec)

	cam := core.NewComponent("camera front", "camera", nil)
	det := core.NewComponent("detector", "detector", nil)
	rcd := core.NewComponent("recorder", "recorder", nil)

	camDep := []core.DependencyRef{{Domain: "camera", Identifier: "front"}}
	queueDomain(reg, det, "object_detector", "front", camDep, nil)
	queueDomain(reg, rcd, "recorder", "front", camDep, nil)
	queueDomain(reg, cam, "camera", "front", nil, nil)

	s := newTestScheduler(t, reg, cat, SchedulerOptions{Concurrency: 8})
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, int32(1), atomic.LoadInt32(&cameraRuns))
	assert.Len(t, rec.snapshot(), 2)
}

func TestScheduler_DependencyFailureAbandonsDependents(t *testing.T) {
	reg := core.NewRegistry()
	cat := core.NewCatalog()

	cat.RegisterDomain("camera", "camera", func() core.DomainModule {
		return funcDomain{setup: func(context.Context, *core.Runtime, map[string]interface{}, string) core.Result {
			return core.Failed(assert.AnError)
		}}
	})
	var detectorRan int32
	cat.RegisterDomain("detector", "object_detector", func() core.DomainModule {
		return funcDomain{setup: func(context.Context, *core.Runtime, map[string]interface{}, string) core.Result {
			atomic.AddInt32(&detectorRan, 1)
			return core.Ready()
		}}
	})

	cam := core.NewComponent("camera front", "camera", nil)
	det := core.NewComponent("detector", "detector", nil)
	queueDomain(reg, cam, "camera", "front", nil, nil)
	queueDomain(reg, det, "object_detector", "front",
		[]core.DependencyRef{{Domain: "camera", Identifier: "front"}}, nil)

	s := newTestScheduler(t, reg, cat, SchedulerOptions{Concurrency: 4})
	require.NoError(t, s.Run(context.Background()))

	// The dependent's setup routine never ran, and both tasks resolved to
	// failure.
	assert.Zero(t, atomic.LoadInt32(&detectorRan))
	camTask, _ := reg.Task("camera", "front")
	detTask, _ := reg.Task("object_detector", "front")
	assert.False(t, camTask.Result())
	assert.False(t, detTask.Result())

	// The failed camera no longer counts as present.
	assert.False(t, reg.HasIdentifier("camera", "front"))
}

func TestScheduler_OptionalDependencyAbsent(t *testing.T) {
	reg := core.NewRegistry()
	cat := core.NewCatalog()
	rec := &orderRecorder{}
	recordingDomain(cat, "detector", "object_detector", rec)

	det := core.NewComponent("detector", "detector", nil)
	queueDomain(reg, det, "object_detector", "front",
		nil, []core.DependencyRef{{Domain: "motion_detector", Identifier: "front"}})

	s := newTestScheduler(t, reg, cat, SchedulerOptions{Concurrency: 4})
	require.NoError(t, s.Run(context.Background()))

	// An absent optional dependency neither blocks nor fails the domain.
	task, ok := reg.Task("object_detector", "front")
	require.True(t, ok)
	assert.True(t, task.Result())
}

func TestScheduler_OptionalDependencyPresentIsAwaited(t *testing.T) {
	reg := core.NewRegistry()
	cat := core.NewCatalog()
	rec := &orderRecorder{}

	recordingDomain(cat, "motion", "motion_detector", rec)
	recordingDomain(cat, "detector", "object_detector", rec)

	mot := core.NewComponent("motion", "motion", nil)
	det := core.NewComponent("detector", "detector", nil)
	queueDomain(reg, det, "object_detector", "front",
		nil, []core.DependencyRef{{Domain: "motion_detector", Identifier: "front"}})
	queueDomain(reg, mot, "motion_detector", "front", nil, nil)

	s := newTestScheduler(t, reg, cat, SchedulerOptions{Concurrency: 4})
	require.NoError(t, s.Run(context.Background()))

	assert.Less(t, rec.indexOf("motion_detector:front"), rec.indexOf("object_detector:front"))
}

func TestScheduler_NotReadyRetries(t *testing.T) {
	reg := core.NewRegistry()
	cat := core.NewCatalog()

	var attempts int32
	cat.RegisterDomain("camera", "camera", func() core.DomainModule {
		return funcDomain{setup: func(context.Context, *core.Runtime, map[string]interface{}, string) core.Result {
			if atomic.AddInt32(&attempts, 1) < 3 {
				return core.NotReady("stream not up yet")
			}
			return core.Ready()
		}}
	})

	cam := core.NewComponent("camera front", "camera", nil)
	queueDomain(reg, cam, "camera", "front", nil, nil)

	s := newTestScheduler(t, reg, cat, SchedulerOptions{
		Concurrency:      2,
		RetryInterval:    5 * time.Millisecond,
		RetryIntervalMax: 20 * time.Millisecond,
	})
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	task, _ := reg.Task("camera", "front")
	assert.True(t, task.Result())
}

func TestScheduler_UnknownDomainModule(t *testing.T) {
	reg := core.NewRegistry()
	cat := core.NewCatalog()

	cam := core.NewComponent("camera front", "camera", nil)
	queueDomain(reg, cam, "camera", "front", nil, nil)

	s := newTestScheduler(t, reg, cat, SchedulerOptions{Concurrency: 2})
	require.NoError(t, s.Run(context.Background()))

	task, ok := reg.Task("camera", "front")
	require.True(t, ok)
	assert.False(t, task.Result())
}

func TestScheduler_PrunedEntryIsNotScheduled(t *testing.T) {
	reg := core.NewRegistry()
	cat := core.NewCatalog()
	rec := &orderRecorder{}
	recordingDomain(cat, "camera", "camera", rec)
	recordingDomain(cat, "detector", "object_detector", rec)

	cam := core.NewComponent("camera front", "camera", nil)
	det := core.NewComponent("detector", "detector", nil)
	queueDomain(reg, cam, "camera", "front", nil, nil)
	// Requires an identifier nobody registered; the resolver prunes it
	// before scheduling.
	queueDomain(reg, det, "object_detector", "front",
		[]core.DependencyRef{{Domain: "camera", Identifier: "back"}}, nil)

	s := newTestScheduler(t, reg, cat, SchedulerOptions{Concurrency: 4})
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, []string{"camera:front"}, rec.snapshot())
	_, scheduled := reg.Task("object_detector", "front")
	assert.False(t, scheduled)
}

func TestScheduler_ContextCancellation(t *testing.T) {
	reg := core.NewRegistry()
	cat := core.NewCatalog()

	started := make(chan struct{})
	cat.RegisterDomain("camera", "camera", func() core.DomainModule {
		return funcDomain{setup: func(ctx context.Context, _ *core.Runtime, _ map[string]interface{}, _ string) core.Result {
			close(started)
			<-ctx.Done()
			return core.Failed(ctx.Err())
		}}
	})

	cam := core.NewComponent("camera front", "camera", nil)
	queueDomain(reg, cam, "camera", "front", nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	s := newTestScheduler(t, reg, cat, SchedulerOptions{Concurrency: 2})
	err := s.Run(ctx)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
