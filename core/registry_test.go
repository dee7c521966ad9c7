package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_StateTransitions(t *testing.T) {
	reg := NewRegistry()
	comp := NewComponent("camera front", "camera", nil)

	assert.Equal(t, StateUnregistered, reg.State("camera front"))

	reg.SetLoading(comp)
	assert.Equal(t, StateLoading, reg.State("camera front"))
	assert.Equal(t, []string{"camera front"}, reg.Loading())

	reg.SetLoaded(comp)
	assert.Equal(t, StateLoaded, reg.State("camera front"))
	assert.Empty(t, reg.Loading())
	assert.Equal(t, []string{"camera front"}, reg.Loaded())

	// A later failure replaces the loaded marker.
	reg.SetFailed(comp)
	assert.Equal(t, StateFailed, reg.State("camera front"))
	assert.Empty(t, reg.Loaded())
	assert.Equal(t, []string{"camera front"}, reg.Failed())

	reg.ClearFailed("camera front")
	assert.Equal(t, StateUnregistered, reg.State("camera front"))
}

func TestRegistry_PendingDomains(t *testing.T) {
	reg := NewRegistry()
	comp := NewComponent("camera", "camera", nil)

	ds := &DomainSetup{Component: comp, Domain: "camera", Identifier: "front"}
	reg.AddPendingDomain(ds)

	got, ok := reg.PendingDomain("camera", "front")
	require.True(t, ok)
	assert.Same(t, ds, got)

	_, ok = reg.PendingDomain("camera", "back")
	assert.False(t, ok)

	all := reg.PendingDomains()
	require.Len(t, all, 1)
	assert.Same(t, ds, all[0])

	reg.RemovePendingDomain("camera", "front")
	_, ok = reg.PendingDomain("camera", "front")
	assert.False(t, ok)
	assert.Empty(t, reg.PendingDomains())
}

func TestRegistry_PendingDomainsSorted(t *testing.T) {
	reg := NewRegistry()
	comp := NewComponent("x", "x", nil)

	for _, ref := range []DependencyRef{
		{Domain: "object_detector", Identifier: "front"},
		{Domain: "camera", Identifier: "front"},
		{Domain: "camera", Identifier: "back"},
	} {
		reg.AddPendingDomain(&DomainSetup{Component: comp, Domain: ref.Domain, Identifier: ref.Identifier})
	}

	var got []string
	for _, ds := range reg.PendingDomains() {
		got = append(got, ds.Ref().String())
	}
	assert.Equal(t, []string{"camera:back", "camera:front", "object_detector:front"}, got)
}

func TestRegistry_Identifiers(t *testing.T) {
	reg := NewRegistry()

	assert.False(t, reg.HasIdentifier("camera", "front"))
	reg.RegisterIdentifier("camera", "front")
	assert.True(t, reg.HasIdentifier("camera", "front"))
	assert.False(t, reg.HasIdentifier("camera", "back"))

	reg.DropIdentifier("camera", "front")
	assert.False(t, reg.HasIdentifier("camera", "front"))
}

func TestRegistry_EnsureTaskIdempotent(t *testing.T) {
	reg := NewRegistry()

	task, created := reg.EnsureTask("camera", "front")
	require.True(t, created)
	require.NotNil(t, task)

	again, created := reg.EnsureTask("camera", "front")
	assert.False(t, created)
	assert.Same(t, task, again)
}

func TestRegistry_EnsureTaskConcurrent(t *testing.T) {
	reg := NewRegistry()

	const goroutines = 64
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	tasks := make(map[*SetupTask]struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, created := reg.EnsureTask("camera", "front")
			mu.Lock()
			defer mu.Unlock()
			if created {
				createdCount++
			}
			tasks[task] = struct{}{}
		}()
	}
	wg.Wait()

	// Exactly one goroutine wins the insert; everyone sees the same task.
	assert.Equal(t, 1, createdCount)
	assert.Len(t, tasks, 1)
	assert.Len(t, reg.Tasks(), 1)
}

func TestRegistry_Data(t *testing.T) {
	reg := NewRegistry()

	assert.Nil(t, reg.Data("bus"))
	reg.SetData("bus", 42)
	assert.Equal(t, 42, reg.Data("bus"))
}

func TestSetupTask_CompleteOnce(t *testing.T) {
	reg := NewRegistry()
	task, _ := reg.EnsureTask("camera", "front")

	assert.False(t, task.Finished())
	task.Complete(true)
	task.Complete(false) // second completion is ignored

	select {
	case <-task.Done():
	default:
		t.Fatal("task should be done")
	}
	assert.True(t, task.Finished())
	assert.True(t, task.Result())
}
