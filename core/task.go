package core

import (
	"sync"

	"github.com/google/uuid"
)

// SetupTask is the handle for one in-flight or completed domain
// initialization. Dependents block on Done and read Result to decide
// whether their own setup may run.
type SetupTask struct {
	ID         string
	Domain     string
	Identifier string

	once sync.Once
	done chan struct{}
	ok   bool
}

func newSetupTask(domain, identifier string) *SetupTask {
	return &SetupTask{
		ID:         uuid.New().String(),
		Domain:     domain,
		Identifier: identifier,
		done:       make(chan struct{}),
	}
}

// Complete resolves the task to its boolean outcome. Only the first call
// has any effect.
func (t *SetupTask) Complete(ok bool) {
	t.once.Do(func() {
		t.ok = ok
		close(t.done)
	})
}

// Done is closed once the task has resolved.
func (t *SetupTask) Done() <-chan struct{} {
	return t.done
}

// Result returns the outcome. It is only meaningful after Done is closed.
func (t *SetupTask) Result() bool {
	select {
	case <-t.done:
		return t.ok
	default:
		return false
	}
}

// Finished reports whether the task has resolved, without blocking.
func (t *SetupTask) Finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Ref returns the dependency reference this task satisfies.
func (t *SetupTask) Ref() DependencyRef {
	return DependencyRef{Domain: t.Domain, Identifier: t.Identifier}
}
