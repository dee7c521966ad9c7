package core

import (
	"sort"
	"sync"
)

// Registry is the process-wide state store for component lifecycle and
// domain setup bookkeeping. It is the single source of truth the loader,
// resolver and scheduler read and write; all mutation is concurrency-safe
// because readers and writers run on pool workers.
type Registry struct {
	mu      sync.RWMutex
	loading map[string]*Component
	loaded  map[string]*Component
	failed  map[string]*Component

	// domainsPending is keyed domain -> identifier; an entry is removed
	// once scheduled or pruned.
	domainsPending map[string]map[string]*DomainSetup

	// identifiers tracks, per domain, every identifier queued for setup.
	// Existence here is based on declaration, not eventual success.
	identifiers map[string]map[string]struct{}

	// taskMu guards the check-then-insert into tasks so a given
	// (domain, identifier) pair is scheduled exactly once.
	taskMu sync.Mutex
	tasks  map[string]map[string]*SetupTask

	dataMu sync.RWMutex
	data   map[string]interface{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		loading:        make(map[string]*Component),
		loaded:         make(map[string]*Component),
		failed:         make(map[string]*Component),
		domainsPending: make(map[string]map[string]*DomainSetup),
		identifiers:    make(map[string]map[string]struct{}),
		tasks:          make(map[string]map[string]*SetupTask),
		data:           make(map[string]interface{}),
	}
}

// SetLoading marks a component as actively setting up. Membership in the
// state maps is mutually exclusive.
func (r *Registry) SetLoading(c *Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.loaded, c.Name)
	r.loading[c.Name] = c
}

// SetLoaded moves a component from loading to loaded.
func (r *Registry) SetLoaded(c *Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.loading, c.Name)
	delete(r.failed, c.Name)
	r.loaded[c.Name] = c
}

// SetFailed moves a component from loading to failed.
func (r *Registry) SetFailed(c *Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.loading, c.Name)
	delete(r.loaded, c.Name)
	r.failed[c.Name] = c
}

// ClearFailed removes the failed marker ahead of a retry attempt.
func (r *Registry) ClearFailed(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failed, name)
}

// State returns the lifecycle state of the named component.
func (r *Registry) State(name string) State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.loaded[name]; ok {
		return StateLoaded
	}
	if _, ok := r.failed[name]; ok {
		return StateFailed
	}
	if _, ok := r.loading[name]; ok {
		return StateLoading
	}
	return StateUnregistered
}

// Loaded returns the names of all loaded components, sorted.
func (r *Registry) Loaded() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.loaded)
}

// Failed returns the names of all failed components, sorted.
func (r *Registry) Failed() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.failed)
}

// Loading returns the names of all components currently loading, sorted.
func (r *Registry) Loading() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.loading)
}

// AddPendingDomain records a domain setup request in the global table.
// A later registration for the same (domain, identifier) replaces the
// earlier one.
func (r *Registry) AddPendingDomain(ds *DomainSetup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byID, ok := r.domainsPending[ds.Domain]
	if !ok {
		byID = make(map[string]*DomainSetup)
		r.domainsPending[ds.Domain] = byID
	}
	byID[ds.Identifier] = ds
}

// RemovePendingDomain drops a pending entry, either because it was
// scheduled or because the resolver pruned it.
func (r *Registry) RemovePendingDomain(domain, identifier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if byID, ok := r.domainsPending[domain]; ok {
		delete(byID, identifier)
	}
}

// PendingDomain looks up a single pending entry.
func (r *Registry) PendingDomain(domain, identifier string) (*DomainSetup, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ds, ok := r.domainsPending[domain][identifier]
	return ds, ok
}

// PendingDomains returns a snapshot of all pending entries in a stable
// order.
func (r *Registry) PendingDomains() []*DomainSetup {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*DomainSetup
	for _, domain := range sortedKeys(r.domainsPending) {
		byID := r.domainsPending[domain]
		for _, id := range sortedKeys(byID) {
			out = append(out, byID[id])
		}
	}
	return out
}

// RegisterIdentifier records that an identifier for a domain is queued
// for setup. Used to test required and optional dependency presence.
func (r *Registry) RegisterIdentifier(domain, identifier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids, ok := r.identifiers[domain]
	if !ok {
		ids = make(map[string]struct{})
		r.identifiers[domain] = ids
	}
	ids[identifier] = struct{}{}
}

// HasIdentifier reports whether the (domain, identifier) pair was queued.
func (r *Registry) HasIdentifier(domain, identifier string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.identifiers[domain][identifier]
	return ok
}

// DropIdentifier removes an identifier after an unrecoverable domain
// setup failure.
func (r *Registry) DropIdentifier(domain, identifier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ids, ok := r.identifiers[domain]; ok {
		delete(ids, identifier)
	}
}

// EnsureTask performs the lock-protected check-then-insert into the task
// map. It returns the task for the pair and whether this call created it;
// created == false means the pair is already scheduled and the caller
// must not submit duplicate work.
func (r *Registry) EnsureTask(domain, identifier string) (*SetupTask, bool) {
	r.taskMu.Lock()
	defer r.taskMu.Unlock()
	if t, ok := r.tasks[domain][identifier]; ok {
		return t, false
	}
	t := newSetupTask(domain, identifier)
	byID, ok := r.tasks[domain]
	if !ok {
		byID = make(map[string]*SetupTask)
		r.tasks[domain] = byID
	}
	byID[identifier] = t
	return t, true
}

// Task looks up the setup task for a pair, if one was scheduled.
func (r *Registry) Task(domain, identifier string) (*SetupTask, bool) {
	r.taskMu.Lock()
	defer r.taskMu.Unlock()
	t, ok := r.tasks[domain][identifier]
	return t, ok
}

// Tasks returns a snapshot of every scheduled setup task.
func (r *Registry) Tasks() []*SetupTask {
	r.taskMu.Lock()
	defer r.taskMu.Unlock()
	var out []*SetupTask
	for _, domain := range sortedKeys(r.tasks) {
		byID := r.tasks[domain]
		for _, id := range sortedKeys(byID) {
			out = append(out, byID[id])
		}
	}
	return out
}

// SetData stores a shared resource under a well-known key.
func (r *Registry) SetData(key string, value interface{}) {
	r.dataMu.Lock()
	defer r.dataMu.Unlock()
	r.data[key] = value
}

// Data returns a shared resource, or nil if absent.
func (r *Registry) Data(key string) interface{} {
	r.dataMu.RLock()
	defer r.dataMu.RUnlock()
	return r.data[key]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
