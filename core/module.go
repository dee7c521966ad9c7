package core

import "context"

// Status is the outcome tag of a setup routine.
type Status int

const (
	// StatusReady means setup completed and the unit is operational
	StatusReady Status = iota
	// StatusNotReady means setup should be retried later
	StatusNotReady
	// StatusFailed means setup failed terminally
	StatusFailed
)

// Result is the explicit outcome of a component or domain setup routine.
// NotReady is an ordinary value, not a panic or an error in disguise, so
// the retry loops can branch on the tag.
type Result struct {
	Status Status
	Reason string
	Err    error
}

// Ready reports a successful setup.
func Ready() Result {
	return Result{Status: StatusReady}
}

// NotReady requests a deferred retry, carrying the reason for the delay.
func NotReady(reason string) Result {
	return Result{Status: StatusNotReady, Reason: reason}
}

// Failed reports a terminal setup failure.
func Failed(err error) Result {
	return Result{Status: StatusFailed, Err: err}
}

// Module is the contract a component implementation fulfils. Setup may
// block on network or device I/O; it runs on its own goroutine or pool
// worker and must honor ctx cancellation for long waits.
type Module interface {
	Setup(ctx context.Context, rt *Runtime, config map[string]interface{}) Result
}

// DomainModule is the contract a domain implementation fulfils.
// identifier is empty for non-instanced domains.
type DomainModule interface {
	SetupDomain(ctx context.Context, rt *Runtime, config map[string]interface{}, identifier string) Result
}

// ConfigValidator is optionally implemented by modules that normalize or
// reject their raw config programmatically. The returned map replaces the
// raw config for the setup call.
type ConfigValidator interface {
	ValidateConfig(config map[string]interface{}) (map[string]interface{}, error)
}

// SchemaProvider is optionally implemented by modules that declare a JSON
// schema for their raw config. Schema validation runs before
// ConfigValidator when both are implemented.
type SchemaProvider interface {
	ConfigSchema() []byte
}

// Runtime is handed to setup routines. It scopes registry access to the
// component being set up and carries the domain registrar.
type Runtime struct {
	reg  *Registry
	comp *Component
}

// NewRuntime creates a runtime for one component's setup calls.
func NewRuntime(reg *Registry, comp *Component) *Runtime {
	return &Runtime{reg: reg, comp: comp}
}

// Component returns the component this runtime belongs to.
func (rt *Runtime) Component() *Component {
	return rt.comp
}

// RegisterDomain queues a domain for setup once all components are loaded.
// No validation happens here; the domain's own schema is checked at
// scheduling time.
func (rt *Runtime) RegisterDomain(domain string, config map[string]interface{}, identifier string, required, optional []DependencyRef) {
	ds := &DomainSetup{
		Component:  rt.comp,
		Domain:     domain,
		Identifier: identifier,
		Config:     config,
		Required:   required,
		Optional:   optional,
	}
	rt.comp.AddDomain(ds)
	rt.reg.AddPendingDomain(ds)
}

// SetData stores a shared resource other components and domains can reach.
func (rt *Runtime) SetData(key string, value interface{}) {
	rt.reg.SetData(key, value)
}

// Data returns a shared resource stored by another component, or nil.
func (rt *Runtime) Data(key string) interface{} {
	return rt.reg.Data(key)
}
