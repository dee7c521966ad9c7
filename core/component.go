package core

import (
	"fmt"
	"sync"
)

// State represents the lifecycle state of a component.
type State string

const (
	// StateUnregistered means the component has not entered setup yet
	StateUnregistered State = "unregistered"
	// StateLoading means the component setup routine is running
	StateLoading State = "loading"
	// StateLoaded means the component setup completed successfully
	StateLoaded State = "loaded"
	// StateFailed means the component setup failed or is awaiting a retry
	StateFailed State = "failed"
)

// String returns the string representation
func (s State) String() string {
	return string(s)
}

// DependencyRef identifies a domain instance another domain depends on.
type DependencyRef struct {
	Domain     string
	Identifier string
}

// String returns the string representation
func (r DependencyRef) String() string {
	if r.Identifier == "" {
		return r.Domain
	}
	return fmt.Sprintf("%s:%s", r.Domain, r.Identifier)
}

// Component represents a configured pluggable unit of functionality.
// Name is the full config key, which may carry an instance suffix
// ("camera front"); BaseName selects the implementation in the catalog.
type Component struct {
	Name     string
	BaseName string
	Config   map[string]interface{}

	mu      sync.Mutex
	domains []*DomainSetup
}

// NewComponent creates a component record for the given config key.
func NewComponent(name, baseName string, config map[string]interface{}) *Component {
	return &Component{
		Name:     name,
		BaseName: baseName,
		Config:   config,
	}
}

// String returns the component name.
func (c *Component) String() string {
	return c.Name
}

// AddDomain appends a domain setup request to the component's pending list.
func (c *Component) AddDomain(ds *DomainSetup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.domains = append(c.domains, ds)
}

// RemoveDomain removes a single domain setup request, if present.
func (c *Component) RemoveDomain(ds *DomainSetup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, d := range c.domains {
		if d == ds {
			c.domains = append(c.domains[:i], c.domains[i+1:]...)
			return
		}
	}
}

// Domains returns a snapshot of the pending domain setup requests.
func (c *Component) Domains() []*DomainSetup {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*DomainSetup, len(c.domains))
	copy(out, c.domains)
	return out
}

// ClearDomains empties the pending list and returns the removed entries
// so the caller can purge them from the registry as well.
func (c *Component) ClearDomains() []*DomainSetup {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.domains
	c.domains = nil
	return out
}

// DomainSetup represents one queued domain initialization.
type DomainSetup struct {
	Component  *Component
	Domain     string
	Identifier string
	Config     map[string]interface{}
	Required   []DependencyRef
	Optional   []DependencyRef
}

// Ref returns the reference other domains use to depend on this entry.
func (d *DomainSetup) Ref() DependencyRef {
	return DependencyRef{Domain: d.Domain, Identifier: d.Identifier}
}

// String returns the string representation used in log messages.
func (d *DomainSetup) String() string {
	if d.Identifier == "" {
		return fmt.Sprintf("domain %s for component %s", d.Domain, d.Component.Name)
	}
	return fmt.Sprintf("domain %s for component %s with identifier %s", d.Domain, d.Component.Name, d.Identifier)
}
