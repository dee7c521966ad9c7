package core

import (
	"fmt"
	"sync"
)

// ComponentFactory builds a component module instance.
type ComponentFactory func() Module

// DomainFactory builds a domain module instance.
type DomainFactory func() DomainModule

// Catalog maps component and domain names to factory functions.
// Implementations self-register at startup; setup resolves configured
// names by lookup, so an unknown name is a load failure rather than a
// missing import.
type Catalog struct {
	mu         sync.RWMutex
	components map[string]ComponentFactory
	domains    map[string]DomainFactory
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		components: make(map[string]ComponentFactory),
		domains:    make(map[string]DomainFactory),
	}
}

// RegisterComponent registers a component factory under its name.
// Registering the same name twice panics; it is a programming error.
func (c *Catalog) RegisterComponent(name string, f ComponentFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.components[name]; ok {
		panic(fmt.Sprintf("component %q registered twice", name))
	}
	c.components[name] = f
}

// Component resolves a component factory by name.
func (c *Catalog) Component(name string) (ComponentFactory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.components[name]
	return f, ok
}

// RegisterDomain registers the factory for a domain a component provides.
func (c *Catalog) RegisterDomain(component, domain string, f DomainFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := domainKey(component, domain)
	if _, ok := c.domains[key]; ok {
		panic(fmt.Sprintf("domain %q registered twice", key))
	}
	c.domains[key] = f
}

// Domain resolves the factory for a component's domain implementation.
func (c *Catalog) Domain(component, domain string) (DomainFactory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.domains[domainKey(component, domain)]
	return f, ok
}

// ComponentNames returns all registered component names, sorted.
func (c *Catalog) ComponentNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.components)
}

// DomainNames returns all registered component.domain keys, sorted.
func (c *Catalog) DomainNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.domains)
}

func domainKey(component, domain string) string {
	return component + "." + domain
}
