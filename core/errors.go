package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the terminal, non-retryable setup failures.
var (
	// ErrModuleNotFound means the configured name has no factory in the
	// catalog. Fails closed, never retried.
	ErrModuleNotFound = errors.New("module not found in catalog")
	// ErrConfigInvalid means the raw config was rejected by the module's
	// schema or validator. Fails closed, never retried.
	ErrConfigInvalid = errors.New("config validation failed")
	// ErrContractViolation means a setup routine returned a Result with an
	// unknown status tag.
	ErrContractViolation = errors.New("setup routine returned unknown status")
)

// DependencyUnsatisfiedError reports a pending domain whose required
// dependency was never registered anywhere. The entry is pruned before
// scheduling and never executes.
type DependencyUnsatisfiedError struct {
	Component  string
	Domain     string
	Identifier string
	Missing    DependencyRef
}

// Error implements the error interface.
func (e *DependencyUnsatisfiedError) Error() string {
	return fmt.Sprintf(
		"domain %s for component %s requires domain %s but it has not been registered",
		e.Domain, e.Component, e.Missing)
}

// DependencyFailedError reports a domain abandoned because an awaited
// dependency resolved to failure.
type DependencyFailedError struct {
	Domain     string
	Identifier string
	Failed     []DependencyRef
}

// Error implements the error interface.
func (e *DependencyFailedError) Error() string {
	return fmt.Sprintf("unable to set up dependencies for domain %s: failed dependencies %v", e.Domain, e.Failed)
}
