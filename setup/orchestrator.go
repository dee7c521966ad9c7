package setup

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"argus/core"
	"argus/util/goroutine"

	"go.uber.org/zap"
)

// Component tiers. Logging components run first so everything after them
// logs through the configured sinks. Core and default components are
// always set up even when absent from the config.
var (
	LoggingComponents = map[string]struct{}{"logger": {}}
	CoreComponents    = map[string]struct{}{"bus": {}}
	DefaultComponents = map[string]struct{}{"webserver": {}}
)

const defaultComponentJoinTimeout = 30 * time.Second

// OrchestratorOptions tunes the tier-4 bounded wait. Zero values fall
// back to defaults.
type OrchestratorOptions struct {
	ComponentJoinTimeout time.Duration
}

// Orchestrator tiers component startup and then triggers domain
// scheduling over everything the components registered.
type Orchestrator struct {
	reg       *core.Registry
	loader    *Loader
	scheduler *Scheduler
	opts      OrchestratorOptions
	logger    *zap.SugaredLogger
}

// NewOrchestrator creates the startup orchestrator.
func NewOrchestrator(reg *core.Registry, loader *Loader, scheduler *Scheduler, opts OrchestratorOptions, logger *zap.SugaredLogger) *Orchestrator {
	if opts.ComponentJoinTimeout <= 0 {
		opts.ComponentJoinTimeout = defaultComponentJoinTimeout
	}
	return &Orchestrator{
		reg:       reg,
		loader:    loader,
		scheduler: scheduler,
		opts:      opts,
		logger:    logger,
	}
}

// Run sets up all configured components in four tiers, then schedules
// every registered domain. Tiers 1-3 run sequentially; the remaining
// user-configured components run in parallel with a bounded wait, and a
// component exceeding it is left to finish in the background.
//
// components maps config keys to raw config sub-trees. A key may carry an
// instance suffix ("camera front"); the base name selects the
// implementation, the full key tracks the instance.
func (o *Orchestrator) Run(ctx context.Context, components map[string]map[string]interface{}) error {
	keys := make([]string, 0, len(components))
	for key := range components {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// Tier 1: logging components from the config.
	for _, key := range keys {
		if _, ok := LoggingComponents[baseName(key)]; ok {
			o.loader.SetupComponent(ctx, componentForKey(key, components))
		}
	}

	// Tiers 2 and 3: fixed always-on components, configured or not.
	for _, name := range setNames(CoreComponents) {
		o.loader.SetupComponent(ctx, componentForKey(name, components))
	}
	for _, name := range setNames(DefaultComponents) {
		o.loader.SetupComponent(ctx, componentForKey(name, components))
	}

	// Tier 4: everything else, in parallel.
	var wg sync.WaitGroup
	for _, key := range keys {
		base := baseName(key)
		if inTier(base, LoggingComponents) || inTier(base, CoreComponents) || inTier(base, DefaultComponents) {
			continue
		}
		comp := componentForKey(key, components)
		done := make(chan struct{})
		go func() {
			defer close(done)
			defer goroutine.Recover("component-setup", o.logger)
			o.loader.SetupComponent(ctx, comp)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-done:
			case <-time.After(o.opts.ComponentJoinTimeout):
				o.logger.Errorf("Setup of component %s did not finish in time", comp.Name)
			}
		}()
	}
	wg.Wait()

	return o.scheduler.Run(ctx)
}

// componentForKey builds the component record for a config key. Absent
// keys (always-on components without config) get a nil config sub-tree.
func componentForKey(key string, components map[string]map[string]interface{}) *core.Component {
	return core.NewComponent(key, baseName(key), components[key])
}

// baseName strips the instance suffix from a config key.
func baseName(key string) string {
	if i := strings.IndexByte(key, ' '); i >= 0 {
		return key[:i]
	}
	return key
}

func inTier(name string, tier map[string]struct{}) bool {
	_, ok := tier[name]
	return ok
}

func setNames(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
