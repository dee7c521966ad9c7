// Package setup orchestrates component loading and domain scheduling.
//
// Components are resolved by name from a catalog, validated against their
// declared schema and set up either sequentially or in parallel depending
// on their tier. Components queue domains during setup; once every
// component tier has run, the scheduler executes the domain dependency
// graph on a bounded worker pool.
package setup

import (
	"context"
	"fmt"
	"time"

	"argus/core"
	"argus/metrics"
	"argus/util/goroutine"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

const (
	defaultRetryInterval    = 10 * time.Second
	defaultRetryIntervalMax = 300 * time.Second
	defaultSlowSetupWarning = 10 * time.Second

	// Compiled schemas are immutable per module, so a small cache is
	// plenty even with many instanced components.
	schemaCacheSize = 64
)

// LoaderOptions tunes retry backoff and the slow-setup warning. Zero
// values fall back to defaults.
type LoaderOptions struct {
	RetryInterval    time.Duration
	RetryIntervalMax time.Duration
	SlowSetupWarning time.Duration
}

func (o *LoaderOptions) applyDefaults() {
	if o.RetryInterval <= 0 {
		o.RetryInterval = defaultRetryInterval
	}
	if o.RetryIntervalMax <= 0 {
		o.RetryIntervalMax = defaultRetryIntervalMax
	}
	if o.SlowSetupWarning <= 0 {
		o.SlowSetupWarning = defaultSlowSetupWarning
	}
}

// Loader resolves configured components to implementations, validates
// their config and runs their setup routine, managing not-ready retries
// and slow-setup warnings.
type Loader struct {
	reg     *core.Registry
	cat     *core.Catalog
	opts    LoaderOptions
	logger  *zap.SugaredLogger
	schemas *lru.Cache[string, *gojsonschema.Schema]
}

// NewLoader creates a component loader.
func NewLoader(reg *core.Registry, cat *core.Catalog, opts LoaderOptions, logger *zap.SugaredLogger) *Loader {
	opts.applyDefaults()
	schemas, _ := lru.New[string, *gojsonschema.Schema](schemaCacheSize)
	return &Loader{
		reg:     reg,
		cat:     cat,
		opts:    opts,
		logger:  logger,
		schemas: schemas,
	}
}

// SetupComponent runs one component's setup. Failures are contained and
// recorded in the registry; a not-ready component is retried in the
// background without blocking the caller.
func (l *Loader) SetupComponent(ctx context.Context, comp *core.Component) {
	l.setupComponent(ctx, comp, 1)
}

func (l *Loader) setupComponent(ctx context.Context, comp *core.Component, tries int) {
	if ctx.Err() != nil {
		return
	}
	// A retry attempt clears the failed marker before re-entering Loading.
	if tries > 1 {
		l.reg.ClearFailed(comp.Name)
	}
	l.reg.SetLoading(comp)

	log := l.logger.With("component", comp.Name, "attempt", tries)

	factory, ok := l.cat.Component(comp.BaseName)
	if !ok {
		log.Errorw("Failed to load component", "error", core.ErrModuleNotFound)
		metrics.SetupAttempts.WithLabelValues("component", "module_not_found").Inc()
		l.fail(comp)
		return
	}
	mod := factory()

	cfg, err := l.ValidateModuleConfig(comp.BaseName, mod, comp.Config)
	if err != nil {
		log.Errorw("Error validating component config", "error", err)
		metrics.SetupAttempts.WithLabelValues("component", "config_invalid").Inc()
		l.fail(comp)
		return
	}

	log.Info("Setting up component")
	warn := time.AfterFunc(l.opts.SlowSetupWarning, func() {
		l.logger.Warnf("Setup of component %s is taking longer than %s", comp.Name, l.opts.SlowSetupWarning)
	})
	start := time.Now()
	res := runSetup(func() core.Result {
		return mod.Setup(ctx, core.NewRuntime(l.reg, comp), cfg)
	})
	warn.Stop()
	elapsed := time.Since(start)

	switch res.Status {
	case core.StatusReady:
		l.reg.SetLoaded(comp)
		metrics.SetupAttempts.WithLabelValues("component", "ready").Inc()
		metrics.SetupDuration.WithLabelValues("component").Observe(elapsed.Seconds())
		log.Infow("Setup of component completed", "duration", elapsed)
	case core.StatusNotReady:
		l.fail(comp)
		delay := backoffDelay(tries, l.opts.RetryInterval, l.opts.RetryIntervalMax)
		metrics.SetupAttempts.WithLabelValues("component", "not_ready").Inc()
		metrics.SetupRetries.WithLabelValues("component").Inc()
		log.Errorw("Component is not ready, retrying in the background",
			"reason", res.Reason,
			"delay", delay)
		time.AfterFunc(delay, func() {
			defer goroutine.Recover("component-retry", l.logger)
			l.setupComponent(ctx, comp, tries+1)
		})
	case core.StatusFailed:
		l.fail(comp)
		metrics.SetupAttempts.WithLabelValues("component", "failed").Inc()
		if res.Err != nil {
			log.Errorw("Setup of component failed", "error", res.Err, "duration", elapsed)
		} else {
			log.Errorw("Setup of component failed", "duration", elapsed)
		}
	default:
		l.fail(comp)
		metrics.SetupAttempts.WithLabelValues("component", "contract_violation").Inc()
		log.Errorw("Setup of component failed", "error", core.ErrContractViolation)
	}
}

// fail marks the component failed and purges any domains it queued from
// the global pending table.
func (l *Loader) fail(comp *core.Component) {
	for _, ds := range comp.ClearDomains() {
		l.reg.RemovePendingDomain(ds.Domain, ds.Identifier)
	}
	l.reg.SetFailed(comp)
}

// ValidateModuleConfig checks the raw config against the module's JSON
// schema and programmatic validator, whichever the module implements.
// cacheKey scopes the compiled-schema cache, typically the component name
// or component.domain key.
func (l *Loader) ValidateModuleConfig(cacheKey string, mod interface{}, cfg map[string]interface{}) (map[string]interface{}, error) {
	if cfg == nil {
		cfg = map[string]interface{}{}
	}
	if sp, ok := mod.(core.SchemaProvider); ok {
		schema, err := l.compiledSchema(cacheKey, sp.ConfigSchema())
		if err != nil {
			return nil, fmt.Errorf("%w: compiling schema for %s: %v", core.ErrConfigInvalid, cacheKey, err)
		}
		result, err := schema.Validate(gojsonschema.NewGoLoader(cfg))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
		}
		if !result.Valid() {
			return nil, fmt.Errorf("%w: %v", core.ErrConfigInvalid, result.Errors())
		}
	}
	if cv, ok := mod.(core.ConfigValidator); ok {
		validated, err := runValidate(cv, cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
		}
		return validated, nil
	}
	return cfg, nil
}

func (l *Loader) compiledSchema(key string, raw []byte) (*gojsonschema.Schema, error) {
	if s, ok := l.schemas.Get(key); ok {
		return s, nil
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, err
	}
	l.schemas.Add(key, s)
	return s, nil
}

// runSetup invokes a setup routine, converting a panic into a failed
// result so one unit's crash never aborts its siblings.
func runSetup(fn func() core.Result) (res core.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = core.Failed(fmt.Errorf("uncaught panic in setup routine: %v", r))
		}
	}()
	return fn()
}

// runValidate invokes a module validator, containing panics the same way.
func runValidate(cv core.ConfigValidator, cfg map[string]interface{}) (validated map[string]interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			validated = nil
			err = fmt.Errorf("uncaught panic in config validator: %v", r)
		}
	}()
	return cv.ValidateConfig(cfg)
}

// backoffDelay computes the not-ready retry delay: min(tries*base, max).
// Delays grow linearly and cap out; the retry count itself is unbounded.
func backoffDelay(tries int, base, max time.Duration) time.Duration {
	d := time.Duration(tries) * base
	if d > max {
		return max
	}
	return d
}
