package setup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"argus/core"
	"argus/metrics"

	"go.uber.org/zap"
)

const (
	defaultConcurrency           = 100
	defaultSlowDependencyWarning = 30 * time.Second
)

// SchedulerOptions tunes pool sizing, domain retry backoff and the
// periodic slow-dependency warning. Zero values fall back to defaults.
type SchedulerOptions struct {
	Concurrency           int
	RetryInterval         time.Duration
	RetryIntervalMax      time.Duration
	SlowDependencyWarning time.Duration
}

func (o *SchedulerOptions) applyDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = defaultRetryInterval
	}
	if o.RetryIntervalMax <= 0 {
		o.RetryIntervalMax = defaultRetryIntervalMax
	}
	if o.SlowDependencyWarning <= 0 {
		o.SlowDependencyWarning = defaultSlowDependencyWarning
	}
}

// Scheduler executes the domain initialization graph on a bounded worker
// pool. Ordering is enforced by each task blocking on its dependencies'
// futures before running its own setup, not by submission order.
//
// A dependency chain deeper than the pool's concurrency could deadlock
// with every worker blocked waiting on a task that cannot get a worker.
// The mitigation here is an oversized pool: concurrency defaults to 100
// and must be sized at least expected max chain depth times fan-out.
type Scheduler struct {
	reg    *core.Registry
	cat    *core.Catalog
	loader *Loader
	opts   SchedulerOptions
	logger *zap.SugaredLogger

	pool      *core.WorkerPool
	retryPool *core.WorkerPool
}

// NewScheduler creates a domain scheduler. The loader is reused for
// config validation so domain schemas share the compiled-schema cache.
func NewScheduler(reg *core.Registry, cat *core.Catalog, loader *Loader, opts SchedulerOptions, logger *zap.SugaredLogger) *Scheduler {
	opts.applyDefaults()
	return &Scheduler{
		reg:    reg,
		cat:    cat,
		loader: loader,
		opts:   opts,
		logger: logger,
	}
}

// Run resolves dependencies, schedules every still-pending domain and
// joins on all submitted tasks. Errors inside individual setup routines
// are contained and recorded on their task; only scheduling-machinery
// errors are returned.
func (s *Scheduler) Run(ctx context.Context) error {
	ResolveDependencies(s.reg, s.logger)

	pending := s.reg.PendingDomains()
	if len(pending) == 0 {
		return nil
	}

	// Every pair is submitted at most once, so sizing the queues to the
	// pending count can never reject a first submission. Retries requeue
	// over time on the dedicated single-worker pool.
	queueSize := len(pending) + s.opts.Concurrency
	s.pool = core.NewWorkerPoolWithContext(ctx, s.opts.Concurrency, queueSize, "domain-setup", s.logger)
	s.retryPool = core.NewWorkerPoolWithContext(ctx, 1, queueSize, "domain-retry", s.logger)
	if err := s.pool.Start(); err != nil {
		return err
	}
	if err := s.retryPool.Start(); err != nil {
		return err
	}
	defer s.pool.Stop()
	defer s.retryPool.Stop()

	var errs []error
	for _, ds := range pending {
		if err := s.schedule(ctx, ds); err != nil {
			errs = append(errs, err)
		}
	}

	// Join on every submitted task so the orchestrator observes
	// completion before declaring startup done.
	for _, t := range s.reg.Tasks() {
		select {
		case <-t.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errors.Join(errs...)
}

// schedule submits one pending domain, recursively ensuring its required
// dependencies and its present optional dependencies are submitted first.
// Submission of a (domain, identifier) pair is idempotent.
func (s *Scheduler) schedule(ctx context.Context, ds *core.DomainSetup) error {
	task, created := s.reg.EnsureTask(ds.Domain, ds.Identifier)
	if !created {
		return nil
	}

	for _, req := range ds.Required {
		if err := s.scheduleRef(ctx, req); err != nil {
			task.Complete(false)
			return err
		}
	}
	for _, opt := range ds.Optional {
		if !s.reg.HasIdentifier(opt.Domain, opt.Identifier) {
			continue
		}
		if err := s.scheduleRef(ctx, opt); err != nil {
			task.Complete(false)
			return err
		}
	}

	s.reg.RemovePendingDomain(ds.Domain, ds.Identifier)
	if err := s.pool.Submit(func() {
		s.runTask(ctx, ds, task, 1)
	}); err != nil {
		task.Complete(false)
		return fmt.Errorf("submitting %s: %w", ds, err)
	}
	return nil
}

// scheduleRef schedules the pending entry a dependency reference points
// at. A reference that is neither pending nor already scheduled means the
// dependency itself was pruned; that is a scheduling error, not a setup
// failure.
func (s *Scheduler) scheduleRef(ctx context.Context, ref core.DependencyRef) error {
	if _, ok := s.reg.Task(ref.Domain, ref.Identifier); ok {
		return nil
	}
	dep, ok := s.reg.PendingDomain(ref.Domain, ref.Identifier)
	if !ok {
		return fmt.Errorf("dependency %s is neither pending nor scheduled", ref)
	}
	return s.schedule(ctx, dep)
}

// runTask is the worker-pool body for one domain setup attempt.
func (s *Scheduler) runTask(ctx context.Context, ds *core.DomainSetup, task *core.SetupTask, tries int) {
	log := s.logger.With(
		"component", ds.Component.Name,
		"domain", ds.Domain,
		"identifier", ds.Identifier,
		"attempt", tries,
		"task_id", task.ID)

	factory, ok := s.cat.Domain(ds.Component.BaseName, ds.Domain)
	if !ok {
		log.Errorw("Failed to load domain", "error", core.ErrModuleNotFound)
		metrics.SetupAttempts.WithLabelValues("domain", "module_not_found").Inc()
		task.Complete(false)
		return
	}
	mod := factory()

	cfg, err := s.loader.ValidateModuleConfig(ds.Component.BaseName+"."+ds.Domain, mod, ds.Config)
	if err != nil {
		log.Errorw("Error validating domain config", "error", err)
		metrics.SetupAttempts.WithLabelValues("domain", "config_invalid").Inc()
		task.Complete(false)
		return
	}

	if !s.awaitDependencies(ctx, ds, log) {
		metrics.SetupAttempts.WithLabelValues("domain", "dependency_failed").Inc()
		task.Complete(false)
		return
	}

	log.Info("Setting up domain")
	warn := time.AfterFunc(s.loader.opts.SlowSetupWarning, func() {
		s.logger.Warnf("Setup of %s is taking longer than %s", ds, s.loader.opts.SlowSetupWarning)
	})
	start := time.Now()
	res := runSetup(func() core.Result {
		return mod.SetupDomain(ctx, core.NewRuntime(s.reg, ds.Component), cfg, ds.Identifier)
	})
	warn.Stop()
	elapsed := time.Since(start)

	switch res.Status {
	case core.StatusReady:
		metrics.SetupAttempts.WithLabelValues("domain", "ready").Inc()
		metrics.SetupDuration.WithLabelValues("domain").Observe(elapsed.Seconds())
		log.Infow("Setup of domain completed", "duration", elapsed)
		task.Complete(true)
	case core.StatusNotReady:
		delay := backoffDelay(tries, s.opts.RetryInterval, s.opts.RetryIntervalMax)
		metrics.SetupAttempts.WithLabelValues("domain", "not_ready").Inc()
		metrics.SetupRetries.WithLabelValues("domain").Inc()
		log.Errorw("Domain is not ready, retrying",
			"reason", res.Reason,
			"delay", delay)
		select {
		case <-ctx.Done():
			task.Complete(false)
		case <-time.After(delay):
			// Re-invoke on the dedicated single-worker pool so long retry
			// chains neither starve the main pool nor grow the stack.
			if err := s.retryPool.Submit(func() {
				s.runTask(ctx, ds, task, tries+1)
			}); err != nil {
				log.Errorw("Failed to requeue domain retry", "error", err)
				task.Complete(false)
			}
		}
	case core.StatusFailed:
		metrics.SetupAttempts.WithLabelValues("domain", "failed").Inc()
		if res.Err != nil {
			log.Errorw("Setup of domain failed", "error", res.Err, "duration", elapsed)
			// An unexpected failure invalidates the identifier for
			// optional-dependency presence checks.
			s.reg.DropIdentifier(ds.Domain, ds.Identifier)
		} else {
			log.Errorw("Setup of domain failed", "duration", elapsed)
		}
		task.Complete(false)
	default:
		metrics.SetupAttempts.WithLabelValues("domain", "contract_violation").Inc()
		log.Errorw("Setup of domain failed", "error", core.ErrContractViolation)
		task.Complete(false)
	}
}

// awaitDependencies blocks until every required dependency task, and
// every optional dependency task that is present, has completed. It
// returns false if any of them resolved to failure; the dependent is then
// abandoned without running its own setup. This wait is what enforces
// dependency order.
func (s *Scheduler) awaitDependencies(ctx context.Context, ds *core.DomainSetup, log *zap.SugaredLogger) bool {
	var deps []*core.SetupTask
	var failed []core.DependencyRef

	for _, req := range ds.Required {
		t, ok := s.reg.Task(req.Domain, req.Identifier)
		if !ok {
			failed = append(failed, req)
			continue
		}
		deps = append(deps, t)
	}
	for _, opt := range ds.Optional {
		if !s.reg.HasIdentifier(opt.Domain, opt.Identifier) {
			continue
		}
		if t, ok := s.reg.Task(opt.Domain, opt.Identifier); ok {
			deps = append(deps, t)
		}
	}

	if len(deps) > 0 {
		log.Debugw("Waiting for dependencies", "dependencies", taskRefs(deps))
	}

	ticker := time.NewTicker(s.opts.SlowDependencyWarning)
	defer ticker.Stop()

	for _, t := range deps {
	wait:
		for {
			select {
			case <-t.Done():
				if !t.Result() {
					failed = append(failed, t.Ref())
				}
				break wait
			case <-ticker.C:
				log.Warnw("Still waiting for dependencies",
					"outstanding", outstandingRefs(deps))
			case <-ctx.Done():
				return false
			}
		}
	}

	if len(failed) > 0 {
		err := &core.DependencyFailedError{
			Domain:     ds.Domain,
			Identifier: ds.Identifier,
			Failed:     failed,
		}
		log.Errorw("Unable to set up dependencies", "error", err)
		return false
	}
	return true
}

func taskRefs(tasks []*core.SetupTask) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Ref().String())
	}
	return out
}

func outstandingRefs(tasks []*core.SetupTask) []string {
	var out []string
	for _, t := range tasks {
		if !t.Finished() {
			out = append(out, t.Ref().String())
		}
	}
	return out
}
