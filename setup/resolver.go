package setup

import (
	"argus/core"
	"argus/metrics"

	"go.uber.org/zap"
)

// ResolveDependencies cross-checks every pending domain's required
// dependencies against what was actually registered and prunes the
// unsatisfiable entries. Pruning is permanent for the run.
//
// Existence is based on declaration: a dependency that is pending counts
// as resolved even if its setup later fails; that failure propagates when
// the dependent waits on its task.
func ResolveDependencies(reg *core.Registry, logger *zap.SugaredLogger) []error {
	// First pass: record the set of identifiers that will exist, per
	// domain, from every pending entry's own identifier.
	for _, ds := range reg.PendingDomains() {
		reg.RegisterIdentifier(ds.Domain, ds.Identifier)
	}

	// Second pass: prune entries whose required dependencies are absent.
	var errs []error
	for _, ds := range reg.PendingDomains() {
		for _, req := range ds.Required {
			if reg.HasIdentifier(req.Domain, req.Identifier) {
				continue
			}
			err := &core.DependencyUnsatisfiedError{
				Component:  ds.Component.Name,
				Domain:     ds.Domain,
				Identifier: ds.Identifier,
				Missing:    req,
			}
			logger.Errorw("Pruning domain with unsatisfied dependency",
				"component", ds.Component.Name,
				"domain", ds.Domain,
				"identifier", ds.Identifier,
				"missing", req.String())
			ds.Component.RemoveDomain(ds)
			reg.RemovePendingDomain(ds.Domain, ds.Identifier)
			metrics.DomainsPruned.Inc()
			errs = append(errs, err)
			break
		}
	}
	return errs
}
