// Package components holds the built-in components of the platform:
// the logging component, the core event bus and the default webserver.
// They register themselves into a catalog at startup; everything else is
// expected to come from external component packages doing the same.
package components

import "argus/core"

// Shared-resource keys under which built-ins publish their services.
const (
	// DataKeyLogLevel is set by bootstrap to the zap.AtomicLevel the
	// logger component adjusts.
	DataKeyLogLevel = "log_level"
	// DataKeyBus is set by the bus component to the *Bus instance.
	DataKeyBus = "bus"
	// DataKeyWebserver is set by the webserver component to the
	// *http.Server instance, for shutdown.
	DataKeyWebserver = "webserver"
)

// RegisterBuiltins registers all built-in component factories.
func RegisterBuiltins(cat *core.Catalog) {
	cat.RegisterComponent("logger", func() core.Module { return &loggerComponent{} })
	cat.RegisterComponent("bus", func() core.Module { return &busComponent{} })
	cat.RegisterComponent("webserver", func() core.Module { return &webserverComponent{} })
}
