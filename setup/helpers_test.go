package setup

import (
	"context"

	"argus/core"
)

// funcModule adapts a closure to the component module contract.
type funcModule struct {
	setup func(ctx context.Context, rt *core.Runtime, cfg map[string]interface{}) core.Result
}

func (m funcModule) Setup(ctx context.Context, rt *core.Runtime, cfg map[string]interface{}) core.Result {
	if m.setup == nil {
		return core.Ready()
	}
	return m.setup(ctx, rt, cfg)
}

// schemaModule is a funcModule that also declares a JSON schema.
type schemaModule struct {
	funcModule
	schema []byte
}

func (m schemaModule) ConfigSchema() []byte {
	return m.schema
}

// funcDomain adapts a closure to the domain module contract.
type funcDomain struct {
	setup func(ctx context.Context, rt *core.Runtime, cfg map[string]interface{}, identifier string) core.Result
}

func (d funcDomain) SetupDomain(ctx context.Context, rt *core.Runtime, cfg map[string]interface{}, identifier string) core.Result {
	if d.setup == nil {
		return core.Ready()
	}
	return d.setup(ctx, rt, cfg, identifier)
}
