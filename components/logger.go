package components

import (
	"context"
	"fmt"

	"argus/core"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// loggerComponent adjusts the process log level from config. It runs in
// the first tier so later component setups log at the configured level.
type loggerComponent struct{}

var loggerSchema = []byte(`{
	"type": "object",
	"properties": {
		"level": {
			"type": "string",
			"enum": ["debug", "info", "warn", "error"]
		}
	},
	"additionalProperties": false
}`)

// ConfigSchema implements core.SchemaProvider.
func (c *loggerComponent) ConfigSchema() []byte {
	return loggerSchema
}

// Setup implements core.Module.
func (c *loggerComponent) Setup(_ context.Context, rt *core.Runtime, config map[string]interface{}) core.Result {
	level, ok := config["level"].(string)
	if !ok || level == "" {
		return core.Ready()
	}

	atomic, ok := rt.Data(DataKeyLogLevel).(zap.AtomicLevel)
	if !ok {
		return core.Failed(fmt.Errorf("log level handle not available"))
	}

	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(level)); err != nil {
		return core.Failed(fmt.Errorf("parsing log level %q: %w", level, err))
	}
	atomic.SetLevel(zl)
	return core.Ready()
}
