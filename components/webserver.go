package components

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"argus/core"
	"argus/util/goroutine"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// webserverConfig is the typed config of the webserver component.
type webserverConfig struct {
	Host string `validate:"omitempty,hostname|ip"`
	Port int    `validate:"min=1,max=65535"`
}

// webserverComponent serves /metrics and /healthz. It is a default
// component, always set up whether configured or not.
type webserverComponent struct{}

var webserverSchema = []byte(`{
	"type": "object",
	"properties": {
		"host": {"type": "string"},
		"port": {"type": "integer"}
	},
	"additionalProperties": false
}`)

// ConfigSchema implements core.SchemaProvider.
func (c *webserverComponent) ConfigSchema() []byte {
	return webserverSchema
}

// ValidateConfig implements core.ConfigValidator. The schema checks the
// shape; this checks the values.
func (c *webserverComponent) ValidateConfig(config map[string]interface{}) (map[string]interface{}, error) {
	cfg := decodeWebserverConfig(config)
	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}
	return config, nil
}

// Setup implements core.Module. An address that cannot be bound yet is a
// not-ready condition, not a terminal failure: the port may be held by a
// previous instance still shutting down.
func (c *webserverComponent) Setup(_ context.Context, rt *core.Runtime, config map[string]interface{}) core.Result {
	cfg := decodeWebserverConfig(config)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return core.NotReady(fmt.Sprintf("address %s not available: %v", addr, err))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		defer goroutine.Recover("webserver", nil)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			// The server is already recorded as loaded; a later serve
			// error is surfaced via logs only.
			zap.S().Errorw("Webserver stopped unexpectedly", "error", err)
		}
	}()

	rt.SetData(DataKeyWebserver, srv)
	return core.Ready()
}

// ShutdownWebserver stops the webserver published in the registry, if
// one is running.
func ShutdownWebserver(ctx context.Context, reg *core.Registry) error {
	srv, ok := reg.Data(DataKeyWebserver).(*http.Server)
	if !ok {
		return nil
	}
	return srv.Shutdown(ctx)
}

func decodeWebserverConfig(config map[string]interface{}) webserverConfig {
	cfg := webserverConfig{Host: "0.0.0.0", Port: 8889}
	if v, ok := config["host"].(string); ok && v != "" {
		cfg.Host = v
	}
	switch v := config["port"].(type) {
	case int:
		cfg.Port = v
	case float64:
		cfg.Port = int(v)
	}
	return cfg
}
