package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServeDiagnostics starts a stdlib HTTP server exposing /healthz, /metrics,
// and /debug/state, and returns a shutdown function. It is a no-op
// (returning a nil shutdown func) if addr is empty.
func (p *Plugin) ServeDiagnostics(addr string) (func(context.Context) error, error) {
	if addr == "" {
		return nil, nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/state", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(p.store.Stats()); err != nil {
			http.Error(w, fmt.Sprintf("encode state: %s", err), http.StatusInternalServerError)
		}
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			p.logger.Error("diagnostics server failed", "error", err)
		}
	}()

	p.logger.Info("diagnostics listening", "addr", addr)
	return srv.Shutdown, nil
}
