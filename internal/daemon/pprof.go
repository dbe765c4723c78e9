package daemon

import (
	"log/slog"
	"net/http"

	_ "net/http/pprof" // registers the profiling handlers on DefaultServeMux
)

// startPprof serves the profiling endpoints on addr when one is configured.
// The listener runs for the daemon's lifetime; there is no shutdown hook.
func startPprof(addr string) {
	if addr == "" {
		return
	}
	go func() {
		err := http.ListenAndServe(addr, nil)
		slog.Info("pprof listener stopped", "addr", addr, "err", err)
	}()
}
