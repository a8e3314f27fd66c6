package circuit

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewDebugServer builds the ambient operational surface a running
// circuit exposes: /healthz, /status, /metrics, and /debug/pprof — never
// business routes, which have no meaning for an embedded dataflow
// engine. Grounded on the teacher's auxiliary router in
// service/core.go, trimmed to only the ambient concerns.
func NewDebugServer(r *Runtime, registry *prometheus.Registry) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		state := r.State()
		w.Header().Set("Content-Type", "application/json")
		if state == Faulted {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]string{"state": state.String()})
	})

	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.PathPrefix("/").HandlerFunc(pprof.Index)

	router.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "ok")
	})

	return router
}
