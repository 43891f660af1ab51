package service

import (
	"net/http"
)

// ManualTrigger requests a manual update cycle.
type ManualTrigger interface {
	TriggerManual()
}

// NewRouter serves /healthy, /metrics and POST /update.
func NewRouter(metricsHandler http.Handler, trigger ManualTrigger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthy", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("POST /update", func(w http.ResponseWriter, r *http.Request) {
		trigger.TriggerManual()
		w.WriteHeader(http.StatusAccepted)
	})
	return mux
}
