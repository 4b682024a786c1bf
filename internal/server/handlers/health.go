package handlers

import (
	"net/http"
	"time"
)

type healthStatus struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// Health reports overall process health.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthStatus{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Live is the liveness probe; it succeeds whenever the process can serve.
func (a *API) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthStatus{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready is the readiness probe; it checks the store connection.
func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthStatus{
			Status: "unavailable",
			Time:   time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	writeJSON(w, http.StatusOK, healthStatus{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// VersionInfo reports the build version.
func (a *API) VersionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": a.Version})
}
