package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Checker probes the service's backing dependencies.
type Checker interface {
	PingDB(ctx context.Context) error
	PingRedis(ctx context.Context) error
}

// Handler exposes liveness and readiness endpoints.
type Handler struct {
	Checker Checker
	Timeout time.Duration
}

// Live reports process liveness.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Checker == nil {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	status := map[string]string{"db": "ok", "redis": "ok"}
	if err := h.Checker.PingDB(ctx); err != nil {
		status["db"] = err.Error()
	}
	if err := h.Checker.PingRedis(ctx); err != nil {
		status["redis"] = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	if status["db"] != "ok" || status["redis"] != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func (h Handler) timeout() time.Duration {
	if h.Timeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.Timeout
}
