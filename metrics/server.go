package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// StateFunc reports the monitor's current state name and whether it is
// streaming.
type StateFunc func() (state string, streaming bool)

// Server exposes /metrics and /health.
type Server struct {
	server *http.Server
}

func NewServer(port int, gatherer prometheus.Gatherer, state StateFunc) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/health", HealthHandler(state))

	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start blocks until the server stops. A clean shutdown returns nil.
func (s *Server) Start() error {
	log.Infof("Launching metrics and health endpoint on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server")
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// HealthHandler answers 200 while the stream is subscribed and 503 otherwise.
func HealthHandler(state StateFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		name, streaming := state()
		status, code := "healthy", http.StatusOK
		if !streaming {
			status, code = "degraded", http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":    status,
			"state":     name,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
}
