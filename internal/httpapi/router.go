package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"callIndexer/internal/indexer"
	"callIndexer/internal/metrics"
)

// StatusFunc produces the current indexing status.
type StatusFunc func(ctx context.Context) (indexer.Status, error)

type Deps struct {
	Status StatusFunc
	Logger *zap.Logger
}

// NewRouter serves the operational endpoints: /healthz, /metrics and /status.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		if deps.Status == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "status unavailable"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		st, err := deps.Status(ctx)
		if err != nil {
			logger.Warn("status query failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "status query failed"})
			return
		}
		writeJSON(w, http.StatusOK, st)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
