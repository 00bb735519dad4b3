package handlers

import (
	"CopyTradeBot/internal/metrics"
	"CopyTradeBot/internal/models"
	"CopyTradeBot/internal/repositories"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// HeartbeatMaxAge is how old the worker heartbeat may get before /healthz
// reports the worker as down.
const HeartbeatMaxAge = time.Minute

type OpsHandler struct {
	settings *repositories.SettingRepository
	pending  *PendingHandler
	logger   *zap.Logger
	now      func() time.Time
}

func NewOpsHandler(settings *repositories.SettingRepository, pending *PendingHandler, logger *zap.Logger) *OpsHandler {
	return &OpsHandler{
		settings: settings,
		pending:  pending,
		logger:   logger.With(zap.String("component", "ops_http")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Router mounts health, metrics and the pending-trade actions.
func (h *OpsHandler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Route("/pending/{id}", func(r chi.Router) {
		r.Post("/approve", h.pending.Approve)
		r.Post("/reject", h.pending.Reject)
	})
	return r
}

type healthResponse struct {
	Status    string `json:"status"`
	Heartbeat string `json:"heartbeat,omitempty"`
	AgeSecs   int64  `json:"age_seconds,omitempty"`
}

func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	value, ok, err := h.settings.Get(r.Context(), models.SettingWorkerHeartbeat)
	if err != nil {
		h.logger.Error("read heartbeat", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "error"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "no_heartbeat"})
		return
	}
	beat, err := time.Parse(time.RFC3339, value)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "bad_heartbeat", Heartbeat: value})
		return
	}

	age := h.now().Sub(beat)
	resp := healthResponse{Status: "ok", Heartbeat: value, AgeSecs: int64(age / time.Second)}
	if age > HeartbeatMaxAge {
		resp.Status = "stale"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Serve runs the ops server until ctx is cancelled, then shuts it down.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ops server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
