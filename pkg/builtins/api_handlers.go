package builtins

import (
	"context"
	"net/http"
	"time"

	"github.com/arvindjonn09/dharma-mini/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthTimeout = 2 * time.Second

func (h *Handler) handleAdminSessionsGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := h.sessions.ActiveSessions(r.Context())
		if err != nil {
			h.respondFlowError(w, r, err)
			return
		}
		api.RespondJSONAndLog(w, h.log, http.StatusOK, api.SessionsResponse{
			Sessions: sessions,
			Count:    len(sessions),
		})
	}
}

func (h *Handler) handleAdminSessionsPrunePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := h.sessions.Prune(r.Context())
		if err != nil {
			h.respondFlowError(w, r, err)
			return
		}
		h.log.Info("expired sessions pruned", "removed", removed, "request_id", requestContext(r).RequestID)
		api.RespondJSONAndLog(w, h.log, http.StatusOK, api.PruneResponse{Removed: removed})
	}
}

func (h *Handler) handleHealthzGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp := api.HealthResponse{Status: "ok", Backend: h.health.Backend()}
		if err := h.health.Ping(ctx); err != nil {
			h.log.Warn("health check failed", "backend", resp.Backend, "err", err)
			resp.Status = "unavailable"
			api.RespondJSONAndLog(w, h.log, http.StatusServiceUnavailable, resp)
			return
		}
		api.RespondJSONAndLog(w, h.log, http.StatusOK, resp)
	}
}

func (h *Handler) handleMetricsGet(g prometheus.Gatherer) http.HandlerFunc {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{}).ServeHTTP
}
