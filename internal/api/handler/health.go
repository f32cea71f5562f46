package handler

import (
	"net/http"

	"github.com/wanderio/concierge/internal/agent"
	"github.com/wanderio/concierge/internal/api/response"
	"github.com/wanderio/concierge/internal/provider"
	"github.com/wanderio/concierge/internal/repository/postgres"
)

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// ReadyCheck returns readiness status including database connectivity and
// required provider configuration
func ReadyCheck(db *postgres.DB, providers *provider.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				response.Error(w, http.StatusServiceUnavailable, "database not ready")
				return
			}
		}
		if err := providers.Readiness(); err != nil {
			response.Error(w, http.StatusServiceUnavailable, err.Error())
			return
		}

		response.OK(w, map[string]string{
			"status": "ready",
		})
	}
}

// ListCapabilities returns what the agent can do and which optional
// providers are live
func ListCapabilities(providers *provider.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		optional := map[string]bool{
			"weather":    providers.Weather != nil && providers.Weather.IsConfigured(),
			"navigation": providers.Navigation != nil && providers.Navigation.IsConfigured(),
			"whatsapp":   providers.Transport != nil && providers.Transport.IsConfigured(),
		}

		response.OK(w, map[string]any{
			"capabilities": agent.Capabilities(),
			"providers":    optional,
		})
	}
}
