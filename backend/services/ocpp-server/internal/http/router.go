package httpserver

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"chargerlink/backend/services/ocpp-server/internal/auth"
	"chargerlink/backend/services/ocpp-server/internal/metrics"
)

// Deps aggregates what the operator API needs. Tokens nil disables authentication.
type Deps struct {
	Charger  Charger
	Tokens   *auth.TokenService
	Password *auth.PasswordChecker
	Logger   *zap.Logger
}

// NewRouter wires all HTTP routes.
func NewRouter(deps Deps) http.Handler {
	router := httprouter.New()

	protect := func(h httprouter.Handle) httprouter.Handle {
		if deps.Tokens == nil {
			return h
		}
		return requireToken(deps.Tokens, h)
	}

	router.GET("/health", healthHandler)
	router.Handler(http.MethodGet, "/metrics", metrics.Handler())
	router.POST("/api/auth/token", tokenHandler(deps.Tokens, deps.Password, deps.Logger))
	router.GET("/api/state", protect(stateHandler(deps.Charger)))
	router.POST("/api/commands/:action", protect(commandHandler(deps.Charger, deps.Logger)))

	return router
}
