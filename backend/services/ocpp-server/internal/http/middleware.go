package httpserver

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"chargerlink/backend/services/ocpp-server/internal/auth"
)

// requireToken validates the bearer token before calling next.
func requireToken(tokens *auth.TokenService, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}
		if _, err := tokens.ValidateToken(parts[1]); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r, params)
	}
}
