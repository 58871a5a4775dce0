package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"chargerlink/backend/services/ocpp-server/internal/auth"
	"chargerlink/backend/services/ocpp-server/internal/commands"
	"chargerlink/backend/services/ocpp-server/internal/service"
)

// Charger is the charger surface the API reads and commands.
type Charger interface {
	State() service.ChargerState
	IsConnected() bool
	RequestStart(ctx context.Context) bool
	RequestStop(ctx context.Context) bool
	RequestRefresh(ctx context.Context)
}

func healthHandler(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func stateHandler(charger Charger) httprouter.Handle {
	type response struct {
		Connected bool                 `json:"connected"`
		State     service.ChargerState `json:"state"`
	}
	return func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, response{
			Connected: charger.IsConnected(),
			State:     charger.State(),
		})
	}
}

func commandHandler(charger Charger, logger *zap.Logger) httprouter.Handle {
	type response struct {
		Accepted bool `json:"accepted"`
	}
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		action := params.ByName("action")
		accepted, err := commands.Execute(r.Context(), charger, action)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		logger.Info("operator command", zap.String("action", action), zap.Bool("accepted", accepted))
		writeJSON(w, http.StatusOK, response{Accepted: accepted})
	}
}

func tokenHandler(tokens *auth.TokenService, password *auth.PasswordChecker, logger *zap.Logger) httprouter.Handle {
	type request struct {
		Password string `json:"password"`
	}
	type response struct {
		Token     string `json:"token"`
		TokenType string `json:"token_type"`
	}

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if tokens == nil || password == nil || !password.Enabled() {
			writeError(w, http.StatusNotFound, "login is not configured")
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Password == "" {
			writeError(w, http.StatusBadRequest, "password is required")
			return
		}

		if err := password.Check(req.Password); err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			logger.Error("password check failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to login")
			return
		}

		token, err := tokens.GenerateToken("operator")
		if err != nil {
			logger.Error("token generation failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to login")
			return
		}

		writeJSON(w, http.StatusOK, response{
			Token:     token,
			TokenType: "Bearer",
		})
	}
}
