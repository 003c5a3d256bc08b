package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avialu/dixit-sub000/internal/auth"
	"github.com/avialu/dixit-sub000/internal/engine"
	"github.com/avialu/dixit-sub000/internal/hub"
	"github.com/avialu/dixit-sub000/internal/lobby"
	"github.com/avialu/dixit-sub000/internal/types"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// statusFor maps a session or transport error to an HTTP status.
func statusFor(err error) int {
	switch engine.KindOf(err) {
	case engine.KindValidation:
		return http.StatusBadRequest
	case engine.KindPermission:
		return http.StatusForbidden
	case engine.KindNotFound:
		return http.StatusNotFound
	case engine.KindGameState, engine.KindConflict:
		return http.StatusConflict
	}
	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken), errors.Is(err, auth.ErrWrongRoom):
		return http.StatusUnauthorized
	case errors.Is(err, lobby.ErrClosed), errors.Is(err, hub.ErrStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := types.NewErrorBody(err)
	if status == http.StatusUnauthorized {
		body = &types.ErrorBody{Code: "UNAUTHORIZED", Message: err.Error()}
	}
	writeJSON(w, status, body)
}
