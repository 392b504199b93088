package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/provider"
)

func (h *UserHTTPHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", msgInternalError, err))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	if !h.cfg.IdentityStoreConfigured() {
		respondError(w, http.StatusInternalServerError, msgMissingConfig)
		return
	}

	token, err := h.userUsecase.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var storeErr *provider.StoreError
		if errors.As(err, &storeErr) {
			respondError(w, http.StatusUnauthorized, msgInvalidCredentials)
			return
		}

		h.logger.Error().Err(err).Msg("login failed")
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", msgInternalError, err))
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   token.ExpiresIn,
	})
}
