package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/repository"
	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/usecase"
)

// handleCreateUser is the user-provisioning endpoint: validate, verify the
// caller is an admin, then run the identity/profile/role saga.
func (h *UserHTTPHandler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", msgInternalError, err))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.logger.Warn().
			Strs("details", h.translateValidationErrors(err)).
			Msg("provisioning request rejected")
		respondError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	if !h.cfg.IdentityStoreConfigured() {
		h.logger.Error().Msg("identity store credentials are not configured")
		respondError(w, http.StatusInternalServerError, msgMissingConfig)
		return
	}

	token, ok := bearerToken(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, msgMissingToken)
		return
	}

	caller, err := h.userUsecase.AuthorizeAdmin(r.Context(), token)
	if err != nil {
		h.respondAuthorizeError(w, err)
		return
	}

	created, err := h.userUsecase.CreateUser(r.Context(), usecase.CreateUserParams{
		Email:                       req.Email,
		Password:                    req.Password,
		FullName:                    req.FullName,
		Phone:                       req.Phone,
		Role:                        req.Role,
		DefaultCommissionPercentage: req.DefaultCommissionPercentage,
	})
	if err != nil {
		h.respondProvisioningError(w, err)
		return
	}

	h.logger.Info().
		Str("user_id", created.ID).
		Str("created_by", caller.ID).
		Str("role", req.Role).
		Msg("user provisioned")

	respondJSON(w, http.StatusOK, CreateUserResponse{
		Success: true,
		User: CreatedUserPayload{
			ID:       created.ID,
			Email:    created.Email,
			FullName: created.FullName,
		},
	})
}

func (h *UserHTTPHandler) respondAuthorizeError(w http.ResponseWriter, err error) {
	uerr, ok := usecase.AsError(err)
	if !ok {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", msgInternalError, err))
		return
	}

	switch uerr.Kind {
	case usecase.KindAuthentication:
		respondError(w, http.StatusUnauthorized, msgInvalidToken)
	case usecase.KindAuthorizationInfra:
		h.logger.Error().Err(uerr.Err).Msg("role lookup failed")
		respondError(w, http.StatusInternalServerError, msgRoleCheckFailed)
	case usecase.KindAuthorization:
		respondError(w, http.StatusForbidden, msgAccessDenied)
	default:
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", msgInternalError, err))
	}
}

func (h *UserHTTPHandler) respondProvisioningError(w http.ResponseWriter, err error) {
	uerr, ok := usecase.AsError(err)
	if !ok || uerr.Kind != usecase.KindProvisioning {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", msgInternalError, err))
		return
	}

	if uerr.RollbackErr != nil {
		h.logger.Error().
			Err(uerr.RollbackErr).
			Str("step", string(uerr.Step)).
			Msg("provisioning rollback incomplete, manual cleanup required")
	}

	switch uerr.Step {
	case usecase.StepIdentity:
		if errors.Is(uerr.Err, usecase.ErrNoIdentityReturned) {
			respondError(w, http.StatusInternalServerError, msgUserCreateFailed)
			return
		}
		respondError(w, http.StatusBadRequest, fmt.Sprintf("%s: %v", msgUserCreateFailed, uerr.Err))
	case usecase.StepProfile:
		respondError(w, http.StatusBadRequest, fmt.Sprintf("%s: %v", msgProfileCreateFailed, uerr.Err))
	case usecase.StepRole:
		respondError(w, http.StatusBadRequest, fmt.Sprintf("%s: %v", msgRoleAssignFailed, uerr.Err))
	default:
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", msgInternalError, err))
	}
}

func (h *UserHTTPHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, msgMissingToken)
		return
	}

	if _, err := h.userUsecase.AuthorizeAdmin(r.Context(), token); err != nil {
		h.respondAuthorizeError(w, err)
		return
	}

	params := usecase.ListUsersParams{}
	if role := r.URL.Query().Get("role"); role != "" {
		params.Role = &role
	}
	if search := r.URL.Query().Get("search"); search != "" {
		params.Search = &search
	}
	if limit, err := strconv.ParseUint(r.URL.Query().Get("limit"), 10, 64); err == nil {
		params.Limit = limit
	}
	if offset, err := strconv.ParseUint(r.URL.Query().Get("offset"), 10, 64); err == nil {
		params.Offset = offset
	}

	details, err := h.userUsecase.ListUsers(r.Context(), params)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list users")
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", msgInternalError, err))
		return
	}

	users := make([]UserDetailsPayload, 0, len(details))
	for _, detail := range details {
		users = append(users, UserDetailsPayload{
			ID:                          detail.Profile.ID,
			Email:                       detail.Profile.Email,
			FullName:                    detail.Profile.FullName,
			Phone:                       detail.Profile.Phone,
			Role:                        detail.Role,
			DefaultCommissionPercentage: detail.Profile.DefaultCommissionPercentage,
		})
	}

	respondJSON(w, http.StatusOK, ListUsersResponse{Users: users})
}

// handleGetUser returns a single joined profile+role record.
func (h *UserHTTPHandler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, msgMissingToken)
		return
	}

	if _, err := h.userUsecase.AuthorizeAdmin(r.Context(), token); err != nil {
		h.respondAuthorizeError(w, err)
		return
	}

	userID := chi.URLParam(r, "id")
	detail, err := h.userUsecase.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondError(w, http.StatusNotFound, msgUserNotFound)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load user")
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", msgInternalError, err))
		return
	}

	respondJSON(w, http.StatusOK, UserDetailsPayload{
		ID:                          detail.Profile.ID,
		Email:                       detail.Profile.Email,
		FullName:                    detail.Profile.FullName,
		Phone:                       detail.Profile.Phone,
		Role:                        detail.Role,
		DefaultCommissionPercentage: detail.Profile.DefaultCommissionPercentage,
	})
}

// handleUpdateUserProfile applies a partial update to a profile. At least one
// field must be present; email is immutable because it mirrors the identity
// store.
func (h *UserHTTPHandler) handleUpdateUserProfile(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, msgMissingToken)
		return
	}

	if _, err := h.userUsecase.AuthorizeAdmin(r.Context(), token); err != nil {
		h.respondAuthorizeError(w, err)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", msgInternalError, err))
		return
	}

	if req.FullName == nil && req.Phone == nil && req.DefaultCommissionPercentage == nil {
		respondError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	userID := chi.URLParam(r, "id")
	profile, err := h.userUsecase.UpdateUserProfile(r.Context(), userID, repository.UpdateProfileParams{
		FullName:                    req.FullName,
		Phone:                       req.Phone,
		DefaultCommissionPercentage: req.DefaultCommissionPercentage,
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondError(w, http.StatusNotFound, msgUserNotFound)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to update profile")
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", msgInternalError, err))
		return
	}

	respondJSON(w, http.StatusOK, UserDetailsPayload{
		ID:                          profile.ID,
		Email:                       profile.Email,
		FullName:                    profile.FullName,
		Phone:                       profile.Phone,
		DefaultCommissionPercentage: profile.DefaultCommissionPercentage,
	})
}

func (h *UserHTTPHandler) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, msgMissingToken)
		return
	}

	if _, err := h.userUsecase.AuthorizeAdmin(r.Context(), token); err != nil {
		h.respondAuthorizeError(w, err)
		return
	}

	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", msgInternalError, err))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	userID := chi.URLParam(r, "id")
	if err := h.userUsecase.UpdateUserRole(r.Context(), userID, req.Role); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to update role")
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", msgInternalError, err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *UserHTTPHandler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, msgMissingToken)
		return
	}

	caller, err := h.userUsecase.AuthorizeAdmin(r.Context(), token)
	if err != nil {
		h.respondAuthorizeError(w, err)
		return
	}

	userID := chi.URLParam(r, "id")
	if err := h.userUsecase.DeleteUser(r.Context(), userID); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to delete user")
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", msgInternalError, err))
		return
	}

	h.logger.Info().Str("user_id", userID).Str("deleted_by", caller.ID).Msg("user deprovisioned")

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
