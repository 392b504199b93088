package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	itlocale "github.com/go-playground/locales/it"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	ittranslations "github.com/go-playground/validator/v10/translations/it"
	"github.com/rs/zerolog"

	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/config"
	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/usecase"
)

// Caller-facing messages. These are fixed literals of the portal API, not a
// localization surface.
const (
	msgMissingFields       = "Campi obbligatori mancanti"
	msgMissingConfig       = "Configurazione server mancante"
	msgMissingToken        = "Token di autorizzazione mancante"
	msgInvalidToken        = "Token non valido"
	msgRoleCheckFailed     = "Errore verifica permessi"
	msgAccessDenied        = "Accesso negato: solo gli admin possono creare utenti"
	msgUserNotFound        = "Utente non trovato"
	msgUserCreateFailed    = "Errore creazione utente"
	msgProfileCreateFailed = "Errore creazione profilo"
	msgRoleAssignFailed    = "Errore assegnazione ruolo"
	msgInvalidCredentials  = "Credenziali non valide"
	msgMethodNotAllowed    = "Metodo non consentito"
	msgInternalError       = "Errore interno"
)

// UserHTTPHandler serves the portal user-management API.
type UserHTTPHandler struct {
	userUsecase usecase.UserUsecase
	cfg         *config.UserServiceConfig
	logger      *zerolog.Logger
	validate    *validator.Validate
	translator  ut.Translator
}

// NewUserHTTPHandler creates a new UserHTTPHandler instance.
func NewUserHTTPHandler(
	userUsecase usecase.UserUsecase,
	cfg *config.UserServiceConfig,
	logger *zerolog.Logger,
) *UserHTTPHandler {
	validate := validator.New(validator.WithRequiredStructEnabled())

	// Validation details are logged in Italian; the wire message stays the
	// fixed missing-fields literal.
	locale := itlocale.New()
	uni := ut.New(locale, locale)
	translator, _ := uni.GetTranslator("it")
	_ = ittranslations.RegisterDefaultTranslations(validate, translator)

	return &UserHTTPHandler{
		userUsecase: userUsecase,
		cfg:         cfg,
		logger:      logger,
		validate:    validate,
		translator:  translator,
	}
}

// Router builds the chi router for the service.
func (h *UserHTTPHandler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(h.recoverer)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Post("/api/auth/login", h.handleLogin)
	r.Post("/api/users", h.handleCreateUser)
	r.Get("/api/users", h.handleListUsers)
	r.Get("/api/users/{id}", h.handleGetUser)
	r.Patch("/api/users/{id}", h.handleUpdateUserProfile)
	r.Patch("/api/users/{id}/role", h.handleUpdateUserRole)
	r.Delete("/api/users/{id}", h.handleDeleteUser)

	return r
}

// corsMiddleware emits the portal's CORS headers on every response and
// answers preflight requests with an empty 200.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// recoverer turns panics into the portal's internal-error response instead
// of letting net/http reset the connection.
func (h *UserHTTPHandler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error().Any("panic", rec).Str("path", r.URL.Path).Msg("panic recovered")
				respondError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", msgInternalError, rec))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the bearer credential from the request. ok is false
// only when the header is absent; a present header with an empty credential
// yields ("", true) so the identity store gets to reject it.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	return strings.TrimPrefix(header, "Bearer "), true
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// translateValidationErrors renders validator failures in Italian for logs.
func (h *UserHTTPHandler) translateValidationErrors(err error) []string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		messages = append(messages, fieldError.Translate(h.translator))
	}

	return messages
}
