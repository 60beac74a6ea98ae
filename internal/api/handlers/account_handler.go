package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/turu-api/internal/metrics"
	"github.com/isdelr/turu-api/internal/models"
	"github.com/isdelr/turu-api/internal/services"
	"github.com/rs/zerolog/log"
)

// AccountHandler handles HTTP requests for account management.
type AccountHandler struct {
	service services.AccountServiceProvider
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(service services.AccountServiceProvider) *AccountHandler {
	return &AccountHandler{service: service}
}

// LoginRequest defines the structure for login requests.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest defines the structure for registration requests.
type RegisterRequest struct {
	Username  string  `json:"username" validate:"required"`
	Password  string  `json:"password" validate:"required"`
	Sex       *string `json:"sex"`
	BirthDate string  `json:"birth_date"`
}

type UpdateProfileRequest struct {
	Username string `json:"username" validate:"required"`
}

type UpdatePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// LoginResponse carries the sanitized account on a successful login.
type LoginResponse struct {
	Message string               `json:"message"`
	User    models.PublicAccount `json:"user"`
}

// Login handles credential verification.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req, "Username and password are required") {
		return
	}

	acc, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			metrics.RecordLogin("invalid")
			// One log line for both unknown users and wrong passwords.
			log.Info().Str("username", req.Username).Msg("Login rejected")
			respondWithError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		metrics.RecordLogin("error")
		log.Error().Err(err).Msg("Login failed")
		respondWithError(w, http.StatusInternalServerError, "Login failed due to an unexpected error")
		return
	}

	metrics.RecordLogin("success")
	log.Info().Int64("account_id", acc.ID).Msg("Login successful")
	writeJSON(w, http.StatusOK, LoginResponse{Message: "Login successful", User: acc.Public()})
}

// Register handles new account registration.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req, "Username and password are required") {
		return
	}

	var birthDate models.Date
	if req.BirthDate != "" {
		parsed, err := models.ParseDate(req.BirthDate)
		if err != nil {
			// Lenient: an unparseable date is dropped, the registration proceeds.
			log.Warn().Err(err).Str("birth_date", req.BirthDate).Msg("Ignoring unparseable birth date")
		} else {
			birthDate = parsed
		}
	}
	sex := req.Sex
	if sex != nil && *sex == "" {
		sex = nil
	}

	acc, err := h.service.Register(r.Context(), req.Username, req.Password, sex, birthDate)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateUsername):
			respondWithError(w, http.StatusConflict, "Username already exists")
		case errors.Is(err, services.ErrValidation):
			respondWithError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("Failed to register account")
			respondWithError(w, http.StatusInternalServerError, "Registration failed due to an unexpected error")
		}
		return
	}

	metrics.RecordRegistration()
	log.Info().Int64("account_id", acc.ID).Msg("Account registered")
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Register successful"})
}

// UpdateProfile handles changing an account's username.
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !decodeAndValidate(w, r, &req, "Username is required") {
		return
	}

	if _, err := h.service.UpdateUsername(r.Context(), id, req.Username); err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, services.ErrDuplicateUsername):
			respondWithError(w, http.StatusConflict, "Username already exists")
		case errors.Is(err, services.ErrValidation):
			respondWithError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Int64("account_id", id).Msg("Failed to update profile")
			respondWithError(w, http.StatusInternalServerError, "Error updating profile")
		}
		return
	}

	log.Info().Int64("account_id", id).Msg("Profile updated")
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Profile updated successfully"})
}

// UpdatePassword handles changing an account's password.
func (h *AccountHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	var req UpdatePasswordRequest
	if !decodeAndValidate(w, r, &req, "Old and new passwords are required") {
		return
	}

	if err := h.service.UpdatePassword(r.Context(), id, req.OldPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, services.ErrInvalidCredentials):
			respondWithError(w, http.StatusUnauthorized, "Old password is incorrect")
		case errors.Is(err, services.ErrValidation):
			respondWithError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Int64("account_id", id).Msg("Failed to change password")
			respondWithError(w, http.StatusInternalServerError, "Error updating password")
		}
		return
	}

	log.Info().Int64("account_id", id).Msg("Password updated")
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password updated successfully"})
}

// decodeAndValidate writes a 400 and returns false when the body is not valid
// JSON or misses a required field.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any, missingMsg string) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if details := validateRequest(dst); details != nil {
		respondWithValidationError(w, missingMsg, details)
		return false
	}
	return true
}

func accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return 0, false
	}
	return id, true
}
