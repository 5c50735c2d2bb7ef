package accounts

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-auth/atlas-auth/internal/platform/httpx"
	"github.com/atlas-auth/atlas-auth/internal/shared"
)

// Handler wires HTTP endpoints for account flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers account routes. Routes behind the guard receive a
// resolved principal in the request context; the recovery routes carry a
// stricter rate limit because they disclose account existence.
func (h *Handler) MountRoutes(r chi.Router, guard, recoveryLimit func(http.Handler) http.Handler) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)

	r.Group(func(rr chi.Router) {
		if recoveryLimit != nil {
			rr.Use(recoveryLimit)
		}
		rr.Post("/verify-email", h.handleVerifyEmail)
		rr.Post("/recover-password", h.handleRecoverPassword)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(guard)
		pr.Get("/me", h.handleMe)
		pr.Put("/profile", h.handleUpdateProfile)
		pr.Put("/change-password", h.handleChangePassword)
	})
}

// MountUserRoutes registers per-user resource routes. The caller guards the
// group with authentication and an ownership policy on the userID parameter.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Get("/profile", h.handleUserProfile)
}

func (h *Handler) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.CurrentUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.respondError(w, "user profile", err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"user": profile})
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Name, email and password are required")
		return
	}

	result, err := h.service.Register(r.Context(), RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		IP:       r.RemoteAddr,
	})
	if err != nil {
		h.respondError(w, "register", err)
		return
	}
	httpx.OK(w, http.StatusCreated, result)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	result, err := h.service.Login(r.Context(), LoginInput{
		Email:    req.Email,
		Password: req.Password,
		IP:       r.RemoteAddr,
	})
	if err != nil {
		h.respondError(w, "login", err)
		return
	}
	httpx.OK(w, http.StatusOK, result)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	profile, err := h.service.CurrentUser(r.Context(), principal.ID)
	if err != nil {
		h.respondError(w, "current user", err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"user": profile})
}

type updateProfileRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req updateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid email address")
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), principal.ID, UpdateProfileInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		h.respondError(w, "update profile", err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"user": profile})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req changePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Current and new password are required")
		return
	}

	err := h.service.ChangePassword(r.Context(), principal.ID, ChangePasswordInput{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		IP:              r.RemoteAddr,
	})
	if err != nil {
		h.respondError(w, "change password", err)
		return
	}
	httpx.Message(w, http.StatusOK, "Password changed successfully")
}

type verifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Email is required")
		return
	}

	if err := h.service.VerifyEmailExists(r.Context(), req.Email); err != nil {
		h.respondError(w, "verify email", err)
		return
	}
	httpx.Message(w, http.StatusOK, "Email exists")
}

type recoverPasswordRequest struct {
	Email           string   `json:"email" validate:"required,email"`
	NewPassword     string   `json:"newPassword" validate:"required"`
	SecurityAnswers []string `json:"securityAnswers,omitempty"`
}

func (h *Handler) handleRecoverPassword(w http.ResponseWriter, r *http.Request) {
	var req recoverPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Email and new password are required")
		return
	}

	err := h.service.RecoverPassword(r.Context(), RecoverInput{
		Email:           req.Email,
		NewPassword:     req.NewPassword,
		SecurityAnswers: req.SecurityAnswers,
		IP:              r.RemoteAddr,
	})
	if err != nil {
		h.respondError(w, "recover password", err)
		return
	}
	httpx.Message(w, http.StatusOK, "Password updated successfully")
}

// respondError maps service errors onto the response envelope, logging the
// cause for anything outside the known taxonomy.
func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	known := errors.Is(err, httpx.ErrValidation) ||
		errors.Is(err, httpx.ErrUnauthorized) ||
		errors.Is(err, httpx.ErrForbidden) ||
		errors.Is(err, httpx.ErrNotFound) ||
		errors.Is(err, httpx.ErrDuplicate)
	if !known && h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
