package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
)

type SessionHandler struct {
	timeout time.Duration
}

func NewSessionHandler(timeout time.Duration) *SessionHandler {
	return &SessionHandler{timeout: timeout}
}

type SessionDTO struct {
	Authenticated bool         `json:"authenticated"`
	Loading       bool         `json:"loading"`
	User          *domain.User `json:"user,omitempty"`
	Staff         bool         `json:"staff"`
}

type ForgotPasswordRequestDTO struct {
	Email string `json:"email"`
}

func sessionDTO(s *session.Store) SessionDTO {
	dto := SessionDTO{Loading: s.Loading()}
	if id := s.Identity(); id != nil {
		u := id.User
		dto.Authenticated = true
		dto.User = &u
		dto.Staff = u.Role.IsStaff()
	}
	return dto
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	respond(w, v, http.StatusOK, sessionDTO(v.Session))
}

// Login serves both the storefront and the console login forms.
func (h *SessionHandler) Login(admin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		v := visitorFrom(r.Context())

		var req session.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		if req.Email == "" || req.Password == "" {
			respondError(w, http.StatusBadRequest, "invalid_argument", "email and password are required")
			return
		}

		if _, err := v.Session.Login(ctx, req, admin); err != nil {
			handleError(w, v, err)
			return
		}
		respond(w, v, http.StatusOK, sessionDTO(v.Session))
	}
}

func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_argument", "email and password are required")
		return
	}

	if _, err := v.Session.Register(ctx, req); err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusCreated, sessionDTO(v.Session))
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	v.Session.Logout(ctx)
	respond(w, v, http.StatusOK, sessionDTO(v.Session))
}

func (h *SessionHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	var req api.DetailsUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if _, err := v.Session.UpdateDetails(ctx, req); err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, sessionDTO(v.Session))
}

func (h *SessionHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	var req api.PasswordUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := v.Session.UpdatePassword(ctx, req); err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, sessionDTO(v.Session))
}

func (h *SessionHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	var req ForgotPasswordRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" {
		respondError(w, http.StatusBadRequest, "invalid_argument", "email is required")
		return
	}

	if err := v.Session.ForgotPassword(ctx, req.Email); err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusAccepted, nil)
}

func (h *SessionHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	var req api.PasswordReset
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := v.Session.ResetPassword(ctx, req); err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, nil)
}
