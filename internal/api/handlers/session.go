package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/dvloznov/asset-tracker/internal/api/middleware"
	"github.com/dvloznov/asset-tracker/internal/app"
	"github.com/dvloznov/asset-tracker/internal/identity"
	"github.com/dvloznov/asset-tracker/internal/models"
)

// SignInProvider exchanges an ID token for a signed-in identity.
type SignInProvider interface {
	SignIn(ctx context.Context, idToken string) (*identity.User, error)
}

// ProfileView is the read side of the app plus sign-out.
type ProfileView interface {
	State() app.State
	Err() error
	Profile() *models.Profile
	User() *identity.User
	ProfilePic() string
	SignInURL(scheme, host, returnTo string) string
	Logout(ctx context.Context) error
}

// SessionHandler handles sign-in, sign-out and the view state.
type SessionHandler struct {
	provider SignInProvider
	app      ProfileView
	validate *validator.Validate
	log      zerolog.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(provider SignInProvider, view ProfileView, validate *validator.Validate, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		provider: provider,
		app:      view,
		validate: validate,
		log:      log,
	}
}

type signInRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

type stateResponse struct {
	State      app.State      `json:"state"`
	User       *identity.User `json:"user,omitempty"`
	ProfilePic string         `json:"profile_pic,omitempty"`
	SignInURL  string         `json:"sign_in_url,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// SignIn handles POST /api/session
func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "id_token is required")
		return
	}

	if _, err := h.provider.SignIn(r.Context(), req.IDToken); err != nil {
		h.log.Warn().Err(err).Msg("Sign-in rejected")
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid ID token")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, h.state(r))
}

// SignOut handles DELETE /api/session
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Logout(r.Context()); err != nil {
		writeError(w, h.log, err, "Failed to sign out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetState handles GET /api/state
func (h *SessionHandler) GetState(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.state(r))
}

// GetProfile handles GET /api/profile
func (h *SessionHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p := h.app.Profile()
	if p == nil {
		writeError(w, h.log, app.ErrProfileNotLoaded, "Profile not loaded")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, p)
}

func (h *SessionHandler) state(r *http.Request) stateResponse {
	resp := stateResponse{State: h.app.State()}
	switch resp.State {
	case app.StateLoggedOut:
		resp.SignInURL = h.app.SignInURL(scheme(r), r.Host, r.URL.Query().Get("return_to"))
	case app.StateProfileFailed:
		h.log.Warn().Err(h.app.Err()).Msg("Profile failed to load")
		resp.Error = "Could not load your profile"
		fallthrough
	default:
		resp.User = h.app.User()
		if resp.User != nil {
			resp.ProfilePic = h.app.ProfilePic()
		}
	}
	return resp
}

func scheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
