package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"fittrack/internal/auth"
	"fittrack/internal/oauth"
)

// OAuthHandler serves the provider connection flow
type OAuthHandler struct {
	manager *oauth.Manager
	logger  *slog.Logger
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(manager *oauth.Manager) *OAuthHandler {
	return &OAuthHandler{manager: manager, logger: slog.Default()}
}

// Connect redirects the authenticated user to the provider authorize URL
func (h *OAuthHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	redirectURI := r.URL.Query().Get("redirect_uri")
	if redirectURI == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		redirectURI = fmt.Sprintf("%s://%s/connect/strava/callback", scheme, r.Host)
	}

	authURL, _, err := h.manager.AuthURL(userID, redirectURI)
	if err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback completes the provider connection flow
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		h.logger.Warn("OAuth callback returned error", "error", errParam)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errParam})
		return
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing code or state"})
		return
	}

	userID, err := h.manager.HandleCallback(r.Context(), code, state)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "connected",
		"user_id": userID,
	})
}
