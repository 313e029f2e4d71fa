package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fittrack/internal/apperror"
	"fittrack/internal/database"
	"fittrack/internal/strava"
)

const providerName = "strava"

// Manager handles the OAuth 2.0 flow with the activity provider and keeps
// stored credentials usable
type Manager struct {
	db     *database.DB
	client *strava.Client
	logger *slog.Logger
	states *stateStore // CSRF protection
}

// stateStore tracks valid OAuth states for CSRF protection. Each state is
// bound to the user who started the flow, so the unauthenticated provider
// callback can be attributed.
type stateStore struct {
	mu     sync.RWMutex
	states map[string]stateEntry
}

type stateEntry struct {
	userID  string
	expires time.Time
}

// NewManager creates a new OAuth manager
func NewManager(db *database.DB, client *strava.Client) *Manager {
	mgr := &Manager{
		db:     db,
		client: client,
		logger: slog.Default(),
		states: &stateStore{
			states: make(map[string]stateEntry),
		},
	}

	// Start background cleanup of expired states
	go mgr.cleanupStates()

	return mgr
}

// AuthURL generates a provider authorization URL for a user with CSRF
// protection
func (m *Manager) AuthURL(userID, redirectURI string) (string, string, error) {
	state, err := generateRandomState()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate state: %w", err)
	}

	// Store state with expiration (10 minutes)
	m.states.mu.Lock()
	m.states.states[state] = stateEntry{userID: userID, expires: time.Now().Add(10 * time.Minute)}
	m.states.mu.Unlock()

	authURL := m.client.AuthCodeURL(redirectURI, state)

	m.logger.Info("Generated auth URL", "user_id", userID, "state", state)

	return authURL, state, nil
}

// HandleCallback processes the OAuth callback, exchanging the code and storing
// the resulting credentials as a connection for the user who started the flow.
// Returns that user's id.
func (m *Manager) HandleCallback(ctx context.Context, code, state string) (string, error) {
	userID, ok := m.takeState(state)
	if !ok {
		return "", apperror.New(apperror.ErrValidation, "invalid or expired state")
	}

	tokenResp, err := m.client.ExchangeCode(ctx, code)
	if err != nil {
		return "", apperror.Wrap(apperror.ErrRefreshFailed, err)
	}

	conn := &database.Connection{
		UserID:       userID,
		Provider:     providerName,
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    tokenResp.ExpiresAt,
	}

	if len(tokenResp.Athlete) > 0 {
		var athlete struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(tokenResp.Athlete, &athlete); err == nil && athlete.ID != 0 {
			conn.AthleteID = &athlete.ID
		}
	}
	if tokenResp.Scope != "" {
		scope := tokenResp.Scope
		conn.Scope = &scope
	}

	if err := m.db.UpsertConnection(conn); err != nil {
		return "", apperror.Wrap(apperror.ErrPersistenceFailed, err)
	}

	m.logger.Info("Stored connection", "user_id", userID, "athlete_id", conn.AthleteID)

	return userID, nil
}

// ValidAccessToken returns an access token for the user that is valid now.
// An expired token is refreshed and the new credentials are persisted before
// the token is returned; a live one is returned as stored.
func (m *Manager) ValidAccessToken(ctx context.Context, userID string) (string, error) {
	conn, err := m.db.GetConnection(userID, providerName)
	if err != nil {
		return "", apperror.Wrap(apperror.ErrPersistenceFailed, err)
	}
	if conn == nil {
		return "", apperror.New(apperror.ErrNotConnected, "no %s connection for user", providerName)
	}

	if conn.ExpiresAt > time.Now().Unix() {
		return conn.AccessToken, nil
	}

	m.logger.Info("Refreshing expired token", "user_id", userID)

	tokenResp, err := m.client.RefreshToken(ctx, conn.RefreshToken)
	if err != nil {
		return "", apperror.Wrap(apperror.ErrRefreshFailed, err)
	}

	// Access token, refresh token and expiry always change together
	if err := m.db.UpdateConnectionTokens(userID, providerName, tokenResp.AccessToken, tokenResp.RefreshToken, tokenResp.ExpiresAt); err != nil {
		return "", apperror.Wrap(apperror.ErrPersistenceFailed, err)
	}

	return tokenResp.AccessToken, nil
}

// Connected reports whether the user has a stored provider connection
func (m *Manager) Connected(userID string) (bool, error) {
	conn, err := m.db.GetConnection(userID, providerName)
	if err != nil {
		return false, apperror.Wrap(apperror.ErrPersistenceFailed, err)
	}
	return conn != nil, nil
}

// takeState checks if a state is valid and removes it (one-time use),
// returning the user who started the flow
func (m *Manager) takeState(state string) (string, bool) {
	m.states.mu.Lock()
	defer m.states.mu.Unlock()

	entry, exists := m.states.states[state]
	if !exists {
		return "", false
	}

	// Remove state after use (one-time use)
	delete(m.states.states, state)

	if time.Now().After(entry.expires) {
		return "", false
	}

	return entry.userID, true
}

// cleanupStates removes expired states every minute
func (m *Manager) cleanupStates() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m.states.mu.Lock()
		now := time.Now()
		for state, entry := range m.states.states {
			if now.After(entry.expires) {
				delete(m.states.states, state)
			}
		}
		m.states.mu.Unlock()
	}
}

// generateRandomState generates a cryptographically secure random state
func generateRandomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
