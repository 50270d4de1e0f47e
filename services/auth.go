package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"campushub.com/campus-feed/api"
	"campushub.com/campus-feed/log"
	"campushub.com/campus-feed/models"
	"campushub.com/campus-feed/storage"
)

// AuthService owns the session: the bearer token and the current user, both
// persisted to durable storage, with the current user broadcast to every
// subscriber. Storage and the broadcast value never diverge after a
// successful operation.
type AuthService struct {
	api   *api.Client
	store *storage.Store

	mu          sync.Mutex
	currentUser *models.AuthUser
	subs        map[int]chan *models.AuthUser
	nextSubID   int
}

func NewAuthService(client *api.Client, store *storage.Store) *AuthService {
	return &AuthService{
		api:   client,
		store: store,
		subs:  make(map[int]chan *models.AuthUser),
	}
}

// Initialize rehydrates the session from durable storage. Corrupt stored
// data resolves to an unauthenticated session; it never propagates.
func (a *AuthService) Initialize() {
	a.publish(a.store.User())
}

// Login authenticates against the boundary. On success the token and user
// are persisted as a pair and the new user is broadcast; on failure nothing
// is persisted and the boundary error comes back unchanged.
func (a *AuthService) Login(ctx context.Context, creds models.LoginRequest) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := a.api.PostJSON(ctx, "/auth/login", creds, &resp); err != nil {
		log.Error.Printf("login failed: %v", err)
		return nil, err
	}
	if err := a.store.SaveSession(resp.Token, resp.User); err != nil {
		log.Error.Printf("login: %v", err)
		return nil, err
	}
	a.publish(resp.User)
	return &resp, nil
}

// Logout clears both durable entries and broadcasts a nil user. It cannot
// fail.
func (a *AuthService) Logout() {
	a.store.Clear()
	a.publish(nil)
}

// GetToken reads the stored token directly; it does not depend on whether
// the user has been rehydrated yet.
func (a *AuthService) GetToken() string {
	return a.store.Token()
}

// IsAuthenticated is true iff a non-empty token is held. It does not
// guarantee a resolved user.
func (a *AuthService) IsAuthenticated() bool {
	return a.GetToken() != ""
}

// GetCurrentUser returns the last broadcast user, which may be nil.
func (a *AuthService) GetCurrentUser() *models.AuthUser {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentUser
}

// StoredUser reads the user record straight from durable storage, bypassing
// the broadcast snapshot.
func (a *AuthService) StoredUser() *models.AuthUser {
	return a.store.User()
}

// GetProfile fetches the profile from the boundary, persisting and
// broadcasting it on success.
func (a *AuthService) GetProfile(ctx context.Context) (*models.AuthUser, error) {
	var user models.AuthUser
	if err := a.api.GetJSON(ctx, "/auth/profile", &user); err != nil {
		log.Error.Printf("profile fetch failed: %v", err)
		return nil, err
	}
	if err := a.store.SaveUser(&user); err != nil {
		log.Error.Printf("profile fetch: %v", err)
		return nil, err
	}
	a.publish(&user)
	return &user, nil
}

// UpdateProfile applies a partial profile change. Prior state is untouched
// on failure.
func (a *AuthService) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.AuthUser, error) {
	var user models.AuthUser
	if err := a.api.PutJSON(ctx, "/auth/profile", update, &user); err != nil {
		log.Error.Printf("profile update failed: %v", err)
		return nil, err
	}
	if err := a.store.SaveUser(&user); err != nil {
		log.Error.Printf("profile update: %v", err)
		return nil, err
	}
	a.publish(&user)
	return &user, nil
}

// Subscribe registers an observer of the current-user value. The channel
// immediately yields the last broadcast value, then every subsequent change.
// The returned func cancels the subscription.
func (a *AuthService) Subscribe() (<-chan *models.AuthUser, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ch := make(chan *models.AuthUser, 16)
	ch <- a.currentUser
	id := a.nextSubID
	a.nextSubID++
	a.subs[id] = ch

	cancel := func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if c, ok := a.subs[id]; ok {
			delete(a.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// publish atomically updates the snapshot and notifies subscribers. A
// subscriber that has stopped draining its channel is skipped; the
// synchronous snapshot stays exact regardless.
func (a *AuthService) publish(u *models.AuthUser) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentUser = u
	for _, ch := range a.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

// CurrentUserName resolves a short display name for chrome: broadcast
// snapshot first, durable storage second, "User" when neither resolves.
func (a *AuthService) CurrentUserName() string {
	u := a.GetCurrentUser()
	if u == nil {
		u = a.store.User()
	}
	if u == nil {
		return "User"
	}
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return "User"
	}
	return name
}

// TokenClaims returns the claims carried by the stored bearer token without
// verifying its signature. Verification is the server's job; the client only
// reads identity hints and expiry from its own token.
func (a *AuthService) TokenClaims() jwt.MapClaims {
	tok := a.GetToken()
	if tok == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		log.Warn.Printf("failed to parse stored token: %v", err)
		return nil
	}
	return claims
}

// TokenExpired reports whether the stored token carries an exp claim in the
// past. Tokens without claims are assumed live; the server has the last
// word either way.
func (a *AuthService) TokenExpired() bool {
	claims := a.TokenClaims()
	if claims == nil {
		return false
	}
	if _, ok := claims["exp"]; !ok {
		return false
	}
	return !claims.VerifyExpiresAt(time.Now().Unix(), true)
}
