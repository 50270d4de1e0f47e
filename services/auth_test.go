package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"campushub.com/campus-feed/api"
	"campushub.com/campus-feed/apitest"
	"campushub.com/campus-feed/models"
	"campushub.com/campus-feed/storage"
)

func testUser() models.AuthUser {
	return models.AuthUser{
		UserID:    7,
		Email:     "amina@campus.edu",
		FirstName: "Amina",
		LastName:  "Khan",
		Role:      "student",
		Campus:    "North",
		CampusID:  3,
	}
}

func newTestAuth(t *testing.T) (*AuthService, *apitest.Server, *storage.Store) {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	client := api.New(srv.URL(), store.Token)
	auth := NewAuthService(client, store)
	auth.Initialize()
	return auth, srv, store
}

func TestLoginPersistsAndBroadcasts(t *testing.T) {
	auth, srv, store := newTestAuth(t)
	srv.AddAccount("amina@campus.edu", "secret", "tok-amina", testUser())

	ch, cancel := auth.Subscribe()
	defer cancel()
	if first := <-ch; first != nil {
		t.Fatalf("initial broadcast = %+v, want nil", first)
	}

	resp, err := auth.Login(context.Background(), models.LoginRequest{Email: "amina@campus.edu", Password: "secret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Token != "tok-amina" || resp.User == nil || resp.User.UserID != 7 {
		t.Fatalf("response = %+v", resp)
	}
	if !auth.IsAuthenticated() {
		t.Fatalf("not authenticated after login")
	}
	if u := auth.GetCurrentUser(); u == nil || u.UserID != 7 {
		t.Fatalf("current user = %+v", u)
	}
	if store.Token() != "tok-amina" {
		t.Fatalf("stored token = %q", store.Token())
	}
	if u := store.User(); u == nil || u.Email != "amina@campus.edu" {
		t.Fatalf("stored user = %+v", u)
	}
	if u := <-ch; u == nil || u.UserID != 7 {
		t.Fatalf("broadcast user = %+v", u)
	}
}

func TestLoginFailurePersistsNothing(t *testing.T) {
	auth, srv, store := newTestAuth(t)
	srv.AddAccount("amina@campus.edu", "secret", "tok-amina", testUser())

	_, err := auth.Login(context.Background(), models.LoginRequest{Email: "amina@campus.edu", Password: "wrong"})
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("want *api.Error, got %v", err)
	}
	if apiErr.Message != "Invalid email or password" {
		t.Fatalf("message = %q", apiErr.Message)
	}
	if auth.IsAuthenticated() {
		t.Fatalf("authenticated after failed login")
	}
	if store.Token() != "" || store.User() != nil {
		t.Fatalf("partial state persisted")
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	auth, srv, store := newTestAuth(t)
	srv.AddAccount("amina@campus.edu", "secret", "tok-amina", testUser())
	if _, err := auth.Login(context.Background(), models.LoginRequest{Email: "amina@campus.edu", Password: "secret"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	auth.Logout()
	if auth.IsAuthenticated() {
		t.Fatalf("authenticated after logout")
	}
	if auth.GetCurrentUser() != nil {
		t.Fatalf("current user survives logout")
	}
	if store.Token() != "" || store.User() != nil {
		t.Fatalf("storage survives logout")
	}
}

func TestInitializeRehydrates(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	user := testUser()
	if err := store.SaveSession("tok-old", &user); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	auth := NewAuthService(api.New(srv.URL(), store.Token), store)
	auth.Initialize()
	if u := auth.GetCurrentUser(); u == nil || u.UserID != 7 {
		t.Fatalf("rehydrated user = %+v", u)
	}
	if !auth.IsAuthenticated() {
		t.Fatalf("not authenticated after rehydration")
	}
}

func TestInitializeCorruptUserFailsClosed(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	store.Set(storage.TokenKey, "tok-degraded")
	store.Set(storage.UserKey, "{definitely not json")

	auth := NewAuthService(api.New(srv.URL(), store.Token), store)
	auth.Initialize()
	if u := auth.GetCurrentUser(); u != nil {
		t.Fatalf("corrupt user resolved to %+v", u)
	}
	// token alone is a valid degraded session
	if !auth.IsAuthenticated() {
		t.Fatalf("token-only session should count as authenticated")
	}
}

func TestSubscribersSeeSameSequence(t *testing.T) {
	auth, srv, _ := newTestAuth(t)
	srv.AddAccount("amina@campus.edu", "secret", "tok-amina", testUser())

	a, cancelA := auth.Subscribe()
	defer cancelA()
	b, cancelB := auth.Subscribe()
	defer cancelB()

	if _, err := auth.Login(context.Background(), models.LoginRequest{Email: "amina@campus.edu", Password: "secret"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	auth.Logout()

	for name, ch := range map[string]<-chan *models.AuthUser{"a": a, "b": b} {
		if v := <-ch; v != nil {
			t.Fatalf("%s: first = %+v, want nil", name, v)
		}
		if v := <-ch; v == nil || v.UserID != 7 {
			t.Fatalf("%s: second = %+v, want user 7", name, v)
		}
		if v := <-ch; v != nil {
			t.Fatalf("%s: third = %+v, want nil", name, v)
		}
	}
}

func TestGetProfileUpdatesStoreAndBroadcast(t *testing.T) {
	auth, srv, store := newTestAuth(t)
	srv.AddAccount("amina@campus.edu", "secret", "tok-amina", testUser())
	if _, err := auth.Login(context.Background(), models.LoginRequest{Email: "amina@campus.edu", Password: "secret"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	user, err := auth.GetProfile(context.Background())
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if user.FullName() != "Amina Khan" {
		t.Fatalf("profile = %+v", user)
	}

	last := "Khan-Ortiz"
	updated, err := auth.UpdateProfile(context.Background(), models.ProfileUpdate{LastName: &last})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.LastName != "Khan-Ortiz" {
		t.Fatalf("updated = %+v", updated)
	}
	if u := store.User(); u == nil || u.LastName != "Khan-Ortiz" {
		t.Fatalf("stored user not updated: %+v", u)
	}
	if u := auth.GetCurrentUser(); u == nil || u.LastName != "Khan-Ortiz" {
		t.Fatalf("broadcast user not updated: %+v", u)
	}
}

func TestCurrentUserNameFallsBackToStorage(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	user := testUser()
	if err := store.SaveSession("tok", &user); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// no Initialize: the broadcast snapshot is still empty
	auth := NewAuthService(api.New(srv.URL(), store.Token), store)
	if got := auth.CurrentUserName(); got != "Amina Khan" {
		t.Fatalf("name = %q, want Amina Khan", got)
	}

	store.Clear()
	if got := auth.CurrentUserName(); got != "User" {
		t.Fatalf("name = %q, want User", got)
	}
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestTokenClaims(t *testing.T) {
	auth, _, store := newTestAuth(t)
	tok := signedToken(t, jwt.MapClaims{"user_id": float64(7), "campus_id": float64(3)})
	store.Set(storage.TokenKey, tok)

	claims := auth.TokenClaims()
	if claims == nil {
		t.Fatalf("no claims parsed")
	}
	if intClaim(claims, "user_id") != 7 || intClaim(claims, "campus_id") != 3 {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestTokenExpired(t *testing.T) {
	auth, _, store := newTestAuth(t)

	store.Set(storage.TokenKey, "not-a-jwt")
	if auth.TokenExpired() {
		t.Fatalf("opaque token treated as expired")
	}

	store.Set(storage.TokenKey, signedToken(t, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()}))
	if !auth.TokenExpired() {
		t.Fatalf("expired token not detected")
	}

	store.Set(storage.TokenKey, signedToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}))
	if auth.TokenExpired() {
		t.Fatalf("live token treated as expired")
	}
}

func TestRouteGuard(t *testing.T) {
	auth, srv, _ := newTestAuth(t)
	guard := NewRouteGuard(auth)

	if guard.CanActivate("feed") {
		t.Fatalf("guard admitted an unauthenticated session")
	}

	srv.AddAccount("amina@campus.edu", "secret", "tok-amina", testUser())
	if _, err := auth.Login(context.Background(), models.LoginRequest{Email: "amina@campus.edu", Password: "secret"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !guard.CanActivate("feed") {
		t.Fatalf("guard rejected an authenticated session")
	}

	auth.Logout()
	if guard.CanActivate("feed") {
		t.Fatalf("guard admitted after logout")
	}
}
