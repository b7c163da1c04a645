package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/medibook/medibook/internal/platform/restapi"
)

type mockGateway struct {
	mu sync.Mutex

	loginErr    error
	pair        restapi.TokenPair
	user        *restapi.User
	meErr       error
	meCalls     int32
	meStarted   chan struct{}
	meRelease   chan struct{}
	doctorOK    bool
	doctorErr   error
	doctorCalls int32
	adminErr    error
}

func (m *mockGateway) Login(ctx context.Context, username, password string) (*restapi.TokenPair, error) {
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	p := m.pair
	return &p, nil
}

func (m *mockGateway) Register(ctx context.Context, req restapi.RegisterRequest) (*restapi.TokenPair, error) {
	p := m.pair
	return &p, nil
}

func (m *mockGateway) Me(ctx context.Context) (*restapi.User, error) {
	atomic.AddInt32(&m.meCalls, 1)
	if m.meStarted != nil {
		m.meStarted <- struct{}{}
	}
	if m.meRelease != nil {
		<-m.meRelease
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.meErr != nil {
		return nil, m.meErr
	}
	u := *m.user
	return &u, nil
}

func (m *mockGateway) ProbeDoctor(ctx context.Context) (bool, error) {
	atomic.AddInt32(&m.doctorCalls, 1)
	return m.doctorOK, m.doctorErr
}

func (m *mockGateway) AllBookings(ctx context.Context) ([]restapi.Booking, error) {
	if m.adminErr != nil {
		return nil, m.adminErr
	}
	return nil, nil
}

func newTestStore(t *testing.T, api *mockGateway) (*Store, *TokenStore) {
	t.Helper()
	tokens, err := NewTokenStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return NewStore(tokens, api, zerolog.Nop()), tokens
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestLogin_EstablishesSessionAndLoadsProfile(t *testing.T) {
	api := &mockGateway{
		pair: restapi.TokenPair{Access: "acc", Refresh: "ref"},
		user: &restapi.User{ID: 1, Username: "alice"},
	}
	store, tokens := newTestStore(t, api)

	if err := store.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !store.IsAuthenticated() {
		t.Error("IsAuthenticated = false after login")
	}
	if got := tokens.AccessToken(); got != "acc" {
		t.Errorf("persisted access token = %q, want %q", got, "acc")
	}
	waitFor(t, func() bool {
		u := store.CurrentUser()
		return u != nil && u.Username == "alice"
	})
}

func TestLogin_EmptyFieldsRejectedBeforeGateway(t *testing.T) {
	api := &mockGateway{loginErr: errors.New("must not be called")}
	store, _ := newTestStore(t, api)

	if err := store.Login(context.Background(), "", "secret"); !restapi.IsValidation(err) {
		t.Errorf("err = %v, want ValidationError for username", err)
	}
	if err := store.Login(context.Background(), "alice", ""); !restapi.IsValidation(err) {
		t.Errorf("err = %v, want ValidationError for password", err)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	api := &mockGateway{loginErr: &restapi.AuthError{StatusCode: 401, Detail: "nope"}}
	store, _ := newTestStore(t, api)

	err := store.Login(context.Background(), "alice", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
	if store.IsAuthenticated() {
		t.Error("IsAuthenticated = true after failed login")
	}
}

func TestRegister_ValidatesBeforeGateway(t *testing.T) {
	api := &mockGateway{pair: restapi.TokenPair{Access: "acc"}}
	store, _ := newTestStore(t, api)

	err := store.Register(context.Background(), restapi.RegisterRequest{
		Username: "bob",
		Password: "short", // below the minimum length
		Email:    "bob@example.com",
	})
	if !restapi.IsValidation(err) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestLogout_IsIdempotent(t *testing.T) {
	api := &mockGateway{
		pair: restapi.TokenPair{Access: "acc", Refresh: "ref"},
		user: &restapi.User{ID: 1},
	}
	store, tokens := newTestStore(t, api)
	if err := store.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.Logout()
	store.Logout()

	if store.IsAuthenticated() {
		t.Error("IsAuthenticated = true after logout")
	}
	if store.CurrentUser() != nil {
		t.Error("CurrentUser != nil after logout")
	}
	if tokens.AccessToken() != "" || tokens.RefreshToken() != "" {
		t.Error("tokens not cleared")
	}
}

func TestLogout_NotifiesSubscribers(t *testing.T) {
	api := &mockGateway{pair: restapi.TokenPair{Access: "acc"}, user: &restapi.User{ID: 1}}
	store, _ := newTestStore(t, api)
	ch := store.SubscribeLogout()

	if err := store.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.Logout()

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no logout notification")
	}
}

// A logout racing an in-flight profile fetch must win: the late result is
// discarded and the session stays signed out.
func TestLogoutDuringProfileFetch_DiscardsLateResult(t *testing.T) {
	api := &mockGateway{
		pair:      restapi.TokenPair{Access: "acc"},
		user:      &restapi.User{ID: 1, Username: "alice"},
		meStarted: make(chan struct{}, 1),
		meRelease: make(chan struct{}),
	}
	store, _ := newTestStore(t, api)

	if err := store.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-api.meStarted // profile fetch is now in flight

	store.Logout()
	close(api.meRelease) // let the stale fetch complete

	waitFor(t, func() bool { return atomic.LoadInt32(&api.meCalls) == 1 })
	time.Sleep(20 * time.Millisecond) // give the stale continuation a chance to misbehave
	if store.IsAuthenticated() {
		t.Error("IsAuthenticated = true, want false")
	}
	if store.CurrentUser() != nil {
		t.Error("CurrentUser resurrected by a stale fetch")
	}
}

func TestStaleToken_TriggersImplicitLogout(t *testing.T) {
	tokens, err := NewTokenStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tokens.Save(restapi.TokenPair{Access: "stale", Refresh: "stale"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	api := &mockGateway{meErr: &restapi.AuthError{StatusCode: 401, Detail: "token expired"}}
	store := NewStore(tokens, api, zerolog.Nop())

	store.Start(context.Background())

	waitFor(t, func() bool { return !store.IsAuthenticated() })
	if tokens.AccessToken() != "" {
		t.Error("stale token not cleared")
	}
}

func TestIsDoctor_CachedPerSession(t *testing.T) {
	api := &mockGateway{pair: restapi.TokenPair{Access: "acc"}, user: &restapi.User{ID: 1}, doctorOK: true}
	store, _ := newTestStore(t, api)
	if err := store.Login(context.Background(), "doc", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if !store.IsDoctor(context.Background()) {
			t.Fatal("IsDoctor = false, want true")
		}
	}
	if n := atomic.LoadInt32(&api.doctorCalls); n != 1 {
		t.Errorf("probe calls = %d, want 1", n)
	}
}

func TestIsDoctor_ConcurrentCallsCoalesce(t *testing.T) {
	api := &mockGateway{pair: restapi.TokenPair{Access: "acc"}, user: &restapi.User{ID: 1}, doctorOK: true}
	store, _ := newTestStore(t, api)
	if err := store.Login(context.Background(), "doc", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !store.IsDoctor(context.Background()) {
				t.Error("IsDoctor = false, want true")
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&api.doctorCalls); n != 1 {
		t.Errorf("probe calls = %d, want 1", n)
	}
}

func TestIsDoctor_ProbeFailureReadsAsFalse(t *testing.T) {
	api := &mockGateway{
		pair:      restapi.TokenPair{Access: "acc"},
		user:      &restapi.User{ID: 1},
		doctorErr: &restapi.AuthError{StatusCode: 403, Detail: "nope"},
	}
	store, _ := newTestStore(t, api)
	if err := store.Login(context.Background(), "pat", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.IsDoctor(context.Background()) {
		t.Error("IsDoctor = true, want false")
	}
}

func TestIsAdministrator(t *testing.T) {
	api := &mockGateway{pair: restapi.TokenPair{Access: "acc"}, user: &restapi.User{ID: 1}}
	store, _ := newTestStore(t, api)
	if err := store.Login(context.Background(), "admin", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !store.IsAdministrator(context.Background()) {
		t.Error("IsAdministrator = false, want true")
	}

	store.Logout()
	if store.IsAdministrator(context.Background()) {
		t.Error("IsAdministrator = true when signed out")
	}
}

func TestRoleCache_ResetOnLogout(t *testing.T) {
	api := &mockGateway{pair: restapi.TokenPair{Access: "acc"}, user: &restapi.User{ID: 1}, doctorOK: true}
	store, _ := newTestStore(t, api)
	if err := store.Login(context.Background(), "doc", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !store.IsDoctor(context.Background()) {
		t.Fatal("IsDoctor = false, want true")
	}

	store.Logout()
	api.doctorOK = false
	if err := store.Login(context.Background(), "pat", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.IsDoctor(context.Background()) {
		t.Error("IsDoctor = true from a stale cache")
	}
	if n := atomic.LoadInt32(&api.doctorCalls); n != 2 {
		t.Errorf("probe calls = %d, want 2", n)
	}
}

func TestTokenStore_SaveAndClear(t *testing.T) {
	tokens, err := NewTokenStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tokens.Save(restapi.TokenPair{Access: "a", Refresh: "r"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens.AccessToken() != "a" || tokens.RefreshToken() != "r" {
		t.Error("round trip failed")
	}
	if err := tokens.Clear(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tokens.Clear(); err != nil {
		t.Errorf("second clear: %v, want nil", err)
	}
	if tokens.AccessToken() != "" {
		t.Error("token survived clear")
	}
}

func TestAccessTokenExpiry(t *testing.T) {
	tokens, err := NewTokenStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := tokens.AccessTokenExpiry(); ok {
		t.Error("expiry reported with no token stored")
	}

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tokens.Save(restapi.TokenPair{Access: raw, Refresh: "r"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok := tokens.AccessTokenExpiry()
	if !ok {
		t.Fatal("expiry not decoded")
	}
	if !got.Equal(exp) {
		t.Errorf("expiry = %v, want %v", got, exp)
	}

	if err := tokens.Save(restapi.TokenPair{Access: "not-a-jwt", Refresh: "r"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tokens.AccessTokenExpiry(); ok {
		t.Error("expiry reported for a malformed token")
	}
}
