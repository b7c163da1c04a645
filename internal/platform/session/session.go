// Package session owns the client's authentication state: the persisted token
// pair, the cached user profile, and the probed role flags. All mutation goes
// through the Store; other components observe it, they never poke at tokens
// directly.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/medibook/medibook/internal/platform/restapi"
)

// ErrInvalidCredentials is returned by Login when the backend rejects the
// username/password pair.
var ErrInvalidCredentials = errors.New("invalid username or password")

// gatewayAPI is the slice of the gateway the session store needs.
type gatewayAPI interface {
	Login(ctx context.Context, username, password string) (*restapi.TokenPair, error)
	Register(ctx context.Context, req restapi.RegisterRequest) (*restapi.TokenPair, error)
	Me(ctx context.Context) (*restapi.User, error)
	ProbeDoctor(ctx context.Context) (bool, error)
	AllBookings(ctx context.Context) ([]restapi.Booking, error)
}

// roleProbe caches one probed role flag and coalesces concurrent probes: a
// second caller arriving while a probe is in flight waits for the first
// result instead of issuing a duplicate request.
type roleProbe struct {
	result   *bool
	inflight chan struct{}
}

// Store is the session store. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	tokens *TokenStore
	api    gatewayAPI
	logger zerolog.Logger

	validate *validator.Validate

	user *restapi.User
	// generation increments on every login and logout. In-flight
	// continuations capture it and discard their result if it moved on,
	// so a late profile fetch cannot resurrect a logged-out session.
	generation uint64

	doctor roleProbe
	admin  roleProbe

	logoutSubs []chan struct{}
}

// NewStore creates a session store over the given token store and gateway.
func NewStore(tokens *TokenStore, api gatewayAPI, logger zerolog.Logger) *Store {
	return &Store{
		tokens:   tokens,
		api:      api,
		logger:   logger,
		validate: validator.New(),
	}
}

// Start loads the profile when a persisted token is present, mirroring what
// happens after a fresh login. Call once at process start.
func (s *Store) Start(ctx context.Context) {
	if !s.IsAuthenticated() {
		return
	}
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()
	go s.loadProfile(ctx, gen)
}

// IsAuthenticated reports token presence, nothing more. A stale token still
// counts until a 401 proves otherwise and triggers the implicit logout.
func (s *Store) IsAuthenticated() bool {
	return s.tokens.AccessToken() != ""
}

// CurrentUser returns the cached profile, nil until the profile load lands.
func (s *Store) CurrentUser() *restapi.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Login authenticates, persists the token pair, and kicks off the profile
// load in the background.
func (s *Store) Login(ctx context.Context, username, password string) error {
	if err := s.validate.Var(username, "required"); err != nil {
		return &restapi.ValidationError{Field: "username", Detail: "username is required"}
	}
	if err := s.validate.Var(password, "required"); err != nil {
		return &restapi.ValidationError{Field: "password", Detail: "password is required"}
	}

	pair, err := s.api.Login(ctx, username, password)
	if err != nil {
		if restapi.IsAuth(err) {
			return ErrInvalidCredentials
		}
		return err
	}
	return s.establish(ctx, pair)
}

// Register creates an account; post-conditions are identical to Login.
func (s *Store) Register(ctx context.Context, req restapi.RegisterRequest) error {
	if err := s.validate.Struct(req); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			f := invalid[0]
			return &restapi.ValidationError{Field: f.Field(), Detail: "invalid value for " + f.Field()}
		}
		return err
	}

	pair, err := s.api.Register(ctx, req)
	if err != nil {
		return err
	}
	return s.establish(ctx, pair)
}

func (s *Store) establish(ctx context.Context, pair *restapi.TokenPair) error {
	if err := s.tokens.Save(*pair); err != nil {
		return err
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.user = nil
	s.doctor = roleProbe{}
	s.admin = roleProbe{}
	s.mu.Unlock()

	go s.loadProfile(ctx, gen)
	return nil
}

// loadProfile fetches /auth/me/ and caches the result, unless the session
// moved on in the meantime. An authorization failure here means the token is
// stale: the session heals itself by logging out.
func (s *Store) loadProfile(ctx context.Context, gen uint64) {
	user, err := s.api.Me(ctx)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.mu.Unlock()
		if restapi.IsAuth(err) {
			s.logger.Warn().Msg("stale token rejected by backend, logging out")
			s.Logout()
			return
		}
		s.logger.Error().Err(err).Msg("profile load failed")
		return
	}
	s.user = user
	s.mu.Unlock()
}

// RefreshProfile synchronously reloads the profile. Used by surfaces that
// need the user right now rather than eventually.
func (s *Store) RefreshProfile(ctx context.Context) (*restapi.User, error) {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	user, err := s.api.Me(ctx)
	if err != nil {
		if restapi.IsAuth(err) {
			s.Logout()
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return nil, errors.New("session changed during profile fetch")
	}
	s.user = user
	return user, nil
}

// Logout clears tokens, profile, and role caches, and notifies subscribers.
// Idempotent.
func (s *Store) Logout() {
	if err := s.tokens.Clear(); err != nil {
		s.logger.Error().Err(err).Msg("failed to clear tokens")
	}

	s.mu.Lock()
	s.generation++
	s.user = nil
	s.doctor = roleProbe{}
	s.admin = roleProbe{}
	subs := make([]chan struct{}, len(s.logoutSubs))
	copy(subs, s.logoutSubs)
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// SubscribeLogout returns a channel that receives one value per logout.
// Dependent components react to it instead of polling token state.
func (s *Store) SubscribeLogout() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.logoutSubs = append(s.logoutSubs, ch)
	s.mu.Unlock()
	return ch
}

// IsDoctor reports whether the session belongs to a doctor. The flag is
// probed once per session via OPTIONS /appointments/ and cached; a probe
// failure of any kind reads as "not a doctor" and is never surfaced.
func (s *Store) IsDoctor(ctx context.Context) bool {
	return s.probeRole(ctx, &s.doctor, func(ctx context.Context) bool {
		ok, err := s.api.ProbeDoctor(ctx)
		return ok && err == nil
	})
}

// IsAdministrator reports whether the session belongs to an administrator,
// probed via the admin-only all-bookings endpoint.
func (s *Store) IsAdministrator(ctx context.Context) bool {
	return s.probeRole(ctx, &s.admin, func(ctx context.Context) bool {
		_, err := s.api.AllBookings(ctx)
		return err == nil
	})
}

func (s *Store) probeRole(ctx context.Context, p *roleProbe, probe func(context.Context) bool) bool {
	if !s.IsAuthenticated() {
		return false
	}

	s.mu.Lock()
	if p.result != nil {
		v := *p.result
		s.mu.Unlock()
		return v
	}
	if p.inflight != nil {
		wait := p.inflight
		s.mu.Unlock()
		<-wait
		s.mu.Lock()
		defer s.mu.Unlock()
		if p.result != nil {
			return *p.result
		}
		return false
	}

	done := make(chan struct{})
	p.inflight = done
	gen := s.generation
	s.mu.Unlock()

	v := probe(ctx)

	s.mu.Lock()
	// Cache only if the session is still the one we probed for.
	if s.generation == gen {
		p.result = &v
	}
	p.inflight = nil
	s.mu.Unlock()
	close(done)
	return v
}
