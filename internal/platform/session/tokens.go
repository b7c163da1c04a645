package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medibook/medibook/internal/platform/restapi"
)

const (
	accessTokenFile  = "access_token"
	refreshTokenFile = "refresh_token"
)

// TokenStore persists the token pair under two named slots in the state
// directory. Reads and writes are whole-file operations; there is no partial
// state to lock around.
type TokenStore struct {
	dir string
}

// NewTokenStore creates the state directory if needed.
func NewTokenStore(dir string) (*TokenStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &TokenStore{dir: dir}, nil
}

// AccessToken returns the stored access token, or "" when absent. Implements
// restapi.TokenSource.
func (s *TokenStore) AccessToken() string {
	return s.read(accessTokenFile)
}

// RefreshToken returns the stored refresh token, or "" when absent.
func (s *TokenStore) RefreshToken() string {
	return s.read(refreshTokenFile)
}

// Save stores both tokens of a pair.
func (s *TokenStore) Save(pair restapi.TokenPair) error {
	if err := s.write(accessTokenFile, pair.Access); err != nil {
		return err
	}
	return s.write(refreshTokenFile, pair.Refresh)
}

// Clear removes both token slots. Clearing an empty store is a no-op.
func (s *TokenStore) Clear() error {
	for _, name := range []string{accessTokenFile, refreshTokenFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clear token %s: %w", name, err)
		}
	}
	return nil
}

func (s *TokenStore) read(name string) string {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *TokenStore) write(name, value string) error {
	if err := os.WriteFile(filepath.Join(s.dir, name), []byte(value), 0o600); err != nil {
		return fmt.Errorf("store token %s: %w", name, err)
	}
	return nil
}

// AccessTokenExpiry decodes the stored access token without verifying its
// signature (the client holds no key) and returns the exp claim. ok is false
// when there is no token or it carries no usable expiry. Display-only: role
// and identity always come from the backend, never from claims.
func (s *TokenStore) AccessTokenExpiry() (time.Time, bool) {
	raw := s.AccessToken()
	if raw == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
