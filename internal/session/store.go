// Package session owns the bearer token: obtaining it, persisting it,
// restoring it after a restart and dropping it on logout or rejection.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"

	"unibank/internal/models"
)

// State is the authentication state of the client.
type State string

const (
	Unauthenticated State = "unauthenticated"
	// Unverified is a restored token no call has confirmed yet.
	Unverified    State = "unverified"
	Authenticated State = "authenticated"
)

// Session describes the current identity. Subject and ExpiresAt are read from
// the token without verifying it and are only for display.
type Session struct {
	Token     string
	State     State
	Subject   string
	ExpiresAt time.Time
}

// Present reports whether a token is held.
func (s Session) Present() bool {
	return s.Token != ""
}

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*models.Token, error)
}

// Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	token    string
	verified bool

	auth   Authenticator
	creds  CredentialStore
	logger *logrus.Entry
}

func NewStore(auth Authenticator, creds CredentialStore, logger *logrus.Entry) *Store {
	if creds == nil {
		creds = &MemoryCredentials{}
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{
		auth:   auth,
		creds:  creds,
		logger: logger.WithField("component", "session"),
	}
}

// SetAuthenticator binds the login backend. The gateway needs the store as
// its token source, so the two are wired after construction.
func (s *Store) SetAuthenticator(auth Authenticator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = auth
}

// Login obtains and persists a token. On failure the current session is left
// untouched and the ledger's error is returned as is.
func (s *Store) Login(ctx context.Context, email, password string) (Session, error) {
	s.mu.RLock()
	auth := s.auth
	s.mu.RUnlock()
	if auth == nil {
		return Session{}, errors.New("session: no authenticator configured")
	}

	tok, err := auth.Login(ctx, email, password)
	if err != nil {
		return s.Current(), err
	}

	s.mu.Lock()
	s.token = tok.AccessToken
	s.verified = true
	s.mu.Unlock()

	if err := s.creds.Save(tok.AccessToken); err != nil {
		s.logger.WithError(err).Warn("token could not be persisted; session will not survive a restart")
	}
	s.logger.WithField("subject", describe(tok.AccessToken).Subject).Info("signed in")
	return s.Current(), nil
}

// Logout drops the token from memory and storage.
func (s *Store) Logout() error {
	s.clear()
	if err := s.creds.Clear(); err != nil {
		return err
	}
	s.logger.Info("signed out")
	return nil
}

// Restore adopts a persisted token without contacting the ledger. The first
// authenticated call decides whether it is still good.
func (s *Store) Restore() (Session, error) {
	token, err := s.creds.Load()
	if err != nil {
		if errors.Is(err, ErrNoCredentials) {
			return s.Current(), nil
		}
		return s.Current(), err
	}

	s.mu.Lock()
	s.token = token
	s.verified = false
	s.mu.Unlock()

	s.logger.Debug("restored stored token")
	return s.Current(), nil
}

// Invalidate is called when the ledger rejects the token.
func (s *Store) Invalidate() {
	s.clear()
	if err := s.creds.Clear(); err != nil {
		s.logger.WithError(err).Warn("rejected token could not be removed from storage")
	}
	s.logger.Info("session rejected by ledger")
}

// MarkVerified records that the ledger accepted the token.
func (s *Store) MarkVerified() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		s.verified = true
	}
}

// Token implements gateway.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) Authenticated() bool {
	return s.Token() != ""
}

func (s *Store) Current() Session {
	s.mu.RLock()
	token, verified := s.token, s.verified
	s.mu.RUnlock()

	if token == "" {
		return Session{State: Unauthenticated}
	}
	sess := describe(token)
	sess.State = Unverified
	if verified {
		sess.State = Authenticated
	}
	return sess
}

func (s *Store) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.verified = false
}

// describe reads display fields from a JWT. Opaque tokens yield only Token.
func describe(token string) Session {
	sess := Session{Token: token}
	claims := &models.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return sess
	}
	sess.Subject = claims.Subject
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess
}
