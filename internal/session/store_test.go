package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unibank/internal/models"
)

type fakeAuth struct {
	token string
	err   error
	calls int
}

func (f *fakeAuth) Login(_ context.Context, _, _ string) (*models.Token, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.Token{AccessToken: f.token, TokenType: "bearer"}, nil
}

func signedToken(t *testing.T, subject string, expires time.Time) string {
	t.Helper()
	claims := models.Claims{
		UserID: 1,
		Role:   "user",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestLoginPersistsToken(t *testing.T) {
	creds := &MemoryCredentials{}
	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	auth := &fakeAuth{token: signedToken(t, "a@x.com", expires)}
	store := NewStore(auth, creds, nil)

	sess, err := store.Login(context.Background(), "a@x.com", "p1")
	require.NoError(t, err)

	assert.Equal(t, Authenticated, sess.State)
	assert.Equal(t, "a@x.com", sess.Subject)
	assert.True(t, sess.ExpiresAt.Equal(expires))
	assert.Equal(t, 1, auth.calls)

	stored, err := creds.Load()
	require.NoError(t, err)
	assert.Equal(t, auth.token, stored)
}

func TestLoginFailureLeavesSessionAbsent(t *testing.T) {
	creds := &MemoryCredentials{}
	store := NewStore(&fakeAuth{err: errors.New("Incorrect username or password")}, creds, nil)

	sess, err := store.Login(context.Background(), "a@x.com", "bad")
	require.Error(t, err)
	assert.Equal(t, Unauthenticated, sess.State)
	assert.False(t, store.Authenticated())

	_, err = creds.Load()
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestOpaqueTokenIsAccepted(t *testing.T) {
	store := NewStore(&fakeAuth{token: "opaque-token"}, nil, nil)
	sess, err := store.Login(context.Background(), "a@x.com", "p1")
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", sess.Token)
	assert.Empty(t, sess.Subject)
}

func TestLogoutClearsMemoryAndStorage(t *testing.T) {
	creds := &MemoryCredentials{}
	store := NewStore(&fakeAuth{token: "tok"}, creds, nil)
	_, err := store.Login(context.Background(), "a@x.com", "p1")
	require.NoError(t, err)

	require.NoError(t, store.Logout())
	assert.Equal(t, Unauthenticated, store.Current().State)
	assert.Empty(t, store.Token())

	_, err = creds.Load()
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestRestoreIsUnverifiedUntilConfirmed(t *testing.T) {
	creds := &MemoryCredentials{}
	require.NoError(t, creds.Save("persisted"))
	store := NewStore(&fakeAuth{}, creds, nil)

	sess, err := store.Restore()
	require.NoError(t, err)
	assert.Equal(t, Unverified, sess.State)
	assert.True(t, store.Authenticated())

	store.MarkVerified()
	assert.Equal(t, Authenticated, store.Current().State)
}

func TestRestoreWithNothingStored(t *testing.T) {
	store := NewStore(&fakeAuth{}, &MemoryCredentials{}, nil)
	sess, err := store.Restore()
	require.NoError(t, err)
	assert.False(t, sess.Present())
}

func TestInvalidateDropsRestoredToken(t *testing.T) {
	creds := &MemoryCredentials{}
	require.NoError(t, creds.Save("expired"))
	store := NewStore(&fakeAuth{}, creds, nil)
	_, err := store.Restore()
	require.NoError(t, err)

	store.Invalidate()
	assert.Equal(t, Unauthenticated, store.Current().State)
	_, err = creds.Load()
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestFileCredentialsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	creds := NewFileCredentials(path, "token")

	_, err := creds.Load()
	assert.ErrorIs(t, err, ErrNoCredentials)
	require.NoError(t, creds.Clear(), "clearing a missing file is a no-op")

	require.NoError(t, creds.Save("tok-1"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := NewFileCredentials(path, "token").Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)

	require.NoError(t, creds.Clear())
	_, err = creds.Load()
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestFileCredentialsKeepOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"theme":"dark"}`), 0o600))

	creds := NewFileCredentials(path, "token")
	require.NoError(t, creds.Save("tok"))
	require.NoError(t, creds.Clear())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"dark"}`, string(raw))
}

func TestFileCredentialsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))

	_, err := NewFileCredentials(path, "").Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoCredentials)
}
