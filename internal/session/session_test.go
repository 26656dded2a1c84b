package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uncleJim21/pullthatupjamie/internal/quota"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestMemory_ZeroValueIsAnonymous(t *testing.T) {
	var m Memory
	assert.Empty(t, m.Token())
	assert.Equal(t, quota.TierAnonymous, m.Tier())
	assert.False(t, Authenticated(&m, time.Now()))
}

func TestMemory_ClearDropsCredentials(t *testing.T) {
	var m Memory
	require.NoError(t, m.SetCredentials(" tok ", quota.TierRegistered))
	assert.Equal(t, "tok", m.Token())
	assert.Equal(t, quota.TierRegistered, m.Tier())

	require.NoError(t, m.Clear())
	assert.Empty(t, m.Token())
	assert.Equal(t, quota.TierAnonymous, m.Tier())
}

func TestAuthenticated_ChecksJWTExpiry(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	var m Memory

	require.NoError(t, m.SetCredentials(signedToken(t, now.Add(time.Hour)), quota.TierRegistered))
	assert.True(t, Authenticated(&m, now))

	require.NoError(t, m.SetCredentials(signedToken(t, now.Add(-time.Minute)), quota.TierRegistered))
	assert.False(t, Authenticated(&m, now))

	require.NoError(t, m.SetCredentials("opaque-token", quota.TierRegistered))
	assert.True(t, Authenticated(&m, now))

	assert.False(t, Authenticated(nil, now))
}

func TestExpiry_OpaqueTokenHasNone(t *testing.T) {
	_, ok := Expiry("not.a.jwt")
	assert.False(t, ok)

	exp := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	got, ok := Expiry(signedToken(t, exp))
	require.True(t, ok)
	assert.True(t, got.Equal(exp))
}

func TestFileStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.toml")

	fs, err := OpenFile(path)
	require.NoError(t, err)
	assert.Empty(t, fs.Token())

	require.NoError(t, fs.SetCredentials("abc", quota.TierSubscriber))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", reopened.Token())
	assert.Equal(t, quota.TierSubscriber, reopened.Tier())

	require.NoError(t, reopened.Clear())
	again, err := OpenFile(path)
	require.NoError(t, err)
	assert.Empty(t, again.Token())
	assert.Equal(t, quota.TierAnonymous, again.Tier())
}

func TestFileStore_CorruptFileIsSignedOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")
	require.NoError(t, os.WriteFile(path, []byte("token = [[["), 0o600))

	fs, err := OpenFile(path)
	require.NoError(t, err)
	assert.Empty(t, fs.Token())
}

func TestOpenFile_EmptyPathErrors(t *testing.T) {
	_, err := OpenFile("  ")
	assert.Error(t, err)
}
