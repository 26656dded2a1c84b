// Package session holds the bearer token and tier shared by every backend call.
// Stores are injected; nothing here is global.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/uncleJim21/pullthatupjamie/internal/quota"
)

// Store is the process-wide session. Readers are every backend request; writers
// are the sign-in success path and the 401 clearing path.
type Store interface {
	Token() string
	Tier() quota.Tier
	SetCredentials(token string, tier quota.Tier) error
	SetTier(tier quota.Tier) error
	Clear() error
}

// Memory is an in-process Store. The zero value is ready to use and anonymous.
type Memory struct {
	mu    sync.RWMutex
	token string
	tier  quota.Tier
}

var _ Store = (*Memory)(nil)

func (m *Memory) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *Memory) Tier() quota.Tier {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tier == "" {
		return quota.TierAnonymous
	}
	return m.tier
}

func (m *Memory) SetCredentials(token string, tier quota.Tier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = strings.TrimSpace(token)
	m.tier = tier
	return nil
}

func (m *Memory) SetTier(tier quota.Tier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tier = tier
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.tier = quota.TierAnonymous
	return nil
}

// Authenticated reports whether s holds a usable token at now. Tokens that parse
// as JWTs are checked against their exp claim without verifying the signature;
// the backend remains the authority. Opaque tokens count as authenticated.
func Authenticated(s Store, now time.Time) bool {
	if s == nil {
		return false
	}
	token := s.Token()
	if token == "" {
		return false
	}
	exp, ok := Expiry(token)
	if !ok {
		return true
	}
	return now.Before(exp)
}

// Expiry returns the exp claim of a JWT token. The bool is false for opaque
// tokens and tokens without exp.
func Expiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
