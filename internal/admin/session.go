package admin

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials is returned for a wrong admin password.
var ErrBadCredentials = errors.New("invalid credentials")

// SessionStore keeps issued admin session tokens with an expiry.
type SessionStore interface {
	Put(ctx context.Context, token string, ttl time.Duration) error
	Valid(ctx context.Context, token string) (bool, error)
	Delete(ctx context.Context, token string) error
}

const sessionKeyPrefix = "slotbook:session:"

// RedisSessionStore keeps sessions in Redis so they survive restarts.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Put(ctx context.Context, token string, ttl time.Duration) error {
	return s.client.Set(ctx, sessionKeyPrefix+token, "1", ttl).Err()
}

func (s *RedisSessionStore) Valid(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKeyPrefix+token).Err()
}

// MemorySessionStore is the process-local fallback. Sessions are lost on
// restart, which only forces a re-login.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]time.Time)}
}

func (s *MemorySessionStore) Put(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = time.Now().Add(ttl)
	return nil
}

func (s *MemorySessionStore) Valid(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.sessions[token]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(s.sessions, token)
		return false, nil
	}
	return true, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

const failoverRetryInterval = time.Minute

// FailoverSessionStore prefers the primary store and falls back to the
// secondary when the primary errors, retrying the primary after an interval.
type FailoverSessionStore struct {
	primary  SessionStore
	fallback SessionStore
	log      *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverSessionStore(primary, fallback SessionStore, logger *zerolog.Logger) *FailoverSessionStore {
	return &FailoverSessionStore{primary: primary, fallback: fallback, log: logger}
}

func (s *FailoverSessionStore) usePrimary() bool {
	if !s.isDown.Load() {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Since(s.lastCheck) > failoverRetryInterval {
		s.lastCheck = time.Now()
		return true
	}
	return false
}

func (s *FailoverSessionStore) markDown(err error) {
	if s.isDown.CompareAndSwap(false, true) {
		s.log.Warn().Err(err).Msg("primary session store down, using fallback")
	}
	s.mu.Lock()
	s.lastCheck = time.Now()
	s.mu.Unlock()
}

func (s *FailoverSessionStore) markUp() {
	if s.isDown.CompareAndSwap(true, false) {
		s.log.Info().Msg("primary session store recovered")
	}
}

func (s *FailoverSessionStore) Put(ctx context.Context, token string, ttl time.Duration) error {
	if s.usePrimary() {
		err := s.primary.Put(ctx, token, ttl)
		if err == nil {
			s.markUp()
			return nil
		}
		s.markDown(err)
	}
	return s.fallback.Put(ctx, token, ttl)
}

func (s *FailoverSessionStore) Valid(ctx context.Context, token string) (bool, error) {
	if s.usePrimary() {
		ok, err := s.primary.Valid(ctx, token)
		if err == nil {
			s.markUp()
			return ok, nil
		}
		s.markDown(err)
	}
	return s.fallback.Valid(ctx, token)
}

func (s *FailoverSessionStore) Delete(ctx context.Context, token string) error {
	if s.usePrimary() {
		err := s.primary.Delete(ctx, token)
		if err == nil {
			s.markUp()
			return nil
		}
		s.markDown(err)
	}
	return s.fallback.Delete(ctx, token)
}

// SessionManager gates the admin surface behind a password login.
type SessionManager struct {
	store        SessionStore
	passwordHash []byte
	ttl          time.Duration
	log          *zerolog.Logger
}

func NewSessionManager(store SessionStore, passwordHash string, ttl time.Duration, logger *zerolog.Logger) *SessionManager {
	return &SessionManager{
		store:        store,
		passwordHash: []byte(passwordHash),
		ttl:          ttl,
		log:          logger,
	}
}

// Login checks the password against the configured bcrypt hash and issues a
// session token.
func (m *SessionManager) Login(ctx context.Context, password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(m.passwordHash, []byte(password)); err != nil {
		return "", ErrBadCredentials
	}
	token := uuid.NewString()
	if err := m.store.Put(ctx, token, m.ttl); err != nil {
		return "", err
	}
	m.log.Info().Msg("admin logged in")
	return token, nil
}

// Authenticate reports whether the token belongs to a live session.
func (m *SessionManager) Authenticate(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	ok, err := m.store.Valid(ctx, token)
	if err != nil {
		m.log.Warn().Err(err).Msg("session lookup failed")
		return false
	}
	return ok
}

// Logout drops the session.
func (m *SessionManager) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := m.store.Delete(ctx, token); err != nil {
		m.log.Warn().Err(err).Msg("session delete failed")
	}
}
