package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("token is empty")
	ErrInvalidToken = errors.New("invalid token")
)

// Сессия клиента: bearer-токен и данные из него.
// Подпись не проверяется - это делает сервер, клиенту нужны только sub и exp.
type Session struct {
	mu      sync.RWMutex
	token   string
	userID  string
	expires time.Time
	now     func() time.Time
	guard   *ExpiryGuard
}

func New() *Session {
	return &Session{now: time.Now}
}

// FromToken создает сессию и сразу вызывает Login
func FromToken(token string) (*Session, error) {
	s := New()
	if err := s.Login(token); err != nil {
		return nil, err
	}
	return s, nil
}

// Login - начало сессии: разбор токена и новый guard истечения
func (s *Session) Login(token string) error {
	if token == "" {
		return ErrNoToken
	}
	userID, expires, err := parseClaims(token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.guard != nil {
		s.guard.Dispose()
	}
	s.token = token
	s.userID = userID
	s.expires = expires
	s.guard = NewExpiryGuard()
	return nil
}

// Logout - конец сессии
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.guard != nil {
		s.guard.Dispose()
		s.guard = nil
	}
	s.token = ""
	s.userID = ""
	s.expires = time.Time{}
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return false
	}
	if s.guard != nil && s.guard.Expired() {
		return false
	}
	if !s.expires.IsZero() && !s.now().Before(s.expires) {
		return false
	}
	return true
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Guard текущей сессии, nil после Logout
func (s *Session) Guard() *ExpiryGuard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.guard
}

// Unauthorized - реакция на 401. true только для первого 401 в сессии.
func (s *Session) Unauthorized() bool {
	g := s.Guard()
	if g == nil {
		return false
	}
	return g.Trip()
}

func parseClaims(token string) (string, time.Time, error) {
	claims := jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	if err != nil {
		return "", time.Time{}, err
	}
	var expires time.Time
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	return claims.Subject, expires, nil
}

// Verify проверяет подпись HS256 и срок токена, возвращает sub.
// Нужен там, где по sub выбирается состояние пользователя.
func Verify(token string, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrInvalidToken
	}
	claims := jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !tok.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
