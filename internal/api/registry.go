package api

import (
	"sync"

	models "github.com/glkeru/projxchange/internal/models"
	services "github.com/glkeru/projxchange/internal/services"
	session "github.com/glkeru/projxchange/internal/session"
)

// Сборка клиента для новой сессии
type ClientBuilder func(sess *session.Session) *services.Client

type entry struct {
	session *session.Session
	client  *services.Client
}

// Registry хранит клиентов по пользователю (sub токена с проверенной подписью)
type Registry struct {
	mu      sync.Mutex
	secret  []byte
	clients map[string]*entry
	build   ClientBuilder
}

func NewRegistry(secret []byte, build ClientBuilder) *Registry {
	return &Registry{secret: secret, clients: make(map[string]*entry), build: build}
}

// ForToken возвращает клиента пользователя; новый токен перезапускает сессию
func (r *Registry) ForToken(token string) (*services.Client, error) {
	_, err := session.Verify(token, r.secret)
	if err != nil {
		return nil, models.ErrNotAuthenticated
	}
	sess, err := session.FromToken(token)
	if err != nil || !sess.IsAuthenticated() {
		return nil, models.ErrNotAuthenticated
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[sess.UserID()]
	if !ok {
		e = &entry{session: sess, client: r.build(sess)}
		r.clients[sess.UserID()] = e
		watchExpiry(e)
		return e.client, nil
	}

	if e.session.Token() != token || !e.session.IsAuthenticated() {
		err = e.session.Login(token)
		if err != nil {
			return nil, models.ErrNotAuthenticated
		}
		watchExpiry(e)
	}
	return e.client, nil
}

// Logout - выход пользователя
func (r *Registry) Logout(userID string) {
	r.mu.Lock()
	e, ok := r.clients[userID]
	delete(r.clients, userID)
	r.mu.Unlock()
	if !ok {
		return
	}
	e.client.Close()
	e.session.Logout()
}

func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.clients
	r.clients = make(map[string]*entry)
	r.mu.Unlock()
	for _, e := range entries {
		e.client.Close()
	}
}

// При первом 401 сбрасываем состояние клиента
func watchExpiry(e *entry) {
	guard := e.session.Guard()
	if guard == nil {
		return
	}
	client := e.client
	guard.OnExpire(func() {
		client.Balance.Reset()
		client.Referrals.Reset()
	})
}
