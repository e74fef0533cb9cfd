package session

import "sync"

// ExpiryGuard владеет флагом "истечение сессии уже обрабатывается".
// Создается при входе, освобождается при выходе.
type ExpiryGuard struct {
	mu       sync.Mutex
	expired  bool
	disposed bool
	handlers []func()
}

func NewExpiryGuard() *ExpiryGuard {
	return &ExpiryGuard{}
}

// OnExpire регистрирует обработчик, вызывается один раз при первом 401
func (g *ExpiryGuard) OnExpire(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers = append(g.handlers, fn)
}

// Trip отмечает истечение. true - вызывающий первым увидел 401 и должен его обработать.
func (g *ExpiryGuard) Trip() bool {
	g.mu.Lock()
	if g.expired || g.disposed {
		g.mu.Unlock()
		return false
	}
	g.expired = true
	handlers := g.handlers
	g.mu.Unlock()

	for _, h := range handlers {
		h()
	}
	return true
}

func (g *ExpiryGuard) Expired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.expired
}

func (g *ExpiryGuard) Dispose() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disposed = true
	g.handlers = nil
}
