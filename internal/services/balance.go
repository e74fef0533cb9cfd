package services

import (
	"context"
	"sync"

	classifier "github.com/glkeru/projxchange/internal/classifier"
	interf "github.com/glkeru/projxchange/internal/interfaces"
	models "github.com/glkeru/projxchange/internal/models"
	"go.uber.org/zap"
)

const RetryHint = "Please try refreshing."

// Наблюдаемое состояние баланса
type BalanceState struct {
	Balance *models.CreditBalance `json:"balance"`
	Loading bool                  `json:"loading"`
	Error   string                `json:"error,omitempty"`
	Hint    string                `json:"hint,omitempty"`
}

// BalanceStore - единственный владелец баланса кредитов.
// Каждый запрос получает номер при старте; ответ не новее последнего примененного отбрасывается.
type BalanceStore struct {
	mu        sync.Mutex
	consumeMu sync.Mutex // списания идут строго по одному

	gw      interf.Gateway
	session interf.Session
	cache   interf.BalanceCache
	logger  *zap.Logger

	balance    *models.CreditBalance
	inflight   int
	errMsg     string
	hint       string
	seq        uint64
	applied    uint64
	cleared    uint64 // номер на момент последнего Reset
	autoLoaded bool
}

func NewBalanceStore(gw interf.Gateway, session interf.Session, cache interf.BalanceCache, logger *zap.Logger) *BalanceStore {
	return &BalanceStore{
		gw:      gw,
		session: session,
		cache:   cache,
		logger:  logger,
	}
}

func (s *BalanceStore) Log(msg string, service string, err error) {
	s.logger.Error(msg,
		zap.String("service", service),
		zap.String("user", s.session.UserID()),
		zap.Error(err),
	)
}

// Загрузка баланса с сервера
func (s *BalanceStore) Load(ctx context.Context) error {
	if !s.session.IsAuthenticated() {
		s.Reset()
		return nil
	}

	token := s.begin()
	defer s.end()

	balance, err := s.gw.FetchBalance(ctx)
	if err != nil {
		ce := classifier.Classify(err)
		s.mu.Lock()
		if token > s.applied {
			s.setError(ce)
		}
		s.mu.Unlock()
		s.Log("Fetch balance", "Load", ce)
		return ce
	}

	s.mu.Lock()
	if token <= s.applied {
		// пока шел запрос, применили более свежий ответ или был Reset
		s.mu.Unlock()
		s.logger.Debug("stale balance discarded", zap.Uint64("token", token))
		return nil
	}
	s.balance = balance
	s.applied = token
	s.errMsg = ""
	s.hint = ""
	snapshot := *balance
	s.mu.Unlock()

	if s.cache != nil {
		err = s.cache.SetBalance(ctx, s.session.UserID(), snapshot)
		if err != nil {
			s.Log("Cache balance", "Load", err)
		}
	}
	return nil
}

// Refresh вызывается после действий, которые могли изменить баланс
func (s *BalanceStore) Refresh(ctx context.Context) error {
	return s.Load(ctx)
}

// Списание кредита, возвращает ссылку на скачивание
func (s *BalanceStore) Consume(ctx context.Context, projectID string) (string, error) {
	s.consumeMu.Lock()
	defer s.consumeMu.Unlock()

	token := s.begin()
	defer s.end()

	result, err := s.gw.ConsumeCredit(ctx, projectID)
	if err != nil {
		ce := classifier.Classify(err)
		s.mu.Lock()
		if token > s.cleared {
			s.setError(ce)
		}
		s.mu.Unlock()
		s.Log("Consume credit", "Consume", ce)
		return "", ce
	}

	// остаток берем из ответа сервера, а не вычитаем локально.
	// Списание упорядочено по приходу ответа: загрузки, начатые до него, устарели.
	s.mu.Lock()
	if token > s.cleared {
		if s.balance != nil {
			b := *s.balance
			b.AvailableCredits = result.RemainingCredits
			b.CreditsUsed++
			s.balance = &b
		}
		s.applied = s.seq
		s.errMsg = ""
		s.hint = ""
	}
	s.mu.Unlock()

	if s.cache != nil {
		err = s.cache.InvalidateBalance(ctx, s.session.UserID())
		if err != nil {
			s.Log("Invalidate balance", "Consume", err)
		}
	}
	return result.DownloadURL, nil
}

// Sync - автозагрузка: первый раз, когда виден авторизованный пользователь без баланса
func (s *BalanceStore) Sync(ctx context.Context) error {
	if !s.session.IsAuthenticated() {
		s.mu.Lock()
		held := s.balance != nil || s.autoLoaded
		s.mu.Unlock()
		if held {
			s.Reset()
		}
		return nil
	}

	s.mu.Lock()
	if s.autoLoaded || s.balance != nil {
		s.mu.Unlock()
		return nil
	}
	s.autoLoaded = true
	s.mu.Unlock()

	return s.Load(ctx)
}

// Reset - выход пользователя, ответы запросов в полете отбрасываются
func (s *BalanceStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = nil
	s.errMsg = ""
	s.hint = ""
	s.autoLoaded = false
	s.applied = s.seq
	s.cleared = s.seq
}

func (s *BalanceStore) State() BalanceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := BalanceState{
		Loading: s.inflight > 0,
		Error:   s.errMsg,
		Hint:    s.hint,
	}
	if s.balance != nil {
		b := *s.balance
		state.Balance = &b
	}
	return state
}

// Available - доступные кредиты, 0 если баланс не загружен
func (s *BalanceStore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balance == nil {
		return 0
	}
	return s.balance.AvailableCredits
}

// Peek - баланс для пассивного отображения: из памяти или из кэша
func (s *BalanceStore) Peek(ctx context.Context) *models.CreditBalance {
	state := s.State()
	if state.Balance != nil {
		return state.Balance
	}
	if s.cache == nil || !s.session.IsAuthenticated() {
		return nil
	}
	balance, err := s.cache.GetBalance(ctx, s.session.UserID())
	if err != nil {
		return nil
	}
	return balance
}

func (s *BalanceStore) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.inflight++
	return s.seq
}

func (s *BalanceStore) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
}

func (s *BalanceStore) setError(ce *models.CreditError) {
	s.errMsg = ce.Message
	s.hint = ""
	if ce.Retryable {
		s.hint = RetryHint
	}
}
