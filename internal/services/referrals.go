package services

import (
	"context"
	"sync"

	classifier "github.com/glkeru/projxchange/internal/classifier"
	interf "github.com/glkeru/projxchange/internal/interfaces"
	models "github.com/glkeru/projxchange/internal/models"
	"go.uber.org/zap"
)

type ReferralState struct {
	Referrals []models.Referral `json:"referrals"`
	Confirmed int               `json:"confirmed"`
	Pending   int               `json:"pending"`
	Loading   bool              `json:"loading"`
	Error     string            `json:"error,omitempty"`
}

// Дашборд рефералов
type ReferralStore struct {
	mu        sync.Mutex
	gw        interf.Gateway
	session   interf.Session
	logger    *zap.Logger
	referrals []models.Referral
	inflight  int
	errMsg    string
	seq       uint64
	applied   uint64
}

func NewReferralStore(gw interf.Gateway, session interf.Session, logger *zap.Logger) *ReferralStore {
	return &ReferralStore{gw: gw, session: session, logger: logger}
}

func (s *ReferralStore) Load(ctx context.Context) error {
	if !s.session.IsAuthenticated() {
		s.Reset()
		return nil
	}

	s.mu.Lock()
	s.seq++
	token := s.seq
	s.inflight++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}()

	refs, err := s.gw.FetchReferralStatus(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	// более свежий ответ уже применен или был Reset
	if token <= s.applied {
		return nil
	}
	if err != nil {
		ce := classifier.Classify(err)
		s.errMsg = ce.Message
		s.logger.Error("Fetch referrals",
			zap.String("service", "Load"),
			zap.Error(ce),
		)
		return ce
	}
	s.referrals = refs
	s.applied = token
	s.errMsg = ""
	return nil
}

func (s *ReferralStore) Refresh(ctx context.Context) error {
	return s.Load(ctx)
}

func (s *ReferralStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.referrals = nil
	s.errMsg = ""
	s.applied = s.seq
}

func (s *ReferralStore) State() ReferralState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := ReferralState{
		Referrals: append([]models.Referral(nil), s.referrals...),
		Loading:   s.inflight > 0,
		Error:     s.errMsg,
	}
	for _, r := range s.referrals {
		switch r.Status {
		case models.ReferralConfirmed:
			state.Confirmed++
		case models.ReferralPending:
			state.Pending++
		}
	}
	return state
}
