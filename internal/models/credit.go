package models

import "io"

// Лимиты начисления кредитов
const (
	SignupBonusCredits     = 1
	MaxMonthlyCredits      = 3
	MaxReferralCredits     = 6
	DefaultMaxTotalCredits = 9
)

// Баланс кредитов пользователя, заменяется целиком при каждой синхронизации
type CreditBalance struct {
	AvailableCredits       int     `json:"available_credits"`
	CreditsUsed            int     `json:"credits_used"`
	SignupBonusReceived    bool    `json:"signup_bonus_received"`
	MonthlyCreditsReceived int     `json:"monthly_credits_received"`
	MaxMonthlyCredits      int     `json:"max_monthly_credits"`
	ReferralCreditsEarned  int     `json:"referral_credits_earned"`
	MaxReferralCredits     int     `json:"max_referral_credits"`
	MaxTotalCredits        int     `json:"max_total_credits"`
	NextMonthlyCreditDate  *string `json:"next_monthly_credit_date"`
	DaysUntilNextCredit    *int    `json:"days_until_next_credit"`
}

// Normalize приводит ответ сервера к инвариантам: баланс не бывает отрицательным
func (b *CreditBalance) Normalize() {
	if b.AvailableCredits < 0 {
		b.AvailableCredits = 0
	}
	if b.CreditsUsed < 0 {
		b.CreditsUsed = 0
	}
	if b.MaxMonthlyCredits == 0 {
		b.MaxMonthlyCredits = MaxMonthlyCredits
	}
	if b.MaxReferralCredits == 0 {
		b.MaxReferralCredits = MaxReferralCredits
	}
	if b.MaxTotalCredits == 0 {
		b.MaxTotalCredits = DefaultMaxTotalCredits
	}
}

// Результат списания кредита
type ConsumeResult struct {
	Success          bool   `json:"success"`
	DownloadURL      string `json:"download_url"`
	RemainingCredits int    `json:"remaining_credits"`
	Message          string `json:"message"`
}

// Статусы реферала
const (
	ReferralPending   = "PENDING"
	ReferralConfirmed = "CONFIRMED"
)

// Прогресс подтверждения реферала
type ConfirmationProgress struct {
	Downloads          int    `json:"downloads"`
	WishlistAdds       int    `json:"wishlist_adds"`
	QualifyingViews    int    `json:"qualifying_views"`
	IsConfirmed        bool   `json:"is_confirmed"`
	ConfirmationMethod string `json:"confirmation_method,omitempty"`
}

type Referral struct {
	ID           string               `json:"id"`
	ReferredUser string               `json:"referred_user,omitempty"`
	Status       string               `json:"status"`
	Progress     ConfirmationProgress `json:"confirmation_progress"`
	ActionNeeded string               `json:"action_needed,omitempty"`
	CreatedAt    string               `json:"created_at,omitempty"`
}

type ReferralStatusResponse struct {
	Referrals []Referral `json:"referrals"`
}

// Сигналы подтверждения реферала
type ReferralSignal string

const (
	SignalDownload       ReferralSignal = "download"
	SignalWishlistAdd    ReferralSignal = "wishlist_add"
	SignalQualifyingView ReferralSignal = "qualifying_view"
)

// Бинарное содержимое скачиваемого файла
type FilePayload struct {
	Name        string
	ContentType string
	Body        io.ReadCloser
}
