package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrDemoActionDisabled = errors.New("action is disabled for demo projects")
)

// Типы ошибок кредитного домена
type ErrorKind string

const (
	KindInsufficientCredits ErrorKind = "insufficient-credits"
	KindPriceLimitExceeded  ErrorKind = "price-limit-exceeded"
	KindNetwork             ErrorKind = "network-error"
	KindAPI                 ErrorKind = "api-error"
	KindUnauthorized        ErrorKind = "unauthorized"
	KindProjectNotFound     ErrorKind = "project-not-found"
	KindDownloadFailed      ErrorKind = "download-failed"
	KindBalanceFetchFailed  ErrorKind = "balance-fetch-failed"
	KindReferralFetchFailed ErrorKind = "referral-fetch-failed"
	KindTrackingFailed      ErrorKind = "tracking-failed"
	KindUnknown             ErrorKind = "unknown-error"
)

type kindInfo struct {
	message   string
	retryable bool
}

// Фиксированные тексты, не зависят от формулировок бэкенда
var kinds = map[ErrorKind]kindInfo{
	KindInsufficientCredits: {"You do not have enough credits to download this project. Invite friends to earn more credits.", false},
	KindPriceLimitExceeded:  {"This project is above the free download limit. Purchase is required.", false},
	KindNetwork:             {"Network error. Please check your connection and try again.", true},
	KindAPI:                 {"Something went wrong on our side. Please try again.", true},
	KindUnauthorized:        {"Your session has expired. Please log in again.", false},
	KindProjectNotFound:     {"Project not found.", false},
	KindDownloadFailed:      {"Download failed. Please try again.", true},
	KindBalanceFetchFailed:  {"Could not load your credit balance.", true},
	KindReferralFetchFailed: {"Could not load your referral status.", true},
	KindTrackingFailed:      {"View tracking failed.", false},
	KindUnknown:             {"An unexpected error occurred. Please try again.", true},
}

// Ошибка кредитного домена: тип, текст для пользователя, признак повтора
type CreditError struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
	Status    int
	Err       error
}

// NewCreditError builds an error of the given kind with its fixed user-facing copy.
func NewCreditError(kind ErrorKind, status int, cause error) *CreditError {
	info, ok := kinds[kind]
	if !ok {
		kind = KindUnknown
		info = kinds[KindUnknown]
	}
	return &CreditError{
		Kind:      kind,
		Message:   info.message,
		Retryable: info.retryable,
		Status:    status,
		Err:       cause,
	}
}

func (e *CreditError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *CreditError) Unwrap() error {
	return e.Err
}

// IsKind проверяет тип ошибки по цепочке
func IsKind(err error, kind ErrorKind) bool {
	var ce *CreditError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// Тело ошибки API
type APIErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Text - поле error приоритетнее message
func (b APIErrorBody) Text() string {
	if b.Error != "" {
		return b.Error
	}
	return b.Message
}
