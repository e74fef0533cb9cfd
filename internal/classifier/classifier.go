package classifier

import (
	"errors"
	"fmt"
	"strings"

	models "github.com/glkeru/projxchange/internal/models"
)

type rule struct {
	kind     models.ErrorKind
	keywords []string
}

// Порядок правил = приоритет, первое совпадение выигрывает
var rules = []rule{
	{models.KindInsufficientCredits, []string{"insufficient", "not enough credits", "no credits"}},
	{models.KindPriceLimitExceeded, []string{"price limit", "price exceeds", "exceeds the free download"}},
	{models.KindNetwork, []string{"network", "timeout", "timed out", "failed to fetch", "connection refused", "connection reset", "no such host"}},
	{models.KindUnauthorized, []string{"unauthorized", "401", "unauthenticated"}},
	{models.KindProjectNotFound, []string{"not found", "404"}},
	{models.KindDownloadFailed, []string{"download"}},
	{models.KindBalanceFetchFailed, []string{"balance"}},
	{models.KindReferralFetchFailed, []string{"referral"}},
}

// Classify сопоставляет сырую ошибку с типом кредитного домена.
// raw: error, models.APIErrorBody или строка.
func Classify(raw any) *models.CreditError {
	var ce *models.CreditError
	var cause error
	var text string
	isErr := false

	switch v := raw.(type) {
	case nil:
		return models.NewCreditError(models.KindUnknown, 0, nil)
	case error:
		if errors.As(v, &ce) {
			return ce
		}
		cause = v
		text = v.Error()
		isErr = true
	case models.APIErrorBody:
		text = v.Text()
		cause = errors.New(text)
	case *models.APIErrorBody:
		text = v.Text()
		cause = errors.New(text)
	case string:
		text = v
		cause = errors.New(v)
	default:
		text = fmt.Sprint(v)
		cause = errors.New(text)
	}

	if kind, ok := Match(text); ok {
		return models.NewCreditError(kind, 0, cause)
	}
	if isErr {
		return models.NewCreditError(models.KindAPI, 0, cause)
	}
	return models.NewCreditError(models.KindUnknown, 0, cause)
}

// Match - тип по тексту сообщения
func Match(message string) (models.ErrorKind, bool) {
	msg := strings.ToLower(message)
	for _, r := range rules {
		for _, k := range r.keywords {
			if strings.Contains(msg, k) {
				return r.kind, true
			}
		}
	}
	return "", false
}
