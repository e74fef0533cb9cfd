package interfaces

import (
	"context"

	models "github.com/glkeru/projxchange/internal/models"
)

//go:generate mockgen -destination=./../services/mock_entitlement_test.go -package=services . Gateway,BalanceCache,EventPublisher,FileSaver

// Сетевые операции кредитного домена
type Gateway interface {
	FetchBalance(ctx context.Context) (*models.CreditBalance, error)
	ConsumeCredit(ctx context.Context, projectID string) (*models.ConsumeResult, error)
	FetchReferralStatus(ctx context.Context) ([]models.Referral, error)
	ReportProjectView(ctx context.Context, projectID string, seconds int)
	ConfirmWishlist(ctx context.Context, projectID string) error
}

// Бинарные загрузки с тем же bearer-токеном
type FileSource interface {
	FetchFile(ctx context.Context, url string) (*models.FilePayload, error)
	DownloadProject(ctx context.Context, projectID string) (*models.FilePayload, error)
}

// Сохранение файла на стороне клиента
type FileSaver interface {
	SaveURL(ctx context.Context, url string) (path string, err error)
	SaveProject(ctx context.Context, projectID string) (path string, err error)
}

// Текущая сессия пользователя
type Session interface {
	IsAuthenticated() bool
	UserID() string
	Token() string
}

// Снимок баланса для пассивного отображения
type BalanceCache interface {
	GetBalance(ctx context.Context, user string) (*models.CreditBalance, error)
	SetBalance(ctx context.Context, user string, balance models.CreditBalance) error
	InvalidateBalance(ctx context.Context, user string) error
}

// Каталог проектов
type ProjectCatalog interface {
	GetProject(ctx context.Context, projectID string) (models.Project, error)
	GetUserStatus(ctx context.Context, userID string, projectID string) (*bool, error)
}

// События для аналитики
type EventPublisher interface {
	Publish(ctx context.Context, event models.EntitlementEvent) error
}

// Обновляемое состояние (баланс, дашборд рефералов)
type Refresher interface {
	Refresh(ctx context.Context) error
}
