package models

// Порог цены для бесплатного скачивания за кредит (INR)
const FreeDownloadCeiling = 2000.0

type Project struct {
	ID      string   `bson:"id" json:"id"`
	Title   string   `bson:"title" json:"title"`
	IsDemo  bool     `bson:"is_demo" json:"is_demo"`
	Pricing Pricing  `bson:"pricing" json:"pricing"`
	Buyers  []string `bson:"buyers" json:"buyers,omitempty"`
}

type Pricing struct {
	SalePrice *float64 `bson:"sale_price" json:"sale_price"`
}

// Price - цена проекта, отсутствующая цена считается нулевой
func (p Project) Price() float64 {
	if p.Pricing.SalePrice == nil {
		return 0
	}
	return *p.Pricing.SalePrice
}

// Источники признака покупки
type PurchaseEvidence struct {
	Flag       bool     // явный флаг из карточки проекта
	UserStatus *bool    // статус пользователя по проекту, nil - не запрашивался
	UserID     string   // текущий пользователь
	Buyers     []string // список покупателей проекта
}

// Purchased - логическое ИЛИ всех источников
func (e PurchaseEvidence) Purchased() bool {
	if e.Flag {
		return true
	}
	if e.UserStatus != nil && *e.UserStatus {
		return true
	}
	if e.UserID == "" {
		return false
	}
	for _, b := range e.Buyers {
		if b == e.UserID {
			return true
		}
	}
	return false
}

// Действия, недоступные для демо-проектов
type ProjectAction string

const (
	ActionReview   ProjectAction = "review"
	ActionWishlist ProjectAction = "wishlist"
	ActionCart     ProjectAction = "cart"
)

// Варианты доступа к скачиванию
type AffordanceKind string

const (
	AffordanceRequiresLogin   AffordanceKind = "requires_login"
	AffordanceFreeDemo        AffordanceKind = "free_demo"
	AffordanceAlreadyPurchase AffordanceKind = "already_purchased"
	AffordanceCreditEligible  AffordanceKind = "credit_eligible"
	AffordanceLocked          AffordanceKind = "locked"
)

// Причина блокировки
type LockReason string

const (
	LockNone       LockReason = ""
	LockPriceLimit LockReason = "price_limit"
	LockNoCredits  LockReason = "no_credits"
)

// Способы разблокировки, порядок = порядок показа
type UnlockOption string

const (
	UnlockPurchase UnlockOption = "purchase"
	UnlockReferral UnlockOption = "referral"
)

type Affordance struct {
	Kind    AffordanceKind `json:"kind"`
	Label   string         `json:"label"`
	Message string         `json:"message,omitempty"`
	Reason  LockReason     `json:"reason,omitempty"`
	Options []UnlockOption `json:"options,omitempty"`
}
