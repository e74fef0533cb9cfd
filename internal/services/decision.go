package services

import (
	"fmt"

	models "github.com/glkeru/projxchange/internal/models"
)

type DecisionInput struct {
	Authenticated    bool
	Project          models.Project
	Evidence         models.PurchaseEvidence
	AvailableCredits int
}

// Decide выбирает ровно один вариант доступа в порядке приоритета:
// вход, демо, куплено, кредит, блокировка.
func Decide(in DecisionInput) models.Affordance {
	switch {
	case !in.Authenticated:
		return models.Affordance{
			Kind:    models.AffordanceRequiresLogin,
			Label:   "Log in to download",
			Message: "Please log in to download this project.",
		}
	case in.Project.IsDemo:
		return models.Affordance{
			Kind:    models.AffordanceFreeDemo,
			Label:   "Download Demo",
			Message: "This is a free demo project.",
		}
	case in.Evidence.Purchased():
		return models.Affordance{
			Kind:  models.AffordanceAlreadyPurchase,
			Label: "Download Files",
		}
	}

	price := in.Project.Price()
	if in.AvailableCredits > 0 && price <= models.FreeDownloadCeiling {
		return models.Affordance{
			Kind:    models.AffordanceCreditEligible,
			Label:   "Download (use 1 credit)",
			Message: fmt.Sprintf("You have %d credits available.", in.AvailableCredits),
		}
	}

	if price > models.FreeDownloadCeiling {
		// кредиты не открывают дорогие проекты при любом балансе
		return models.Affordance{
			Kind:    models.AffordanceLocked,
			Label:   "Purchase required",
			Message: fmt.Sprintf("Projects priced above ₹%.0f cannot be downloaded with credits. Purchase required.", models.FreeDownloadCeiling),
			Reason:  models.LockPriceLimit,
			Options: []models.UnlockOption{models.UnlockPurchase},
		}
	}
	return models.Affordance{
		Kind:    models.AffordanceLocked,
		Label:   "Unlock download",
		Message: "You have no credits left. Purchase this project or invite friends to earn credits.",
		Reason:  models.LockNoCredits,
		Options: []models.UnlockOption{models.UnlockPurchase, models.UnlockReferral},
	}
}

var demoMessages = map[models.ProjectAction]string{
	models.ActionReview:   "Reviews are not available for demo projects.",
	models.ActionWishlist: "Demo projects are free and cannot be added to the wishlist.",
	models.ActionCart:     "Demo projects are free to download and cannot be added to the cart.",
}

// Демо-проекты: отзывы, вишлист и корзина запрещены
func GuardDemoAction(project models.Project, action models.ProjectAction) error {
	if !project.IsDemo {
		return nil
	}
	msg, ok := demoMessages[action]
	if !ok {
		msg = "This action is not available for demo projects."
	}
	return fmt.Errorf("%w: %s", models.ErrDemoActionDisabled, msg)
}

// Текст для пользователя без префикса ошибки
func DemoActionMessage(action models.ProjectAction) string {
	return demoMessages[action]
}
