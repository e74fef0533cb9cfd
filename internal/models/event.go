package models

import (
	"time"

	"github.com/google/uuid"
)

// Типы событий доступа
const (
	EventCreditConsumed    = "credit_consumed"
	EventViewQualified     = "view_qualified"
	EventWishlistConfirmed = "wishlist_confirmed"
	EventPurchasedDownload = "purchased_download"
)

type EntitlementEvent struct {
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	UserID    string         `json:"userId"`
	ProjectID string         `json:"projectId"`
	Signal    ReferralSignal `json:"signal,omitempty"`
	Remaining *int           `json:"remaining,omitempty"`
	Seconds   int            `json:"seconds,omitempty"`
	At        time.Time      `json:"at"`
}

func NewEntitlementEvent(eventType, userID, projectID string) EntitlementEvent {
	return EntitlementEvent{
		ID:        uuid.New(),
		Type:      eventType,
		UserID:    userID,
		ProjectID: projectID,
		At:        time.Now().UTC(),
	}
}
