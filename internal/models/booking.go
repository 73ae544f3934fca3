package models

import "time"

type Booking struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	WasherID        *int64    `json:"washer_id,omitempty"`
	CollectionDate  time.Time `json:"collection_date"`
	TimeSlot        string    `json:"time_slot"`
	WeightTier      string    `json:"weight_tier"`
	SpecialItems    []string  `json:"special_items,omitempty"`
	AddOns          []string  `json:"add_ons,omitempty"`
	Instructions    string    `json:"instructions,omitempty"`
	ImageURLs       []string  `json:"image_urls,omitempty"`
	AccessNotes     string    `json:"access_notes,omitempty"`
	TotalPrice      int64     `json:"total_price"` // cents
	CollectionPIN   string    `json:"collection_pin"`
	DeliveryPIN     string    `json:"delivery_pin"`
	PaymentIntentID string    `json:"payment_intent_id,omitempty"`
	PaymentStatus   string    `json:"payment_status"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Assigned reports whether a washer has claimed the booking.
func (b *Booking) Assigned() bool {
	return b.WasherID != nil && *b.WasherID != 0
}

// IsValidStatus reports whether s is one of the known lifecycle statuses.
func IsValidStatus(s string) bool {
	switch s {
	case StatusPendingPayment, StatusAwaitingAcceptance, StatusPendingAssignment,
		StatusWasherAssigned, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminalStatus reports whether no further transitions are expected.
func IsTerminalStatus(s string) bool {
	return s == StatusCompleted || s == StatusCancelled
}
