package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// ErrInvalidBookingMetadata marks checkout sessions that cannot be tied
// to a booking row.
var ErrInvalidBookingMetadata = errors.New("invalid booking metadata")

const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventAccountUpdated    = "account.updated"
)

// VerifyEvent checks the signature header and decodes the event envelope.
// The account may be pinned to an older API version than the SDK, so the
// version mismatch check is disabled.
func VerifyEvent(payload []byte, sigHeader, secret string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return event, nil
}

// ParseCheckoutSession decodes the checkout session object from an event.
func ParseCheckoutSession(event stripe.Event) (*stripe.CheckoutSession, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("failed to parse checkout session: %w", err)
	}
	return &session, nil
}

// ParseAccount decodes the connected account object from an event.
func ParseAccount(event stripe.Event) (*stripe.Account, error) {
	var account stripe.Account
	if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
		return nil, fmt.Errorf("failed to parse account: %w", err)
	}
	return &account, nil
}

// BookingIDFromSession reads the booking id the checkout session was
// created with. Sessions without the metadata key are malformed.
func BookingIDFromSession(session *stripe.CheckoutSession) (int64, error) {
	raw, ok := session.Metadata["booking_id"]
	if !ok || raw == "" {
		return 0, fmt.Errorf("%w: checkout session %s has no booking_id", ErrInvalidBookingMetadata, session.ID)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: booking_id %q in session %s", ErrInvalidBookingMetadata, raw, session.ID)
	}
	return id, nil
}

// PaymentIntentID extracts the payment intent reference from a session.
func PaymentIntentID(session *stripe.CheckoutSession) string {
	if session.PaymentIntent == nil {
		return ""
	}
	return session.PaymentIntent.ID
}
