package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"washhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

func TestDeriveAccountStatus(t *testing.T) {
	tests := []struct {
		name             string
		detailsSubmitted bool
		payoutsEnabled   bool
		chargesEnabled   bool
		want             string
	}{
		{"all enabled", true, true, true, models.AccountStatusActive},
		{"payouts missing", true, false, true, models.AccountStatusRestricted},
		{"charges missing", true, true, false, models.AccountStatusRestricted},
		{"both missing", true, false, false, models.AccountStatusRestricted},
		{"onboarding incomplete", false, false, false, models.AccountStatusPending},
		{"capabilities without onboarding", false, true, true, models.AccountStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveAccountStatus(tt.detailsSubmitted, tt.payoutsEnabled, tt.chargesEnabled)
			assert.Equal(t, tt.want, got)
		})
	}
}

func signPayload(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyEvent(t *testing.T) {
	const secret = "whsec_test"
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)

	event, err := VerifyEvent(payload, signPayload(t, payload, secret), secret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventCheckoutCompleted, string(event.Type))

	_, err = VerifyEvent(payload, signPayload(t, payload, "whsec_wrong"), secret)
	assert.Error(t, err)
}

func TestParseCheckoutSession(t *testing.T) {
	raw := `{"id":"cs_1","payment_intent":{"id":"pi_1"},"metadata":{"booking_id":"42"}}`
	event := stripe.Event{Data: &stripe.EventData{Raw: json.RawMessage(raw)}}

	session, err := ParseCheckoutSession(event)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)
	assert.Equal(t, "pi_1", PaymentIntentID(session))

	id, err := BookingIDFromSession(session)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestBookingIDFromSessionErrors(t *testing.T) {
	session := &stripe.CheckoutSession{ID: "cs_2", Metadata: map[string]string{}}
	_, err := BookingIDFromSession(session)
	assert.ErrorIs(t, err, ErrInvalidBookingMetadata)

	session.Metadata["booking_id"] = "not-a-number"
	_, err = BookingIDFromSession(session)
	assert.ErrorIs(t, err, ErrInvalidBookingMetadata)
}

func TestParseAccount(t *testing.T) {
	raw := `{"id":"acct_1","details_submitted":true,"payouts_enabled":true,"charges_enabled":false}`
	event := stripe.Event{Data: &stripe.EventData{Raw: json.RawMessage(raw)}}

	account, err := ParseAccount(event)
	require.NoError(t, err)
	assert.Equal(t, "acct_1", account.ID)
	assert.True(t, account.DetailsSubmitted)
	assert.False(t, account.ChargesEnabled)
}

func TestPaymentIntentIDNil(t *testing.T) {
	assert.Empty(t, PaymentIntentID(&stripe.CheckoutSession{}))
}
