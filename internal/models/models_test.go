package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePINPair(t *testing.T) {
	for i := 0; i < 100; i++ {
		collection, delivery, err := GeneratePINPair()
		require.NoError(t, err)
		assert.Len(t, collection, 4)
		assert.Len(t, delivery, 4)
		assert.NotEqual(t, collection, delivery)
	}
}

func TestIsValidStatus(t *testing.T) {
	valid := []string{
		StatusPendingPayment,
		StatusAwaitingAcceptance,
		StatusPendingAssignment,
		StatusWasherAssigned,
		StatusInProgress,
		StatusCompleted,
		StatusCancelled,
	}
	for _, s := range valid {
		assert.True(t, IsValidStatus(s), s)
	}
	assert.False(t, IsValidStatus("paid"))
	assert.False(t, IsValidStatus(""))
}

func TestEligibleWasher(t *testing.T) {
	p := &Profile{Role: RoleWasher, WasherStatus: WasherStatusApproved}
	assert.True(t, p.EligibleWasher())
	assert.False(t, p.PayoutReady())

	p.StripeAccountStatus = AccountStatusActive
	assert.True(t, p.PayoutReady())

	p.WasherStatus = WasherStatusPending
	assert.False(t, p.EligibleWasher())

	customer := &Profile{Role: RoleCustomer, WasherStatus: WasherStatusApproved}
	assert.False(t, customer.EligibleWasher())
}

func TestBookingAssigned(t *testing.T) {
	b := &Booking{Status: StatusPendingAssignment}
	assert.False(t, b.Assigned())

	washerID := int64(7)
	b.WasherID = &washerID
	assert.True(t, b.Assigned())
}
