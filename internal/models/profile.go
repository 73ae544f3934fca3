package models

import "time"

// Profile carries the per-user role and washer onboarding state. Eligibility
// for assignment is derived from it, never stored.
type Profile struct {
	UserID              int64     `json:"user_id"`
	Role                string    `json:"role"`
	WasherStatus        string    `json:"washer_status"`
	StripeAccountID     string    `json:"stripe_account_id,omitempty"`
	StripeAccountStatus string    `json:"stripe_account_status"`
	PayoutsEnabled      bool      `json:"payouts_enabled"`
	ChargesEnabled      bool      `json:"charges_enabled"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// EligibleWasher reports whether the profile may receive assignments.
func (p *Profile) EligibleWasher() bool {
	return p.Role == RoleWasher && p.WasherStatus == WasherStatusApproved
}

// PayoutReady additionally requires an enabled Stripe account.
func (p *Profile) PayoutReady() bool {
	return p.EligibleWasher() && p.StripeAccountStatus == AccountStatusActive
}

type WasherApplication struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Status      string     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
}
