package payments

import "washhub/internal/models"

// DeriveAccountStatus collapses the connected-account capability flags
// into a single status. An account is active only when onboarding is
// finished and both payouts and charges are enabled; a finished
// onboarding with missing capabilities means the platform restricted it.
func DeriveAccountStatus(detailsSubmitted, payoutsEnabled, chargesEnabled bool) string {
	switch {
	case detailsSubmitted && payoutsEnabled && chargesEnabled:
		return models.AccountStatusActive
	case detailsSubmitted:
		return models.AccountStatusRestricted
	default:
		return models.AccountStatusPending
	}
}
