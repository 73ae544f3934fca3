package models

import "time"

// Booking lifecycle statuses. The assignment job only ever touches
// StatusPendingAssignment rows; everything after StatusWasherAssigned is
// driven by the handover PIN flow.
const (
	StatusPendingPayment     = "pending_payment"
	StatusAwaitingAcceptance = "awaiting_washer_acceptance"
	StatusPendingAssignment  = "pending_washer_assignment"
	StatusWasherAssigned     = "washer_assigned"
	StatusInProgress         = "in_progress"
	StatusCompleted          = "completed"
	StatusCancelled          = "cancelled"
)

const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
)

const (
	RoleCustomer = "customer"
	RoleWasher   = "washer"
	RoleAdmin    = "admin"
)

const (
	WasherStatusNone     = "none"
	WasherStatusPending  = "pending"
	WasherStatusApproved = "approved"
	WasherStatusRejected = "rejected"
)

// Derived Stripe account statuses, recomputed on every account.updated event.
const (
	AccountStatusPending    = "pending"
	AccountStatusRestricted = "restricted"
	AccountStatusActive     = "active"
)

const (
	ApplicationStatusPending  = "pending"
	ApplicationStatusApproved = "approved"
	ApplicationStatusRejected = "rejected"
)

const (
	// DefaultStaleAfter is the age past which an unassigned booking is
	// picked up by the auto-assignment run.
	DefaultStaleAfter = 10 * time.Minute

	// DefaultAssignInterval between automatic assignment ticks.
	DefaultAssignInterval = 5 * time.Minute

	// DefaultAssignBatchSize bounds one assignment run; stragglers are
	// picked up on the next tick.
	DefaultAssignBatchSize = 100

	// DefaultEventTTL is how long processed webhook event ids are kept
	// for duplicate detection.
	DefaultEventTTL = 24 * 60 * 60 // 24 hours in seconds

	// DefaultWorkerPollInterval for the ledger sync worker.
	DefaultWorkerPollInterval = 2 * time.Second

	// DefaultWorkerBatchSize tasks per worker poll.
	DefaultWorkerBatchSize = 20
)
