package model

import "time"

// Buyer identifies who is paying. Email is required by the gateway's hosted
// checkout; ID is our internal identifier.
type Buyer struct {
	ID    string
	Email string
}

// Lesson is the digital good being purchased. PriceMinorUnits is the price
// in the currency's smallest unit (kobo, cents); floats never cross this
// boundary.
type Lesson struct {
	ID              string
	CourseID        string
	Title           string
	PriceMinorUnits int64
	Currency        string
}

type OutcomeKind string

const (
	OutcomeGranted   OutcomeKind = "granted"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeCancelled OutcomeKind = "cancelled"
)

// OutcomeKindFor maps a terminal attempt status to its outcome kind.
// Non-terminal statuses map to failed; callers only reach this after a
// terminal transition.
func OutcomeKindFor(s AttemptStatus) OutcomeKind {
	switch s {
	case AttemptStatusGranted:
		return OutcomeGranted
	case AttemptStatusCancelled:
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}

// Outcome is the single terminal result of one checkout invocation.
type Outcome struct {
	Kind             OutcomeKind
	Reference        string
	BuyerID          string
	ItemID           string
	AmountMinorUnits int64
	Currency         string
	GatewayPayload   *GatewayResult
	Verified         bool
	Detail           string // populated for failed outcomes
	Timestamp        time.Time
}

// Grant is the payload delivered to the access-granting sink when an attempt
// reaches granted. Delivery is at most once per attempt.
type Grant struct {
	Reference        string
	BuyerID          string
	ItemID           string
	AmountMinorUnits int64
	Currency         string
	Gateway          string
	GatewayPayload   *GatewayResult
	Verified         bool
	Timestamp        time.Time
}
