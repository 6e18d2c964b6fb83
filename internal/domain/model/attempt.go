package model

import (
	"time"

	"lesson-checkout/internal/domain"
)

type AttemptStatus string

const (
	AttemptStatusInitiated            AttemptStatus = "initiated"             // attempt record built, gateway not yet invoked
	AttemptStatusAwaitingGateway      AttemptStatus = "awaiting_gateway"      // checkout handed to the gateway; user-paced
	AttemptStatusAwaitingVerification AttemptStatus = "awaiting_verification" // gateway approved; server-side verification pending
	AttemptStatusGranted              AttemptStatus = "granted"               // verification confirmed; access grant emitted
	AttemptStatusFailed               AttemptStatus = "failed"                // verification rejected, unreachable (strict), or internal fault
	AttemptStatusCancelled            AttemptStatus = "cancelled"             // user dismissed the checkout before a result
)

// allowedTransitions is the single source of truth for the flow state machine.
// A key is the current status; the value lists the statuses reachable from it.
var allowedTransitions = map[AttemptStatus][]AttemptStatus{
	AttemptStatusInitiated:            {AttemptStatusAwaitingGateway, AttemptStatusFailed},
	AttemptStatusAwaitingGateway:      {AttemptStatusAwaitingVerification, AttemptStatusCancelled, AttemptStatusFailed},
	AttemptStatusAwaitingVerification: {AttemptStatusGranted, AttemptStatusFailed},
	AttemptStatusGranted:              {},
	AttemptStatusFailed:               {},
	AttemptStatusCancelled:            {},
}

func (s AttemptStatus) Terminal() bool {
	return s == AttemptStatusGranted || s == AttemptStatusFailed || s == AttemptStatusCancelled
}

// CanTransition reports whether moving from s to target is legal.
func (s AttemptStatus) CanTransition(target AttemptStatus) bool {
	for _, t := range allowedTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// GatewayResult is whatever the gateway handed back on approval. It is kept
// for audit and passed through to the grant; it is never treated as proof of
// payment without server-side verification.
type GatewayResult struct {
	Reference     string
	TransactionID string
	Raw           map[string]interface{}
}

// PaymentAttempt is the unit of work for one checkout invocation. It is
// created and mutated only by the checkout controller; once terminal it is
// immutable.
type PaymentAttempt struct {
	ID               string // UUID
	Reference        string // <namespace>_<itemID>_<buyerID>_<monotonicMillis>
	BuyerID          string
	BuyerEmail       string
	ItemID           string
	AmountMinorUnits int64  // smallest currency unit, never floats
	Currency         string // ISO-ish code, e.g. "NGN"
	Status           AttemptStatus
	GatewayPayload   *GatewayResult // set on approval, audit only
	ErrorDetail      string         // populated only when Status == failed
	CreatedAt        time.Time
	UpdatedAt        time.Time
	GrantedAt        *time.Time
}

// NewPaymentAttempt validates inputs and builds a fresh attempt in the
// initiated status. Every invocation gets its own reference; attempts are
// never reused across retries.
func NewPaymentAttempt(id, reference string, buyer Buyer, lesson Lesson, currency string, now time.Time) (*PaymentAttempt, error) {
	if id == "" || reference == "" {
		return nil, domain.ErrInvalidArgument
	}
	if buyer.ID == "" || buyer.Email == "" {
		return nil, domain.ErrInvalidArgument
	}
	if lesson.ID == "" || lesson.PriceMinorUnits <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if lesson.Currency != "" {
		currency = lesson.Currency
	}
	return &PaymentAttempt{
		ID:               id,
		Reference:        reference,
		BuyerID:          buyer.ID,
		BuyerEmail:       buyer.Email,
		ItemID:           lesson.ID,
		AmountMinorUnits: lesson.PriceMinorUnits,
		Currency:         currency,
		Status:           AttemptStatusInitiated,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Transition moves the attempt to the target status, refusing illegal moves
// and any mutation of a terminal attempt.
func (a *PaymentAttempt) Transition(target AttemptStatus, now time.Time) error {
	if a.Status.Terminal() {
		return domain.ErrAttemptTerminal
	}
	if !a.Status.CanTransition(target) {
		return domain.ErrInvalidTransition
	}
	a.Status = target
	a.UpdatedAt = now
	if target == AttemptStatusGranted {
		t := now
		a.GrantedAt = &t
	}
	return nil
}
