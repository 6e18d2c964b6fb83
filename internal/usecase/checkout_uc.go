// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lesson-checkout/internal/domain"
	"lesson-checkout/internal/domain/model"
	"lesson-checkout/internal/domain/ports/adapter"
	"lesson-checkout/internal/domain/ports/repository"
	"lesson-checkout/internal/infra/logging"
	"lesson-checkout/internal/infra/metrics"
	"lesson-checkout/internal/reference"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

type CheckoutUseCase interface {
	// StartPayment runs one checkout attempt end to end and returns its
	// terminal outcome. The error return is caller misuse only: a second
	// call while an attempt is in flight, or invalid buyer/lesson input.
	// Runtime failures (rejection, unreachable authority, dismissal) come
	// back inside the Outcome, never as an error.
	StartPayment(ctx context.Context, buyer model.Buyer, lesson model.Lesson) (model.Outcome, error)

	// BeginPayment starts the attempt and returns its reference right away,
	// with the terminal outcome delivered exactly once on the channel.
	// Same misuse-only error contract as StartPayment.
	BeginPayment(ctx context.Context, buyer model.Buyer, lesson model.Lesson) (string, <-chan model.Outcome, error)
}

type checkoutUC struct {
	gateway  adapter.CheckoutGateway
	verifier adapter.Verifier
	sink     adapter.OutcomeSink
	attempts repository.AttemptRepository
	refs     *reference.Generator
	channels []adapter.PaymentChannel
	currency string
	log      *zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]*model.PaymentAttempt // keyed by buyer+lesson
}

func NewCheckoutUseCase(
	gateway adapter.CheckoutGateway,
	verifier adapter.Verifier,
	sink adapter.OutcomeSink,
	attempts repository.AttemptRepository,
	refs *reference.Generator,
	channels []adapter.PaymentChannel,
	currency string,
	logger *zerolog.Logger,
) *checkoutUC {
	return &checkoutUC{
		gateway:  gateway,
		verifier: verifier,
		sink:     sink,
		attempts: attempts,
		refs:     refs,
		channels: channels,
		currency: currency,
		log:      logger,
		inFlight: make(map[string]*model.PaymentAttempt),
	}
}

// gatewayEvent carries the single completion signal out of the checkout hooks.
type gatewayEvent struct {
	approved bool
	result   model.GatewayResult
}

func (u *checkoutUC) StartPayment(ctx context.Context, buyer model.Buyer, lesson model.Lesson) (model.Outcome, error) {
	_, done, err := u.BeginPayment(ctx, buyer, lesson)
	if err != nil {
		return model.Outcome{}, err
	}
	return <-done, nil
}

func (u *checkoutUC) BeginPayment(ctx context.Context, buyer model.Buyer, lesson model.Lesson) (string, <-chan model.Outcome, error) {
	key := buyer.ID + "|" + lesson.ID

	u.mu.Lock()
	if _, busy := u.inFlight[key]; busy {
		u.mu.Unlock()
		return "", nil, domain.ErrAttemptInFlight
	}
	ref := u.refs.Next(lesson.ID, buyer.ID)
	attempt, err := model.NewPaymentAttempt(uuid.NewString(), ref, buyer, lesson, u.currency, time.Now())
	if err != nil {
		u.mu.Unlock()
		return "", nil, err
	}
	u.inFlight[key] = attempt
	u.mu.Unlock()

	// The audit row lands before the caller sees the reference, so a
	// status lookup right after never misses.
	u.saveAudit(ctx, attempt, u.log)

	done := make(chan model.Outcome, 1)
	go func() {
		out := u.run(ctx, attempt)
		u.mu.Lock()
		delete(u.inFlight, key)
		u.mu.Unlock()
		done <- out
	}()
	return attempt.Reference, done, nil
}

func (u *checkoutUC) run(ctx context.Context, attempt *model.PaymentAttempt) (out model.Outcome) {
	ctx = logging.WithReference(ctx, attempt.Reference)
	ctx = logging.WithBuyerID(ctx, attempt.BuyerID)
	ctx = logging.WithItemID(ctx, attempt.ItemID)
	log := *logging.With(ctx, u.log)

	metrics.IncAttempt()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("checkout orchestration fault")
			out = u.finish(ctx, attempt, model.AttemptStatusFailed, "internal error during checkout", &log)
		}
	}()

	events := make(chan gatewayEvent, 1)
	var once sync.Once // only the first gateway signal counts
	hooks := adapter.CheckoutHooks{
		OnApproved: func(res model.GatewayResult) {
			once.Do(func() { events <- gatewayEvent{approved: true, result: res} })
		},
		OnDismissed: func() {
			once.Do(func() { events <- gatewayEvent{} })
		},
	}

	if err := attempt.Transition(model.AttemptStatusAwaitingGateway, time.Now()); err != nil {
		log.Error().Err(err).Msg("transition to awaiting_gateway")
		return u.finish(ctx, attempt, model.AttemptStatusFailed, "internal error during checkout", &log)
	}
	u.updateAudit(ctx, attempt, &log)

	u.gateway.Initiate(ctx, u.checkoutConfig(attempt), hooks)

	var ev gatewayEvent
	select {
	case ev = <-events:
	case <-ctx.Done():
		// Caller abandoned the checkout before the gateway produced a
		// result. The gateway may still fire later; the once above makes
		// that a no-op.
		log.Info().Msg("checkout context cancelled before gateway result")
		return u.finish(ctx, attempt, model.AttemptStatusCancelled, "", &log)
	}

	if !ev.approved {
		log.Info().Msg("checkout dismissed by user")
		return u.finish(ctx, attempt, model.AttemptStatusCancelled, "", &log)
	}

	attempt.GatewayPayload = &ev.result
	if err := attempt.Transition(model.AttemptStatusAwaitingVerification, time.Now()); err != nil {
		log.Error().Err(err).Msg("transition to awaiting_verification")
		return u.finish(ctx, attempt, model.AttemptStatusFailed, "internal error during checkout", &log)
	}
	u.updateAudit(ctx, attempt, &log)
	log.Info().Str("transaction_id", ev.result.TransactionID).Msg("gateway approved, verifying")

	res := u.verifier.Verify(ctx, attempt.Reference)
	if !res.Confirmed {
		log.Warn().Str("detail", res.Detail).Msg("verification did not confirm")
		return u.finish(ctx, attempt, model.AttemptStatusFailed, res.Detail, &log)
	}

	return u.finish(ctx, attempt, model.AttemptStatusGranted, "", &log)
}

func (u *checkoutUC) checkoutConfig(a *model.PaymentAttempt) adapter.CheckoutConfig {
	return adapter.CheckoutConfig{
		Reference:        a.Reference,
		BuyerEmail:       a.BuyerEmail,
		AmountMinorUnits: a.AmountMinorUnits,
		Currency:         a.Currency,
		Channels:         u.channels,
		Metadata: map[string]string{
			"buyer_id": a.BuyerID,
			"item_id":  a.ItemID,
		},
	}
}

// finish performs the single terminal transition, emits the grant for the
// granted case and shapes the outcome for the caller. The transition table
// makes a second terminal move impossible, so the sink fires at most once.
func (u *checkoutUC) finish(ctx context.Context, a *model.PaymentAttempt, target model.AttemptStatus, detail string, log *zerolog.Logger) model.Outcome {
	now := time.Now()
	if err := a.Transition(target, now); err != nil {
		log.Error().Err(err).Str("target", string(target)).Msg("terminal transition refused")
		return u.outcome(a, now)
	}
	if target == model.AttemptStatusFailed {
		a.ErrorDetail = detail
	}

	metrics.IncOutcome(string(model.OutcomeKindFor(target)))
	u.updateAudit(ctx, a, log)

	if target == model.AttemptStatusGranted {
		metrics.AddRevenue(a.Currency, a.AmountMinorUnits)
		grant := model.Grant{
			Reference:        a.Reference,
			BuyerID:          a.BuyerID,
			ItemID:           a.ItemID,
			AmountMinorUnits: a.AmountMinorUnits,
			Currency:         a.Currency,
			Gateway:          u.gateway.Name(),
			GatewayPayload:   a.GatewayPayload,
			Verified:         true,
			Timestamp:        now,
		}
		if err := u.sink.GrantAccess(ctx, grant); err != nil {
			log.Error().Err(err).Msg("outcome sink rejected grant")
		}
		log.Info().Int64("amount", a.AmountMinorUnits).Msg("payment granted")
	}

	return u.outcome(a, now)
}

func (u *checkoutUC) outcome(a *model.PaymentAttempt, ts time.Time) model.Outcome {
	return model.Outcome{
		Kind:             model.OutcomeKindFor(a.Status),
		Reference:        a.Reference,
		BuyerID:          a.BuyerID,
		ItemID:           a.ItemID,
		AmountMinorUnits: a.AmountMinorUnits,
		Currency:         a.Currency,
		GatewayPayload:   a.GatewayPayload,
		Verified:         a.Status == model.AttemptStatusGranted,
		Detail:           a.ErrorDetail,
		Timestamp:        ts,
	}
}

func (u *checkoutUC) saveAudit(ctx context.Context, a *model.PaymentAttempt, log *zerolog.Logger) {
	if err := u.attempts.Save(ctx, nil, a); err != nil {
		log.Warn().Err(err).Msg("attempt audit save failed")
	}
}

func (u *checkoutUC) updateAudit(ctx context.Context, a *model.PaymentAttempt, log *zerolog.Logger) {
	if err := u.attempts.UpdateStatus(ctx, nil, a.ID, a.Status, a.ErrorDetail, a.GrantedAt); err != nil {
		log.Warn().Err(err).Msg("attempt audit update failed")
	}
}
