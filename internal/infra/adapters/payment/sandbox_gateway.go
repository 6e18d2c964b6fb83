package payment

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"lesson-checkout/internal/domain/model"
	"lesson-checkout/internal/domain/ports/adapter"
)

var _ adapter.CheckoutGateway = (*SandboxGateway)(nil)

// SandboxGateway is an in-memory gateway for dev mode and tests. It completes
// every checkout immediately: approved with a ULID transaction id by default,
// dismissed when scripted to. No randomness in the default path; flaky
// behavior belongs to tests, never to the adapter.
type SandboxGateway struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	dismiss bool
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// DismissNext makes following Initiate calls complete as dismissed.
func (g *SandboxGateway) DismissNext(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dismiss = v
}

func (g *SandboxGateway) Name() string { return "sandbox" }

func (g *SandboxGateway) Initiate(ctx context.Context, cfg adapter.CheckoutConfig, hooks adapter.CheckoutHooks) {
	g.mu.Lock()
	dismiss := g.dismiss
	var txID string
	if !dismiss {
		txID = "SBX_" + ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
	}
	g.mu.Unlock()

	go func() {
		if dismiss {
			hooks.OnDismissed()
			return
		}
		hooks.OnApproved(model.GatewayResult{
			Reference:     cfg.Reference,
			TransactionID: txID,
			Raw: map[string]interface{}{
				"gateway": "sandbox",
				"amount":  cfg.AmountMinorUnits,
			},
		})
	}()
}
