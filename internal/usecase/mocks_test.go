// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lesson-checkout/internal/domain"
	"lesson-checkout/internal/domain/model"
	"lesson-checkout/internal/domain/ports/adapter"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memAttemptRepo is a small in-memory audit repository used by unit tests.
type memAttemptRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.PaymentAttempt // by ID
	saveErr error                            // used by tests to simulate save failures
}

func newMemAttemptRepo() *memAttemptRepo {
	return &memAttemptRepo{store: make(map[string]*model.PaymentAttempt)}
}

func (m *memAttemptRepo) Save(ctx context.Context, qx any, a *model.PaymentAttempt) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.store[a.ID] = &cp
	return nil
}

func (m *memAttemptRepo) FindByReference(ctx context.Context, qx any, reference string) (*model.PaymentAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.store {
		if a.Reference == reference {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memAttemptRepo) UpdateStatus(ctx context.Context, qx any, id string, status model.AttemptStatus, errorDetail string, grantedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = status
	a.ErrorDetail = errorDetail
	a.GrantedAt = grantedAt
	a.UpdatedAt = time.Now()
	return nil
}

func (m *memAttemptRepo) ListRecent(ctx context.Context, qx any, limit int) ([]*model.PaymentAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.PaymentAttempt, 0, len(m.store))
	for _, a := range m.store {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memAttemptRepo) ListUnresolvedOlderThan(ctx context.Context, qx any, cutoff time.Time, limit int) ([]*model.PaymentAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*model.PaymentAttempt{}
	for _, a := range m.store {
		if !a.Status.Terminal() && a.UpdatedAt.Before(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAttemptRepo) SumGrantedByPeriod(ctx context.Context, qx any, period string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	for _, a := range m.store {
		if a.Status == model.AttemptStatusGranted {
			sum += a.AmountMinorUnits
		}
	}
	return sum, nil
}

// scriptedGateway drives the checkout hooks from the test body. Approve and
// Dismiss deliver the configured completion as soon as Initiate runs.
type scriptedGateway struct {
	mu           sync.Mutex
	initiates    int
	lastConfig   adapter.CheckoutConfig
	approveWith  *model.GatewayResult // fire OnApproved with this result
	dismiss      bool                 // fire OnDismissed
	doubleFire   bool                 // misbehave: fire the hook twice
	initiateFunc func(ctx context.Context, cfg adapter.CheckoutConfig, hooks adapter.CheckoutHooks)
}

func (g *scriptedGateway) Name() string { return "scripted" }

func (g *scriptedGateway) Initiate(ctx context.Context, cfg adapter.CheckoutConfig, hooks adapter.CheckoutHooks) {
	g.mu.Lock()
	g.initiates++
	g.lastConfig = cfg
	g.mu.Unlock()

	if g.initiateFunc != nil {
		g.initiateFunc(ctx, cfg, hooks)
		return
	}
	if g.dismiss {
		go func() {
			hooks.OnDismissed()
			if g.doubleFire {
				hooks.OnDismissed()
			}
		}()
		return
	}
	if g.approveWith != nil {
		res := *g.approveWith
		if res.Reference == "" {
			res.Reference = cfg.Reference
		}
		go func() {
			hooks.OnApproved(res)
			if g.doubleFire {
				hooks.OnApproved(res)
			}
		}()
	}
}

func (g *scriptedGateway) configSeen() adapter.CheckoutConfig {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastConfig
}

// scriptedVerifier answers Verify from a fixed result and counts calls.
type scriptedVerifier struct {
	mu     sync.Mutex
	calls  int
	result adapter.VerificationResult
}

func (v *scriptedVerifier) Verify(ctx context.Context, reference string) adapter.VerificationResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	return v.result
}

func (v *scriptedVerifier) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

// countingSink records every grant it receives.
type countingSink struct {
	mu     sync.Mutex
	grants []model.Grant
	err    error
}

func (s *countingSink) GrantAccess(ctx context.Context, g model.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants = append(s.grants, g)
	return s.err
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.grants)
}

func (s *countingSink) last() model.Grant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grants[len(s.grants)-1]
}
