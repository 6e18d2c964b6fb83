// File: internal/infra/web/mock_test.go
package web

import (
	"context"
	"sync"
	"time"

	"lesson-checkout/internal/domain"
	"lesson-checkout/internal/domain/model"
	"lesson-checkout/internal/domain/ports/adapter"
	"lesson-checkout/internal/domain/ports/repository"
)

// --- Mock use case ---

type mockCheckoutUC struct {
	BeginFunc func(ctx context.Context, buyer model.Buyer, lesson model.Lesson) (string, <-chan model.Outcome, error)
}

func (m *mockCheckoutUC) StartPayment(ctx context.Context, buyer model.Buyer, lesson model.Lesson) (model.Outcome, error) {
	_, done, err := m.BeginPayment(ctx, buyer, lesson)
	if err != nil {
		return model.Outcome{}, err
	}
	return <-done, nil
}

func (m *mockCheckoutUC) BeginPayment(ctx context.Context, buyer model.Buyer, lesson model.Lesson) (string, <-chan model.Outcome, error) {
	return m.BeginFunc(ctx, buyer, lesson)
}

// --- Mock repositories ---

type mockAttemptRepo struct {
	mu       sync.Mutex
	attempts map[string]*model.PaymentAttempt // keyed by reference
	revenue  map[string]int64                 // keyed by period
	ListErr  error
}

func newMockAttemptRepo() *mockAttemptRepo {
	return &mockAttemptRepo{
		attempts: make(map[string]*model.PaymentAttempt),
		revenue:  make(map[string]int64),
	}
}

func (m *mockAttemptRepo) Save(ctx context.Context, qx any, a *model.PaymentAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.attempts[a.Reference] = &cp
	return nil
}

func (m *mockAttemptRepo) FindByReference(ctx context.Context, qx any, reference string) (*model.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[reference]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAttemptRepo) UpdateStatus(ctx context.Context, qx any, id string, status model.AttemptStatus, errorDetail string, grantedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.ID == id {
			a.Status = status
			a.ErrorDetail = errorDetail
			a.GrantedAt = grantedAt
		}
	}
	return nil
}

func (m *mockAttemptRepo) ListRecent(ctx context.Context, qx any, limit int) ([]*model.PaymentAttempt, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.PaymentAttempt, 0, len(m.attempts))
	for _, a := range m.attempts {
		cp := *a
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockAttemptRepo) ListUnresolvedOlderThan(ctx context.Context, qx any, cutoff time.Time, limit int) ([]*model.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.PaymentAttempt, 0)
	for _, a := range m.attempts {
		if !a.Status.Terminal() && a.UpdatedAt.Before(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockAttemptRepo) SumGrantedByPeriod(ctx context.Context, qx any, period string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revenue[period], nil
}

type mockGrantRepo struct {
	mu      sync.Mutex
	records []*repository.GrantRecord
}

func (m *mockGrantRepo) Save(ctx context.Context, qx any, g *repository.GrantRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *g
	m.records = append(m.records, &cp)
	return nil
}

func (m *mockGrantRepo) ListByBuyer(ctx context.Context, qx any, buyerID string) ([]*repository.GrantRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*repository.GrantRecord, 0)
	for _, g := range m.records {
		if g.BuyerID == buyerID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- Mock redirect gateway ---

// mockRedirectGateway implements both the gateway port and the resolver
// surface the callback handler looks for.
type mockRedirectGateway struct {
	mu        sync.Mutex
	urls      map[string]string
	approved  map[string]string // reference -> transaction id
	dismissed map[string]bool
}

func newMockRedirectGateway() *mockRedirectGateway {
	return &mockRedirectGateway{
		urls:      make(map[string]string),
		approved:  make(map[string]string),
		dismissed: make(map[string]bool),
	}
}

func (g *mockRedirectGateway) Name() string { return "mockpay" }

func (g *mockRedirectGateway) Initiate(ctx context.Context, cfg adapter.CheckoutConfig, hooks adapter.CheckoutHooks) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.urls[cfg.Reference] = "https://checkout.example.com/" + cfg.Reference
}

func (g *mockRedirectGateway) AuthorizationURL(reference string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	u, ok := g.urls[reference]
	return u, ok
}

func (g *mockRedirectGateway) ResolveApproved(reference, transactionID string, raw map[string]interface{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.approved[reference] = transactionID
}

func (g *mockRedirectGateway) ResolveDismissed(reference string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dismissed[reference] = true
}
