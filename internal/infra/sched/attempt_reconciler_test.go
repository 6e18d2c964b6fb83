//go:build !integration

// File: internal/infra/sched/attempt_reconciler_test.go
package sched

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"lesson-checkout/internal/domain"
	"lesson-checkout/internal/domain/model"
	"lesson-checkout/internal/domain/ports/adapter"
)

type memAttempts struct {
	mu   sync.Mutex
	rows map[string]*model.PaymentAttempt // keyed by id
}

func newMemAttempts() *memAttempts {
	return &memAttempts{rows: make(map[string]*model.PaymentAttempt)}
}

func (m *memAttempts) Save(ctx context.Context, qx any, a *model.PaymentAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.rows[a.ID] = &cp
	return nil
}

func (m *memAttempts) FindByReference(ctx context.Context, qx any, reference string) (*model.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.Reference == reference {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memAttempts) UpdateStatus(ctx context.Context, qx any, id string, status model.AttemptStatus, errorDetail string, grantedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = status
	a.ErrorDetail = errorDetail
	a.GrantedAt = grantedAt
	return nil
}

func (m *memAttempts) ListRecent(ctx context.Context, qx any, limit int) ([]*model.PaymentAttempt, error) {
	return nil, nil
}

func (m *memAttempts) ListUnresolvedOlderThan(ctx context.Context, qx any, cutoff time.Time, limit int) ([]*model.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.PaymentAttempt, 0)
	for _, a := range m.rows {
		if !a.Status.Terminal() && a.UpdatedAt.Before(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAttempts) SumGrantedByPeriod(ctx context.Context, qx any, period string) (int64, error) {
	return 0, nil
}

func (m *memAttempts) statusOf(id string) model.AttemptStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].Status
}

type stubVerifier struct {
	result adapter.VerificationResult
	calls  int
}

func (v *stubVerifier) Verify(ctx context.Context, reference string) adapter.VerificationResult {
	v.calls++
	return v.result
}

type recordingSink struct {
	attempts *memAttempts
	grants   []model.Grant
}

func (s *recordingSink) GrantAccess(ctx context.Context, g model.Grant) error {
	s.grants = append(s.grants, g)
	a, err := s.attempts.FindByReference(ctx, nil, g.Reference)
	if err != nil {
		return err
	}
	now := g.Timestamp
	return s.attempts.UpdateStatus(ctx, nil, a.ID, model.AttemptStatusGranted, "", &now)
}

func staleAttempt(t *testing.T, id, ref string, status model.AttemptStatus, age time.Duration) *model.PaymentAttempt {
	t.Helper()
	a, err := model.NewPaymentAttempt(id, ref,
		model.Buyer{ID: "S1", Email: "s1@example.com"},
		model.Lesson{ID: "L1", PriceMinorUnits: 500000},
		"NGN", time.Now().Add(-age))
	if err != nil {
		t.Fatal(err)
	}
	a.Status = status
	return a
}

func newReconciler(attempts *memAttempts, v adapter.Verifier, s adapter.OutcomeSink) *AttemptReconciler {
	logger := zerolog.Nop()
	return NewAttemptReconciler(attempts, v, s, "paystack", time.Minute, 10*time.Minute, &logger)
}

func TestAttemptReconcilerTick(t *testing.T) {
	ctx := context.Background()

	t.Run("stale awaiting_verification settles as granted", func(t *testing.T) {
		attempts := newMemAttempts()
		a := staleAttempt(t, "id-1", "EDU_L1_S1_1", model.AttemptStatusAwaitingVerification, time.Hour)
		attempts.Save(ctx, nil, a)

		sink := &recordingSink{attempts: attempts}
		v := &stubVerifier{result: adapter.VerificationResult{Confirmed: true}}
		newReconciler(attempts, v, sink).tick(ctx)

		if v.calls != 1 {
			t.Fatalf("expected one verify call, got %d", v.calls)
		}
		if len(sink.grants) != 1 {
			t.Fatalf("expected one grant, got %d", len(sink.grants))
		}
		if sink.grants[0].Gateway != "paystack" || !sink.grants[0].Verified {
			t.Errorf("unexpected grant %+v", sink.grants[0])
		}
		if got := attempts.statusOf("id-1"); got != model.AttemptStatusGranted {
			t.Errorf("expected granted, got %s", got)
		}
	})

	t.Run("stale awaiting_verification settles as failed on rejection", func(t *testing.T) {
		attempts := newMemAttempts()
		a := staleAttempt(t, "id-2", "EDU_L1_S1_2", model.AttemptStatusAwaitingVerification, time.Hour)
		attempts.Save(ctx, nil, a)

		sink := &recordingSink{attempts: attempts}
		v := &stubVerifier{result: adapter.VerificationResult{Confirmed: false, Detail: "reference not found"}}
		newReconciler(attempts, v, sink).tick(ctx)

		if len(sink.grants) != 0 {
			t.Fatalf("expected no grants, got %d", len(sink.grants))
		}
		if got := attempts.statusOf("id-2"); got != model.AttemptStatusFailed {
			t.Errorf("expected failed, got %s", got)
		}
	})

	t.Run("stale awaiting_gateway is cancelled without verification", func(t *testing.T) {
		attempts := newMemAttempts()
		a := staleAttempt(t, "id-3", "EDU_L1_S1_3", model.AttemptStatusAwaitingGateway, time.Hour)
		attempts.Save(ctx, nil, a)

		sink := &recordingSink{attempts: attempts}
		v := &stubVerifier{result: adapter.VerificationResult{Confirmed: true}}
		newReconciler(attempts, v, sink).tick(ctx)

		if v.calls != 0 {
			t.Fatalf("expected no verify calls, got %d", v.calls)
		}
		if got := attempts.statusOf("id-3"); got != model.AttemptStatusCancelled {
			t.Errorf("expected cancelled, got %s", got)
		}
	})

	t.Run("fresh attempts are left alone", func(t *testing.T) {
		attempts := newMemAttempts()
		a := staleAttempt(t, "id-4", "EDU_L1_S1_4", model.AttemptStatusAwaitingVerification, time.Minute)
		attempts.Save(ctx, nil, a)

		sink := &recordingSink{attempts: attempts}
		v := &stubVerifier{result: adapter.VerificationResult{Confirmed: true}}
		newReconciler(attempts, v, sink).tick(ctx)

		if v.calls != 0 {
			t.Fatalf("expected no verify calls, got %d", v.calls)
		}
		if got := attempts.statusOf("id-4"); got != model.AttemptStatusAwaitingVerification {
			t.Errorf("expected untouched status, got %s", got)
		}
	})
}
