//go:build !integration

package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"lesson-checkout/internal/domain/ports/adapter"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newVerifier(t *testing.T, baseURL string, policy adapter.FallbackPolicy) *HTTPVerifier {
	t.Helper()
	v, err := NewHTTPVerifier(baseURL, "sk_test", 500*time.Millisecond, policy, nopLogger())
	if err != nil {
		t.Fatalf("building verifier: %v", err)
	}
	return v
}

func TestVerify_Confirmed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/transaction/verify/") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"status":"success","reference":"EDU_L1_S1_1","amount":500000}}`))
	}))
	defer srv.Close()

	v := newVerifier(t, srv.URL, adapter.FallbackStrict)
	res := v.Verify(context.Background(), "EDU_L1_S1_1")
	if !res.Confirmed {
		t.Errorf("expected confirmed, got %+v", res)
	}
}

func TestVerify_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":false,"message":"reference not found"}`))
	}))
	defer srv.Close()

	// The rejection is authoritative even under the permissive policy.
	v := newVerifier(t, srv.URL, adapter.FallbackPermissive)
	res := v.Verify(context.Background(), "EDU_L1_S1_1")
	if res.Confirmed {
		t.Fatal("an explicit rejection must never be overridden by the fallback")
	}
	if res.Detail != "reference not found" {
		t.Errorf("expected rejection detail, got %q", res.Detail)
	}
}

func TestVerify_NotSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"status":"abandoned"}}`))
	}))
	defer srv.Close()

	v := newVerifier(t, srv.URL, adapter.FallbackStrict)
	res := v.Verify(context.Background(), "EDU_L1_S1_1")
	if res.Confirmed {
		t.Fatal("abandoned transaction must not confirm")
	}
	if !strings.Contains(res.Detail, "abandoned") {
		t.Errorf("expected detail to carry the gateway status, got %q", res.Detail)
	}
}

func TestVerify_TimeoutStrict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	v := newVerifier(t, srv.URL, adapter.FallbackStrict)
	res := v.Verify(context.Background(), "EDU_L1_S1_1")
	if res.Confirmed {
		t.Fatal("strict fallback must fail on timeout")
	}
	if !strings.Contains(res.Detail, "unreachable") {
		t.Errorf("expected unreachable detail, got %q", res.Detail)
	}
}

func TestVerify_TimeoutPermissive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	v := newVerifier(t, srv.URL, adapter.FallbackPermissive)
	res := v.Verify(context.Background(), "EDU_L1_S1_1")
	if !res.Confirmed {
		t.Fatalf("permissive fallback must confirm on timeout, got %+v", res)
	}
}

func TestVerify_ServerErrorUsesFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	v := newVerifier(t, srv.URL, adapter.FallbackStrict)
	res := v.Verify(context.Background(), "EDU_L1_S1_1")
	if res.Confirmed {
		t.Fatal("5xx from the authority is unreachable, strict fails")
	}
}

func TestVerify_Idempotent(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":true,"data":{"status":"success"}}`))
	}))
	defer srv.Close()

	v := newVerifier(t, srv.URL, adapter.FallbackStrict)
	first := v.Verify(context.Background(), "EDU_L1_S1_1")
	second := v.Verify(context.Background(), "EDU_L1_S1_1")
	if !first.Confirmed || !second.Confirmed {
		t.Errorf("expected both calls confirmed, got %v then %v", first.Confirmed, second.Confirmed)
	}
	if calls != 2 {
		t.Errorf("expected the authority to be consulted each time, got %d calls", calls)
	}
}

func TestNewHTTPVerifier_RequiresDeclaredPolicy(t *testing.T) {
	if _, err := NewHTTPVerifier("http://x", "sk", time.Second, adapter.FallbackPolicy("optimistic"), nopLogger()); err == nil {
		t.Fatal("an undeclared fallback policy must be rejected")
	}
}
