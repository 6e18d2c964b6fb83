// File: internal/infra/adapters/verify/http_verifier.go
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"lesson-checkout/internal/domain/ports/adapter"
	"lesson-checkout/internal/infra/metrics"
)

var _ adapter.Verifier = (*HTTPVerifier)(nil)

// HTTPVerifier confirms references against the verification authority
// (Paystack's verify endpoint, or anything speaking the same contract).
// It is stateless: the authority is the source of truth, so repeated calls
// for one reference always agree.
//
// Only a transport-level failure triggers the configured fallback policy.
// An authority that answers and rejects is authoritative, whatever the
// policy says.
type HTTPVerifier struct {
	baseURL   string
	secretKey string
	timeout   time.Duration
	policy    adapter.FallbackPolicy
	client    *http.Client
	log       *zerolog.Logger
}

func NewHTTPVerifier(baseURL, secretKey string, timeout time.Duration, policy adapter.FallbackPolicy, logger *zerolog.Logger) (*HTTPVerifier, error) {
	if !policy.Valid() {
		return nil, fmt.Errorf("fallback policy must be declared as %q or %q, got %q",
			adapter.FallbackStrict, adapter.FallbackPermissive, policy)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPVerifier{
		baseURL:   baseURL,
		secretKey: secretKey,
		timeout:   timeout,
		policy:    policy,
		client:    &http.Client{Timeout: timeout},
		log:       logger,
	}, nil
}

func (v *HTTPVerifier) Verify(ctx context.Context, reference string) adapter.VerificationResult {
	start := time.Now()
	res, result, reason := v.verify(ctx, reference)
	metrics.ObserveVerify(result, reason, time.Since(start))
	return res
}

func (v *HTTPVerifier) verify(ctx context.Context, reference string) (adapter.VerificationResult, string, string) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	endpoint := v.baseURL + "/transaction/verify/" + url.PathEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return v.fallback(reference, err)
	}
	req.Header.Set("Authorization", "Bearer "+v.secretKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return v.fallback(reference, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return v.fallback(reference, fmt.Errorf("authority returned %d", resp.StatusCode))
	}

	var out struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Status          string `json:"status"`
			Reference       string `json:"reference"`
			Amount          int64  `json:"amount"`
			GatewayResponse string `json:"gateway_response"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return v.fallback(reference, fmt.Errorf("malformed authority response: %w", err))
	}

	if !out.Status {
		detail := out.Message
		if detail == "" {
			detail = "reference rejected by verification authority"
		}
		return adapter.VerificationResult{Confirmed: false, Detail: detail}, "rejected", "rejected"
	}
	if out.Data.Status != "success" {
		return adapter.VerificationResult{
			Confirmed: false,
			Detail:    fmt.Sprintf("payment not successful: %s", out.Data.Status),
		}, "rejected", "not_success"
	}
	return adapter.VerificationResult{Confirmed: true}, "confirmed", ""
}

// fallback applies the declared policy for an unreachable authority.
func (v *HTTPVerifier) fallback(reference string, cause error) (adapter.VerificationResult, string, string) {
	if v.policy == adapter.FallbackPermissive {
		v.log.Warn().Err(cause).Str("reference", reference).
			Msg("verification authority unreachable, permissive fallback confirms")
		return adapter.VerificationResult{
			Confirmed: true,
			Detail:    "verification authority unreachable; permissive fallback applied",
		}, "fallback_confirmed", "unreachable"
	}
	v.log.Warn().Err(cause).Str("reference", reference).
		Msg("verification authority unreachable, strict fallback fails attempt")
	return adapter.VerificationResult{
		Confirmed: false,
		Detail:    "verification authority unreachable",
	}, "fallback_failed", "unreachable"
}
