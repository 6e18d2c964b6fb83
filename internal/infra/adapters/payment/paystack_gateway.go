// File: internal/infra/adapters/payment/paystack_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lesson-checkout/internal/domain/model"
	"lesson-checkout/internal/domain/ports/adapter"
)

var _ adapter.CheckoutGateway = (*PaystackGateway)(nil)

// PaystackGateway implements the checkout port against Paystack's hosted
// checkout. Initiate creates a transaction and parks the hooks; completion
// arrives later through ResolveApproved/ResolveDismissed, driven by the
// callback route the gateway redirects the user to. Whatever happens,
// exactly one hook fires exactly once per Initiate.
type PaystackGateway struct {
	secretKey   string
	baseURL     string
	callbackURL string
	checkoutTTL time.Duration
	client      *http.Client
	log         *zerolog.Logger

	mu      sync.Mutex
	pending map[string]*pendingCheckout // by reference
}

type pendingCheckout struct {
	authorizationURL string
	hooks            adapter.CheckoutHooks
	once             sync.Once
}

func NewPaystackGateway(secretKey, baseURL, callbackURL string, checkoutTTL time.Duration, logger *zerolog.Logger) (*PaystackGateway, error) {
	if secretKey == "" {
		return nil, errors.New("paystack secret key empty")
	}
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	if callbackURL != "" {
		if _, err := url.Parse(callbackURL); err != nil {
			return nil, fmt.Errorf("invalid callback url: %w", err)
		}
	}
	if checkoutTTL <= 0 {
		checkoutTTL = 15 * time.Minute
	}
	return &PaystackGateway{
		secretKey:   secretKey,
		baseURL:     baseURL,
		callbackURL: callbackURL,
		checkoutTTL: checkoutTTL,
		client:      &http.Client{Timeout: 15 * time.Second},
		log:         logger,
		pending:     make(map[string]*pendingCheckout),
	}, nil
}

func (g *PaystackGateway) Name() string { return "paystack" }

func (g *PaystackGateway) Initiate(ctx context.Context, cfg adapter.CheckoutConfig, hooks adapter.CheckoutHooks) {
	payload := map[string]any{
		"email":     cfg.BuyerEmail,
		"amount":    cfg.AmountMinorUnits,
		"reference": cfg.Reference,
		"currency":  cfg.Currency,
	}
	if len(cfg.Channels) > 0 {
		chans := make([]string, 0, len(cfg.Channels))
		for _, c := range cfg.Channels {
			chans = append(chans, string(c))
		}
		payload["channels"] = chans
	}
	if len(cfg.Metadata) > 0 {
		payload["metadata"] = cfg.Metadata
	}
	if g.callbackURL != "" {
		payload["callback_url"] = g.callbackURL
	}

	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/transaction/initialize", bytes.NewReader(b))
	if err != nil {
		g.dismissWithDetail(cfg.Reference, hooks, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.secretKey)

	resp, err := g.client.Do(req)
	if err != nil {
		g.dismissWithDetail(cfg.Reference, hooks, err)
		return
	}
	defer resp.Body.Close()

	var out struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		g.dismissWithDetail(cfg.Reference, hooks, err)
		return
	}
	if !out.Status || out.Data.AuthorizationURL == "" {
		g.dismissWithDetail(cfg.Reference, hooks, fmt.Errorf("paystack initialize failed: %s", out.Message))
		return
	}

	p := &pendingCheckout{authorizationURL: out.Data.AuthorizationURL, hooks: hooks}
	g.mu.Lock()
	g.pending[cfg.Reference] = p
	g.mu.Unlock()

	// The hosted checkout is user-paced, but not unbounded: a buyer who
	// walks away from the page never triggers the callback, so after
	// checkoutTTL the attempt is dismissed. Context death does the same.
	// Either way a resolved attempt makes this a no-op.
	go func() {
		timer := time.NewTimer(g.checkoutTTL)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			g.log.Info().Str("reference", cfg.Reference).Msg("hosted checkout expired without a callback")
		}
		g.ResolveDismissed(cfg.Reference)
	}()

	g.log.Debug().Str("reference", cfg.Reference).Msg("paystack checkout initialized")
}

// AuthorizationURL returns the hosted checkout URL for a pending reference.
func (g *PaystackGateway) AuthorizationURL(reference string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pending[reference]
	if !ok {
		return "", false
	}
	return p.authorizationURL, true
}

// ResolveApproved completes a pending checkout as approved. Duplicate
// callbacks and already-resolved references are no-ops.
func (g *PaystackGateway) ResolveApproved(reference, transactionID string, raw map[string]interface{}) {
	p := g.take(reference)
	if p == nil {
		return
	}
	p.once.Do(func() {
		p.hooks.OnApproved(model.GatewayResult{
			Reference:     reference,
			TransactionID: transactionID,
			Raw:           raw,
		})
	})
}

// ResolveDismissed completes a pending checkout as dismissed.
func (g *PaystackGateway) ResolveDismissed(reference string) {
	p := g.take(reference)
	if p == nil {
		return
	}
	p.once.Do(p.hooks.OnDismissed)
}

func (g *PaystackGateway) take(reference string) *pendingCheckout {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pending[reference]
	if !ok {
		return nil
	}
	delete(g.pending, reference)
	return p
}

// dismissWithDetail synthesizes the dismissal hook for a gateway-side error:
// the flow gets its completion signal, the detail goes to the log.
func (g *PaystackGateway) dismissWithDetail(reference string, hooks adapter.CheckoutHooks, err error) {
	g.log.Warn().Err(err).Str("reference", reference).Msg("paystack initiate error, dismissing attempt")
	hooks.OnDismissed()
}
