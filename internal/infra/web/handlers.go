// File: internal/infra/web/handlers.go
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"lesson-checkout/internal/domain"
	"lesson-checkout/internal/domain/model"
	"lesson-checkout/internal/infra/logging"
	"lesson-checkout/internal/infra/redis"
)

type checkoutRequest struct {
	BuyerID          string `json:"buyer_id"`
	BuyerEmail       string `json:"buyer_email"`
	LessonID         string `json:"lesson_id"`
	CourseID         string `json:"course_id"`
	Title            string `json:"title"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Currency         string `json:"currency"`
}

type checkoutResponse struct {
	Reference  string `json:"reference"`
	Status     string `json:"status"`
	PaymentURL string `json:"payment_url,omitempty"`
}

type attemptView struct {
	Reference        string     `json:"reference"`
	BuyerID          string     `json:"buyer_id"`
	ItemID           string     `json:"item_id"`
	AmountMinorUnits int64      `json:"amount_minor_units"`
	Currency         string     `json:"currency"`
	Status           string     `json:"status"`
	ErrorDetail      string     `json:"error_detail,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	GrantedAt        *time.Time `json:"granted_at,omitempty"`
}

func viewOf(a *model.PaymentAttempt) attemptView {
	return attemptView{
		Reference:        a.Reference,
		BuyerID:          a.BuyerID,
		ItemID:           a.ItemID,
		AmountMinorUnits: a.AmountMinorUnits,
		Currency:         a.Currency,
		Status:           string(a.Status),
		ErrorDetail:      a.ErrorDetail,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
		GrantedAt:        a.GrantedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCheckoutStart accepts the checkout, starts the payment flow in the
// background and answers 202 with the reference. The terminal outcome is
// observable through GET /api/v1/checkout/{reference}.
func (s *Server) handleCheckoutStart(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if s.limiter != nil {
		ok, err := s.limiter.Allow(r.Context(), redis.CheckoutRateKey(req.BuyerID), s.cfg.RateLimit.CheckoutPerMinute, time.Minute)
		if err != nil {
			s.log.Warn().Err(err).Msg("rate limiter unavailable, letting request through")
		} else if !ok {
			http.Error(w, "Too many checkout attempts", http.StatusTooManyRequests)
			return
		}
	}

	var lockKey, lockToken string
	if s.locker != nil {
		lockKey = redis.CheckoutLockKey(req.BuyerID, req.LessonID)
		token, err := s.locker.TryLock(r.Context(), lockKey, s.cfg.Redis.LockTTL)
		if errors.Is(err, domain.ErrCheckoutLocked) {
			http.Error(w, "Checkout already in progress", http.StatusConflict)
			return
		}
		if err != nil {
			s.log.Warn().Err(err).Msg("checkout lock unavailable, proceeding unlocked")
		} else {
			lockToken = token
		}
	}

	s.log.Debug().
		Str("buyer_id", req.BuyerID).
		Str("email", logging.Redact(req.BuyerEmail, s.cfg.Runtime.Dev)).
		Str("lesson_id", req.LessonID).
		Msg("checkout requested")

	buyer := model.Buyer{ID: req.BuyerID, Email: req.BuyerEmail}
	lesson := model.Lesson{
		ID:              req.LessonID,
		CourseID:        req.CourseID,
		Title:           req.Title,
		PriceMinorUnits: req.AmountMinorUnits,
		Currency:        req.Currency,
	}

	ref, done, err := s.checkout.BeginPayment(s.flowCtx, buyer, lesson)
	if err != nil {
		s.releaseLock(lockKey, lockToken)
		switch {
		case errors.Is(err, domain.ErrAttemptInFlight):
			http.Error(w, "Checkout already in progress", http.StatusConflict)
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, "Invalid buyer or lesson", http.StatusBadRequest)
		default:
			http.Error(w, "Failed to start checkout", http.StatusInternalServerError)
		}
		return
	}

	go func() {
		out := <-done
		s.releaseLock(lockKey, lockToken)
		s.log.Info().
			Str("reference", out.Reference).
			Str("kind", string(out.Kind)).
			Msg("checkout resolved")
	}()

	resp := checkoutResponse{Reference: ref, Status: string(model.AttemptStatusInitiated)}
	if s.resolver != nil {
		resp.PaymentURL = "/pay/" + ref
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) releaseLock(key, token string) {
	if s.locker == nil || key == "" || token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.locker.Unlock(ctx, key, token); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("checkout lock release failed")
	}
}

func (s *Server) handleCheckoutStatus(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")
	a, err := s.attempts.FindByReference(r.Context(), nil, ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "Failed to load attempt", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(a))
}

// handlePayRedirect sends the buyer to the gateway's hosted checkout page.
func (s *Server) handlePayRedirect(w http.ResponseWriter, r *http.Request) {
	if s.resolver == nil {
		http.NotFound(w, r)
		return
	}
	ref := chi.URLParam(r, "reference")
	url, ok := s.resolver.AuthorizationURL(ref)
	if !ok {
		// The gateway registers the hosted page in the background, so a
		// buyer following the link immediately can land here first. A
		// live attempt row means the page is still being set up.
		if a, err := s.attempts.FindByReference(r.Context(), nil, ref); err == nil && !a.Status.Terminal() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "checkout is being prepared, retry shortly", http.StatusServiceUnavailable)
			return
		}
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// handleCallback is the gateway's return URL. Paystack redirects here with
// trxref/reference query params once the buyer leaves the hosted page; our
// own cancel link adds cancelled=true. Resolution is idempotent: a second
// hit for the same reference is a no-op.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if s.resolver == nil {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	ref := q.Get("reference")
	if ref == "" {
		ref = q.Get("trxref")
	}
	if ref == "" {
		http.Error(w, "Missing reference", http.StatusBadRequest)
		return
	}

	if q.Get("cancelled") == "true" {
		s.resolver.ResolveDismissed(ref)
	} else {
		raw := make(map[string]interface{}, len(q))
		for k := range q {
			raw[k] = q.Get(k)
		}
		s.resolver.ResolveApproved(ref, q.Get("trxref"), raw)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// ===== Ops endpoints =====

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Admin.APIKey == "" {
		s.log.Error().Msg("admin API key is not configured")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey != s.cfg.Admin.APIKey {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "Failed to mint session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAttemptsList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	attempts, err := s.attempts.ListRecent(r.Context(), nil, limit)
	if err != nil {
		http.Error(w, "Failed to list attempts", http.StatusInternalServerError)
		return
	}
	views := make([]attemptView, 0, len(attempts))
	for _, a := range attempts {
		views = append(views, viewOf(a))
	}
	writeJSON(w, http.StatusOK, struct {
		Data  []attemptView `json:"data"`
		Limit int           `json:"limit"`
	}{Data: views, Limit: limit})
}

func (s *Server) handleGrantsList(w http.ResponseWriter, r *http.Request) {
	buyerID := chi.URLParam(r, "buyerID")
	records, err := s.grants.ListByBuyer(r.Context(), nil, buyerID)
	if err != nil {
		http.Error(w, "Failed to list grants", http.StatusInternalServerError)
		return
	}
	type grantView struct {
		Reference        string    `json:"reference"`
		ItemID           string    `json:"item_id"`
		AmountMinorUnits int64     `json:"amount_minor_units"`
		Currency         string    `json:"currency"`
		Gateway          string    `json:"gateway"`
		CreatedAt        time.Time `json:"created_at"`
	}
	views := make([]grantView, 0, len(records))
	for _, g := range records {
		views = append(views, grantView{
			Reference:        g.Reference,
			ItemID:           g.ItemID,
			AmountMinorUnits: g.AmountMinorUnits,
			Currency:         g.Currency,
			Gateway:          g.Gateway,
			CreatedAt:        g.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Data []grantView `json:"data"`
	}{Data: views})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	week, err := s.attempts.SumGrantedByPeriod(ctx, nil, "week")
	if err != nil {
		http.Error(w, "Failed to get revenue", http.StatusInternalServerError)
		return
	}
	month, err := s.attempts.SumGrantedByPeriod(ctx, nil, "month")
	if err != nil {
		http.Error(w, "Failed to get revenue", http.StatusInternalServerError)
		return
	}
	year, err := s.attempts.SumGrantedByPeriod(ctx, nil, "year")
	if err != nil {
		http.Error(w, "Failed to get revenue", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		RevenueMinorUnits struct {
			Week  int64 `json:"week"`
			Month int64 `json:"month"`
			Year  int64 `json:"year"`
		} `json:"revenue_minor_units"`
	}{RevenueMinorUnits: struct {
		Week  int64 `json:"week"`
		Month int64 `json:"month"`
		Year  int64 `json:"year"`
	}{Week: week, Month: month, Year: year}})
}
