// File: internal/infra/web/server.go
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"lesson-checkout/internal/config"
	"lesson-checkout/internal/domain/ports/adapter"
	"lesson-checkout/internal/domain/ports/repository"
	"lesson-checkout/internal/infra/redis"
	"lesson-checkout/internal/usecase"
)

// callbackResolver is the redirect-style gateway surface: a hosted checkout
// page the buyer is sent to, resolved later by the gateway's callback. The
// sandbox gateway resolves its own checkouts and does not implement it.
type callbackResolver interface {
	AuthorizationURL(reference string) (string, bool)
	ResolveApproved(reference, transactionID string, raw map[string]interface{})
	ResolveDismissed(reference string)
}

type Server struct {
	checkout usecase.CheckoutUseCase
	attempts repository.AttemptRepository
	grants   repository.GrantRepository
	gateway  adapter.CheckoutGateway
	resolver callbackResolver // nil when the gateway self-resolves
	auth     *AuthManager
	locker   redis.Locker       // nil disables the cross-process lock
	limiter  *redis.RateLimiter // nil disables rate limiting
	cfg      *config.Config
	log      *zerolog.Logger

	// flowCtx outlives individual requests: a checkout started by a 202
	// response keeps running after that request ends.
	flowCtx context.Context
}

func NewServer(
	flowCtx context.Context,
	checkout usecase.CheckoutUseCase,
	attempts repository.AttemptRepository,
	grants repository.GrantRepository,
	gateway adapter.CheckoutGateway,
	auth *AuthManager,
	locker redis.Locker,
	limiter *redis.RateLimiter,
	cfg *config.Config,
	logger *zerolog.Logger,
) *Server {
	s := &Server{
		checkout: checkout,
		attempts: attempts,
		grants:   grants,
		gateway:  gateway,
		auth:     auth,
		locker:   locker,
		limiter:  limiter,
		cfg:      cfg,
		log:      logger,
		flowCtx:  flowCtx,
	}
	if r, ok := gateway.(callbackResolver); ok {
		s.resolver = r
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/pay/{reference}", s.handlePayRedirect)
	r.Get("/api/v1/payment/callback", s.handleCallback)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkout", s.handleCheckoutStart)
		r.Get("/checkout/{reference}", s.handleCheckoutStatus)

		r.Post("/admin/login", s.handleLogin)
		r.Post("/admin/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)
			r.Get("/attempts", s.handleAttemptsList)
			r.Get("/grants/{buyerID}", s.handleGrantsList)
			r.Get("/stats", s.handleStats)
		})
	})

	return r
}

// Run serves until ctx is cancelled, then drains with a short grace period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", s.cfg.Server.Port).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

// sessionMiddleware guards the ops endpoints with the JWT session minted at
// login.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
