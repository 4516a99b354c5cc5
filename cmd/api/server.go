package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"bookinventory/internal/auth"
	"bookinventory/internal/book"
	"bookinventory/internal/config"
	"bookinventory/internal/httpx"
)

// readinessCheck reports whether the backing store can serve traffic.
type readinessCheck func(ctx context.Context) error

type serverDeps struct {
	cfg     config.Config
	logger  *zap.Logger
	books   *book.Service
	authn   *auth.Service
	ready   readinessCheck
	limiter *httpx.RateLimitMiddleware
}

func newRouter(d serverDeps) http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
			defer cancel()
			if err := d.ready(ctx); err != nil {
				d.logger.Warn("readiness check failed", zap.Error(err))
				httpx.JSONError(w, r, http.StatusServiceUnavailable, httpx.CodeServiceUnready, "db not ready", nil)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	authenticate := httpx.AuthMiddleware(d.authn)
	reader := func(h http.Handler) http.Handler {
		return httpx.Chain(h, authenticate, httpx.RequireRole(auth.RoleUser))
	}
	writer := func(h http.Handler) http.Handler {
		return httpx.Chain(h, authenticate, httpx.RequireRole(auth.RoleAdmin))
	}

	book.NewHTTPHandler(d.books, d.logger).Register(router, reader, writer)
	auth.NewHTTPHandler(d.authn, d.logger).Register(router)

	return httpx.Chain(router,
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware(d.logger),
		httpx.RecoveryMiddleware(d.logger),
		httpx.SecurityHeadersMiddleware(d.cfg.EnableHSTS),
		httpx.CORSMiddleware(d.cfg.CORSAllowedOrigins),
		httpx.RequestSizeLimitMiddleware(d.cfg.MaxBodyBytes),
		d.limiter.Middleware,
	)
}
