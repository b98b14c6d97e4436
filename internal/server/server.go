package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"blogsvc/internal/app"
	"blogsvc/internal/ratelimit"
	"blogsvc/internal/util"
	"blogsvc/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	MaxUploadBytes int64
	AllowedOrigins []string
	Limits         RateLimits
	TrustedProxies *util.TrustedProxies
}

// RateLimits throttles the auth endpoints per route and client IP. A nil
// limiter leaves its route unthrottled.
type RateLimits struct {
	Register  ratelimit.Limiter
	Login     ratelimit.Limiter
	SendOTP   ratelimit.Limiter
	VerifyOTP ratelimit.Limiter
}

// Server exposes the auth and article endpoints.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	maxUploadBytes int64
	allowedOrigins []string
	limits         RateLimits
	trustedProxies *util.TrustedProxies
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 * 1024 * 1024
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
		allowedOrigins: cfg.AllowedOrigins,
		limits:         cfg.Limits,
		trustedProxies: cfg.TrustedProxies,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler wrapped in the shared middleware.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.allowedOrigins, s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/auth/register", s.handleRegister)
	s.mux.HandleFunc("/auth/login", s.handleLogin)
	s.mux.HandleFunc("/auth/send-otp", s.handleSendOTP)
	s.mux.HandleFunc("/auth/verify-otp", s.handleVerifyOTP)

	// articles
	s.mux.HandleFunc("/articles", s.handleArticles)
	s.mux.HandleFunc("/articles/", s.handleArticlePath)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.app.Ready() {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type claimsContextKey struct{}

// ClaimsFromContext returns the token claims attached by authenticated.
func ClaimsFromContext(ctx context.Context) (domain.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(domain.Claims)
	return claims, ok
}

type authHandler func(http.ResponseWriter, *http.Request, domain.Claims)

// authenticated rejects requests without a valid bearer token: 401 when the
// token is missing, 403 when it fails verification.
func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _ := bearerToken(r)
		claims, err := s.app.VerifyToken(token)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		ctx = util.ContextWithLogger(ctx, util.LoggerFromContext(ctx).With("user_id", claims.ID))
		next(w, r.WithContext(ctx), claims)
	})
}

// optionalClaims verifies a bearer token if one is sent. ok is false after an
// error response has been written.
func (s *Server) optionalClaims(w http.ResponseWriter, r *http.Request) (*domain.Claims, bool) {
	token, present := bearerToken(r)
	if !present {
		return nil, true
	}
	claims, err := s.app.VerifyToken(token)
	if err != nil {
		writeAppError(w, r, err)
		return nil, false
	}
	return &claims, true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, msg string) bool {
	if limiter == nil {
		return true
	}
	if limiter.Allow(r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)) {
		return true
	}
	util.LoggerFromContext(r.Context()).Warn("rate limited", "path", r.URL.Path)
	w.Header().Set("Retry-After", "60")
	writeErrorCode(w, http.StatusTooManyRequests, "AUTH_RATE_LIMITED", msg)
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
