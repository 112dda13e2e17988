package gateway

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/doublev/bff-gateway/internal/backend"
	"github.com/doublev/bff-gateway/internal/monitoring"
	"github.com/doublev/bff-gateway/internal/normalize"
)

// HeaderProxyService names the backend that served a proxied response.
const HeaderProxyService = "X-Proxy-Service"

const maxRequestIDLen = 128

// requestState is filled in by handlers and read by the access log.
type requestState struct {
	peer    string // RemoteAddr before forwarded headers are applied
	start   time.Time
	target  string
	service string
	outcome normalize.Outcome
}

type requestStateKey struct{}

func stateFrom(ctx context.Context) *requestState {
	if s, ok := ctx.Value(requestStateKey{}).(*requestState); ok {
		return s
	}
	return &requestState{}
}

// requestID accepts a caller-supplied X-Request-ID or generates one, and
// echoes it on the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(backend.HeaderRequestID))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.New().String()
		}
		w.Header().Set(backend.HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(monitoring.WithRequestID(r.Context(), id)))
	})
}

// recoverer turns a handler panic into a 500 error envelope.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}
			log.Error().
				Str("request_id", monitoring.RequestIDFromContext(r.Context())).
				Str("panic", fmt.Sprint(rec)).
				Bytes("stack", debug.Stack()).
				Msg("handler panic recovered")
			stateFrom(r.Context()).outcome = normalize.OutcomeRejected
			normalize.Error(http.StatusInternalServerError, "Internal server error").Write(w)
		}()
		next.ServeHTTP(w, r)
	})
}

// accessLog writes one line per request once the response is complete.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		state := &requestState{peer: r.RemoteAddr, start: start}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		r = r.WithContext(context.WithValue(r.Context(), requestStateKey{}, state))

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ev := log.Info()
		if status >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev = ev.
			Str("request_id", monitoring.RequestIDFromContext(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Str("client_ip", clientIP(r)).
			Dur("latency", time.Since(start))
		if state.outcome != "" {
			ev = ev.Str("outcome", string(state.outcome))
		}
		if state.target != "" {
			ev = ev.Str("target", state.target).Str("service", state.service)
		}
		ev.Msg("request")
	})
}

// corsMiddleware enforces an explicit origin allowlist. "*" allows any origin.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	allowAll := false
	for _, o := range origins {
		o = strings.TrimSpace(o)
		switch o {
		case "":
		case "*":
			allowAll = true
		default:
			allowed[o] = struct{}{}
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := allowed[origin]; !ok && !allowAll {
				if preflight {
					normalize.Error(http.StatusForbidden, "Origin not allowed").Write(w)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Request-ID")
			h.Set("Access-Control-Expose-Headers", "X-Request-ID,X-Proxy-Service,Retry-After")
			h.Set("Access-Control-Max-Age", "600")
			if preflight {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// securityHeaders sets the browser hardening headers on every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// rateLimit applies the per-client window to /api routes.
func (g *Gateway) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.limiter == nil || !g.cfg.RateLimit.Enabled || !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		d := g.limiter.Allow(r.Context(), g.limitKey(r), g.cfg.RateLimit.MaxRequests)
		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if d.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		retry := d.RetryAfter(time.Now())
		h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
		g.metrics.RecordRateLimited()
		g.reject(w, r, http.StatusTooManyRequests, "Too many requests, please try again later.")
	})
}

// limitBody caps inbound request bodies.
func (g *Gateway) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.cfg.Server.MaxBodyBytes > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, g.cfg.Server.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// limitKey is the client address the rate limit is counted against: the
// socket peer, or the forwarded address when server.trust_proxy is set.
func (g *Gateway) limitKey(r *http.Request) string {
	if peer := stateFrom(r.Context()).peer; peer != "" && !g.cfg.Server.TrustProxy {
		return hostOf(peer)
	}
	return clientIP(r)
}

// clientIP is the host part of RemoteAddr. With server.trust_proxy,
// middleware.RealIP has already replaced it with the forwarded address.
func clientIP(r *http.Request) string {
	return hostOf(r.RemoteAddr)
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// isLoopback checks if the remote address is a loopback address.
func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
