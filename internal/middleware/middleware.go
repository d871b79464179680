package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/darkodi/whatsapp-redirect/internal/errors"
	"github.com/darkodi/whatsapp-redirect/internal/logger"
)

// ============================================================
// TYPES
// ============================================================

// Middleware is a function that wraps an http.Handler
type Middleware func(http.Handler) http.Handler

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// ============================================================
// REQUEST ID MIDDLEWARE
// ============================================================

// RequestID adds a unique request ID to each request
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check if request already has an ID (from load balancer, etc.)
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.New().String()
		}

		// Add to response headers so client can reference it
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), requestID)))
	})
}

// ============================================================
// LOGGING MIDDLEWARE
// ============================================================

// Logging logs every request with method, path, status, and duration
func Logging(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			log.FromContext(r.Context()).Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"ip", ClientIP(r),
				"status", wrapped.status,
				"duration", time.Since(start),
			)
		})
	}
}

// ============================================================
// RECOVERY MIDDLEWARE
// ============================================================

// Recovery catches panics and returns 500 instead of crashing
func Recovery(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					log.FromContext(r.Context()).Error("panic recovered",
						"error", err,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
					apperrors.Internal("").WriteJSON(w)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// ============================================================
// CLIENT IP
// ============================================================

// proxy headers in the order they are consulted
var clientIPHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Client-IP",
}

type clientIPKey struct{}

// IPResolver finds the client address of a request. Proxy headers are only
// honoured when the peer itself is one of the trusted proxies.
type IPResolver struct {
	trusted []netip.Prefix
}

// NewIPResolver trusts proxies in the given CIDR ranges. No ranges means
// headers are never read.
func NewIPResolver(cidrs []string) (*IPResolver, error) {
	p := &IPResolver{}
	for _, c := range cidrs {
		prefix, err := netip.ParsePrefix(strings.TrimSpace(c))
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", c, err)
		}
		p.trusted = append(p.trusted, prefix.Masked())
	}
	return p, nil
}

func (p *IPResolver) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Resolve returns the client IP of r
func (p *IPResolver) Resolve(r *http.Request) string {
	peer := remoteHost(r)
	if !p.isTrusted(peer) {
		return peer
	}

	for _, h := range clientIPHeaders {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		if ip := p.fromChain(v); ip != "" {
			return ip
		}
	}
	return peer
}

// fromChain walks a comma separated hop list from the right and returns the
// first hop that is not a trusted proxy
func (p *IPResolver) fromChain(v string) string {
	hops := strings.Split(v, ",")
	var leftmost string
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if _, err := netip.ParseAddr(hop); err != nil {
			continue
		}
		if !p.isTrusted(hop) {
			return hop
		}
		leftmost = hop
	}
	return leftmost
}

// Middleware resolves the client IP once and stores it for ClientIP
func (p *IPResolver) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPKey{}, p.Resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the address stored by IPResolver.Middleware, or the peer
// address when the request did not pass through it
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok {
		return ip
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ============================================================
// CHAIN HELPER
// ============================================================

// Chain applies middlewares in order (first middleware is outermost)
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	// Apply in reverse so first middleware is outermost
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
