package router

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/metrics"
)

type keyInfoContextKey struct{}

// KeyInfoFromContext returns the validated API key attached by
// AuthMiddleware, if any.
func KeyInfoFromContext(ctx context.Context) (*apikey.KeyInfo, bool) {
	info, ok := ctx.Value(keyInfoContextKey{}).(*apikey.KeyInfo)
	return info, ok
}

// RequestIDMiddleware assigns each request an id, honoring a caller-supplied
// X-Request-ID, and propagates it through the context and response header.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := logger.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MetricsMiddleware records request counts, latency, and in-flight gauge.
func MetricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			// Label by route pattern, not raw path, to bound cardinality.
			path := r.Pattern
			if path == "" {
				path = "unmatched"
			}
			m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// AuthMiddleware validates the API key carried in the Authorization bearer
// token or the X-API-Key header and attaches its KeyInfo to the context. A
// nil validator disables authentication.
func AuthMiddleware(v *apikey.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if v == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawKey := r.Header.Get("X-API-Key")
			if rawKey == "" {
				if bearer := r.Header.Get("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
					rawKey = strings.TrimPrefix(bearer, "Bearer ")
				}
			}
			if rawKey == "" {
				denyJSON(w, http.StatusUnauthorized, "missing api key")
				return
			}
			info, err := v.Validate(r.Context(), rawKey)
			if err != nil {
				denyJSON(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			ctx := context.WithValue(r.Context(), keyInfoContextKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware enforces the per-key rate limit recorded on the API
// key. Requests without a validated key (auth disabled) are not limited.
func RateLimitMiddleware(l *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := KeyInfoFromContext(r.Context())
			if ok && !l.Allow(info.ID, info.RateLimit) {
				denyJSON(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func denyJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
