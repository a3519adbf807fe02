package ratelimit

import (
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"cargotrack-cloud/internal/auth"
	"cargotrack-cloud/internal/observability/metrics"
)

// Middleware enforces a limiter per caller. Authenticated requests are
// keyed by user id, anonymous ones by remote address.
type Middleware struct {
	Limiter Limiter
	Logger  *log.Logger
}

// Wrap applies rate limiting to next.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil || m.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		verdict, err := m.Limiter.Check(r.Context(), callerKey(r))
		if err != nil {
			// Fail open: a broken limiter must not take the API down.
			if m.Logger != nil {
				m.Logger.Printf("ratelimit: check failed: %v", err)
			}
			next.ServeHTTP(w, r)
			return
		}
		metrics.IncRateLimitVerdict(verdict.Allowed)

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(verdict.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(verdict.ResetAt.Unix(), 10))
		if !verdict.Allowed {
			w.Header().Set("Retry-After", strconv.FormatInt(int64(time.Until(verdict.ResetAt).Seconds())+1, 10))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerKey(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return "user:" + identity.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "addr:" + r.RemoteAddr
	}
	return "addr:" + host
}
