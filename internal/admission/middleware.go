package admission

import (
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/snaplink/snaplink/pkg/response"
)

// IPFilter rejects requests from blocked IPs before any handler logic runs.
// This is the first and cheapest admission check: a banned caller never
// reaches a quota or a handler.
func IPFilter(tracker *ReputationTracker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tracker.Observe(clientIP(r)) == DecisionBlock {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.IPBlockedResponse)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies a per-route quota, counting every request. Quota state is
// keyed by caller IP. Rejections carry the route-specific message.
func RateLimit(q *Quota, msg string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := q.Allow(clientIP(r))
			setRateLimitHeaders(w, res)

			if !res.Allowed {
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.RateLimitedResponse(msg))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuthRateLimit applies a quota that counts only failed requests, so callers
// are not penalized for successful authentication. The check happens up
// front; the count is recorded after the handler responds with a 4xx status.
func AuthRateLimit(q *Quota, msg string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			res := q.Peek(ip)
			setRateLimitHeaders(w, res)

			if !res.Allowed {
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.RateLimitedResponse(msg))
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if ww.Status() >= http.StatusBadRequest && ww.Status() < http.StatusInternalServerError {
				q.Record(ip)
			}
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, res QuotaResult) {
	w.Header().Set("RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
}

// clientIP trusts middleware.RealIP to have rewritten RemoteAddr from the
// forwarding headers; it only strips the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
