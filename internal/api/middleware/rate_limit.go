package middleware

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"shortr/internal/engine/ratelimit"
	apperrors "shortr/internal/pkg/errors"
)

type Admitter interface {
	Admit(ctx context.Context, clientID string) (ratelimit.Decision, error)
}

type RateLimitMiddleware struct {
	limiter           Admitter
	trustForwardedFor bool
}

func NewRateLimitMiddleware(limiter Admitter, trustForwardedFor bool) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, trustForwardedFor: trustForwardedFor}
}

func (m *RateLimitMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := ClientIP(r, m.trustForwardedFor)

		d, err := m.limiter.Admit(r.Context(), client)
		var exceeded *ratelimit.ExceededError
		switch {
		case errors.As(err, &exceeded):
			setRateLimitHeaders(w, d)
			w.Header().Set("Retry-After", strconv.Itoa(seconds(exceeded.RetryAfter.Seconds())))
			apperrors.WriteError(w, http.StatusTooManyRequests, apperrors.ErrCodeRateLimitExceeded, exceeded.Error(),
				map[string]interface{}{"limit": exceeded.Limit, "window_seconds": int(exceeded.Window.Seconds())})
			return
		case err != nil:
			// Fail open.
			zerolog.Ctx(r.Context()).Error().Err(err).Str("client", client).Msg("rate limiter unavailable")
		default:
			setRateLimitHeaders(w, d)
		}

		next(w, r)
	}
}

func setRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(seconds(d.Reset.Seconds())))
}

func seconds(s float64) int {
	return int(math.Ceil(s))
}

// ClientIP identifies the caller for rate limiting. X-Forwarded-For is only
// honoured behind a trusted proxy; otherwise any client could pick its key.
func ClientIP(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
