package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"orchestrator/pkg/audit"
	"orchestrator/pkg/logger"
	"orchestrator/pkg/ratelimit"
)

// withRateLimit rejects a request once its key (the request method and
// path) exceeds limiter's configured rate. A limiter error fails open,
// the same choice the gRPC rate-limit interceptor this is adapted from
// makes, so a backend outage never blocks the whole API.
func withRateLimit(limiter ratelimit.Limiter, next http.HandlerFunc) http.HandlerFunc {
	if limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		allowed, err := limiter.Allow(r.Context(), key)
		if err != nil {
			logger.Log.Warn("rate limit check failed", "error", err, "key", key)
			next(w, r)
			return
		}
		if !allowed {
			info, infoErr := limiter.GetInfo(r.Context(), key)
			if infoErr == nil && info != nil {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			}
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"status": "rate limit exceeded"})
			return
		}
		next(w, r)
	}
}

// withAudit records every request as an audit.Entry via the given
// logger, mirroring the gRPC audit interceptor's field set adapted to
// an HTTP method+path in place of a full method name.
func withAudit(serviceName string, auditLogger audit.Logger, next http.HandlerFunc) http.HandlerFunc {
	if auditLogger == nil {
		auditLogger = audit.Get()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		outcome := audit.OutcomeSuccess
		if rec.status >= 400 {
			outcome = audit.OutcomeFailure
		}
		entry := audit.NewEntry().
			Service(serviceName).
			Method(r.Method + " " + r.URL.Path).
			Action(methodToAction(r.Method)).
			Outcome(outcome).
			Client(r.RemoteAddr, r.UserAgent()).
			Duration(time.Since(start)).
			Build()
		if err := auditLogger.Log(r.Context(), entry); err != nil {
			logger.Log.Warn("failed to write audit entry", "error", err)
		}
	}
}

func methodToAction(method string) audit.Action {
	switch method {
	case http.MethodPost, http.MethodPut:
		return audit.ActionCreate
	case http.MethodPatch:
		return audit.ActionUpdate
	case http.MethodDelete:
		return audit.ActionDelete
	default:
		return audit.ActionRead
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
