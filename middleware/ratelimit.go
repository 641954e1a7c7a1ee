package middleware

import (
	"net/http"

	"github.com/MrEthical07/sessiongate"
)

// RateLimit blocks (client ip, path) pairs the engine has flagged and
// reports every other response status back to it. It must run inside
// ClientInfo so the resolved IP is in the context.
func RateLimit(engine *sessiongate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil || engine.RateLimitExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ip := sessiongate.ClientIPFromContext(r.Context())
			path := r.URL.Path
			if engine.RateLimitBlocked(r.Context(), ip, path) {
				WriteError(w, sessiongate.ErrRateLimited)
				return
			}

			rec := NewStatusRecorder(w)
			next.ServeHTTP(rec, r)
			engine.RateLimitObserve(r.Context(), ip, path, rec.Status())
		})
	}
}

// StatusRecorder captures the status code written by the wrapped handler.
type StatusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

// NewStatusRecorder wraps w. The status defaults to 200.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (s *StatusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *StatusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.wroteHeader = true
	}
	return s.ResponseWriter.Write(b)
}

// Status returns the captured status, 200 when none was written.
func (s *StatusRecorder) Status() int { return s.status }

func (s *StatusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
