package httpapp

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-Id"

type ctxKey int

const requestIDKey ctxKey = iota

// withCORS opens the API to every origin.
func withCORS(next http.Handler) http.Handler {
	return cors.AllowAll().Handler(next)
}

// requestID propagates the caller's X-Request-Id or assigns a fresh one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *Server) logger(r *http.Request) *logrus.Entry {
	return s.log.WithField("request_id", requestIDFrom(r.Context()))
}

// dispatch routes the request and records one log line and one metrics
// sample for it.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	label, h := s.route(r)

	done := s.metrics.TrackInFlight()
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h(rec, r)
	elapsed := time.Since(start)
	done()

	s.metrics.ObserveRequest(r.Method, label, rec.status, elapsed)

	entry := s.logger(r).WithFields(logrus.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"route":       label,
		"status":      rec.status,
		"duration_ms": elapsed.Milliseconds(),
		"bytes":       rec.bytes,
	})
	switch {
	case rec.status >= http.StatusInternalServerError:
		entry.Warn("request")
	case label == "/metrics" || label == "/healthz":
		entry.Debug("request")
	default:
		entry.Info("request")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}
