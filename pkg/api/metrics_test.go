package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetrics owns the only NewMetrics call in the test binary: promauto
// registers on the process-global registry and a second call would panic.
func TestMetrics(t *testing.T) {
	m := NewMetrics()

	t.Run("instrumented handler records status codes", func(t *testing.T) {
		handler := m.InstrumentHandler("GET", "/api/v1/test", func(w http.ResponseWriter, r *http.Request) {
			sendError(w, "nope", http.StatusBadRequest)
		})

		handler(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/test", nil))

		got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/v1/test", "400"))
		if got != 1 {
			t.Errorf("Expected 1 request counted with status 400, got %v", got)
		}
	})

	t.Run("handlers that never set a status count as 200", func(t *testing.T) {
		handler := m.InstrumentHandler("GET", "/api/v1/quiet", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		})

		handler(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/quiet", nil))

		got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/v1/quiet", "200"))
		if got != 1 {
			t.Errorf("Expected 1 request counted with status 200, got %v", got)
		}
	})

	t.Run("parse pipeline counters", func(t *testing.T) {
		m.RecordParse("nif", "inspect", 1024, 2, 5*time.Millisecond)
		m.RecordParse("nif", "inspect", 512, 0, time.Millisecond)
		m.RecordParseFailure()

		if got := testutil.ToFloat64(m.filesParsedTotal.WithLabelValues("nif", "inspect")); got != 2 {
			t.Errorf("Expected 2 parsed files, got %v", got)
		}
		if got := testutil.ToFloat64(m.bytesParsedTotal); got != 1536 {
			t.Errorf("Expected 1536 bytes parsed, got %v", got)
		}
		if got := testutil.ToFloat64(m.warningsObservedTotal); got != 2 {
			t.Errorf("Expected 2 warnings observed, got %v", got)
		}
		if got := testutil.ToFloat64(m.parseFailuresTotal); got != 1 {
			t.Errorf("Expected 1 parse failure, got %v", got)
		}
	})

	t.Run("auth middleware records key outcomes", func(t *testing.T) {
		protected := m.InstrumentAuthMiddleware(apiKeyMiddleware("secret"))(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

		reject := httptest.NewRequest("GET", "/api/v1/health", nil)
		reject.Header.Set("X-API-Key", "wrong")
		protected.ServeHTTP(httptest.NewRecorder(), reject)

		accept := httptest.NewRequest("GET", "/api/v1/health", nil)
		accept.Header.Set("X-API-Key", "secret")
		protected.ServeHTTP(httptest.NewRecorder(), accept)

		// A request with no key at all is not an auth attempt
		protected.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/health", nil))

		if got := testutil.ToFloat64(m.authRequestsTotal.WithLabelValues(statusError)); got != 1 {
			t.Errorf("Expected 1 rejected auth request, got %v", got)
		}
		if got := testutil.ToFloat64(m.authRequestsTotal.WithLabelValues(statusSuccess)); got != 1 {
			t.Errorf("Expected 1 accepted auth request, got %v", got)
		}
	})

	t.Run("health check outcomes", func(t *testing.T) {
		m.RecordHealthCheck(true)
		m.RecordHealthCheck(true)
		m.RecordHealthCheck(false)

		if got := testutil.ToFloat64(m.healthChecksTotal.WithLabelValues(statusSuccess)); got != 2 {
			t.Errorf("Expected 2 healthy checks, got %v", got)
		}
		if got := testutil.ToFloat64(m.healthChecksTotal.WithLabelValues(statusError)); got != 1 {
			t.Errorf("Expected 1 failed check, got %v", got)
		}
	})
}
