package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"github.com/anstrom/alicorn/internal/metrics"
	"github.com/anstrom/alicorn/internal/metrics/mocks"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})
}

func TestRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		limit    int
		requests []string
		expected []bool
	}{
		{
			name:     "under limit",
			limit:    5,
			requests: []string{"1.1.1.1", "1.1.1.1", "1.1.1.1"},
			expected: []bool{true, true, true},
		},
		{
			name:     "over limit",
			limit:    2,
			requests: []string{"1.1.1.1", "1.1.1.1", "1.1.1.1"},
			expected: []bool{true, true, false},
		},
		{
			name:     "different IPs",
			limit:    1,
			requests: []string{"1.1.1.1", "2.2.2.2", "1.1.1.1"},
			expected: []bool{true, true, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := NewRateLimiter(tt.limit, time.Minute)

			for i, ip := range tt.requests {
				assert.Equal(t, tt.expected[i], limiter.Allow(ip), "request %d for %s", i+1, ip)
			}
		})
	}
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	limiter := NewRateLimiter(1, 100*time.Millisecond)

	assert.True(t, limiter.Allow("1.1.1.1"))
	assert.False(t, limiter.Allow("1.1.1.1"))

	time.Sleep(150 * time.Millisecond)

	assert.True(t, limiter.Allow("1.1.1.1"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(10, 50*time.Millisecond)

	limiter.Allow("1.1.1.1")
	limiter.Allow("2.2.2.2")
	assert.Equal(t, 2, limiter.Clients())

	time.Sleep(80 * time.Millisecond)
	limiter.Cleanup()
	assert.Equal(t, 0, limiter.Clients())
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(GetRequestID(r), "req_"))
		startTime, ok := r.Context().Value(StartTimeKey).(time.Time)
		require.True(t, ok)
		assert.WithinDuration(t, time.Now(), startTime, time.Second)

		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/comparisons?ids=1,2", http.NoBody))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Contains(t, w.Header().Get(RequestIDHeader), "req_")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "HTTP request completed", entry["msg"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status_code"])
	assert.Equal(t, float64(len("short and stout")), entry["response_size"])
}

func TestLoggingMiddleware_RequestIDHeader(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		reused   bool
	}{
		{"well formed id is reused", "abc-123_x.y", true},
		{"invalid characters are replaced", "abc 123<script>", false},
		{"overlong id is replaced", strings.Repeat("a", maxRequestIDLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := Logging(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set(RequestIDHeader, tt.incoming)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if tt.reused {
				assert.Equal(t, tt.incoming, seen)
			} else {
				assert.NotEqual(t, tt.incoming, seen)
				assert.True(t, strings.HasPrefix(seen, "req_"))
			}
			assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
		})
	}
}

func TestMetricsMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		expectError bool
	}{
		{"successful request", http.StatusOK, false},
		{"client error", http.StatusConflict, true},
		{"server error", http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			registry := mocks.NewMockMetricsRegistry(ctrl)

			router := mux.NewRouter()
			router.Use(Metrics(registry))
			router.HandleFunc("/api/v1/comparison-sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			wantLabels := metrics.Labels{
				"method": http.MethodGet,
				"path":   "/api/v1/comparison-sessions/{id}",
				"status": strconv.Itoa(tt.status),
			}

			registry.EXPECT().Counter("http_requests_total", wantLabels)
			registry.EXPECT().Histogram("http_request_duration_seconds", gomock.Any(), wantLabels)
			registry.EXPECT().Histogram("http_response_size_bytes", float64(0), wantLabels)
			if tt.expectError {
				registry.EXPECT().Counter("http_errors_total", wantLabels)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/comparison-sessions/42", http.NoBody))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

type httpObservation struct {
	method, route string
	status        int
}

type fakeHTTPRecorder struct {
	mu   sync.Mutex
	seen []httpObservation
}

func (f *fakeHTTPRecorder) RecordHTTPRequest(method, route string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, httpObservation{method, route, status})
}

func TestInstrumentMiddleware(t *testing.T) {
	recorder := &fakeHTTPRecorder{}

	router := mux.NewRouter()
	router.Use(Instrument(recorder))
	router.HandleFunc("/api/v1/comparison-sessions/{id}/note", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}).Methods(http.MethodPut)

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/comparison-sessions/"+id+"/note", http.NoBody))
	}

	require.Len(t, recorder.seen, 2)
	for _, obs := range recorder.seen {
		assert.Equal(t, httpObservation{http.MethodPut, "/api/v1/comparison-sessions/{id}/note", http.StatusAccepted}, obs)
	}
}

func TestInstrumentMiddleware_NilRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	Instrument(nil)(okHandler("ok")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	assert.Equal(t, "ok", w.Body.String())
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := Logging(nil)(Recovery(createTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	w := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body["error"])
	assert.Equal(t, w.Header().Get(RequestIDHeader), body["request_id"])
}

func TestAuthenticationMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("ak_hashed_only"), bcrypt.MinCost)
	require.NoError(t, err)
	hashed := string(hash)

	tests := []struct {
		name           string
		path           string
		method         string
		headers        map[string]string
		expectedStatus int
	}{
		{"valid X-API-Key", "/api/v1/saved-comparisons", http.MethodGet,
			map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"valid bearer token", "/api/v1/saved-comparisons", http.MethodGet,
			map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"missing key", "/api/v1/saved-comparisons", http.MethodGet, nil, http.StatusUnauthorized},
		{"hashed key", "/api/v1/saved-comparisons", http.MethodGet,
			map[string]string{"X-API-Key": "ak_hashed_only"}, http.StatusOK},
		{"hash itself is rejected", "/api/v1/saved-comparisons", http.MethodGet,
			map[string]string{"X-API-Key": hashed}, http.StatusUnauthorized},
		{"wrong key", "/api/v1/saved-comparisons", http.MethodGet,
			map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"basic auth is not a key", "/api/v1/saved-comparisons", http.MethodGet,
			map[string]string{"Authorization": "Basic c2VjcmV0"}, http.StatusUnauthorized},
		{"health is public", "/api/v1/health", http.MethodGet, nil, http.StatusOK},
		{"liveness is public", "/api/v1/liveness", http.MethodGet, nil, http.StatusOK},
		{"prometheus is public", "/metrics", http.MethodGet, nil, http.StatusOK},
		{"preflight passes", "/api/v1/comparison-sessions", http.MethodOptions, nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Authentication([]string{"secret", "", hashed}, createTestLogger())(okHandler("ok"))

			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusUnauthorized {
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimit(2, time.Minute, createTestLogger())(okHandler("ok"))

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.RemoteAddr = "10.0.0.1:5000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		statuses = append(statuses, w.Code)

		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, "60", w.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = "10.0.0.2:5000"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "other clients are unaffected")
}

func TestContentTypeMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		contentType    string
		expectedStatus int
	}{
		{"GET ignores content type", http.MethodGet, "text/plain", http.StatusOK},
		{"DELETE ignores content type", http.MethodDelete, "text/plain", http.StatusOK},
		{"POST with JSON", http.MethodPost, "application/json", http.StatusOK},
		{"PUT with charset", http.MethodPut, "application/json; charset=utf-8", http.StatusOK},
		{"POST without content type", http.MethodPost, "", http.StatusOK},
		{"POST with form", http.MethodPost, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"PUT with text", http.MethodPut, "text/plain", http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			ContentType()(okHandler("ok")).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestRequestTimeoutMiddleware(t *testing.T) {
	var deadline time.Time
	handler := RequestTimeout(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		deadline, ok = r.Context().Deadline()
		require.True(t, ok)
		<-r.Context().Done()
		w.WriteHeader(http.StatusGatewayTimeout)
	}))

	start := time.Now()
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.WithinDuration(t, start.Add(50*time.Millisecond), deadline, 20*time.Millisecond)
}

func TestMaxBodySizeMiddleware(t *testing.T) {
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := MaxBodySize(8)(echo)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"ids":"1,2,3"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "must not exceed 8 bytes")

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"ids":"1,2,3"}`))
	req.ContentLength = -1
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, "streamed bodies are cut off while reading")
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders()(okHandler("ok")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}

func TestResponseWriter(t *testing.T) {
	recorder := httptest.NewRecorder()
	wrapper := wrap(recorder)

	wrapper.WriteHeader(http.StatusCreated)
	wrapper.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusCreated, wrapper.statusCode)
	assert.Equal(t, http.StatusCreated, recorder.Code)

	n, err := wrapper.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	_, _ = wrapper.Write([]byte(" world"))
	assert.Equal(t, 11, wrapper.size)

	assert.Same(t, recorder, wrapper.Unwrap())

	_, _, err = wrapper.Hijack()
	assert.Error(t, err, "httptest.ResponseRecorder cannot be hijacked")
}

func TestGetRequestID(t *testing.T) {
	assert.Equal(t, "unknown", GetRequestID(httptest.NewRequest(http.MethodGet, "/", http.NoBody)))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expected   string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.1:1", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.7"}, "10.0.0.1:1", "203.0.113.7"},
		{"remote addr", nil, "192.0.2.4:8080", "192.0.2.4"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"remote addr without port", nil, "192.0.2.5", "192.0.2.5"},
		{"nothing", nil, "", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, getClientIP(req))
		})
	}
}

func TestMiddlewareChaining(t *testing.T) {
	ctrl := gomock.NewController(t)

	logger := createTestLogger()
	registry := mocks.NewMockMetricsRegistry(ctrl)
	registry.EXPECT().Counter("http_requests_total", gomock.Any())
	registry.EXPECT().Histogram("http_request_duration_seconds", gomock.Any(), gomock.Any())
	registry.EXPECT().Histogram("http_response_size_bytes", gomock.Any(), gomock.Any())

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEqual(t, "unknown", GetRequestID(r))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("chained response"))
	})

	handler := SecurityHeaders()(
		Logging(logger)(
			Metrics(registry)(
				Recovery(logger)(testHandler))))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "chained response", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}
