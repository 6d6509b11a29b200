package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/shared/logger"
	"github.com/uniedit/paygate/internal/utils/requestctx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	t.Run("generates new request ID when not provided", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, GetRequestID(c))
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		headerID := w.Header().Get(RequestIDHeader)
		assert.NotEmpty(t, headerID)
		assert.Equal(t, headerID, w.Body.String())
	})

	t.Run("uses existing request ID from header", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, requestctx.RequestID(c.Request.Context()))
		})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, "existing-request-id-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "existing-request-id-123", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "existing-request-id-123", w.Body.String())
	})

	t.Run("replaces oversized request ID", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Len(t, w.Header().Get(RequestIDHeader), 36)
	})
}

func TestLogging(t *testing.T) {
	t.Run("logs by status level and scopes logger to request", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		router := gin.New()
		router.Use(RequestID(), Logging(zap.New(core)))
		router.GET("/ok", func(c *gin.Context) {
			logger.FromContext(c.Request.Context(), nil).Info("inside handler")
			c.Status(http.StatusOK)
		})
		router.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
		router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

		for _, path := range []string{"/ok", "/bad", "/boom"} {
			req := httptest.NewRequest("GET", path, nil)
			req.Header.Set(RequestIDHeader, "rid-1")
			router.ServeHTTP(httptest.NewRecorder(), req)
		}

		inside := logs.FilterMessage("inside handler").All()
		require.Len(t, inside, 1)
		assert.Equal(t, "rid-1", inside[0].ContextMap()["request_id"])

		requests := logs.FilterMessage("HTTP Request").All()
		require.Len(t, requests, 3)
		assert.Equal(t, zapcore.InfoLevel, requests[0].Level)
		assert.Equal(t, zapcore.WarnLevel, requests[1].Level)
		assert.Equal(t, zapcore.ErrorLevel, requests[2].Level)
		assert.Equal(t, "/boom", requests[2].ContextMap()["path"])
	})
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) { panic("test panic") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, token string) (*model.Identity, error) {
	if token == "good" {
		return &model.Identity{Subject: "user-1", Email: "user@example.com"}, nil
	}
	return nil, errors.New("invalid token")
}

func TestAuth(t *testing.T) {
	newRouter := func(optional bool) *gin.Engine {
		router := gin.New()
		router.Use(Auth(fakeVerifier{}, optional))
		router.GET("/me", func(c *gin.Context) {
			c.String(http.StatusOK, GetUserID(c))
		})
		return router
	}

	do := func(router *gin.Engine, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/me", nil)
		if header != "" {
			req.Header.Set(AuthorizationHeader, header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("required rejects missing token", func(t *testing.T) {
		w := do(newRouter(false), "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	})

	t.Run("required rejects invalid token", func(t *testing.T) {
		w := do(newRouter(false), "Bearer bad")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
	})

	t.Run("valid token sets user", func(t *testing.T) {
		w := do(newRouter(false), "Bearer good")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-1", w.Body.String())
	})

	t.Run("optional passes anonymous requests", func(t *testing.T) {
		w := do(newRouter(true), "Bearer bad")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("non bearer scheme is ignored", func(t *testing.T) {
		w := do(newRouter(false), "Basic abc")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

type countingLimiter struct {
	calls int
	limit int
	err   error
}

func (l *countingLimiter) Allow(_ context.Context, _ string, limit int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.calls++
	l.limit = limit
	return l.calls <= limit, nil
}

func (l *countingLimiter) GetRemaining(_ context.Context, _ string, limit int, _ time.Duration) (int, error) {
	if l.calls >= limit {
		return 0, nil
	}
	return limit - l.calls, nil
}

func TestRateLimit(t *testing.T) {
	t.Run("rejects over limit", func(t *testing.T) {
		limiter := &countingLimiter{}
		router := gin.New()
		router.Use(RateLimitByUser(limiter, 2, time.Minute, zap.NewNop()))
		router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

		codes := make([]int, 0, 3)
		var last *httptest.ResponseRecorder
		for i := 0; i < 3; i++ {
			last = httptest.NewRecorder()
			router.ServeHTTP(last, httptest.NewRequest("GET", "/x", nil))
			codes = append(codes, last.Code)
		}

		assert.Equal(t, []int{200, 200, 429}, codes)
		assert.Equal(t, "2", last.Header().Get(RateLimitLimit))
		assert.Equal(t, "60", last.Header().Get(RetryAfter))
	})

	t.Run("fails open on limiter error", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		limiter := &countingLimiter{err: errors.New("redis down")}
		router := gin.New()
		router.Use(RateLimit(limiter, RateLimitConfig{Limit: 1, Window: time.Minute, Logger: zap.New(core)}))
		router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, logs.FilterMessage("rate limiter unavailable").Len())
	})
}

func newIdempotencyRouter(t *testing.T, status int) (*gin.Engine, *int32) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var hits int32
	router := gin.New()
	router.Use(Idempotency(client, IdempotencyConfig{TTL: time.Hour}))
	router.POST("/payments/sessions", func(c *gin.Context) {
		n := atomic.AddInt32(&hits, 1)
		c.JSON(status, gin.H{"call": n})
	})
	return router, &hits
}

func postWithKey(router *gin.Engine, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/payments/sessions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdempotency(t *testing.T) {
	t.Run("replays successful response", func(t *testing.T) {
		router, hits := newIdempotencyRouter(t, http.StatusCreated)

		first := postWithKey(router, "k1", `{"a":1}`)
		second := postWithKey(router, "k1", `{"a":1}`)

		assert.Equal(t, http.StatusCreated, first.Code)
		assert.Equal(t, http.StatusCreated, second.Code)
		assert.JSONEq(t, first.Body.String(), second.Body.String())
		assert.Equal(t, "true", second.Header().Get(IdempotentReplayHeader))
		assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	})

	t.Run("different body is a new request", func(t *testing.T) {
		router, hits := newIdempotencyRouter(t, http.StatusCreated)

		postWithKey(router, "k1", `{"a":1}`)
		postWithKey(router, "k1", `{"a":2}`)

		assert.Equal(t, int32(2), atomic.LoadInt32(hits))
	})

	t.Run("errors are not cached", func(t *testing.T) {
		router, hits := newIdempotencyRouter(t, http.StatusServiceUnavailable)

		postWithKey(router, "k1", `{"a":1}`)
		second := postWithKey(router, "k1", `{"a":1}`)

		assert.Empty(t, second.Header().Get(IdempotentReplayHeader))
		assert.Equal(t, int32(2), atomic.LoadInt32(hits))
	})

	t.Run("no key passes through", func(t *testing.T) {
		router, hits := newIdempotencyRouter(t, http.StatusCreated)

		postWithKey(router, "", `{"a":1}`)
		postWithKey(router, "", `{"a":1}`)

		assert.Equal(t, int32(2), atomic.LoadInt32(hits))
	})
}

type testHTTPMetrics struct {
	gauge   prometheus.Gauge
	paths   []string
	statuss []int
}

func (m *testHTTPMetrics) RecordHTTPRequest(_ string, path string, status int, _ time.Duration) {
	m.paths = append(m.paths, path)
	m.statuss = append(m.statuss, status)
}

func (m *testHTTPMetrics) InFlight() prometheus.Gauge { return m.gauge }

func TestMetrics(t *testing.T) {
	m := &testHTTPMetrics{gauge: prometheus.NewGauge(prometheus.GaugeOpts{Name: "in_flight"})}
	router := gin.New()
	router.Use(Metrics(m))
	router.GET("/payments/sessions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/payments/sessions/abc", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nope", nil))

	assert.Equal(t, []string{"/payments/sessions/:id", "unmatched"}, m.paths)
	assert.Equal(t, []int{200, 404}, m.statuss)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.gauge))
}
