package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/atelier-erp/backend/internal/infrastructure/auth"
	"github.com/atelier-erp/backend/internal/infrastructure/config"
	"github.com/atelier-erp/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testJWTSecret = "middleware-test-secret-32-chars!!"

func newIdentityRouter(cfg IdentityConfig) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Identity(cfg))
	r.GET("/whoami", func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		ctx := c.Request.Context()
		c.JSON(http.StatusOK, gin.H{
			"tenant": id.TenantID.String(),
			"branch": id.BranchID.String(),
			"user":   id.UserID.String(),
			"ctx":    logger.GetTenantID(ctx) + "|" + logger.GetBranchID(ctx) + "|" + logger.GetUserID(ctx),
		})
	})
	return r
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	t.Run("keeps caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "req-123", w.Body.String())
		assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	})

	t.Run("mints a ulid", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		_, err := ulid.ParseStrict(w.Body.String())
		require.NoError(t, err)
		assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))
	})

	t.Run("replaces oversized id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, string(make([]byte, MaxRequestIDLength+1)))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Len(t, w.Body.String(), ulid.EncodedSize)
	})
}

func TestIdentity_Bearer(t *testing.T) {
	svc := auth.NewJWTService(config.JWTConfig{Secret: testJWTSecret, Issuer: "atelier"})
	id := auth.Identity{TenantID: uuid.New(), BranchID: uuid.New(), UserID: uuid.New()}
	token, err := svc.GenerateAccessToken(id, "buyer", time.Hour)
	require.NoError(t, err)

	r := newIdentityRouter(IdentityConfig{JWTService: svc, Logger: zap.NewNop()})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	// headers are ignored when a token is present
	req.Header.Set(TenantIDHeader, uuid.NewString())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"tenant": "`+id.TenantID.String()+`",
		"branch": "`+id.BranchID.String()+`",
		"user": "`+id.UserID.String()+`",
		"ctx": "`+id.TenantID.String()+`|`+id.BranchID.String()+`|`+id.UserID.String()+`"
	}`, w.Body.String())
}

func TestIdentity_Rejects(t *testing.T) {
	svc := auth.NewJWTService(config.JWTConfig{Secret: testJWTSecret})
	expired, err := svc.GenerateAccessToken(
		auth.Identity{TenantID: uuid.New(), BranchID: uuid.New(), UserID: uuid.New()}, "", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name     string
		headers  map[string]string
		wantCode string
	}{
		{"no credentials", nil, "ERR_UNAUTHORIZED"},
		{"not bearer", map[string]string{"Authorization": "Basic abc"}, "ERR_TOKEN_INVALID"},
		{"bad token", map[string]string{"Authorization": "Bearer nope"}, "ERR_TOKEN_INVALID"},
		{"expired token", map[string]string{"Authorization": "Bearer " + expired}, "ERR_TOKEN_EXPIRED"},
		{"headers not allowed", map[string]string{
			TenantIDHeader: uuid.NewString(), BranchIDHeader: uuid.NewString(), UserIDHeader: uuid.NewString(),
		}, "ERR_UNAUTHORIZED"},
	}

	r := newIdentityRouter(IdentityConfig{JWTService: svc})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantCode)
		})
	}
}

func TestIdentity_DevelopmentHeaders(t *testing.T) {
	r := newIdentityRouter(IdentityConfig{AllowHeaders: true})
	tenant, branch, user := uuid.NewString(), uuid.NewString(), uuid.NewString()

	t.Run("complete headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(TenantIDHeader, tenant)
		req.Header.Set(BranchIDHeader, branch)
		req.Header.Set(UserIDHeader, user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), tenant+"|"+branch+"|"+user)
	})

	t.Run("missing branch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(TenantIDHeader, tenant)
		req.Header.Set(UserIDHeader, user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed uuid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(TenantIDHeader, "tenant-1")
		req.Header.Set(BranchIDHeader, branch)
		req.Header.Set(UserIDHeader, user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_TOKEN_INVALID")
	})
}

func TestCORS(t *testing.T) {
	cfg := config.HTTPConfig{
		CORSAllowOrigins: []string{"https://shop.example.com"},
		CORSAllowMethods: []string{"GET", "POST"},
		CORSAllowHeaders: []string{"Content-Type", "Authorization"},
	}
	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "https://shop.example.com")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestTracingAndSpanEnricher(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	r := gin.New()
	r.Use(RequestID())
	r.Use(func(c *gin.Context) {
		ctx, span := tp.Tracer("test").Start(c.Request.Context(), "server")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		span.End()
	})
	r.Use(SpanEnricher())
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(RequestIDHeader, "req-span")
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "Internal Server Error", spans[0].Status().Description)
	var found bool
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "request_id" {
			found = kv.Value.AsString() == "req-span"
		}
	}
	assert.True(t, found)

	disabled := Tracing("purchasing", false)
	assert.NotNil(t, disabled)
}

func TestHTTPMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	r := gin.New()
	r.Use(HTTPMetrics(provider.Meter("http.server"), zap.NewNop()))
	r.GET("/purchase-orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/purchase-orders/"+uuid.NewString(), nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.NotEmpty(t, rm.ScopeMetrics)

	var total int64
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if m.Name != "http_server_request_total" {
			continue
		}
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		for _, dp := range sum.DataPoints {
			route, _ := dp.Attributes.Value("http.route")
			assert.Equal(t, "/purchase-orders/:id", route.AsString())
			total += dp.Value
		}
	}
	assert.Equal(t, int64(3), total)
}
