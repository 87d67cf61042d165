package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callflow/backend/internal/api"
	"callflow/backend/internal/metrics"
	"callflow/backend/internal/security"
	"callflow/backend/internal/server/interceptors"
)

type staticTokens map[string]*security.Identity

func (s staticTokens) Validate(token string) (*security.Identity, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return nil, errors.New("invalid token")
}

type auditEntry struct{ action, resource, status string }

type recordingAudit struct{ entries []auditEntry }

func (r *recordingAudit) LogEvent(ctx context.Context, companyID, userID, action, resource, metadata string) {
	r.entries = append(r.entries, auditEntry{action, resource, metadata})
}

// whoami echoes the authenticated user.
type whoami struct{}

func (whoami) Register(r gin.IRoutes) {
	r.GET("/whoami", func(c *gin.Context) {
		id, _ := interceptors.GetUserID(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"userId": id})
	})
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(ready bool) (*gin.Engine, *recordingAudit) {
	rec := &recordingAudit{}
	return NewRouter(HTTPDeps{
		Service:  "callflow",
		Version:  "test",
		Ready:    func(context.Context) bool { return ready },
		Metrics:  metrics.New(),
		Tokens:   staticTokens{"good": {UserID: "u1", CompanyID: "c1", Role: "owner"}},
		Audit:    rec,
		Handlers: []RouteRegistrar{whoami{}},
	}), rec
}

func TestHealth(t *testing.T) {
	router, _ := newRouter(true)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body api.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "callflow", body.Service)

	router, _ = newRouter(false)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAPIRequiresBearer(t *testing.T) {
	router, rec := newRouter(true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, rec.entries)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer good")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"u1"}`, w.Body.String())
	require.Len(t, rec.entries, 1)
	assert.Equal(t, "200", rec.entries[0].status)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newRouter(true)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `callflow_http_requests_total{method="GET",route="/health",status="200"} 1`),
		"metrics body missing /health counter")
}
