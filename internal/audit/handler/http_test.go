package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callflow/backend/internal/audit/domain"
	"callflow/backend/internal/audit/handler"
	"callflow/backend/internal/server/interceptors"
)

type fakeLister struct {
	entries          []*domain.AuditLog
	gotLimit, gotOff int32
	gotCompany       string
}

func (f *fakeLister) ListByCompany(ctx context.Context, companyID string, limit, offset int32) ([]*domain.AuditLog, error) {
	f.gotCompany, f.gotLimit, f.gotOff = companyID, limit, offset
	if int(offset) >= len(f.entries) {
		return nil, nil
	}
	end := min(int(offset+limit), len(f.entries))
	return f.entries[offset:end], nil
}

type allowScopes struct{ allow bool }

func (a allowScopes) Allowed(ctx context.Context, companyID, role, scope string) (bool, error) {
	return a.allow, nil
}

func router(h *handler.Handler, companyID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(interceptors.WithIdentity(c.Request.Context(), "user-1", companyID, "global:owner"))
	})
	h.Register(r)
	return r
}

func TestListAuditLogs(t *testing.T) {
	lister := &fakeLister{}
	for i := 0; i < 3; i++ {
		lister.entries = append(lister.entries, &domain.AuditLog{ID: string(rune('a' + i)), Action: "get", Resource: "user", CreatedAt: time.Now()})
	}
	r := router(handler.NewHandler(lister, allowScopes{true}), "company-1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/audit-logs?limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data       []map[string]any `json:"data"`
		NextCursor *string          `json:"nextCursor"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, 2)
	assert.NotNil(t, body.NextCursor)
	assert.Equal(t, "company-1", lister.gotCompany)
	assert.Equal(t, int32(3), lister.gotLimit)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/audit-logs?offset=2&limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, 1)
	assert.Nil(t, body.NextCursor)
}

func TestListAuditLogsForbidden(t *testing.T) {
	r := router(handler.NewHandler(&fakeLister{}, allowScopes{false}), "company-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/audit-logs", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListAuditLogsRequiresCompany(t *testing.T) {
	r := router(handler.NewHandler(&fakeLister{}, allowScopes{true}), "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/audit-logs", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
