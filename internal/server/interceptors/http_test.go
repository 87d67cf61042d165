package interceptors

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"callflow/backend/internal/security"
)

func newGinRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/api/v1/users/:id", func(c *gin.Context) {
		userID, _ := GetUserID(c.Request.Context())
		c.String(http.StatusOK, userID)
	})
	return r
}

func doGet(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/u2", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthGin(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, _, err := tokens.Issue("user-1", "company-1", "global:admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	r := newGinRouter(AuthGin(tokens, &mockRevocations{}))
	if w := doGet(r, token); w.Code != http.StatusOK || w.Body.String() != "user-1" {
		t.Errorf("valid token: code = %d body = %q", w.Code, w.Body.String())
	}
	if w := doGet(r, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("missing token: code = %d, want 401", w.Code)
	}
	if w := doGet(r, "garbage"); w.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: code = %d, want 401", w.Code)
	}
}

func TestAuthGin_Revoked(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, _, err := tokens.Issue("user-1", "company-1", "global:admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	r := newGinRouter(AuthGin(tokens, &mockRevocations{hashes: map[string]bool{security.HashToken(token): true}}))
	if w := doGet(r, token); w.Code != http.StatusUnauthorized {
		t.Errorf("revoked token: code = %d, want 401", w.Code)
	}

	r = newGinRouter(AuthGin(tokens, &mockRevocations{err: errors.New("db down")}))
	if w := doGet(r, token); w.Code != http.StatusInternalServerError {
		t.Errorf("revocation lookup failure: code = %d, want 500", w.Code)
	}
}

func TestAuditGin(t *testing.T) {
	logger := &mockAuditLogger{}
	setIdentity := func(c *gin.Context) {
		if c.GetHeader("X-Test-User") != "" {
			ctx := WithIdentity(c.Request.Context(), c.GetHeader("X-Test-User"), "company-1", "global:admin")
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
	r := newGinRouter(setIdentity, AuditGin(logger))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/u2", nil)
	req.Header.Set("X-Test-User", "user-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if len(logger.calls) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(logger.calls))
	}
	want := auditCall{"company-1", "user-1", "get", "user", "200"}
	if logger.calls[0] != want {
		t.Errorf("audit entry = %+v, want %+v", logger.calls[0], want)
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/users/u2", nil))
	if len(logger.calls) != 1 {
		t.Errorf("anonymous requests must not be audited, got %d entries", len(logger.calls))
	}
}

func TestClientIP_FromHTTPContext(t *testing.T) {
	ctx := WithClientIP(context.Background(), "10.1.2.3")
	if got := ClientIP(ctx); got != "10.1.2.3" {
		t.Errorf("ClientIP = %q, want %q", got, "10.1.2.3")
	}
}
