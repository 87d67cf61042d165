package interceptors

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"callflow/backend/internal/api"
	"callflow/backend/internal/audit"
	"callflow/backend/internal/logging"
)

// AuthGin returns gin middleware that requires a valid, unrevoked Bearer token and stores the
// token identity and client IP in the request context.
func AuthGin(tokens TokenValidator, revoked RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithClientIP(c.Request.Context(), c.ClientIP())
		authCtx, _, err := Authenticate(ctx, tokens, revoked, ParseBearer(c.GetHeader("Authorization")))
		if err != nil {
			if errors.Is(err, ErrUnauthenticated) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, api.NewError(http.StatusUnauthorized, err.Error()))
				return
			}
			c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, api.NewError(http.StatusInternalServerError, "failed to check token"))
			return
		}
		c.Request = c.Request.WithContext(authCtx)
		c.Next()
	}
}

// AuditGin returns gin middleware that records an audit entry for each authenticated request.
// The entry metadata is the response status code.
func AuditGin(logger audit.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if logger == nil {
			return
		}
		ctx := c.Request.Context()
		userID, ok := GetUserID(ctx)
		if !ok {
			return
		}
		companyID, _ := GetCompanyID(ctx)
		ar := audit.ParseHTTPRoute(c.Request.Method, c.FullPath())
		logger.LogEvent(ctx, companyID, userID, ar.Action, ar.Resource, strconv.Itoa(c.Writer.Status()))
	}
}

// LogGinErrors logs errors attached to the gin context by handlers.
func LogGinErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		for _, e := range c.Errors {
			slog.ErrorContext(c.Request.Context(), "request failed",
				slog.String("route", c.FullPath()), logging.Error(e.Err))
		}
	}
}
