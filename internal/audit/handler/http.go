// Package handler serves audit log listings over REST.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"callflow/backend/internal/api"
	"callflow/backend/internal/audit/domain"
	"callflow/backend/internal/platform/rbac"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Lister reads a company's audit entries.
type Lister interface {
	ListByCompany(ctx context.Context, companyID string, limit, offset int32) ([]*domain.AuditLog, error)
}

// Handler serves /audit-logs.
type Handler struct {
	repo   Lister
	scopes rbac.ScopeChecker
}

// NewHandler returns an audit log REST handler.
func NewHandler(repo Lister, scopes rbac.ScopeChecker) *Handler {
	return &Handler{repo: repo, scopes: scopes}
}

// Register mounts the audit routes on an authenticated router group.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/audit-logs", h.list)
}

type auditLogResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *Handler) list(c *gin.Context) {
	companyID, _, err := rbac.RequireScope(c.Request.Context(), h.scopes, rbac.ScopeAuditList)
	if err != nil {
		code, body := api.FromStatusError(err)
		c.JSON(code, body)
		return
	}
	if companyID == "" {
		c.JSON(http.StatusForbidden, api.NewError(http.StatusForbidden, "company context required"))
		return
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	// One extra row tells whether another page exists.
	entries, err := h.repo.ListByCompany(c.Request.Context(), companyID, int32(limit+1), int32(offset))
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, api.NewError(http.StatusInternalServerError, "failed to list audit logs"))
		return
	}
	var next *string
	if len(entries) > limit {
		entries = entries[:limit]
		s := api.EncodeCursor(api.Cursor{Offset: offset + limit, Limit: limit})
		next = &s
	}
	data := make([]auditLogResponse, 0, len(entries))
	for _, e := range entries {
		data = append(data, auditLogResponse{
			ID:        e.ID,
			UserID:    e.UserID,
			Action:    e.Action,
			Resource:  e.Resource,
			IP:        e.IP,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, api.PageResponse{Data: data, NextCursor: next})
}
