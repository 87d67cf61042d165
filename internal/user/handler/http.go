// Package handler serves the user administration REST API.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"callflow/backend/internal/api"
	identityservice "callflow/backend/internal/identity/service"
	"callflow/backend/internal/platform/rbac"
	"callflow/backend/internal/user/domain"
	userservice "callflow/backend/internal/user/service"
)

// RevokeHeader carries the token to revoke on POST /users/auth/revoke.
const RevokeHeader = "x-auth-token"

// UserService is the user administration used by the handler.
type UserService interface {
	Get(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context, offset, limit int, projectID string) (*userservice.Page, error)
	Invite(ctx context.Context, invites []userservice.Invite) ([]userservice.InviteResult, error)
	Delete(ctx context.Context, callerID, id string) error
	ChangeRole(ctx context.Context, id, newRole string) error
}

// TokenService issues and revokes user API tokens.
type TokenService interface {
	IssueForUser(ctx context.Context, userID string) (*identityservice.TokenResult, error)
	Revoke(ctx context.Context, token string) error
}

// Handler serves /users.
type Handler struct {
	users  UserService
	tokens TokenService
	scopes rbac.ScopeChecker
}

// NewHandler returns a users REST handler.
func NewHandler(users UserService, tokens TokenService, scopes rbac.ScopeChecker) *Handler {
	return &Handler{users: users, tokens: tokens, scopes: scopes}
}

// Register mounts the user routes on an authenticated router group.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/users/auth/revoke", h.revokeToken)
	r.GET("/users/:id/auth", h.issueToken)
	r.GET("/users/:id", h.getUser)
	r.GET("/users", h.listUsers)
	r.POST("/users", h.inviteUsers)
	r.DELETE("/users/:id", h.deleteUser)
	r.PATCH("/users/:id/role", h.changeRole)
}

type changeRoleRequest struct {
	NewRoleName string `json:"newRoleName"`
}

func (h *Handler) issueToken(c *gin.Context) {
	if _, _, ok := h.requireScope(c, rbac.ScopeUserCreate); !ok {
		return
	}
	id := c.Param("id")
	res, err := h.tokens.IssueForUser(c.Request.Context(), id)
	if err != nil {
		h.fail(c, id, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":  res.User.Public(true),
		"token": res.Token,
	})
}

func (h *Handler) revokeToken(c *gin.Context) {
	if err := h.tokens.Revoke(c.Request.Context(), c.GetHeader(RevokeHeader)); err != nil {
		h.fail(c, "", err)
		return
	}
	c.JSON(http.StatusOK, "ok")
}

func (h *Handler) getUser(c *gin.Context) {
	if _, _, ok := h.requireScope(c, rbac.ScopeUserRead); !ok {
		return
	}
	id := c.Param("id")
	u, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, id, err)
		return
	}
	c.JSON(http.StatusOK, u.Public(includeRole(c)))
}

func (h *Handler) listUsers(c *gin.Context) {
	if _, _, ok := h.requireScope(c, rbac.ScopeUserList, rbac.ScopeUserRead); !ok {
		return
	}
	offset, limit, err := pageParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.NewError(http.StatusBadRequest, err.Error()))
		return
	}
	page, err := h.users.List(c.Request.Context(), offset, limit, c.Query("projectId"))
	if err != nil {
		h.fail(c, "", err)
		return
	}
	withRole := includeRole(c)
	data := make([]map[string]any, 0, len(page.Users))
	for _, u := range page.Users {
		data = append(data, u.Public(withRole))
	}
	c.JSON(http.StatusOK, api.PageResponse{
		Data:       data,
		NextCursor: api.NextCursor(page.Offset, page.Limit, page.Total),
	})
}

func (h *Handler) inviteUsers(c *gin.Context) {
	if _, _, ok := h.requireScope(c, rbac.ScopeUserCreate); !ok {
		return
	}
	var invites []userservice.Invite
	if err := c.ShouldBindJSON(&invites); err != nil {
		c.JSON(http.StatusBadRequest, api.NewError(http.StatusBadRequest, fmt.Sprintf("invalid JSON request: %v", err)))
		return
	}
	results, err := h.users.Invite(c.Request.Context(), invites)
	if err != nil {
		h.fail(c, "", err)
		return
	}
	c.JSON(http.StatusCreated, results)
}

func (h *Handler) deleteUser(c *gin.Context) {
	_, callerID, ok := h.requireScope(c, rbac.ScopeUserDelete)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := h.users.Delete(c.Request.Context(), callerID, id); err != nil {
		h.fail(c, id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) changeRole(c *gin.Context) {
	if _, _, ok := h.requireScope(c, rbac.ScopeUserChangeRole); !ok {
		return
	}
	var req changeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.NewError(http.StatusBadRequest, fmt.Sprintf("invalid JSON request: %v", err)))
		return
	}
	id := c.Param("id")
	if err := h.users.ChangeRole(c.Request.Context(), id, req.NewRoleName); err != nil {
		h.fail(c, id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// requireScope accepts the request when the caller holds any of scopes. On failure the response
// is written and ok is false.
func (h *Handler) requireScope(c *gin.Context, scopes ...string) (companyID, userID string, ok bool) {
	var err error
	for _, scope := range scopes {
		companyID, userID, err = rbac.RequireScope(c.Request.Context(), h.scopes, scope)
		if err == nil {
			return companyID, userID, true
		}
	}
	code, body := api.FromStatusError(err)
	c.AbortWithStatusJSON(code, body)
	return "", "", false
}

func (h *Handler) fail(c *gin.Context, id string, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusNotFound, api.NewError(http.StatusNotFound, "Could not find user with id: "+id))
	case errors.Is(err, userservice.ErrValidation), errors.Is(err, domain.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, api.NewError(http.StatusBadRequest, err.Error()))
	case errors.Is(err, domain.ErrOwnerImmutable), errors.Is(err, domain.ErrDeleteSelf):
		c.JSON(http.StatusBadRequest, api.NewError(http.StatusBadRequest, err.Error()))
	default:
		c.Error(err)
		c.JSON(http.StatusInternalServerError, api.NewError(http.StatusInternalServerError, "internal error"))
	}
}

func includeRole(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.DefaultQuery("includeRole", "false"))
	return v
}

// pageParams reads ?cursor, or ?offset and ?limit. Limit clamping is left to the service.
func pageParams(c *gin.Context) (offset, limit int, err error) {
	if cur := c.Query("cursor"); cur != "" {
		cursor, err := api.DecodeCursor(cur)
		if err != nil {
			return 0, 0, err
		}
		return cursor.Offset, cursor.Limit, nil
	}
	if offset, err = strconv.Atoi(c.DefaultQuery("offset", "0")); err != nil || offset < 0 {
		return 0, 0, errors.New("offset must be a non-negative integer")
	}
	if limit, err = strconv.Atoi(c.DefaultQuery("limit", "100")); err != nil || limit < 1 {
		return 0, 0, errors.New("limit must be a positive integer")
	}
	return offset, limit, nil
}
