package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/expensit/auth"
	"github.com/poiesic/expensit/core"
	"github.com/poiesic/expensit/storage"
)

// handleAdminListTenants returns every tenant.
func (s *Server) handleAdminListTenants(c *gin.Context) {
	tenants, err := s.tenants.ListTenants(c.Request.Context())
	if err != nil {
		s.logger.Error("tenant listing failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}

	views := make([]tenantView, len(tenants))
	for i, tenant := range tenants {
		views[i] = viewTenant(tenant)
	}
	c.JSON(http.StatusOK, gin.H{"tenants": views})
}

type adminCreateTenantRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Admin    bool   `json:"admin"`
	Plan     string `json:"plan" binding:"omitempty,plan"`
}

// handleAdminCreateTenant provisions an account, optionally on a paid
// plan or with the admin role.
func (s *Server) handleAdminCreateTenant(c *gin.Context) {
	var req adminCreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan := core.PlanFree
	if req.Plan != "" {
		plan, _ = core.PlanByName(req.Plan)
	}
	role := core.RoleUser
	if req.Admin {
		role = core.RoleAdmin
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("password hashing failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "creation failed"})
		return
	}

	tenant, err := s.tenants.AddTenant(c.Request.Context(), &core.Tenant{
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		Subscription: core.NewSubscription(plan),
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		s.logger.Error("tenant creation failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "creation failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"tenant": viewTenant(tenant)})
}

// handleAdminDeleteTenant removes an account and all of its records.
func (s *Server) handleAdminDeleteTenant(c *gin.Context) {
	tenantID, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.tenants.DeleteTenant(c.Request.Context(), tenantID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			return
		}
		s.logger.Error("tenant deletion failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deletion failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

type changeSubscriptionRequest struct {
	Plan string `json:"plan" binding:"required,plan"`
}

// handleAdminChangeSubscription moves a tenant onto a new plan. The
// limit is re-derived from the catalog and the usage counter carries
// over untouched.
func (s *Server) handleAdminChangeSubscription(c *gin.Context) {
	tenantID, ok := pathID(c)
	if !ok {
		return
	}

	var req changeSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := core.PlanByName(req.Plan)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenant, err := s.tenants.ChangeSubscription(c.Request.Context(), tenantID, plan)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			return
		}
		s.logger.Error("subscription change failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscription change failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tenant": viewTenant(tenant)})
}
