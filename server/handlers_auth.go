// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/expensit/auth"
	"github.com/poiesic/expensit/core"
	"github.com/poiesic/expensit/storage"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// handleRegister creates a tenant on the free plan.
func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("password hashing failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	tenant, err := s.tenants.AddTenant(c.Request.Context(), &core.Tenant{
		Email:        req.Email,
		PasswordHash: hash,
		Role:         core.RoleUser,
		Subscription: core.NewSubscription(core.PlanFree),
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		s.logger.Error("tenant creation failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	token, err := s.auth.Issue(tenant)
	if err != nil {
		s.logger.Error("token issue failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token, "tenant": viewTenant(tenant)})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// handleLogin exchanges credentials for a session token. Wrong email and
// wrong password are indistinguishable on purpose.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenant, err := s.tenants.GetTenantByEmail(c.Request.Context(), req.Email)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err := auth.CheckPassword(tenant.PasswordHash, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := s.auth.Issue(tenant)
	if err != nil {
		s.logger.Error("token issue failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "tenant": viewTenant(tenant)})
}

// handleStatus reports the caller's plan and usage.
func (s *Server) handleStatus(c *gin.Context) {
	tenant, err := s.tenants.GetTenant(c.Request.Context(), claimsFrom(c).TenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
		return
	}

	sub := tenant.Subscription
	c.JSON(http.StatusOK, gin.H{
		"email":     tenant.Email,
		"plan":      sub.Plan,
		"limit":     sub.Limit,
		"used":      sub.Used,
		"remaining": sub.Remaining(),
	})
}

// handlePlans returns the subscription catalog.
func (s *Server) handlePlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": viewPlans(core.Plans())})
}

// handleSubscription returns the caller's subscription.
func (s *Server) handleSubscription(c *gin.Context) {
	tenant, err := s.tenants.GetTenant(c.Request.Context(), claimsFrom(c).TenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
		return
	}

	sub := tenant.Subscription
	c.JSON(http.StatusOK, gin.H{
		"plan":      sub.Plan,
		"status":    sub.Status.String(),
		"limit":     sub.Limit,
		"used":      sub.Used,
		"remaining": sub.Remaining(),
	})
}
