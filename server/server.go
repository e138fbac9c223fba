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
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/poiesic/expensit/auth"
	"github.com/poiesic/expensit/core"
	"github.com/poiesic/expensit/ingest"
	"github.com/poiesic/expensit/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxUploadBytes caps receipt uploads before normalization.
const DefaultMaxUploadBytes = 10 << 20

var (
	// ErrAuthenticatorRequired is returned when a Server is built
	// without an authenticator.
	ErrAuthenticatorRequired = errors.New("authenticator required")

	// ErrPipelineRequired is returned when a Server is built without an
	// ingestion pipeline.
	ErrPipelineRequired = errors.New("ingestion pipeline required")
)

// Server wires the repositories, pipeline and authenticator into a gin
// engine.
type Server struct {
	engine         *gin.Engine
	tenants        storage.TenantRepository
	records        storage.RecordRepository
	pipeline       *ingest.Pipeline
	auth           *auth.Authenticator
	metrics        *metrics
	maxUploadBytes int64
	logger         *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMaxUploadBytes overrides the pre-normalization upload ceiling.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates the API server and registers all routes.
func New(
	tenants storage.TenantRepository,
	records storage.RecordRepository,
	pipeline *ingest.Pipeline,
	authenticator *auth.Authenticator,
	opts ...Option,
) (*Server, error) {
	if tenants == nil {
		return nil, ingest.ErrTenantRepositoryRequired
	}
	if records == nil {
		return nil, ingest.ErrRecordRepositoryRequired
	}
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}
	if authenticator == nil {
		return nil, ErrAuthenticatorRequired
	}

	registerValidations()

	s := &Server{
		tenants:        tenants,
		records:        records,
		pipeline:       pipeline,
		auth:           authenticator,
		metrics:        newMetrics(),
		maxUploadBytes: DefaultMaxUploadBytes,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())
	s.engine = engine
	s.routes()

	return s, nil
}

// registerValidations installs the custom binding validators. Safe to
// call more than once; gin keeps one validator engine per process.
func registerValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("plan", func(fl validator.FieldLevel) bool {
			_, err := core.PlanByName(fl.Field().String())
			return err == nil
		})
	}
}

func (s *Server) routes() {
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	api := s.engine.Group("/api")
	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)
	api.GET("/plans", s.handlePlans)

	authed := api.Group("", s.requireAuth())
	authed.GET("/status", s.handleStatus)
	authed.GET("/subscription", s.handleSubscription)
	authed.POST("/receipts", s.handleUploadReceipt)
	authed.GET("/records", s.handleListRecords)
	authed.PATCH("/records/:id", s.handleUpdateRecord)
	authed.DELETE("/records/:id", s.handleDeleteRecord)
	authed.POST("/records/delete", s.handleDeleteRecords)

	admin := authed.Group("/admin", s.requireAdmin())
	admin.GET("/tenants", s.handleAdminListTenants)
	admin.POST("/tenants", s.handleAdminCreateTenant)
	admin.DELETE("/tenants/:id", s.handleAdminDeleteTenant)
	admin.PUT("/tenants/:id/subscription", s.handleAdminChangeSubscription)
}

// Handler returns the underlying http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves the API on addr until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("serving API", "addr", addr)
	return s.engine.Run(addr)
}
