// Package http provides the HTTP adapter over the application layer. It is a
// thin translation layer: requests become service calls, faults become
// status codes.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ecoregula/permitflow/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config            ServerConfig
	httpServer        *http.Server
	router            *gin.Engine
	permitService     service.PermitService
	issuanceService   service.IssuanceService
	complianceService service.ComplianceService
	auditService      service.AuditService
	registerService   service.RegisterExportService
	logger            Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	permitService service.PermitService,
	issuanceService service.IssuanceService,
	complianceService service.ComplianceService,
	auditService service.AuditService,
	registerService service.RegisterExportService,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config:            config,
		router:            router,
		permitService:     permitService,
		issuanceService:   issuanceService,
		complianceService: complianceService,
		auditService:      auditService,
		registerService:   registerService,
		logger:            logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(identityMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.permitService, s.issuanceService, s.complianceService, s.auditService, s.registerService, s.logger)

	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api")
	{
		// Permit requests
		api.POST("/requests", handlers.SubmitRequest)
		api.GET("/requests/pending", handlers.ListPendingRequests)
		api.GET("/requests/:id", handlers.GetRequest)
		api.POST("/requests/:id/validate-technician", handlers.ValidateAsTechnician)
		api.POST("/requests/:id/validate-chief", handlers.ValidateAsChief)
		api.POST("/requests/:id/rupe", handlers.AttachPaymentReference)
		api.POST("/requests/:id/payment-submitted", handlers.ConfirmPaymentSubmitted)
		api.POST("/requests/:id/validate-payment", handlers.ValidatePayment)
		api.POST("/requests/:id/approve", handlers.ApproveRequest)
		api.POST("/requests/:id/reject", handlers.RejectRequest)
		api.GET("/requests/:id/permit", handlers.GetPermitForRequest)

		// Issued permits
		api.GET("/permits", handlers.ListPermits)
		api.GET("/permits/register", handlers.ExportRegister)

		// Compliance
		api.POST("/compliance/configurations", handlers.CreateConfiguration)
		api.GET("/compliance/entities/:id/periods", handlers.GetPeriods)
		api.POST("/compliance/periods/:id/report", handlers.SubmitReport)
		api.POST("/compliance/periods/:id/reopening", handlers.RequestReopening)
		api.POST("/compliance/periods/:id/reopening/rupe", handlers.RequireReopeningPayment)
		api.POST("/compliance/periods/:id/reopening/payment-submitted", handlers.ConfirmReopeningPaymentSubmitted)
		api.POST("/compliance/periods/:id/reopening/validate-payment", handlers.ValidateReopeningPayment)
		api.GET("/compliance/submissions/:id", handlers.GetSubmission)
		api.POST("/compliance/submissions/:id/resubmit", handlers.Resubmit)
		api.POST("/compliance/submissions/:id/opinion", handlers.RecordOpinion)
		api.POST("/compliance/submissions/:id/rupe", handlers.AttachSubmissionRUPE)
		api.POST("/compliance/submissions/:id/payment-submitted", handlers.ConfirmSubmissionPaymentSubmitted)
		api.POST("/compliance/submissions/:id/validate-payment", handlers.ValidateSubmissionPayment)
		api.POST("/compliance/submissions/:id/technicians", handlers.AssignTechnician)
		api.POST("/compliance/submissions/:id/visit", handlers.ScheduleVisit)
		api.POST("/compliance/submissions/:id/visit/complete", handlers.CompleteVisit)
		api.POST("/compliance/submissions/:id/final-document", handlers.AttachFinalDocument)

		// Audit trail
		api.GET("/audit/:kind/:id", handlers.ListAudit)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
