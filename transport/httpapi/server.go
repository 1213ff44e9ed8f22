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


// Package httpapi serves retrieval and ingestion over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/ingestion"
	"github.com/poiesic/groundwork/retrieval"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	// DefaultServiceName names the server in trace spans.
	DefaultServiceName = "groundwork"

	// DefaultMaxUploadBytes caps multipart document uploads.
	DefaultMaxUploadBytes = 32 << 20

	shutdownTimeout = 10 * time.Second
)

var (
	// ErrServiceRequired is returned when no retrieval service is provided.
	ErrServiceRequired = errors.New("retrieval service required")

	// ErrIngesterRequired is returned when no ingester is provided.
	ErrIngesterRequired = errors.New("ingester required")
)

// Service answers retrieval requests and manages stored resources.
type Service interface {
	RetrieveResponse(ctx context.Context, question string, resources []core.Resource) (*retrieval.Response, error)
	DeleteResource(ctx context.Context, id core.ResourceID) error
	ListResources(ctx context.Context) ([]core.ResourceID, error)
}

// Ingester stores documents.
type Ingester interface {
	Ingest(ctx context.Context, doc *ingestion.Document) (*ingestion.Result, error)
}

// Server routes HTTP requests to a Service and an Ingester.
type Server struct {
	service     Service
	ingester    Ingester
	router      *gin.Engine
	serviceName string
	maxUpload   int64
	logger      *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithServiceName sets the service name reported by the tracing middleware.
func WithServiceName(name string) Option {
	return func(s *Server) error {
		if name == "" {
			return errors.New("service name cannot be empty")
		}
		s.serviceName = name
		return nil
	}
}

// WithMaxUploadBytes caps the size of multipart uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) error {
		if n <= 0 {
			return errors.New("max upload bytes must be positive")
		}
		s.maxUpload = n
		return nil
	}
}

// NewServer creates a Server and registers its routes.
func NewServer(service Service, ingester Ingester, opts ...Option) (*Server, error) {
	if service == nil {
		return nil, ErrServiceRequired
	}
	if ingester == nil {
		return nil, ErrIngesterRequired
	}

	s := &Server{
		service:     service,
		ingester:    ingester,
		serviceName: DefaultServiceName,
		maxUpload:   DefaultMaxUploadBytes,
		logger:      slog.Default().With("component", "http-api"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	router := gin.New()
	router.MaxMultipartMemory = s.maxUpload
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(s.serviceName))
	router.Use(s.requestLogger())

	router.GET("/healthz", s.health)
	v1 := router.Group("/v1")
	v1.POST("/retrieve", s.retrieve)
	v1.GET("/resources", s.listResources)
	v1.POST("/resources", s.ingest)
	v1.DELETE("/resources/:id", s.deleteResource)

	s.router = router
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger logs one line per request once it completes.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
