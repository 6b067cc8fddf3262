// Package server exposes the import wizard's HTTP API: session lifecycle,
// source upload, mapping management, preview generation and download, import
// execution, schema lookups and the image proxy.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smonier/importContentFromJson/internal/category"
	"github.com/smonier/importContentFromJson/internal/images"
	"github.com/smonier/importContentFromJson/internal/repository"
)

const (
	sessionTTL     = 2 * time.Hour
	requestTimeout = 30 * time.Second
)

// Server wires the repository, category index and session store behind the
// gin handlers.
type Server struct {
	repo     repository.Service
	cats     *category.Index
	fetcher  images.Fetcher
	log      *zap.Logger
	sessions *sessionStore

	// proxyClient and proxyMax drive the image proxy; tests tune them.
	proxyClient *http.Client
	proxyMax    int
}

// New builds a Server on an opened repository. A nil logger means no logging.
func New(repo repository.Service, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		repo:        repo,
		cats:        category.NewIndex(repo),
		fetcher:     &images.HTTPFetcher{},
		log:         log,
		sessions:    newSessionStore(sessionTTL),
		proxyClient: &http.Client{Timeout: requestTimeout},
		proxyMax:    proxyMaxBytes,
	}
}

// Router assembles the gin engine with logging and timeout middleware.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})

	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "importd"})
	})
	r.GET("/image-proxy", s.imageProxy)

	api := r.Group("/api")
	{
		api.GET("/sites/:site/content-types", s.listContentTypes)
		api.GET("/sites/:site/languages", s.listLanguages)

		api.POST("/sessions", s.createSession)
		api.GET("/sessions/:id", s.getSession)
		api.DELETE("/sessions/:id", s.deleteSession)
		api.POST("/sessions/:id/source", s.uploadSource)
		api.POST("/sessions/:id/content-type", s.selectContentType)
		api.PUT("/sessions/:id/mappings", s.putMappings)
		api.POST("/sessions/:id/preview", s.generatePreview)
		api.GET("/sessions/:id/preview/download", s.downloadPreview)
		api.POST("/sessions/:id/import", s.runImport)
		api.GET("/sessions/:id/report", s.getReport)
	}
	return r
}
