// Package server is the preview gateway: a small HTTP service that proxies
// and sanitizes upstream wiki documents for the review UI and serves the
// suspect store and the UI bundle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/japaniel/nottranslated/pkg/apperrors"
	"github.com/japaniel/nottranslated/pkg/preview"
)

// Previewer is the upstream client the handlers use.
type Previewer interface {
	FetchRenderedPage(ctx context.Context, uri string) (string, error)
	FetchMetadata(ctx context.Context, locale, slug string) (*preview.Metadata, error)
	FetchRevisionHistory(ctx context.Context, locale, slug, translationOf string, bots []string) *preview.Revisions
}

// Options configures a Server.
type Options struct {
	Previewer    Previewer
	SuspectsRoot string
	StaticRoot   string
	Bots         []string
	CORSOrigins  []string
	Logger       *zap.Logger
}

// Server holds the gateway's routes.
type Server struct {
	router       *gin.Engine
	previewer    Previewer
	suspectsRoot string
	staticRoot   string
	bots         []string
	log          *zap.Logger
}

// New builds the router.
func New(opts Options) *Server {
	s := &Server{
		previewer:    opts.Previewer,
		suspectsRoot: opts.SuspectsRoot,
		staticRoot:   opts.StaticRoot,
		bots:         opts.Bots,
		log:          opts.Logger,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(s.log), ErrorHandler(s.log))
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: opts.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodHead},
			AllowHeaders: []string{"Origin", RequestIDHeader},
			MaxAge:       12 * time.Hour,
		}))
	}

	api := r.Group("/api/v0")
	api.GET("/about", s.handleAbout)
	api.GET("/revisions", s.handleRevisions)
	api.GET("/preview", s.handlePreview)

	if s.suspectsRoot != "" {
		r.Static("/suspects", s.suspectsRoot)
	}
	r.GET("/static/*filepath", s.handleStatic)
	r.NoRoute(s.handleShell)

	s.router = r
	return s
}

// Handler returns the http.Handler for the gateway.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, readTimeout, writeTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("Server started", zap.String("addr", addr))

	select {
	case <-ctx.Done():
		s.log.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.log.Info("Server stopped gracefully")
	return nil
}

// requireQuery reads the named query parameters in order, answering 400 for
// the first one missing.
func requireQuery(c *gin.Context, names ...string) ([]string, bool) {
	values := make([]string, len(names))
	for i, name := range names {
		values[i] = c.Query(name)
		if values[i] == "" {
			_ = c.Error(apperrors.Validation("no ?" + name + "=..."))
			return nil, false
		}
	}
	return values, true
}

func (s *Server) handleAbout(c *gin.Context) {
	q, ok := requireQuery(c, "slug", "locale")
	if !ok {
		return
	}
	slug, locale := q[0], q[1]
	md, err := s.previewer.FetchMetadata(c.Request.Context(), locale, slug)
	if err != nil {
		c.Set(notFoundKey, fmt.Sprintf("Page not found %s/%s", locale, slug))
		_ = c.Error(err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", md.Raw)
}

func (s *Server) handleRevisions(c *gin.Context) {
	q, ok := requireQuery(c, "slug", "locale")
	if !ok {
		return
	}
	slug, locale := q[0], q[1]
	revs := s.previewer.FetchRevisionHistory(c.Request.Context(), locale, slug, c.Query("translationof"), s.bots)
	if revs.Err != nil {
		c.Set(notFoundKey, fmt.Sprintf("Page not found %s/%s", locale, slug))
		_ = c.Error(revs.Err)
		return
	}
	body := gin.H{
		"revisions":     revs.Revisions,
		"enUSRevisions": revs.EnUSRevisions,
		"guessedAge":    revs.GuessedAge,
	}
	if revs.EnUSErr != nil {
		s.log.Warn("Parent revisions unavailable", zap.String("slug", slug), zap.Error(revs.EnUSErr))
		body["enUSError"] = revs.EnUSErr.Error()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handlePreview(c *gin.Context) {
	q, ok := requireQuery(c, "uri")
	if !ok {
		return
	}
	uri := q[0]
	page, err := s.previewer.FetchRenderedPage(c.Request.Context(), uri)
	if err != nil {
		c.Set(notFoundKey, "Page not found "+uri)
		_ = c.Error(err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

func (s *Server) handleStatic(c *gin.Context) {
	name := filepath.Join(s.staticRoot, "static", filepath.FromSlash(path.Clean("/"+c.Param("filepath"))))
	if fi, err := os.Stat(name); err != nil || fi.IsDir() {
		c.String(http.StatusNotFound, "Page not found")
		return
	}
	c.File(name)
}

func (s *Server) handleShell(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.String(http.StatusNotFound, "Page not found")
		return
	}
	c.File(filepath.Join(s.staticRoot, "index.html"))
}
