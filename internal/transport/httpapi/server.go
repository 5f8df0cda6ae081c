package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"gamepub/internal/bootstrap/logging"
	"gamepub/internal/errs"
	"gamepub/internal/ports"
	"gamepub/internal/usecase/upload"
	"gamepub/internal/usecase/versions"
)

const (
	defaultReadHeaderTimeout = 10 * time.Second
	multipartSlack           = 1 << 20
)

type Config struct {
	Addr string
	// MaxUploadBytes caps archive request bodies; zero uses the upload default.
	MaxUploadBytes    int64
	ReadHeaderTimeout time.Duration
}

// Server exposes the versions service and upload sessions over HTTP.
type Server struct {
	cfg      Config
	versions *versions.Service
	uploads  *upload.Registry
	identity ports.IdentityProvider
	files    *spoolFiles
	engine   *gin.Engine

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

func New(cfg Config, svc *versions.Service, uploads *upload.Registry, identity ports.IdentityProvider) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = upload.DefaultMaxFileSize
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = defaultReadHeaderTimeout
	}

	s := &Server{
		cfg:      cfg,
		versions: svc,
		uploads:  uploads,
		identity: identity,
		files:    newSpoolFiles(),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	s.registerRoutes(engine)
	s.engine = engine
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start binds the listener and serves in the background. Bind errors are returned.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	ctx = logging.WithAttrs(ctx, slog.String("component", "httpapi.server"))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errors.New("http server already started")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errs.Wrapf(err, "listen on %s", s.cfg.Addr)
	}
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}
	s.srv = srv
	s.listener = ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "http server stopped", slog.Any("err", errs.Loggable(err)))
		}
	}()
	logging.Info(ctx, "http server listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound address once Start has returned.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.listener = nil
	s.mu.Unlock()

	defer s.files.closeAll()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return errs.Wrap(err, "shutdown http server")
	}
	return nil
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.Use(s.authRequired())
	{
		api.POST("/archives/validate", s.validateArchive)

		api.GET("/games", s.listGames)
		api.POST("/games", s.registerGame)
		api.GET("/games/:gameId", s.getGame)
		api.GET("/games/:gameId/versions", s.listVersions)
		api.POST("/games/:gameId/versions", s.createVersion)

		api.GET("/versions/:id", s.getVersion)
		api.PATCH("/versions/:id/metadata", s.editMetadata)
		api.PUT("/versions/:id/self-qa", s.updateSelfQA)
		api.GET("/versions/:id/actions", s.availableActions)
		api.POST("/versions/:id/transitions", s.transition)
		api.GET("/versions/:id/history", s.history)
		api.GET("/versions/:id/qc-reports", s.listQCReports)
		api.POST("/versions/:id/qc-reports", s.recordQCReport)

		api.POST("/uploads", s.createUpload)
		api.GET("/uploads/:id", s.getUpload)
		api.DELETE("/uploads/:id", s.deleteUpload)
		api.PUT("/uploads/:id/file", s.setUploadFile)
		api.PUT("/uploads/:id/manifest", s.updateUploadManifest)
		api.PUT("/uploads/:id/metadata", s.updateUploadMetadata)
		api.GET("/uploads/:id/validate", s.validateUpload)
		api.POST("/uploads/:id/start", s.startUpload)
		api.POST("/uploads/:id/reset", s.resetUpload)
		api.GET("/uploads/:id/events", s.streamUpload)
	}
}

func pathParam(c *gin.Context, name string) string {
	return strings.TrimSpace(c.Param(name))
}
