package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/coachbase/authgate"
)

// Config holds transport settings.
type Config struct {
	Addr         string
	Cookie       CookieConfig
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server serves the auth endpoints over HTTP.
type Server struct {
	svc    *authgate.Service
	logger *slog.Logger
	cookie CookieConfig

	accessTTL  time.Duration
	refreshTTL time.Duration

	engine *gin.Engine
	http   *http.Server
}

// Identifiers are an email address or an E.164-style phone number.
var identifierPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$|^\+?[0-9]{7,15}$`)

// NewServer wires the routes and returns a Server ready to Run.
func NewServer(svc *authgate.Service, engineCfg authgate.Config, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	s := &Server{
		svc:        svc,
		logger:     logger,
		cookie:     cfg.Cookie,
		accessTTL:  engineCfg.Token.AccessTTL,
		refreshTTL: engineCfg.Token.RefreshTTL,
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
			return identifierPattern.MatchString(fl.Field().String())
		})
	}

	s.engine = s.router()
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	auth := r.Group("/auth")
	auth.POST("/login", s.rateLimit(authgate.RouteLogin), s.handleLogin)
	auth.POST("/logout", s.handleLogout)
	auth.POST("/refresh", s.rateLimit(authgate.RouteRefresh), s.handleRefresh)
	auth.GET("/session", s.rateLimit(authgate.RouteSession), s.handleSession)
	auth.POST("/otp/request", s.rateLimit(authgate.RouteOTPRequest), s.handleOTPRequest)
	auth.POST("/otp/verify", s.rateLimit(authgate.RouteOTPVerify), s.handleOTPVerify)
	auth.PATCH("/otp/lockout", s.handleOTPLockout)

	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}

func (s *Server) rateLimit(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.svc.CheckRate(c.Request.Context(), route, c.ClientIP()); err != nil {
			s.writeError(c, err)
			return
		}
		c.Next()
	}
}
