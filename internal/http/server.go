package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"dailyexpense/internal/auth"
	"dailyexpense/internal/identity"
	applog "dailyexpense/internal/log"
	"dailyexpense/internal/middleware/ratelimit"
	"dailyexpense/internal/middleware/security"
	"dailyexpense/internal/middleware/trace"
	"dailyexpense/internal/services"
	"dailyexpense/internal/store"
)

// Banner is the body of GET /.
const Banner = "Daily Expense Manager API"

// Options wires the server. Auth must be set when Identity is in token mode
// and is ignored otherwise.
type Options struct {
	Addr     string
	Expenses *services.ExpenseService
	Auth     *auth.Service
	Identity identity.Resolver
	Health   store.HealthChecker
	Logger   *applog.Logger

	Backend            string
	Env                string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	HealthTimeout      time.Duration
}

// Server is the HTTP API server.
type Server struct {
	http.Server

	expenses    *services.ExpenseService
	auth        *auth.Service
	identity    identity.Resolver
	health      store.HealthChecker
	limiter     *ratelimit.Limiter
	backend     string
	env         string
	development bool
	healthWait  time.Duration
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) (*Server, error) {
	if opts.Expenses == nil || opts.Identity == nil || opts.Health == nil {
		return nil, errors.New("expenses, identity and health are required")
	}
	if opts.Identity.Mode() == identity.ModeToken && opts.Auth == nil {
		return nil, errors.New("token identity requires an auth service")
	}
	if opts.Logger == nil {
		opts.Logger = applog.FromContext(context.Background())
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 2 * time.Second
	}
	if len(opts.CORSAllowedOrigins) == 0 {
		opts.CORSAllowedOrigins = []string{"*"}
	}

	s := &Server{
		expenses:    opts.Expenses,
		identity:    opts.Identity,
		health:      opts.Health,
		limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		backend:     opts.Backend,
		env:         opts.Env,
		development: opts.Env == "development",
		healthWait:  opts.HealthTimeout,
		started:     time.Now(),
	}
	if opts.Identity.Mode() == identity.ModeToken {
		s.auth = opts.Auth
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(security.TrustedProxies); err != nil {
		s.limiter.Stop()
		return nil, fmt.Errorf("set trusted proxies: %w", err)
	}
	engine.Use(
		trace.NewMiddleware(opts.Logger).Handler(),
		s.recovery(),
		security.Headers(),
		security.NewDetector().Handler(),
		cors.New(corsConfig(opts.CORSAllowedOrigins)),
		limitBody(MaxBodyBytes),
		s.limiter.Handler(ratelimit.MutatingMethods...),
	)
	s.routes(engine)

	s.Addr = opts.Addr
	s.Handler = engine
	s.ReadHeaderTimeout = 10 * time.Second
	s.ReadTimeout = 15 * time.Second
	s.WriteTimeout = 30 * time.Second
	s.IdleTimeout = 60 * time.Second
	return s, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", identity.TokenHeader, identity.DeviceHeader, trace.HeaderRequestID},
		ExposeHeaders: []string{"Content-Length", trace.HeaderRequestID, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (s *Server) routes(r *gin.Engine) {
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, messageResponse{Msg: "Route not found"})
	})

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, Banner)
	})

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)

	if s.auth != nil {
		authGroup := api.Group("/auth")
		authGroup.POST("/register", s.handleRegister)
		authGroup.POST("/login", s.handleLogin)
		authGroup.GET("/me", s.requireOwner(), s.handleMe)
	}

	expenses := api.Group("/expenses", s.requireOwner())
	expenses.GET("", s.handleListExpenses)
	expenses.POST("", s.handleCreateExpense)
	expenses.GET("/summary", s.handleSummary)
	expenses.PUT("/:id", s.handleUpdateExpense)
	expenses.DELETE("/:id", s.handleDeleteExpense)
}

// Shutdown gracefully shuts down the server and its cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	// Ensure shutdown logic runs only once
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
