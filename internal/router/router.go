package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/passpolicy/internal/middleware"
	"github.com/jwalitptl/passpolicy/pkg/auth"
	"github.com/jwalitptl/passpolicy/pkg/logger"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// RootHandler mounts outside the API prefix.
type RootHandler interface {
	RegisterRoutes(gin.IRoutes)
}

type MetricsHandler interface {
	RootHandler
	Middleware() gin.HandlerFunc
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	HookSecret       string
	MaxBodySize      int64
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	settings Handler
	hooks    Handler
	health   RootHandler
	metrics  MetricsHandler
	config   RouterConfig
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	settings Handler,
	hooks Handler,
	health RootHandler,
	metrics MetricsHandler,
	log *logger.Logger,
	config RouterConfig,
) *Router {
	engine := gin.New()

	if config.MaxBodySize <= 0 {
		config.MaxBodySize = middleware.DefaultMaxBodySize
	}

	r := &Router{
		engine:   engine,
		auth:     auth,
		settings: settings,
		hooks:    hooks,
		health:   health,
		metrics:  metrics,
		config:   config,
	}

	engine.Use(
		middleware.Recovery(log),
		middleware.RequestID(log),
		middleware.Logger(log),
		middleware.ErrorLogger(log),
	)
	if metrics != nil {
		engine.Use(metrics.Middleware())
	}

	return r
}

func (r *Router) Setup() {
	r.health.RegisterRoutes(r.engine)
	if r.metrics != nil {
		r.metrics.RegisterRoutes(r.engine)
	}

	api := r.engine.Group("/api/v1")
	api.Use(middleware.SizeLimit(r.config.MaxBodySize))
	if r.config.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  r.config.RateLimit,
			Burst: r.config.RateBurst,
		})
		api.Use(limiter.RateLimit())
	}

	// Admin routes
	admin := api.Group("")
	admin.Use(
		r.auth.Authenticate(),
		r.auth.RequireCapability(auth.CapabilityManageOptions),
	)
	r.settings.RegisterRoutes(admin)

	// Host hooks
	hooks := api.Group("")
	hooks.Use(middleware.HookSecret(r.config.HookSecret))
	r.hooks.RegisterRoutes(hooks)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
