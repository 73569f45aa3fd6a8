// Package router assembles the gin engine: global middleware, the
// unauthenticated health route and the versioned purchasing API.
package router

import (
	"net/http"

	"github.com/atelier-erp/backend/internal/infrastructure/config"
	"github.com/atelier-erp/backend/internal/infrastructure/logger"
	"github.com/atelier-erp/backend/internal/interfaces/http/handler"
	"github.com/atelier-erp/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts registrars under /api/<version>
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered by Setup
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// DomainGroup collects the routes of one domain behind a shared prefix and
// middleware chain
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a new domain-specific route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodGet, path, handlers)
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPost, path, handlers)
}

func (dg *DomainGroup) handle(method, path string, handlers []gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return dg
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}

// Deps are the collaborators the engine is built from
type Deps struct {
	Config         *config.Config
	Logger         *zap.Logger
	Meter          metric.Meter
	TracingEnabled bool
	Identity       middleware.IdentityConfig
	Purchases      *handler.PurchaseOrderHandler
	Health         *handler.HealthHandler
}

// New builds the gin engine with the global middleware chain. Health is
// mounted at the root, outside the identity check.
func New(deps Deps) *gin.Engine {
	cfg := deps.Config
	if !cfg.App.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			deps.Logger.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
			_ = engine.SetTrustedProxies(nil)
		}
	} else {
		_ = engine.SetTrustedProxies(nil)
	}

	engine.Use(
		logger.Recovery(deps.Logger),
		middleware.RequestID(),
		middleware.Tracing(cfg.Telemetry.ServiceName, deps.TracingEnabled),
		middleware.SpanEnricher(),
		logger.GinMiddleware(deps.Logger),
		middleware.CORS(cfg.HTTP),
		middleware.HTTPMetrics(deps.Meter, deps.Logger),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	if deps.Health != nil {
		engine.GET("/health", deps.Health.Health)
	}

	r := NewRouter(engine)
	if deps.Purchases != nil {
		if deps.Identity.Logger == nil {
			deps.Identity.Logger = deps.Logger
		}
		r.Register(PurchaseOrderRoutes(deps.Purchases, middleware.Identity(deps.Identity)))
	}
	r.Setup()

	return engine
}

// PurchaseOrderRoutes groups the purchase order endpoints under /purchase-orders
func PurchaseOrderRoutes(h *handler.PurchaseOrderHandler, mw ...gin.HandlerFunc) *DomainGroup {
	return NewDomainGroup("purchasing", "/purchase-orders").
		Use(mw...).
		POST("", h.Create).
		GET("", h.List).
		GET("/:id", h.GetByID).
		POST("/:id/finalize", h.Finalize)
}
