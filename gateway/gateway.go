package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Gateway struct {
	config  *config.Config
	service *service.Storefront
	health  HealthCheck
	logger  *zap.Logger
	router  *gin.Engine
	server  *http.Server
}

func NewGateway(cfg *config.Config, svc *service.Storefront, health HealthCheck, logger *zap.Logger) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	origins := cfg.CORS.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", idempotencyHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	g := &Gateway{
		config:  cfg,
		service: svc,
		health:  health,
		logger:  logger,
		router:  router,
	}
	g.setupRoutes()
	return g
}

func (g *Gateway) setupRoutes() {
	g.router.GET("/health", g.healthCheck)

	// Swagger
	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := g.router.Group("/api")
	{
		api.POST("/signup", g.signup)
		api.POST("/login", g.login)

		authed := api.Group("", g.authMiddleware())
		{
			authed.POST("/logout", g.logout)
			authed.GET("/profile", g.profile)

			authed.POST("/order", g.createOrder)
			authed.GET("/orders", g.listOrders)
			authed.GET("/orders/:id", g.getOrder)
			authed.POST("/checkout", g.checkout)

			authed.GET("/cart", g.getCart)
			authed.POST("/cart", g.replaceCart)
		}
	}
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	addr := g.config.Server.Addr()
	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.logger.Info("Storefront API starting", zap.String("address", addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}

func (g *Gateway) healthCheck(c *gin.Context) {
	if g.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := g.health(ctx); err != nil {
			g.logger.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
