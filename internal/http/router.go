package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/dashboard/internal/config"
	"github.com/geocoder89/dashboard/internal/http/handlers"
	"github.com/geocoder89/dashboard/internal/http/middlewares"
	"github.com/geocoder89/dashboard/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "dashboard-api"

type Deps struct {
	Log      *slog.Logger
	Config   config.Config
	Auth     handlers.AuthService
	Tokens   middlewares.TokenVerifier
	Proxy    handlers.ProxyClient
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	// Ping backs /readyz; nil means always ready.
	Ping func(ctx context.Context) error
	// CachePing is the shared proxy cache's ping, nil when it is process local.
	CachePing func(ctx context.Context) error
}

func NewRouter(d Deps) *gin.Engine {
	if d.Config.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// ClientIP keys the auth rate limit, so only listed proxies may set it
	if err := r.SetTrustedProxies(d.Config.TrustedProxies); err != nil {
		d.Log.Warn("invalid TRUSTED_PROXIES, trusting none", "err", err)
		_ = r.SetTrustedProxies(nil)
	}

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(serviceName))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Config.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(d.Config.MaxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health
	h := handlers.NewHealthHandler(d.Ping, d.CachePing)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authHandler := handlers.NewAuthHandler(d.Auth)
	proxyHandler := handlers.NewProxyHandler(d.Proxy)
	authMW := middlewares.NewAuthMiddleware(d.Tokens)

	authGroup := r.Group("/auth")

	credentials := []gin.HandlerFunc{}
	if d.Config.AuthRateLimit > 0 {
		rl := middlewares.NewRateLimiter(d.Config.AuthRateLimit, time.Minute)
		credentials = append(credentials, rl.RateLimiterMiddleware(middlewares.KeyByIP))
	}

	authGroup.POST("/register", append(credentials, authHandler.Register)...)
	authGroup.POST("/login", append(credentials, authHandler.Login)...)
	authGroup.GET("/me", authMW.RequireAuth(), authHandler.Me)

	// dashboard widgets, public like the rest of /auth
	authGroup.GET("/weather", proxyHandler.Weather)
	authGroup.GET("/news", proxyHandler.News)
	authGroup.GET("/clothes", proxyHandler.Clothes)

	return r
}
