package main

import (
	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"swiftroute/internal/config"
	dbpkg "swiftroute/internal/db"
	"swiftroute/internal/http/handlers"
	appmw "swiftroute/internal/http/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log.SetFormatter(&log.JSONFormatter{})
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	db, err := dbpkg.Connect(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}

	dbpkg.StartRetentionWorker(db, cfg.RetentionDays)
	dbpkg.StartRollupWorker(db)

	handlers.InitMetrics()

	auth := dbpkg.NewStoreAuthenticator(db)

	r := router.New()
	r.NotFound = func(ctx *fasthttp.RequestCtx) {
		handlers.WriteError(ctx, fasthttp.StatusNotFound, handlers.CodeNotFound, "Resource not found", nil)
	}
	r.MethodNotAllowed = func(ctx *fasthttp.RequestCtx) {
		handlers.WriteError(ctx, fasthttp.StatusMethodNotAllowed, handlers.CodeMethodNotAllowed, "Method not allowed", nil)
	}
	r.PanicHandler = func(ctx *fasthttp.RequestCtx, v interface{}) {
		log.WithField("panic", v).Error("panic while handling request")
		handlers.WriteError(ctx, fasthttp.StatusInternalServerError, handlers.CodeInternalError, "Internal server error", nil)
	}

	// Authenticated API surface. Usage recording sits inside auth so the
	// identity is available, and the rate limiter sits inside the recorder
	// so rejected requests still show up in the usage log.
	api := func(h fasthttp.RequestHandler) fasthttp.RequestHandler {
		return appmw.APIKeyAuth(auth, true)(appmw.UsageRecorder(db)(appmw.RateLimit(db)(h)))
	}

	r.GET("/healthz", handlers.Liveness())

	// Health takes an optional key: a supplied key is validated and the
	// call recorded, but none is required and no rate limit applies.
	r.GET("/api/v1/health", appmw.APIKeyAuth(auth, false)(appmw.UsageRecorder(db)(handlers.Health(db))))

	r.GET("/api/v1/profile", api(handlers.Profile(db)))
	r.POST("/api/v1/keys", api(handlers.CreateKey(db)))
	r.DELETE("/api/v1/keys/{id}", api(handlers.DeleteKey(db)))
	r.GET("/api/v1/usage", api(handlers.Usage(db, cfg)))
	r.GET("/api/v1/subscription", api(handlers.Subscription(db)))
	r.GET("/api/v1/metrics", appmw.APIKeyAuth(auth, true)(handlers.ClientMetrics()))

	// Trusted backend surface, gated by the shared service credential.
	r.POST("/api/v1/trial", appmw.ServiceAuth(cfg)(handlers.CreateTrial(db)))
	r.POST("/api/v1/trial/regenerate", appmw.ServiceAuth(cfg)(handlers.RegenerateTrial(db)))
	r.POST("/api/v1/trial/upgrade", appmw.ServiceAuth(cfg)(handlers.UpgradeTrial(db)))
	r.GET("/metrics", appmw.ServiceAuth(cfg)(handlers.OperatorMetrics()))

	// Dashboard read path, session-scoped.
	r.POST("/dashboard/login", handlers.DashboardLogin(db))
	r.POST("/dashboard/logout", handlers.DashboardLogout(db))
	r.GET("/dashboard/overview", handlers.DashboardOverview(db))

	handler := appmw.RequestTracker(r.Handler)

	log.WithField("addr", cfg.ListenAddr).Info("swiftroute listening")
	if err := fasthttp.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		log.WithError(err).Fatal("server error")
	}
}
