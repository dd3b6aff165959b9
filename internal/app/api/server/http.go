package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mcpfactory/stripe-service/docs"
	"github.com/mcpfactory/stripe-service/internal/app/api/handlers"
	mw "github.com/mcpfactory/stripe-service/internal/app/api/middleware"
	"github.com/mcpfactory/stripe-service/internal/app/service/payment"
	"github.com/mcpfactory/stripe-service/internal/app/service/reconciler"
	"github.com/mcpfactory/stripe-service/internal/platform/stripeapi"
	cfgpkg "github.com/mcpfactory/stripe-service/pkg/config"
	metrics "github.com/mcpfactory/stripe-service/pkg/metrics"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Request logger & access log are attached per group in registerRoutes.
	r.Use(mw.TraceMiddleware())
	return r
}

func registerRoutes(r *gin.Engine, log *zap.SugaredLogger, cfg *cfgpkg.Config, svc *payment.Service, client stripeapi.Client, rec *reconciler.Reconciler) {
	// Prometheus metrics
	if cfg != nil && cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger: log,
		})
		p.SetListenAddress(cfg.MetricsAddr)
		p.Use(r)

		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	// Public group: health and Swagger UI, no service auth.
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Webhook group: Stripe authenticates with its signature header, not the
	// service API key.
	wh := r.Group("/")
	wh.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterWebhookRoutes(wh, cfg, client, rec, log)

	// Everything else requires the service API key.
	api := r.Group("/")
	api.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(), mw.ServiceAuthMiddleware(cfg, log))
	handlers.RegisterPaymentRoutes(api, svc, log)
	handlers.RegisterCatalogRoutes(api, client, log)
	handlers.RegisterCustomerRoutes(api, client, log)
	handlers.RegisterStatusRoutes(api, svc, log)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
