package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanosuguru/go-event-catalog/internal/api"
	"github.com/sanosuguru/go-event-catalog/internal/api/handler"
	"github.com/sanosuguru/go-event-catalog/internal/api/middleware"
	"github.com/sanosuguru/go-event-catalog/internal/config"
	"github.com/sanosuguru/go-event-catalog/internal/pkg/metrics"
)

// Deps はルーティングに必要な依存
type Deps struct {
	EventService handler.EventServiceInterface
	HealthChecks map[string]handler.Pinger
	Metrics      *metrics.Metrics
	// Gatherer が nil の場合は /metrics を公開しない
	Gatherer prometheus.Gatherer
	Auth     config.AuthConfig
	// AllowOrigins が空の場合はすべてのオリジンを許可する
	AllowOrigins []string
}

// New はミドルウェアとルートを設定したEchoインスタンスを作成する
func New(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler

	middleware.SetupMiddleware(e, deps.AllowOrigins)
	if deps.Metrics != nil {
		e.Use(middleware.PrometheusMiddleware(deps.Metrics))
	}

	healthHandler := handler.NewHealthHandler(deps.HealthChecks)
	e.GET("/health", healthHandler.Check)
	e.GET("/ready", healthHandler.Ready)
	if deps.Gatherer != nil {
		e.GET("/metrics",
			echo.WrapHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})),
			middleware.MetricsBasicAuth(deps.Auth.MetricsUser, deps.Auth.MetricsPassword),
		)
	}

	eventHandler := handler.NewEventHandler(deps.EventService)
	requireToken := middleware.JWTAuth(deps.Auth.JWTSecret)

	v1 := e.Group("/api/v1")

	// 参照系
	v1.GET("/events", eventHandler.List)
	v1.GET("/events/:id", eventHandler.GetByID)
	v1.GET("/events/filter/tag", eventHandler.ByTag)
	v1.GET("/events/filter/upcoming", eventHandler.Upcoming)
	v1.GET("/events/filter/price", eventHandler.ByPriceRange)
	v1.GET("/events/filter/date", eventHandler.ByDateRange)

	// 更新系
	v1.POST("/events", eventHandler.Create, requireToken)
	v1.PUT("/events/:id", eventHandler.Update, requireToken)
	v1.PATCH("/events/:id", eventHandler.Patch, requireToken)
	v1.PATCH("/events/:id/price", eventHandler.UpdatePrice, requireToken)
	v1.DELETE("/events/:id", eventHandler.Delete, requireToken)

	return e
}
