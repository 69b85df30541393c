package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xxxkjing/ClassComp-Score/config"
	"github.com/xxxkjing/ClassComp-Score/internal/api/handler"
	"github.com/xxxkjing/ClassComp-Score/internal/api/middleware"
	"github.com/xxxkjing/ClassComp-Score/pkg/jwt"
)

// HealthCheck 依赖健康检查（数据库、Redis）
type HealthCheck func(ctx context.Context) error

// Options 路由可选依赖
type Options struct {
	// Gatherer 为 nil 或 cfg.Metrics.Enabled=false 时不暴露指标端点
	Gatherer prometheus.Gatherer
	Checks   map[string]HealthCheck
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, opts Options, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger, "/health", metricsPath))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimitBytes))

	// ── 健康检查 ──
	r.GET("/health", healthHandler(opts.Checks, logger))

	// ── Prometheus 指标 ──
	if cfg.Metrics.Enabled && opts.Gatherer != nil {
		r.GET(metricsPath, gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	// ── API v1（全部需要认证） ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	{
		admin := middleware.RoleAuth(middleware.RoleAdmin)

		// 学期模块
		semesters := v1.Group("/semesters")
		{
			semesters.GET("", h.Semester.ListSemesters)
			semesters.GET("/current", h.Semester.GetCurrentSemester)
			semesters.GET("/:id", h.Semester.GetSemester)
			semesters.POST("", admin, h.Semester.CreateSemester)
			semesters.PUT("/:id/activate", admin, h.Semester.ActivateSemester)
		}

		// 评分周期模块
		periods := v1.Group("/periods")
		{
			periods.GET("", h.Period.ListPeriods)
			periods.GET("/info", h.Period.GetPeriodInfo)
			periods.GET("/history", h.Period.ConfigHistory)
			periods.GET("/calendar.ics", h.Export.PeriodCalendar)
			periods.POST("/change-type", admin, h.Period.ChangePeriodType)
			periods.PUT("/:number/active", admin, h.Period.SetPeriodActive)
			periods.POST("/reset", admin, h.Period.ResetPeriods)
			periods.GET("/verify", admin, h.Period.VerifyContinuity)
			periods.GET("/export", admin, h.Export.ExportPeriods)
		}
	}

	return r
}

// healthHandler 依次执行依赖检查，任一失败返回 503
func healthHandler(checks map[string]HealthCheck, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(gin.H, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Warn("健康检查失败", zap.String("dependency", name), zap.Error(err))
				deps[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "up"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "dependencies": deps})
	}
}
