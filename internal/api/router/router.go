package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/taksh05/Assignment-Portal/config"
	"github.com/taksh05/Assignment-Portal/internal/api/handler"
	"github.com/taksh05/Assignment-Portal/internal/api/middleware"
	"github.com/taksh05/Assignment-Portal/internal/model"
	"github.com/taksh05/Assignment-Portal/pkg/jwt"
	"github.com/taksh05/Assignment-Portal/pkg/metrics"
	"github.com/taksh05/Assignment-Portal/pkg/redis"
)

// multipartOverhead 上传接口在文件上限之外为表单字段预留的字节数
const multipartOverhead = 1 << 20

// Deps 路由依赖
type Deps struct {
	Config   *config.Config
	Handler  *handler.Handler
	JWT      *jwt.Manager
	Users    middleware.UserLookup
	Redis    *redis.Client // 可为 nil
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	// UploadDir / UploadURLPrefix 静态文件服务的磁盘目录与 URL 前缀
	UploadDir       string
	UploadURLPrefix string
	Logger          *zap.Logger
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	cfg := d.Config
	h := d.Handler

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Metrics(d.Metrics))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit, map[string]int64{
		"POST /api/assignments":    cfg.Storage.AssignmentMaxBytes + multipartOverhead,
		"PUT /api/assignments/:id": cfg.Storage.AssignmentMaxBytes + multipartOverhead,
		"POST /api/submissions":    cfg.Storage.SubmissionMaxBytes + multipartOverhead,
	}))

	// ── 健康检查与指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))

	// ── 上传文件 ──
	r.Static(d.UploadURLPrefix, d.UploadDir)

	api := r.Group("/api")
	{
		// 认证模块（无需认证，独立限流）
		auth := api.Group("/auth")
		auth.Use(middleware.RateLimit(d.Redis, "auth", cfg.RateLimit.AuthLimit, cfg.RateLimit.AuthWindow, d.Logger))
		{
			auth.POST("/signup", h.Auth.Signup)
			auth.POST("/login", h.Auth.Login)
		}

		// 需要认证的路由
		authorized := api.Group("")
		authorized.Use(middleware.RateLimit(d.Redis, "api", cfg.RateLimit.Limit, cfg.RateLimit.Window, d.Logger))
		authorized.Use(middleware.JWTAuth(d.JWT, d.Users, d.Redis, d.Logger))
		{
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)
			authorized.POST("/auth/logout", h.Auth.Logout)

			// 班级模块
			classes := authorized.Group("/classes")
			{
				classes.GET("", h.Class.ListMine)
				classes.GET("/all", h.Class.ListAll)
				classes.POST("", h.Class.Create)
				classes.GET("/:id", h.Class.Get)
				classes.PUT("/:id", h.Class.Update)
				classes.DELETE("/:id", h.Class.Delete)
				classes.POST("/:id/join", h.Class.Join)
				classes.GET("/:id/assignments", h.Class.ListAssignments)
			}

			// 作业模块
			assignments := authorized.Group("/assignments")
			{
				assignments.GET("", h.Assignment.ListForActor)
				assignments.GET("/calendar.ics", h.Assignment.Calendar)
				assignments.POST("", h.Assignment.Create)
				assignments.GET("/:id", h.Assignment.Get)
				assignments.PUT("/:id", h.Assignment.Update)
				assignments.DELETE("/:id", h.Assignment.Delete)
				assignments.GET("/:id/gradebook.xlsx", h.Assignment.ExportGradebook)
			}

			// 提交模块
			submissions := authorized.Group("/submissions")
			{
				submissions.GET("", h.Submission.ListForActor)
				submissions.POST("", h.Submission.Create)
				submissions.GET("/:id", h.Submission.Get)
				submissions.PUT("/:id/grade", h.Submission.Grade)
				submissions.DELETE("/:id", h.Submission.Delete)
			}

			// 管理员
			admin := authorized.Group("/admin")
			admin.Use(middleware.RoleAuth(model.RoleAdmin))
			{
				admin.GET("/users", h.Admin.ListUsers)
				admin.GET("/classes", h.Admin.ListClasses)
			}
		}
	}

	return r
}
