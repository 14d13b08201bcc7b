package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/memory-duel/internal/config"
	"github.com/wfunc/memory-duel/internal/middleware"
	"github.com/wfunc/memory-duel/internal/service"
	"github.com/wfunc/memory-duel/internal/utils"
	"github.com/wfunc/memory-duel/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Router API路由器
type Router struct {
	engine         *gin.Engine
	db             *gorm.DB
	services       *service.Services
	authHandler    *AuthHandler
	matchHandler   *MatchHandler
	wsHandler      *WebSocketHandler
	authMiddleware *middleware.AuthMiddleware
	log            *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(db *gorm.DB, cfg *config.Config, hub *websocket.Hub, log *zap.Logger) *Router {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	engine := gin.New()

	// 全局中间件
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	// 创建服务
	services := service.NewServices(db, cfg, hub, log)

	// 创建处理器
	authHandler := NewAuthHandler(services.Auth)
	matchHandler := NewMatchHandler(services.Match)
	wsHandler := NewWebSocketHandler(hub, log)

	// 创建中间件
	jwtManager := utils.NewJWTManager(
		cfg.Security.JWT.Secret,
		time.Duration(cfg.Security.JWT.ExpireHours)*time.Hour,
	)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	router := &Router{
		engine:         engine,
		db:             db,
		services:       services,
		authHandler:    authHandler,
		matchHandler:   matchHandler,
		wsHandler:      wsHandler,
		authMiddleware: authMiddleware,
		log:            log,
	}

	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// API v1路由组
	v1 := r.engine.Group("/api/v1")
	{
		// 认证相关路由（不需要认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/guest", r.authHandler.GuestLogin)
		}

		// 对局路由（需要认证）
		matches := v1.Group("/matches")
		matches.Use(r.authMiddleware.RequireAuth())
		{
			matches.POST("", r.matchHandler.Create)
			matches.GET("", r.matchHandler.List)
			matches.GET("/:code", r.matchHandler.Get)
			matches.GET("/:code/summary", r.matchHandler.Summary)

			// 房间生命周期
			matches.POST("/:code/join", r.matchHandler.Join)
			matches.POST("/:code/leave", r.matchHandler.Leave)
			matches.POST("/:code/start", r.matchHandler.Start)
			matches.POST("/:code/intro/complete", r.matchHandler.CompleteIntro)

			// 回合状态迁移
			matches.POST("/:code/select", r.matchHandler.SelectCard)
			matches.POST("/:code/claim", r.matchHandler.Claim)
			matches.POST("/:code/reject", r.matchHandler.Reject)
			matches.POST("/:code/opponent/claim", r.matchHandler.OpponentClaim)
			matches.POST("/:code/opponent/reject", r.matchHandler.OpponentRejectBack)
		}
	}

	// WebSocket路由
	ws := r.engine.Group("/ws")
	ws.Use(r.authMiddleware.RequireAuth())
	{
		ws.GET("/match", r.wsHandler.MatchWebSocket)
	}

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	sqlDB, err := r.db.DB()
	if err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库连接失败",
		})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库ping失败",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
	})
}

// Run 运行服务器
func (r *Router) Run(addr string) error {
	r.log.Info("Starting API server", zap.String("address", addr))
	return r.engine.Run(addr)
}

// GetEngine 获取Gin引擎（用于测试与优雅关闭）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// GetServices 获取服务集合
func (r *Router) GetServices() *service.Services {
	return r.services
}
