package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-server/config"
	"chat-server/internal/handler"
	"chat-server/internal/model"
	"chat-server/internal/repository"
	"chat-server/internal/service"
	dbPkg "chat-server/pkg/db"
	"chat-server/pkg/jwt"
	"chat-server/pkg/logger"
	"chat-server/pkg/mailer"
	"chat-server/pkg/password"
	redisPkg "chat-server/pkg/redis"
	"chat-server/pkg/response"
	"chat-server/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg := config.LoadConfig()

	// 2. 初始化日志系统
	logger.InitLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("=== 聊天服务启动 ===")
	logger.Info("服务器配置信息",
		zap.String("port", cfg.Server.Port),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("database_host", cfg.Database.Host),
		zap.Int("database_port", cfg.Database.Port),
		zap.String("database_name", cfg.Database.Database),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Bool("mail_enabled", cfg.Mail.Enabled),
		zap.String("log_level", cfg.Log.Level),
	)
	if cfg.JWT.Secret == "change-me" {
		logger.Warn("JWT密钥仍是默认值，请通过 JWT_SECRET 设置")
	}

	// 3. 初始化数据库连接
	db, err := dbPkg.InitDB(cfg.Database)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 自动迁移表结构
	if err := dbPkg.AutoMigrate(&model.User{}, &model.Message{}); err != nil {
		logger.Fatal("自动迁移失败", zap.Error(err))
	}
	logger.Info("自动迁移完成")

	userRepo := repository.NewUserRepository(db, cfg.Database.QueryTimeout)
	messageRepo := repository.NewMessageRepository(db, cfg.Database.QueryTimeout)

	// 3.2 进程重启时没有任何连接，清掉上次残留的在线标记
	if n, err := userRepo.ResetAllOffline(context.Background()); err != nil {
		logger.Fatal("重置在线状态失败", zap.Error(err))
	} else if n > 0 {
		logger.Info("已重置残留的在线状态", zap.Int64("users", n))
	}

	// 4. Redis（可选）：在线状态镜像与登录锁定
	var (
		mirror  websocket.PresenceMirror
		lockout service.LoginLimiter
	)
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisPkg.InitRedis(ctx, cfg.Redis)
		cancel()
		if err != nil {
			logger.Fatal("Redis连接失败", zap.Error(err))
		}
		rdb := redisPkg.GetClient()

		presence := redisPkg.NewPresenceStore(rdb, redisPkg.DefaultPresenceTTL)
		if err := presence.Reset(context.Background()); err != nil {
			logger.Warn("清理在线镜像失败", zap.Error(err))
		}
		mirror = presence
		lockout = redisPkg.NewLockoutStore(rdb, cfg.Auth.LockoutThreshold, cfg.Auth.LockoutWindow)
		logger.Info("Redis连接成功")
	}

	// 5. 邮件
	notifier, err := mailer.New(cfg.Mail, cfg.Server.ClientURL)
	if err != nil {
		logger.Fatal("初始化邮件发送失败", zap.Error(err))
	}

	// 6. 初始化业务服务
	jwtSvc := jwt.NewJWTService(cfg.JWT)
	hasher := password.NewHasher(cfg.Auth.BcryptCost)

	authSvc := service.NewAuthService(userRepo, hasher, jwtSvc, notifier, lockout, cfg.Auth)
	userSvc := service.NewUserService(userRepo)
	messageSvc := service.NewMessageService(messageRepo)

	authHandler := handler.NewAuthHandler(authSvc, cfg.Server.SecureCookie)
	userHandler := handler.NewUserHandler(userSvc)
	messageHandler := handler.NewMessageHandler(messageSvc)

	hub := websocket.NewHub(userRepo, messageRepo, mirror, cfg.WebSocket)
	wsHandler := websocket.NewHandler(hub, jwtSvc, cfg.Server.AllowedOrigins)

	// 7. 设置Gin模式
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 8. 创建Gin路由
	router := gin.New()
	router.Use(logger.RequestID())
	router.Use(logger.RequestLogger())
	router.Use(logger.ErrorLoggerMiddleware())

	setupBasicRoutes(router, cfg.Redis.Enabled)

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.GET("/verify-email", authHandler.VerifyEmail)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.POST("/forgot-password", authHandler.ForgotPassword)
			auth.POST("/reset-password", authHandler.ResetPassword)
		}

		users := api.Group("/users")
		users.Use(jwtSvc.AuthMiddleware())
		{
			users.GET("", userHandler.List)
			users.GET("/profile", userHandler.Profile)
			users.GET("/online", userHandler.Online)
			users.GET("/:id", userHandler.GetByID)
		}

		messages := api.Group("/messages")
		messages.Use(jwtSvc.AuthMiddleware())
		{
			messages.GET("/unread-counts", messageHandler.UnreadCounts)
			messages.GET("/:id", messageHandler.History)
		}
	}

	// WebSocket路由，握手阶段自行认证
	router.GET("/ws", wsHandler.ServeWS)

	// 9. 创建HTTP服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP服务器启动", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP服务器启动失败", zap.Error(err))
		}
	}()

	// 10. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 先停止接收新请求，再断开所有实时连接（断开时会写回离线状态）
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP服务器关闭失败", zap.Error(err))
	}
	if err := hub.Shutdown(ctx); err != nil {
		logger.Error("关闭WebSocket连接超时", zap.Error(err))
	}

	if cfg.Redis.Enabled {
		if err := redisPkg.Close(); err != nil {
			logger.Error("关闭Redis连接失败", zap.Error(err))
		}
	}
	if err := dbPkg.CloseDB(); err != nil {
		logger.Error("关闭数据库连接失败", zap.Error(err))
	}

	logger.Info("服务器已安全关闭")
}

// setupBasicRoutes 设置基础路由
func setupBasicRoutes(router *gin.Engine, redisEnabled bool) {
	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{"database": "ok"}
		healthy := true
		if err := dbPkg.HealthCheck(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		}
		if redisEnabled {
			checks["redis"] = "ok"
			if err := redisPkg.HealthCheck(ctx); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			}
		}

		data := gin.H{
			"checks": checks,
			"time":   time.Now().Format(time.RFC3339),
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, response.Response{
				Success: false,
				Message: "Service unavailable",
				Data:    data,
			})
			return
		}
		response.Success(c, data)
	})
}
