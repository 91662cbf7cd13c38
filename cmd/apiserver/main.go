package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lingua-go/internal/auth"
	"lingua-go/internal/chat"
	"lingua-go/internal/config"
	"lingua-go/internal/handlers/apiserver"
	appKafka "lingua-go/internal/kafka"
	"lingua-go/internal/logger"
	"lingua-go/internal/middleware"
	appRedis "lingua-go/internal/redis"
	"lingua-go/internal/services"
	"lingua-go/internal/storage"
)

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.New("info", "").Error("无法加载配置", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.AppEnv)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log.Info("API 服务器配置加载成功", "env", cfg.AppEnv)

	// 2. 初始化数据库连接
	db, err := storage.InitDB(cfg.Database, log, cfg.LogLevel)
	if err != nil {
		log.Error("无法初始化数据库", "error", err)
		os.Exit(1)
	}
	if cfg.Database.AutoMigrate {
		if err := storage.AutoMigrateTables(db, log); err != nil {
			log.Error("数据库表迁移失败", "error", err)
			os.Exit(1)
		}
	}

	// 3. 登录限流 (Redis 可选)
	var limiter auth.LoginLimiter = auth.NoopLoginLimiter{}
	if cfg.Redis.Addr != "" {
		redisClient, err := appRedis.NewClient(context.Background(), cfg.Redis)
		if err != nil {
			log.Error("无法连接到 Redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		limiter = appRedis.NewRedisLoginLimiter(redisClient, cfg.LoginLimit.MaxAttempts, cfg.LoginLimit.Window)
		log.Info("login throttling enabled", "max_attempts", cfg.LoginLimit.MaxAttempts, "window", cfg.LoginLimit.Window)
	}

	// 4. 初始化 Kafka Producer
	var producer appKafka.MessageProducer = appKafka.NoopProducer{}
	if cfg.Kafka.Enabled {
		producer, err = appKafka.NewConfluentKafkaProducer(cfg.Kafka, log)
		if err != nil {
			log.Error("无法创建 Kafka 生产者", "error", err)
			os.Exit(1)
		}
		log.Info("Kafka 生产者初始化成功", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.FriendRequestTopic)
	}
	defer producer.Close()
	publisher := appKafka.NewEventPublisher(producer, cfg.Kafka.FriendRequestTopic)

	// 5. 聊天服务提供方
	provider, err := chat.NewStreamProvider(cfg.Chat)
	if err != nil {
		if cfg.IsProduction() {
			log.Error("chat provider unavailable", "error", err)
			os.Exit(1)
		}
		log.Error("chat provider disabled, onboarding and chat tokens will fail", "error", err)
		provider = chat.NewDisabledProvider()
	}

	// 6. 初始化 Repositories 和 Services
	sessions := auth.NewSessionManager(cfg.Auth)
	userRepo := storage.NewGormUserRepository(db)
	friendReqRepo := storage.NewGormFriendRequestRepository(db)
	friendshipRepo := storage.NewGormFriendshipRepository(db)

	chatService := services.NewChatService(provider, cfg.Chat.Timeout, log)
	authService := services.NewAuthService(userRepo, sessions, limiter, chatService, cfg.Avatar, log)
	userService := services.NewUserService(db, userRepo, chatService, log)
	friendReqService := services.NewFriendRequestService(db, userRepo, friendReqRepo, friendshipRepo, publisher, cfg.Kafka.PublishTimeout, log)

	// 7. 路由
	frontendDist := ""
	if cfg.IsProduction() {
		frontendDist = cfg.Frontend.DistPath
	}
	router := apiserver.NewRouter(apiserver.RouterConfig{
		DB:            db,
		Sessions:      sessions,
		CookieName:    cfg.Auth.CookieName,
		SecureCookie:  cfg.IsProduction(),
		FrontendDist:  frontendDist,
		AuthService:   authService,
		UserService:   userService,
		FriendService: friendReqService,
		ChatService:   chatService,
		Log:           log,
	})

	// 8. 启动服务器
	srv := &http.Server{
		Addr:         cfg.APIServer.Host + ":" + cfg.APIServer.Port,
		Handler:      middleware.CORS(cfg.APIServer.CORS)(router),
		ReadTimeout:  cfg.APIServer.ReadTimeout,
		WriteTimeout: cfg.APIServer.WriteTimeout,
		IdleTimeout:  cfg.APIServer.IdleTimeout,
	}

	go func() {
		log.Info("API 服务器启动", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("API 服务器启动失败", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("正在关闭 API 服务器...")

	shutdownTimeout := cfg.APIServer.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Error("API 服务器强制关闭", "error", err)
	}
	log.Info("API 服务器已退出")
}
