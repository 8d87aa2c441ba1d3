package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Voidcoolis/AuthHive/internal/api/middleware"
	"github.com/Voidcoolis/AuthHive/internal/auth"
	"github.com/Voidcoolis/AuthHive/internal/config"
	"github.com/Voidcoolis/AuthHive/internal/pkg/notify"
	"github.com/Voidcoolis/AuthHive/internal/store"
	"github.com/Voidcoolis/AuthHive/internal/token"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Server 封装 API 服务所需的依赖和路由处理。
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	mongo  *mongo.Client
	rdb    *redis.Client
	router *gin.Engine
	signer *token.Signer
	svc    *auth.Service
	worker *notify.Worker
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MongoDB 并创建邮箱唯一索引
// 2. 按配置连接 Redis（邮件外发队列）
// 3. 组装认证服务与 Gin 路由引擎
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, err
	}

	st := store.NewMongoStore(client.Database(cfg.Mongo.Database))
	if err := st.EnsureIndexes(ctx); err != nil {
		return nil, err
	}

	mailer := notify.NewMailer(&cfg.Email, logger)
	signer := token.NewSigner(cfg.Security.JWTSecret, cfg.Security.SessionTTL)

	// 尽力而为的邮件默认同步发送；启用外发队列时改为异步投递
	var courier notify.Notifier
	var rdb *redis.Client
	var worker *notify.Worker
	if cfg.App.EnableMailOutbox {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       0,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		outbox := notify.NewOutbox(rdb, logger, cfg.App.MailOutboxStream)
		worker, err = notify.NewWorker(outbox, mailer, logger, cfg.App.MailOutboxGroup)
		if err != nil {
			return nil, err
		}
		courier = outbox
	}

	svc := auth.NewService(st, signer, mailer, courier, cfg, logger)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.App.ClientOrigin},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{
		cfg:    cfg,
		logger: logger,
		mongo:  client,
		rdb:    rdb,
		router: r,
		signer: signer,
		svc:    svc,
		worker: worker,
	}
	s.registerRoutes()
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// StartMailWorker 启动邮件投递 Worker（未启用外发队列时为空操作）。
func (s *Server) StartMailWorker(ctx context.Context) {
	if s.worker == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("PANIC in mail worker", slog.Any("panic", r))
			}
		}()
		s.worker.Run(ctx)
	}()
}

// Close 关闭数据库与 Redis 连接。
func (s *Server) Close(ctx context.Context) error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.mongo != nil {
		if err := s.mongo.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealthz)

	s.router.POST("/signup", s.handleSignup)
	s.router.POST("/login", s.handleLogin)
	s.router.POST("/logout", s.handleLogout)
	s.router.POST("/verify-email", s.handleVerifyEmail)
	s.router.POST("/forgot-password", s.handleForgotPassword)
	s.router.POST("/reset-password/:token", s.handleResetPassword)

	authed := s.router.Group("/")
	authed.Use(middleware.Session(s.signer))
	authed.GET("/check-auth", s.handleCheckAuth)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.mongo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.mongo.Ping(ctx, readpref.Primary()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
