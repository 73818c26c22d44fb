package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eaglebank/ledger/internal/command"
	"github.com/eaglebank/ledger/internal/config"
	"github.com/eaglebank/ledger/internal/handler"
	"github.com/eaglebank/ledger/internal/query"
	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/events"
	"github.com/eaglebank/ledger/shared/middleware"
	"github.com/eaglebank/ledger/shared/models"
	redisClient "github.com/eaglebank/ledger/shared/redis"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg)

	if err := run(cfg); err != nil {
		slog.Error("ledger service stopped", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) {
	var h slog.Handler
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
		gin.SetMode(gin.ReleaseMode)
	} else {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(h))
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	middleware.MustInitJWTSecret(cfg.JWTSecret)

	// Write store (source of truth)
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Redis (read model cache + event streaming), optional
	var (
		rdb       *goredis.Client
		publisher command.EventPublisher = events.NopPublisher{}
	)
	if cfg.RedisEnabled() {
		rc, err := redisClient.NewClient(ctx, redisClient.Config{
			URL:      cfg.RedisURL,
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return err
		}
		defer rc.Close()
		rdb = rc.Client
		publisher = events.NewPublisher(rdb, cfg.StreamMaxLen)
	} else {
		slog.Warn("redis not configured; read cache and events disabled")
	}

	a := newApp(store, rdb, publisher, cfg)
	if err := a.userCmd.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return fmt.Errorf("failed to bootstrap admin user: %w", err)
	}

	if rdb != nil {
		go func() {
			subscriber := events.NewSubscriber(rdb, events.SubscriberConfig{
				Group:    "ledger-service-group",
				Consumer: consumerName(),
				Stream:   events.AccountEventsStream,
				Handler:  a.userCmd.HandleAccountEvent,
			})
			if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("subscriber stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("ledger service starting", "port", cfg.Port, "storage", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (repository.TxManager, func(), error) {
	if cfg.StorageDriver == config.DriverMemory {
		slog.Warn("using in-memory storage; data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	}

	db, err := repository.OpenSQL(ctx, cfg.StorageDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	store := repository.NewSQLStore(db)
	if cfg.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return store, func() { db.Close() }, nil
}

type app struct {
	userCmd *command.UserCommandService
	router  *gin.Engine
}

// newApp wires the CQRS services over store. rdb may be nil.
func newApp(store repository.TxManager, rdb *goredis.Client, publisher command.EventPublisher, cfg *config.Config) *app {
	accountReadRepo := repository.NewAccountReadRepository(store, rdb, cfg.CacheTTL)
	userReadRepo := repository.NewUserReadRepository(store, rdb, cfg.CacheTTL)

	accountCmd := command.NewAccountCommandService(store, accountReadRepo, userReadRepo, publisher)
	transferCmd := command.NewTransferCommandService(store, accountCmd, accountReadRepo, publisher)
	userCmd := command.NewUserCommandService(store, accountCmd, userReadRepo, publisher)

	accountQry := query.NewAccountQueryService(accountReadRepo)
	userQry := query.NewUserQueryService(userReadRepo, store)
	authQry := query.NewAuthQueryService(store, userQry, cfg.TokenTTL)

	return &app{
		userCmd: userCmd,
		router: newRouter(routes{
			auth:     handler.NewAuthHandler(authQry),
			users:    handler.NewUserHandler(userCmd, userQry),
			accounts: handler.NewAccountHandler(accountCmd, accountQry),
			transfer: handler.NewTransferHandler(transferCmd),
			admin:    handler.NewAdminHandler(accountCmd),
			basic:    authQry,
		}),
	}
}

type routes struct {
	auth     *handler.AuthHandler
	users    *handler.UserHandler
	accounts *handler.AccountHandler
	transfer *handler.TransferHandler
	admin    *handler.AdminHandler
	basic    middleware.BasicAuthenticator
}

func newRouter(r routes) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	auth := v1.Group("/auth")
	{
		auth.POST("/login", r.auth.Login)
		auth.POST("/refresh", r.auth.RefreshToken)
	}

	authed := v1.Group("", middleware.AuthMiddleware(r.basic))
	users := authed.Group("/users")
	{
		users.POST("", middleware.RequireRole(models.RoleAdmin), r.users.CreateUser)
		users.GET("", r.users.ListUsers)
		users.GET("/me", r.users.GetMe)
	}
	accounts := authed.Group("/accounts")
	{
		accounts.GET("", r.accounts.ListAccounts)
		accounts.GET("/:accountId", r.accounts.GetAccount)
		accounts.POST("/:accountId/deposit", r.accounts.Deposit)
		accounts.POST("/:accountId/withdraw", r.accounts.Withdraw)
	}
	authed.POST("/transfers", r.transfer.Transfer)

	admin := authed.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/accounts", r.admin.CreateAccount)
		admin.PATCH("/accounts/:accountId/currency", r.admin.ChangeAccountCurrency)
	}
	return router
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "ledger"
	}
	return host + "-" + fmt.Sprint(os.Getpid())
}
