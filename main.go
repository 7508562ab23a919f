package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/mehmetcc/cafe-authentication-service/docs"
	"github.com/mehmetcc/cafe-authentication-service/internal/authentication"
	"github.com/mehmetcc/cafe-authentication-service/internal/person"
	"github.com/mehmetcc/cafe-authentication-service/internal/utils"
)

// @title           Cafe Authentication Service API
// @version         1.0
// @description     Session security for the café backend: login, refresh token rotation and account management.
//
// @host      localhost:8080
// @BasePath  /api/v1
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	// load config
	cfg, err := utils.LoadConfig(".env")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// init logger
	logger, err := utils.NewLogger(&cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	// init database
	db, err := utils.InitDatabase(cfg.Database.DSN())
	if err != nil {
		logger.Fatal("failed to connect to the database", zap.Error(err))
	}
	if err := utils.MigrateDatabase(startupCtx, db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	// refresh token store
	var store authentication.RefreshTokenStore
	switch cfg.StoreBackend {
	case utils.StoreBackendRedis:
		rdb, err := utils.InitRedis(startupCtx, &cfg.Redis)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		store = authentication.NewRedisRecordRepository(rdb, cfg.Redis.KeyPrefix)
	default:
		store = authentication.NewRecordRepository(db)
	}
	logger.Info("refresh token store ready", zap.String("backend", cfg.StoreBackend))

	// init Gin router
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	//
	// SWAGGER (protected by Basic Auth, not JWT)
	//
	if cfg.Admin.Password != "" {
		swaggerGroup := router.Group("/swagger", gin.BasicAuth(gin.Accounts{
			cfg.Admin.Username: cfg.Admin.Password,
		}))
		swaggerGroup.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	} else {
		logger.Warn("ADMIN_PASSWORD not set, swagger UI disabled")
	}

	//
	// WIRE UP SERVICES
	//
	invalidator := authentication.NewSessionInvalidator(store, cfg.Token.RefreshTokenSecret, logger)

	personRepo := person.NewPersonRepository(db)
	personService := person.NewPersonService(personRepo, invalidator, logger)

	authService := authentication.NewAuthenticationService(
		personService,
		store,
		invalidator,
		logger,
		authentication.TokenSettings{
			AccessSecret:  cfg.Token.AccessTokenSecret,
			AccessTTL:     cfg.Token.AccessTokenTTL,
			RefreshSecret: cfg.Token.RefreshTokenSecret,
			RefreshTTL:    cfg.Token.RefreshTokenTTL,
		},
	)

	api := router.Group("/api/v1")
	authentication.NewAuthHandler(
		api,
		authService,
		authentication.CookieSettings{
			Name:   cfg.Token.CookieName,
			Path:   cfg.Token.CookiePath,
			Domain: cfg.Token.CookieDomain,
		},
		logger,
		utils.RateLimitMiddleware(&cfg.RateLimit),
	)

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authMiddleware := authentication.AuthMiddleware(personService, cfg.Token.AccessTokenSecret, logger)

	selfGroup := api.Group("/", authMiddleware)
	person.NewSelfServiceHandler(selfGroup, personService, logger)

	adminGroup := api.Group("/", authMiddleware, authentication.RoleMiddleware(person.Admin))
	person.NewPersonHandler(adminGroup, personService, logger)

	//
	// BACKGROUND JOBS
	//
	scheduler := cron.New()
	housekeeper := authentication.NewHousekeeper(store, logger)
	if _, err := housekeeper.Schedule(scheduler, cfg.Token.PurgeSchedule); err != nil {
		logger.Fatal("invalid purge schedule", zap.String("schedule", cfg.Token.PurgeSchedule), zap.Error(err))
	}
	scheduler.Start()

	//
	// START SERVER
	//
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	<-scheduler.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped gracefully")
	}
}
