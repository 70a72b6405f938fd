package main

import (
	"context"
	"ctchen222/blog/internal/api/controller"
	apirepository "ctchen222/blog/internal/api/repository"
	"ctchen222/blog/internal/api/service"
	"ctchen222/blog/internal/auth"
	"ctchen222/blog/internal/config"
	"ctchen222/blog/internal/db"
	"ctchen222/blog/internal/logger"
	"ctchen222/blog/internal/repository"
	"ctchen222/blog/internal/server"
	"ctchen222/blog/internal/storage"
	"ctchen222/blog/internal/telemetry"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	// Initialize telemetry
	shutdown := telemetry.Noop
	if cfg.OtelEnabled {
		shutdown, err = telemetry.InitOtel(ctx, cfg.OtelEndpoint)
		if err != nil {
			log.Fatalf("failed to initialize telemetry: %v", err)
		}
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}()
	logger.Init(cfg.GinMode == gin.DebugMode)

	// Initialize Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("failed to initialize redis: %v", err)
	}
	defer rdb.Close()

	// Create repositories
	userRepo, postRepo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize %s store: %v", cfg.StoreDriver, err)
	}
	defer closeStore()
	tokenRepo := repository.NewTokenRepository(rdb)

	covers, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize %s upload storage: %v", cfg.UploadDriver, err)
	}

	// Create services
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL, tokenRepo)
	userService := service.NewUserService(userRepo, tokens)
	postService := service.NewPostService(postRepo, covers)

	// Create controllers
	userController := controller.NewUserController(userService, controller.CookieOptions{
		Secure: cfg.CookieSecure,
		MaxAge: cfg.TokenTTL,
	})
	postController := controller.NewPostController(postService)

	// Create the Gin-based server
	srv := server.NewServer(server.Deps{
		Users:      userController,
		Posts:      postController,
		Verifier:   tokens,
		Storage:    covers,
		CORSOrigin: cfg.CORSOrigin,
	})

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("http server started", "http.addr", cfg.Addr, "store.driver", cfg.StoreDriver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	slog.Info("Server exiting")
}

func openStore(ctx context.Context, cfg *config.Config) (apirepository.UserRepository, apirepository.PostRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		mdb, err := db.MongoConnect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := mdb.Client().Disconnect(context.Background()); err != nil {
				slog.Error("failed to disconnect mongodb", "error", err)
			}
		}
		return apirepository.NewMongoUserRepository(mdb), apirepository.NewMongoPostRepository(mdb), closeFn, nil
	case config.StoreSQLite:
		sdb, err := db.SQLiteConnect(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() { sdb.Close() }
		return apirepository.NewSQLiteUserRepository(sdb), apirepository.NewSQLitePostRepository(sdb), closeFn, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.UploadDriver {
	case config.UploadLocal:
		return storage.NewLocalStorage(cfg.UploadDir)
	case config.UploadS3:
		return storage.NewS3Storage(ctx, storage.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown upload driver %q", cfg.UploadDriver)
	}
}
