package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coursehub/internal/access"
	"coursehub/internal/api"
	"coursehub/internal/auth"
	"coursehub/internal/catalog"
	"coursehub/internal/config"
	"coursehub/internal/redis"
	"coursehub/internal/service/account"
	"coursehub/internal/service/course"
	"coursehub/internal/service/enrollment"
	"coursehub/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("COURSEHUB_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("COURSEHUB_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Create necessary tables: users, tokens, courses, lessons, enrollments, progress
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewRedisClient(cfg)
		if err != nil {
			log.Printf("redis unavailable, continuing without cache: %v", err)
			rdb = nil
		}
	}
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	accounts := account.NewService(db)
	bootstrapAdmin(ctx, accounts)

	authService := auth.NewService(db, rdb, accounts, time.Duration(cfg.BasicConfig.TokenTTL)*time.Minute)
	authService.StartJanitor(ctx, time.Duration(cfg.BasicConfig.TokenPurgeInterval)*time.Minute)

	courses := course.NewService(db, nil)
	loader := catalog.NewLoader(courses, catalog.NewSnapshot(), rdb)
	courses.SetNotifier(loader)
	fallback := catalog.DefaultFallback()
	if cfg.Catalog.FallbackPath != "" {
		if loaded, err := catalog.LoadFallbackFile(cfg.Catalog.FallbackPath); err != nil {
			log.Printf("catalog fallback file ignored: %v", err)
		} else {
			fallback = loaded
		}
	}
	loader.SetFallback(fallback)
	if origin, err := loader.Refresh(ctx); err != nil {
		log.Printf("initial catalog load from %s: %v", origin, err)
	}
	loader.Start(ctx, time.Duration(cfg.Catalog.RefreshInterval)*time.Second)

	sections, err := access.NewSections(cfg.Access.Sections)
	if err != nil {
		log.Fatalf("access sections: %v", err)
	}
	gate := access.Gate{AllowEmptyRole: cfg.Access.AllowEmptyRole}
	handlers := api.NewHandler(accounts, authService, courses, enrollment.NewService(db), loader, gate, sections)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server stopped: %v", err)
		}
	}()
	log.Printf("listening on %s", addr)

	<-ctx.Done()
	log.Printf("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}

// bootstrapAdmin provisions the admin account named by the environment, if any.
func bootstrapAdmin(ctx context.Context, accounts *account.Service) {
	email := os.Getenv("COURSEHUB_ADMIN_EMAIL")
	password := os.Getenv("COURSEHUB_ADMIN_PASSWORD")
	if email == "" || password == "" {
		return
	}
	if _, err := accounts.Login(ctx, email, password); err == nil {
		return
	}
	if _, err := accounts.CreateAdmin(ctx, email, "admin", password); err != nil {
		log.Printf("bootstrap admin: %v", err)
		return
	}
	log.Printf("bootstrap admin %s created", email)
}
