package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"wallet_shop/internal/cache"
	"wallet_shop/internal/config"
	"wallet_shop/internal/database"
	"wallet_shop/internal/routes"
	"wallet_shop/internal/services"
	"wallet_shop/internal/session"
	"wallet_shop/internal/shop"
	"wallet_shop/internal/store"
	"wallet_shop/internal/store/memory"
	"wallet_shop/internal/store/postgres"
	"wallet_shop/internal/store/scylla"
	"wallet_shop/internal/utils"
)

func main() {
	cfg := config.Load()
	if problems := cfg.Validate(); len(problems) > 0 {
		for _, p := range problems {
			log.Println("❌", p)
		}
		log.Fatal("❌ Configuration invalide")
	}

	utils.InitLogger(cfg.LogLevel)
	defer utils.SyncLogger()
	gin.SetMode(cfg.GinMode)

	if err := database.ConnectDatabases(cfg); err != nil {
		utils.Log.Fatalf("❌ %v", err)
	}
	defer database.CloseScylla()
	defer database.CloseRedis()

	cache.Init(database.Redis)
	utils.InitMailer(cfg)

	st, err := openStore(cfg)
	if err != nil {
		utils.Log.Fatalf("❌ Ouverture du store %s: %v", cfg.StoreDriver, err)
	}
	defer st.Close()

	engine := shop.NewEngine(st,
		shop.ReturnPolicy{Window: cfg.RefundWindow, RequireOwnership: cfg.RequireReturnOwnership},
		shop.WithStartingBalance(cfg.StartingBalance),
	)

	var images *services.ImageStore
	if database.MinIO != nil {
		images = services.NewImageStore(database.MinIO, cfg)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	routes.RegisterRoutes(r, routes.Deps{
		Engine:      engine,
		Store:       st,
		Sessions:    session.NewManager(cfg.SessionSecret, cfg.SessionSecure),
		Images:      images,
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.Log.Infof("🚀 Boutique lancée sur le port %s (store %s, fenêtre de retour %s)",
			cfg.Port, cfg.StoreDriver, cfg.RefundWindow)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Log.Fatalf("❌ Serveur HTTP: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.Log.Info("🛑 Arrêt du serveur...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.Log.Errorf("❌ Arrêt forcé: %v", err)
	}
}

func openStore(cfg config.Config) (store.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case "scylla":
		shopSession, err := database.Scylla.ShopSession()
		if err != nil {
			return nil, err
		}
		auditSession, err := database.Scylla.AuditSession()
		if err != nil {
			return nil, err
		}
		if cfg.ScyllaAutoMigrate {
			if err := scylla.EnsureSchema(ctx, shopSession, auditSession); err != nil {
				return nil, fmt.Errorf("schéma: %w", err)
			}
		}
		return scylla.New(shopSession, auditSession, database.Redis), nil
	case "postgres":
		return postgres.Open(ctx, cfg.PostgresDSN, cfg.PostgresAutoMigrate)
	case "memory":
		utils.Log.Warn("⚠️ Store en mémoire : les données seront perdues à l'arrêt")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("driver inconnu: %s", cfg.StoreDriver)
	}
}
