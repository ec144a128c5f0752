package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/dropDatabas3/sigil/internal/config"
	"github.com/dropDatabas3/sigil/internal/engine"
	"github.com/dropDatabas3/sigil/internal/httpapi"
	"github.com/dropDatabas3/sigil/internal/observability/logger"
	"github.com/dropDatabas3/sigil/internal/perf"
	"github.com/dropDatabas3/sigil/internal/store"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", os.Getenv("SIGIL_CONFIG"), "ruta al YAML de configuración")
	flag.Parse()

	// .env local si existe; en prod las vars vienen del entorno
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{Env: cfg.App.Env})
	defer logger.Sync()

	ctx := context.Background()

	var storeCfg store.Config
	storeCfg.Driver = cfg.Storage.Driver
	storeCfg.Layered = cfg.Storage.Layered
	storeCfg.CacheTTL = cfg.Storage.CacheTTL
	storeCfg.Redis.Addr = cfg.Storage.Redis.Addr
	storeCfg.Redis.Password = cfg.Storage.Redis.Password
	storeCfg.Redis.DB = cfg.Storage.Redis.DB
	storeCfg.Redis.Prefix = cfg.Storage.Redis.Prefix
	storeCfg.Postgres.DSN = cfg.Storage.Postgres.DSN
	storeCfg.File.Path = cfg.Storage.File.Path

	st, err := store.Open(ctx, storeCfg)
	if err != nil {
		logger.L().Fatal("store open failed", logger.Err(err))
	}
	defer st.Close()

	monitor := perf.New(perf.Options{
		DefaultThreshold: cfg.Perf.DefaultThreshold,
		Thresholds:       cfg.Perf.Thresholds,
	})

	eng := engine.New(st, engine.Options{
		Window:           cfg.Verification.Window,
		SkipPaths:        cfg.Verification.SkipPaths,
		Monitor:          monitor,
		KeyCacheCapacity: cfg.Verification.Cache.Capacity,
		KeyCacheTTL:      cfg.Verification.Cache.TTL,
	})

	router, err := httpapi.NewRouter(httpapi.RouterOptions{Engine: eng})
	if err != nil {
		logger.L().Fatal("router setup failed", logger.Err(err))
	}

	logger.L().Info("sigil listening", logger.Component("server"))
	if err := httpapi.Start(cfg.Server.Addr, router); err != nil {
		logger.L().Fatal("server stopped", logger.Err(err))
	}
}
