package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/runconquer/territory-backend-go/internal/api"
	"github.com/runconquer/territory-backend-go/internal/config"
	"github.com/runconquer/territory-backend-go/internal/conflict"
	"github.com/runconquer/territory-backend-go/internal/conquest"
	"github.com/runconquer/territory-backend-go/internal/database"
	"github.com/runconquer/territory-backend-go/internal/handler"
	"github.com/runconquer/territory-backend-go/internal/ledger"
	"github.com/runconquer/territory-backend-go/internal/mirrorstream"
	"github.com/runconquer/territory-backend-go/internal/repository"
	"github.com/runconquer/territory-backend-go/internal/scoring"
	"github.com/runconquer/territory-backend-go/internal/service"
	"github.com/runconquer/territory-backend-go/internal/spatial"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	userID := os.Getenv("USER_ID")
	if userID == "" {
		userID = "local"
	}
	userName := os.Getenv("USER_NAME")

	// 初始化数据库
	db, err := database.Open(database.Config{Path: cfg.DBPath})
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 领地引擎装配
	grid := spatial.Grid{
		EdgeDegrees:   cfg.Tuning.CellEdgeDegrees,
		StepMeters:    cfg.Tuning.StepMeters,
		ShortSegmentM: cfg.Tuning.ShortSegmentM,
	}
	led := ledger.New(cfg.Tuning.TTL())

	territoryRepo := repository.NewTerritoryRepository(db, grid)
	mirrorRepo := repository.NewMirrorRepository(db, grid)
	activityRepo := repository.NewActivityRepository(db)

	processor := conquest.NewProcessor(grid, led, userID, userName, cfg.Tuning.StealGrace())
	reconciler := conflict.NewReconciler(led, userID, cfg.Tuning.Debounce())
	engine := scoring.NewEngine(cfg.Tuning)

	territoryService := service.NewTerritoryService(led, territoryRepo, grid)
	conquestService := service.NewConquestService(processor, engine, led, territoryRepo, activityRepo, nil)
	syncService := service.NewSyncService(reconciler, processor, mirrorRepo, nil)

	if err := territoryService.LoadFromStore(); err != nil {
		log.Fatal("Failed to load territory store:", err)
	}
	if err := syncService.Start(ctx); err != nil {
		log.Fatal("Failed to start sync service:", err)
	}

	// 远程镜像流
	if cfg.MirrorURL != "" {
		client := mirrorstream.NewClient(cfg.MirrorURL, grid, syncService)
		go client.Run(ctx)
	} else {
		log.Printf("MIRROR_URL not set, running without remote mirror stream")
	}

	// 定期过期清理
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Tuning.ExpiryTickSeconds) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := territoryService.ExpireTick(); n > 0 {
					log.Printf("[ExpiryTick] dropped %d lapsed cells", n)
				}
			}
		}
	}()

	// 初始化路由
	territoryHandler := handler.NewTerritoryHandler(territoryService, syncService)
	activityHandler := handler.NewActivityHandler(conquestService)
	router := api.SetupRouter(cfg, userID, territoryHandler, activityHandler)

	// 启动服务器
	log.Printf("Server starting on port %s (user=%s)", cfg.Port, userID)
	if err := router.Run(cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
