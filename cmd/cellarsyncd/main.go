package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cellarsync/internal/cache"
	"cellarsync/internal/config"
	"cellarsync/internal/handler"
	"cellarsync/internal/lookup"
	"cellarsync/internal/model"
	"cellarsync/internal/netmon"
	"cellarsync/internal/queue"
	"cellarsync/internal/remote"
	"cellarsync/internal/router"
	"cellarsync/internal/scanner"
	"cellarsync/internal/syncer"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting cellarsync daemon...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize offline job queue based on config
	var store queue.Store
	switch cfg.QueueDB.Type {
	case "mysql":
		mysqlStore, err := queue.NewMySQLStore(cfg.QueueDB.DSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL queue: %v", err)
		}
		store = mysqlStore
		log.Println("MySQL offline queue initialized")
	case "memory":
		store = queue.NewMemoryStore()
		log.Println("In-memory offline queue initialized (jobs will not survive restarts)")
	default: // sqlite
		sqliteStore, err := queue.NewSQLiteStore(cfg.QueueDB.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite queue: %v", err)
		}
		store = sqliteStore
		log.Println("SQLite offline queue initialized")
	}
	defer store.Close()

	// Initialize catalog-metadata cache
	var metadataCache cache.Cache
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis cache unavailable, falling back to memory: %v", err)
			metadataCache = cache.NewMemoryCache()
		} else {
			defer redisCache.Close()
			metadataCache = redisCache
			log.Println("Redis metadata cache initialized")
		}
	default: // memory
		memCache := cache.NewMemoryCache()
		defer memCache.Close()
		metadataCache = memCache
	}

	// Remote catalog backend
	client := remote.NewClient(remote.Config{
		BaseURL: cfg.Remote.BaseURL,
		APIKey:  cfg.Remote.APIKey,
		Timeout: cfg.Remote.HTTPTimeout,
	})

	// Network monitor
	checker := netmon.NewHTTPChecker(cfg.Network.ProbeURL, cfg.Network.ProbeTimeout)
	monitor := netmon.NewMonitor(checker, cfg.Network.PollInterval)
	monitor.Start()
	defer monitor.Stop()

	// Barcode lookup
	lookupSvc := lookup.NewService(client, metadataCache, cfg.Cache.TTL)

	// Scan resolution
	mode, err := model.ParseKind(cfg.Scanner.DefaultMode)
	if err != nil {
		log.Fatalf("Invalid scanner default mode: %v", err)
	}
	detector := scanner.NewChannelDetector(nil)
	defer detector.Close()

	machine := scanner.NewMachine(lookupSvc, scanner.MachineConfig{
		Mode:           mode,
		DebounceWindow: cfg.Scanner.DebounceWindow,
		ResolveTimeout: cfg.Scanner.ResolveTimeout,
		Camera:         detector,
	})
	defer machine.Close()

	attachCtx, stopAttach := context.WithCancel(context.Background())
	defer stopAttach()
	go machine.Attach(attachCtx, detector)

	session := scanner.NewSession(client, store, monitor)

	// Sync engine
	engine := syncer.NewEngine(store, client, monitor, syncer.Config{
		MaxRetries:    cfg.Sync.MaxRetries,
		BaseDelay:     cfg.Sync.BaseDelay,
		DrainInterval: cfg.Sync.DrainInterval,
	})
	engine.Start()
	defer engine.Stop()

	// Initialize handlers
	healthHandler := handler.New(store, monitor)
	scannerHandler := handler.NewScannerHandler(machine, detector)
	sessionHandler := handler.NewSessionHandler(session, machine)
	inventoryHandler := handler.NewInventoryHandler(lookupSvc, client, store, monitor)
	syncHandler := handler.NewSyncHandler(store, engine, monitor)

	// Create router
	r := router.New(router.Config{
		Handler:          healthHandler,
		ScannerHandler:   scannerHandler,
		SessionHandler:   sessionHandler,
		InventoryHandler: inventoryHandler,
		SyncHandler:      syncHandler,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Control API listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Close the open scan session first so counters land on the backend.
	if session.Active() {
		log.Println("Ending open scan session...")
		session.End(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Daemon stopped")
	fmt.Println("Goodbye!")
}
