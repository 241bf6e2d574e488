package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wfunc/geoworld/broadcast"
	"github.com/wfunc/geoworld/catalog"
	"github.com/wfunc/geoworld/config"
	"github.com/wfunc/geoworld/logger"
	"github.com/wfunc/geoworld/monitor"
	"github.com/wfunc/geoworld/persistence"
	"github.com/wfunc/geoworld/rpc"
	"github.com/wfunc/geoworld/server"
	"github.com/wfunc/geoworld/services"
	"github.com/wfunc/geoworld/session"
	"github.com/wfunc/geoworld/world"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configDir := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		logger.Log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cat, err := loadCatalog(cfg.World.CatalogPath)
	if err != nil {
		logger.Log.Fatalf("Failed to load item catalog: %v", err)
	}
	logger.Log.Infof("Loaded %d item templates", cat.Len())

	mon, err := monitor.NewMonitor(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Log.Fatalf("Failed to register metrics: %v", err)
	}
	mon.Publish()

	// Initialize game records
	db, err := persistence.Open(cfg.Records)
	if err != nil {
		logger.Log.Fatalf("Failed to open records store: %v", err)
	}
	var (
		records  *services.RecordService
		recorder world.Recorder
	)
	if db != nil {
		records = services.NewRecordService(db, cfg.Records.QueueSize)
		recorder = records
		logger.Log.Infof("Recording game events with the %s driver", cfg.Records.Driver)
	}

	sessions := session.NewManager()
	sessions.SetQueueSize(cfg.Server.SendQueue)

	w, err := world.New(world.Options{
		Config:      cfg.World,
		Catalog:     cat,
		Broadcaster: broadcast.NewSessionBroadcaster(sessions),
		Sessions:    sessions,
		Monitor:     mon,
		Recorder:    recorder,
	})
	if err != nil {
		logger.Log.Fatalf("Failed to create world: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worldCtx, stopWorld := context.WithCancel(context.Background())
	go func() {
		if err := w.Run(worldCtx); err != nil {
			logger.Log.Errorf("World stopped: %v", err)
		}
	}()

	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress, rpc.NewAdminService(w, sessions))
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	go rpcServer.Start()

	gameServer := server.NewGameServer(server.Options{
		Config:    cfg.Server,
		RateLimit: cfg.RateLimit,
		Sessions:  sessions,
		World:     w,
		Monitor:   mon,
	})
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- gameServer.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Log.Errorf("Game server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := gameServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warnf("Game server shutdown: %v", err)
	}
	rpcServer.Stop()

	stopWorld()
	<-w.Done()

	if records != nil {
		if err := records.Close(); err != nil {
			logger.Log.Warnf("Closing records store: %v", err)
		}
		logger.Log.Infof("Game records saved: %d, dropped: %d", records.Saved(), records.Dropped())
	}
	logger.Log.Info("Server stopped")
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}
