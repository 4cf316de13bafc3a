package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kartikbazzad/queryterm/internal/config"
	"github.com/kartikbazzad/queryterm/internal/ipc"
	"github.com/kartikbazzad/queryterm/internal/logger"
)

func main() {
	dataDir := flag.String("data-dir", "./data", "directory for the session catalog")
	socketPath := flag.String("socket", "/tmp/queryterm.sock", "unix socket path")
	debugMode := flag.Bool("debug", false, "enable debug mode (per-connection debug logging)")
	maxPinnedWorkers := flag.Int("max-pinned-workers", 0, "max concurrently running pinned session workers (0 = use default)")
	globalArenaMB := flag.Uint64("global-arena-mb", 0, "node-wide term-arena byte cap in MB (0 = use default)")
	perSessionArenaMB := flag.Uint64("per-session-arena-mb", 0, "per-session term-arena byte cap in MB (0 = use default)")
	flag.Parse()

	cfg := config.DefaultConfig()
	cfg.DataDir = *dataDir
	cfg.IPC.SocketPath = *socketPath
	cfg.IPC.DebugMode = *debugMode

	if *maxPinnedWorkers > 0 {
		cfg.Scheduler.MaxPinnedWorkers = *maxPinnedWorkers
	}
	if *globalArenaMB > 0 {
		cfg.Session.GlobalArenaCapacityMB = *globalArenaMB
	}
	if *perSessionArenaMB > 0 {
		cfg.Session.PerSessionArenaLimitMB = *perSessionArenaMB
	}

	logr := logger.Default()
	if cfg.IPC.DebugMode {
		logr.SetLevel(logger.LevelDebug)
	}
	logr.Info("starting queryterm node")
	logr.Info("data directory: %s", cfg.DataDir)
	logr.Info("socket: %s", cfg.IPC.SocketPath)
	logr.Info("max pinned workers: %d", cfg.Scheduler.MaxPinnedWorkers)
	if cfg.IPC.DebugMode {
		logr.Info("debug mode: enabled")
	}

	server, err := ipc.NewServer(cfg, logr)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	if err := server.Start(); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logr.Info("shutting down...")

	if err := server.Stop(); err != nil {
		logr.Error("error during shutdown: %v", err)
	}

	logr.Info("queryterm node stopped")
	os.Exit(0)
}
