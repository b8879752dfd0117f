package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/netdriver/netdriver/addone/interact/platforms"
	"github.com/netdriver/netdriver/api/handler"
	"github.com/netdriver/netdriver/api/router"
	"github.com/netdriver/netdriver/internal/config"
	"github.com/netdriver/netdriver/internal/database"
	"github.com/netdriver/netdriver/internal/service"
	"github.com/netdriver/netdriver/pkg/logger"
	"github.com/netdriver/netdriver/pkg/ssh"
)

func main() {
	configPath := flag.String("c", envOr("NETDRIVER_CONFIG", "configs/config.yaml"), "config file path")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(logConfig(cfg)); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("Starting NetDriver Agent", "config", *configPath)

	// 初始化数据库
	if cfg.Database.SQLite.Enabled {
		if err := database.InitSQLite(cfg.Database.SQLite); err != nil {
			logger.Fatal("Failed to initialize database", "error", err)
		}
		defer database.Close()
	}

	// 插件与会话池
	registry := platforms.NewRegistry()
	logger.Info("Plugins loaded", "plugins", registry.Keys())

	pool := ssh.NewPool(&ssh.PoolConfig{
		MaxActive:       cfg.SSH.MaxActive,
		IdleTimeout:     cfg.SSH.IdleTimeout,
		CleanupInterval: cfg.SSH.CleanupInterval,
		SSHConfig: &ssh.Config{
			Timeout:    cfg.SSH.ConnectTimeout,
			KeepAlive:  cfg.SSH.KeepAliveInterval,
			TermType:   cfg.SSH.TermType,
			TermWidth:  cfg.SSH.TermWidth,
			TermHeight: cfg.SSH.TermHeight,
		},
	})
	defer pool.Close()

	executor := service.NewExecutor(cfg.Engine, registry, service.NewSSHSessionPool(pool))
	executor.StartReaper(0)

	system := handler.NewSystemHandler(executor, registry, cfg.Database.SQLite.Enabled, pool.Stats)
	if cfg.Log.Output != "console" {
		system.SetLogPath(cfg.Log.FilePath)
	}
	recorder := service.NewRecorder(cfg.Database.SQLite.Enabled)
	purgeCtx, stopPurge := context.WithCancel(context.Background())
	defer stopPurge()
	recorder.StartPurger(purgeCtx, cfg.Database.SQLite.Retention)

	r := router.SetupRouter(cfg.Server.Mode, router.Handlers{
		Cmd: handler.NewCmdHandler(executor, registry, recorder,
			service.NewArchiveWriter(cfg.Storage), cfg.Storage.Backend),
		System: system,
	})

	server := &http.Server{
		Addr:           cfg.GetServerAddr(),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		logger.Info("Server starting", "addr", server.Addr, "mode", cfg.Server.Mode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	stopWatch := make(chan struct{})
	go watchConfig(*configPath, stopWatch)

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	close(stopWatch)

	logger.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Engine.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	// 已受理的任务在超时内执行完毕
	if err := executor.Shutdown(ctx); err != nil {
		logger.Error("Executor shutdown incomplete", "error", err)
	}
	logger.Info("Server shutdown complete")
}

func logConfig(cfg *config.Config) logger.Config {
	return logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}
}

// watchConfig 配置文件变更时重新加载日志配置；引擎与插件不热更新
func watchConfig(path string, stop <-chan struct{}) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("Config watch init failed", "error", err)
		return
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		logger.Warn("Config watch add failed", "path", path, "error", err)
		return
	}

	var debounce *time.Timer
	debounceInterval := 300 * time.Millisecond
	trigger := func() {
		newCfg, err := config.Load(path)
		if err != nil {
			logger.Warn("Config reload failed", "error", err)
			return
		}
		if err := logger.Init(logConfig(newCfg)); err != nil {
			logger.Warn("Logger reload failed", "error", err)
			return
		}
		logger.Info("Config reloaded", "log_level", newCfg.Log.Level)
	}
	for {
		select {
		case <-stop:
			if debounce != nil {
				debounce.Stop()
			}
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceInterval, trigger)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Config watch error", "error", err)
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
