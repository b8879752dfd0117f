package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"syscall"
	"time"

	"github.com/netdriver/netdriver/pkg/logger"
	sshc "github.com/netdriver/netdriver/pkg/ssh"
	"github.com/netdriver/netdriver/simulate"
)

// 探测时匹配任意常见提示符结尾
var anyPrompt = regexp.MustCompile(`[>#\]$]\s*$`)

func main() {
	configPath := flag.String("c", "configs/simunet.yaml", "simulate farm config")
	probe := flag.Bool("probe", false, "log in to every device once after start")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	if err := logger.Init(logger.Config{Level: *logLevel, Format: "text", Output: "console"}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := simulate.LoadFarmConfig(*configPath)
	if err != nil {
		logger.Fatal("Simulate: load config failed", "path", *configPath, "error", err)
	}
	farm, err := simulate.StartFarm(cfg)
	if err != nil {
		logger.Fatal("Simulate: start failed", "error", err)
	}
	defer farm.Stop()

	if *probe {
		for _, srv := range farm.Servers() {
			if err := probeServer(srv); err != nil {
				logger.Warn("Simulate: probe failed", "device", srv.Profile().Key(), "error", err)
			}
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Simulate: shutting down")
}

// probeServer 以默认账号登录设备并读取首个提示符
func probeServer(srv *simulate.Server) error {
	host, portStr, err := net.SplitHostPort(srv.Addr().String())
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return err
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		host = "127.0.0.1"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := sshc.NewClient(&sshc.Config{Timeout: 5 * time.Second})
	if err := client.Connect(ctx, sshc.ConnectionInfo{Host: host, Port: port, Username: "admin", Password: "nova"}); err != nil {
		return err
	}
	defer client.Close()

	shell, err := client.OpenShell(ctx, "")
	if err != nil {
		return err
	}
	defer shell.Close()
	out, err := shell.ReadUntil(anyPrompt, 3*time.Second)
	if err != nil {
		return err
	}
	logger.Info("Simulate: probe ok", "device", srv.Profile().Key(), "port", port, "banner_bytes", len(out))
	return nil
}
