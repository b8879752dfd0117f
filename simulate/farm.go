package simulate

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/netdriver/netdriver/pkg/logger"
)

// FarmConfig 模拟设备集群配置
type FarmConfig struct {
	Host    string         `mapstructure:"host"`
	HostKey string         `mapstructure:"host_key"`
	Devices []DeviceConfig `mapstructure:"devices"`
}

// DeviceConfig 单台模拟设备
type DeviceConfig struct {
	Vendor string `mapstructure:"vendor"`
	Model  string `mapstructure:"model"`
	Port   int    `mapstructure:"port"`
	// Profile 自定义设备定义文件，为空时使用内置定义
	Profile     string            `mapstructure:"profile"`
	Users       map[string]string `mapstructure:"users"`
	MaxConn     int               `mapstructure:"max_conn"`
	IdleSeconds int               `mapstructure:"idle_seconds"`
}

// LoadFarmConfig 读取模拟设备集群配置
func LoadFarmConfig(path string) (*FarmConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetDefault("host", "0.0.0.0")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read simulate config: %w", err)
	}
	var cfg FarmConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal simulate config: %w", err)
	}
	if len(cfg.Devices) == 0 {
		return nil, fmt.Errorf("simulate config defines no devices")
	}
	return &cfg, nil
}

// Farm 一组模拟设备服务，每台设备独占一个端口
type Farm struct {
	servers []*Server
}

// StartFarm 启动全部模拟设备；单台失败记录日志后跳过
func StartFarm(cfg *FarmConfig) (*Farm, error) {
	f := &Farm{}
	for _, dc := range cfg.Devices {
		srv, err := newDeviceServer(cfg, dc)
		if err != nil {
			logger.Error("Simulate: init device failed", "vendor", dc.Vendor, "model", dc.Model, "error", err)
			continue
		}
		if err := srv.Listen(fmt.Sprintf("%s:%d", cfg.Host, dc.Port)); err != nil {
			logger.Error("Simulate: listen failed", "vendor", dc.Vendor, "model", dc.Model, "port", dc.Port, "error", err)
			continue
		}
		logger.Info("Simulate: device started", "device", srv.profile.Key(), "port", dc.Port, "users", userList(srv.users))
		f.servers = append(f.servers, srv)
	}
	if len(f.servers) == 0 {
		return nil, fmt.Errorf("no simulated device started")
	}
	return f, nil
}

func newDeviceServer(cfg *FarmConfig, dc DeviceConfig) (*Server, error) {
	var (
		profile *Profile
		err     error
	)
	if dc.Profile != "" {
		profile, err = LoadProfile(dc.Profile)
	} else {
		profile, err = BuiltinProfile(dc.Vendor, dc.Model)
	}
	if err != nil {
		return nil, err
	}
	return NewServer(profile, ServerOptions{
		Users:       dc.Users,
		MaxConn:     dc.MaxConn,
		Idle:        time.Duration(dc.IdleSeconds) * time.Second,
		HostKeyPath: cfg.HostKey,
	})
}

// Servers 已启动的设备服务
func (f *Farm) Servers() []*Server { return f.servers }

// Stop 停止全部模拟设备
func (f *Farm) Stop() {
	for _, srv := range f.servers {
		_ = srv.Close()
		logger.Info("Simulate: device stopped", "device", srv.profile.Key())
	}
}
