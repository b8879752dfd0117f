package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Engine   EngineConfig   `mapstructure:"engine"`
	SSH      SSHConfig      `mapstructure:"ssh"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// EngineConfig 任务调度配置
type EngineConfig struct {
	// QueueSize 每台设备的任务队列容量，满时提交立即失败
	QueueSize       int           `mapstructure:"queue_size"`
	DefaultTimeout  time.Duration `mapstructure:"default_timeout"`
	BatchInterval   time.Duration `mapstructure:"batch_interval"`
	MaxGroups       int           `mapstructure:"max_groups"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// IdleTimeout 设备引擎空闲多久后回收
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	CatchError   bool          `mapstructure:"catch_error"`
	DetailOutput bool          `mapstructure:"detail_output"`
}

// SSHConfig SSH配置
type SSHConfig struct {
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	MaxActive         int           `mapstructure:"max_active"`
	TermType          string        `mapstructure:"term_type"`
	TermWidth         int           `mapstructure:"term_width"`
	TermHeight        int           `mapstructure:"term_height"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig SQLite配置
type SQLiteConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Path            string        `mapstructure:"path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// Retention 请求记录保留时长，0 表示不清理
	Retention time.Duration `mapstructure:"retention"`
}

// StorageConfig 配置快照归档存储
type StorageConfig struct {
	// Backend 默认存储后端：local | minio
	Backend string      `mapstructure:"backend"`
	Prefix  string      `mapstructure:"prefix"`
	Local   LocalConfig `mapstructure:"local"`
	Minio   MinioConfig `mapstructure:"minio"`
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	BaseDir        string `mapstructure:"base_dir"`
	MkdirIfMissing bool   `mapstructure:"mkdir_if_missing"`
}

// MinioConfig 对象存储配置
type MinioConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

var (
	globalMu     sync.RWMutex
	globalConfig *Config
)

// Load 加载配置文件；configPath 为空时在 configs 目录查找 config.yaml，找不到则只用默认值与环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	// 环境变量覆盖，例如 NETDRIVER_ENGINE_QUEUE_SIZE
	v.SetEnvPrefix("NETDRIVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalMu.Lock()
	globalConfig = &cfg
	globalMu.Unlock()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 300*time.Second)

	v.SetDefault("engine.queue_size", 64)
	v.SetDefault("engine.default_timeout", 10*time.Second)
	v.SetDefault("engine.batch_interval", 50*time.Millisecond)
	v.SetDefault("engine.max_groups", 8)
	v.SetDefault("engine.shutdown_timeout", 30*time.Second)
	v.SetDefault("engine.idle_timeout", 10*time.Minute)
	v.SetDefault("engine.catch_error", true)
	v.SetDefault("engine.detail_output", true)

	v.SetDefault("ssh.connect_timeout", 10*time.Second)
	v.SetDefault("ssh.keep_alive_interval", 30*time.Second)
	v.SetDefault("ssh.idle_timeout", 5*time.Minute)
	v.SetDefault("ssh.cleanup_interval", 30*time.Second)
	v.SetDefault("ssh.max_active", 256)
	v.SetDefault("ssh.term_type", "vt100")
	v.SetDefault("ssh.term_width", 511)
	v.SetDefault("ssh.term_height", 1000)

	v.SetDefault("database.sqlite.enabled", true)
	v.SetDefault("database.sqlite.path", "./data/netdriver.db")
	v.SetDefault("database.sqlite.max_idle_conns", 2)
	v.SetDefault("database.sqlite.max_open_conns", 1)
	v.SetDefault("database.sqlite.conn_max_lifetime", time.Hour)
	v.SetDefault("database.sqlite.retention", 30*24*time.Hour)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.prefix", "configs")
	v.SetDefault("storage.local.base_dir", "./data/archive")
	v.SetDefault("storage.local.mkdir_if_missing", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "./logs/netdriver.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
}

// Validate 校验关键配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Engine.QueueSize <= 0 {
		return fmt.Errorf("engine.queue_size must be positive")
	}
	if c.Engine.MaxGroups <= 0 {
		return fmt.Errorf("engine.max_groups must be positive")
	}
	switch strings.ToLower(c.Storage.Backend) {
	case "", "local", "minio":
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	return nil
}

// Get 获取全局配置
func Get() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// GetServerAddr 获取服务器地址
func (c *Config) GetServerAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
