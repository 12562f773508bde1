package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	xerrors "QVeritas/internal/errors"
	"QVeritas/pkg/logger"
)

// Config 描述了 QVeritas 在启动阶段需要加载的核心配置。
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Engine  EngineConfig  `json:"engine" yaml:"engine"`
	Signing SigningConfig `json:"signing" yaml:"signing"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Queue   QueueConfig   `json:"queue" yaml:"queue"`
	Audit   AuditConfig   `json:"audit" yaml:"audit"`
	Log     logger.Config `json:"log" yaml:"log"`
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址与限流参数。
type ServerConfig struct {
	Address         string  `json:"address" yaml:"address"`
	RateLimit       float64 `json:"rate_limit" yaml:"rate_limit"`
	RateBurst       int     `json:"rate_burst" yaml:"rate_burst"`
	ShutdownTimeout string  `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// EngineConfig 描述计算引擎的安全级别与确定性种子。
// Seed 为 nil 表示未配置；0 是合法种子。
type EngineConfig struct {
	SecurityLevel int    `json:"security_level" yaml:"security_level"`
	Seed          *int64 `json:"seed" yaml:"seed"`
	RequireSeed   bool   `json:"require_seed" yaml:"require_seed"`
}

// SigningConfig 选择签名方案。
type SigningConfig struct {
	Scheme string `json:"scheme" yaml:"scheme"`
}

// StorageConfig 统一描述证明缓存与计算日志所用的后端。
type StorageConfig struct {
	Driver string      `json:"driver" yaml:"driver"`
	MySQL  MySQLConfig `json:"mysql" yaml:"mysql"`
	Redis  RedisConfig `json:"redis" yaml:"redis"`
}

// MySQLConfig 包含 MySQL 连接池参数。
type MySQLConfig struct {
	DSN             string `json:"dsn" yaml:"dsn"`
	MaxOpenConns    int    `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int    `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime string `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// RedisConfig 描述 Redis 连接信息。
type RedisConfig struct {
	Address   string `json:"address" yaml:"address"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// QueueConfig 控制异步验证任务的队列与工作协程。
type QueueConfig struct {
	Driver     string         `json:"driver" yaml:"driver"`
	Workers    int            `json:"workers" yaml:"workers"`
	MaxRetries int            `json:"max_retries" yaml:"max_retries"`
	Buffer     int            `json:"buffer" yaml:"buffer"`
	RedisKey   string         `json:"redis_key" yaml:"redis_key"`
	RabbitMQ   RabbitMQConfig `json:"rabbitmq" yaml:"rabbitmq"`
}

// RabbitMQConfig 描述 RabbitMQ 队列。
type RabbitMQConfig struct {
	URL   string `json:"url" yaml:"url"`
	Queue string `json:"queue" yaml:"queue"`
}

// AuditConfig 描述审计报告的导出目标。
type AuditConfig struct {
	Sink     string `json:"sink" yaml:"sink"`
	Path     string `json:"path" yaml:"path"`
	Bucket   string `json:"bucket" yaml:"bucket"`
	Region   string `json:"region" yaml:"region"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Prefix   string `json:"prefix" yaml:"prefix"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// Load 负责解析指定路径的配置文件，按扩展名选择 YAML 或 JSON。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "配置文件路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "读取配置文件失败")
	}

	cfg, err := Parse(content, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	baseDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		baseDir = filepath.Dir(path)
	}
	cfg.applyDefaults(baseDir)
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse 解析配置内容，不应用默认值。
func Parse(content []byte, ext string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "解析 YAML 配置失败")
		}
	default:
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "解析 JSON 配置失败")
		}
	}
	return &cfg, nil
}

// Default 返回未读取文件时使用的配置，baseDir 决定数据目录位置。
func Default(baseDir string) *Config {
	cfg := &Config{}
	cfg.applyDefaults(baseDir)
	cfg.applyEnv()
	return cfg
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.RateLimit <= 0 {
		c.Server.RateLimit = 50
	}
	if c.Server.RateBurst <= 0 {
		c.Server.RateBurst = 100
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "5s"
	}

	if c.Engine.SecurityLevel == 0 {
		c.Engine.SecurityLevel = 256
	}
	if c.Signing.Scheme == "" {
		c.Signing.Scheme = "placeholder"
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.MySQL.MaxOpenConns <= 0 {
		c.Storage.MySQL.MaxOpenConns = 10
	}
	if c.Storage.MySQL.MaxIdleConns <= 0 {
		c.Storage.MySQL.MaxIdleConns = 5
	}
	if c.Storage.MySQL.ConnMaxLifetime == "" {
		c.Storage.MySQL.ConnMaxLifetime = "30m"
	}
	if c.Storage.Redis.Address == "" {
		c.Storage.Redis.Address = "127.0.0.1:6379"
	}
	if c.Storage.Redis.KeyPrefix == "" {
		c.Storage.Redis.KeyPrefix = "qveritas"
	}

	if c.Queue.Driver == "" {
		c.Queue.Driver = "memory"
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 4
	}
	if c.Queue.MaxRetries <= 0 {
		c.Queue.MaxRetries = 3
	}
	if c.Queue.Buffer <= 0 {
		c.Queue.Buffer = 128
	}
	if c.Queue.RedisKey == "" {
		c.Queue.RedisKey = "qveritas:jobs"
	}
	if c.Queue.RabbitMQ.Queue == "" {
		c.Queue.RabbitMQ.Queue = "qveritas.jobs"
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}

	if c.Audit.Sink == "" {
		c.Audit.Sink = "file"
	}
	if c.Audit.Path == "" {
		c.Audit.Path = filepath.Join(c.Runtime.DataDir, "qveritas_audit.json")
	} else if c.Audit.Sink == "file" && !filepath.IsAbs(c.Audit.Path) {
		c.Audit.Path = filepath.Join(baseDir, c.Audit.Path)
	}
	if c.Audit.Prefix == "" {
		c.Audit.Prefix = "audit/"
	}

	if c.Log.Audit.Enabled && c.Log.Audit.Path == "" {
		c.Log.Audit.Path = filepath.Join(c.Runtime.DataDir, "logs", "audit.log")
	}
}

// applyEnv 使用环境变量覆盖部分配置项。
func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("QVERITAS_SEED"); ok && strings.TrimSpace(v) != "" {
		if seed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			c.Engine.Seed = &seed
		} else {
			logger.L().Warn("忽略无法解析的 QVERITAS_SEED", "value", v, "error", err)
		}
	}
	if v := strings.TrimSpace(os.Getenv("QVERITAS_SIGNING_SCHEME")); v != "" {
		c.Signing.Scheme = v
	}
	if v := strings.TrimSpace(os.Getenv("QVERITAS_SERVER_ADDRESS")); v != "" {
		c.Server.Address = v
	}
	if v := strings.TrimSpace(os.Getenv("QVERITAS_LOG_LEVEL")); v != "" {
		c.Log.Level = v
	}
}

// Validate 检查组合配置是否合法。
func (c *Config) Validate() error {
	if c.Engine.Seed != nil && *c.Engine.Seed < 0 {
		return xerrors.New(xerrors.CodeConfiguration, "确定性种子不能为负数",
			xerrors.WithMetadata("seed", strconv.FormatInt(*c.Engine.Seed, 10)))
	}
	if c.Engine.SecurityLevel < 0 {
		return xerrors.New(xerrors.CodeConfiguration, "security_level 不能为负数")
	}
	switch c.Storage.Driver {
	case "memory", "mysql", "redis":
	default:
		return xerrors.New(xerrors.CodeConfiguration, fmt.Sprintf("不支持的存储驱动 %q", c.Storage.Driver))
	}
	if c.Storage.Driver == "mysql" && c.Storage.MySQL.DSN == "" {
		return xerrors.New(xerrors.CodeConfiguration, "mysql 存储需要配置 dsn")
	}
	switch c.Queue.Driver {
	case "memory", "redis", "rabbitmq":
	default:
		return xerrors.New(xerrors.CodeConfiguration, fmt.Sprintf("不支持的队列驱动 %q", c.Queue.Driver))
	}
	if c.Queue.Driver == "rabbitmq" && c.Queue.RabbitMQ.URL == "" {
		return xerrors.New(xerrors.CodeConfiguration, "rabbitmq 队列需要配置 url")
	}
	switch c.Audit.Sink {
	case "file":
	case "s3", "gcs":
		if c.Audit.Bucket == "" {
			return xerrors.New(xerrors.CodeConfiguration, "对象存储导出需要配置 bucket")
		}
	default:
		return xerrors.New(xerrors.CodeConfiguration, fmt.Sprintf("不支持的审计导出目标 %q", c.Audit.Sink))
	}
	if _, err := c.ShutdownTimeout(); err != nil {
		return err
	}
	if _, err := c.ConnMaxLifetime(); err != nil {
		return err
	}
	return nil
}

// ResolveSeed 按种子策略返回引擎种子：显式配置优先；缺省且 require_seed
// 时报错；否则退回当前 Unix 秒，确定性仅在单个进程内成立。
func (c *Config) ResolveSeed(now func() time.Time) (int64, error) {
	if c.Engine.Seed != nil {
		if *c.Engine.Seed < 0 {
			return 0, xerrors.New(xerrors.CodeConfiguration, "确定性种子不能为负数")
		}
		return *c.Engine.Seed, nil
	}
	if c.Engine.RequireSeed {
		return 0, xerrors.New(xerrors.CodeConfiguration, "require_seed 已开启但未配置 engine.seed")
	}
	if now == nil {
		now = time.Now
	}
	seed := now().Unix()
	logger.L().Warn("未配置确定性种子，使用当前时间；结果仅在本进程内可复现", "seed", seed)
	return seed, nil
}

// ShutdownTimeout 解析优雅退出的超时时间。
func (c *Config) ShutdownTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeConfiguration, err, "shutdown_timeout 格式错误")
	}
	return d, nil
}

// ConnMaxLifetime 解析 MySQL 连接最长存活时间。
func (c *Config) ConnMaxLifetime() (time.Duration, error) {
	d, err := time.ParseDuration(c.Storage.MySQL.ConnMaxLifetime)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeConfiguration, err, "conn_max_lifetime 格式错误")
	}
	return d, nil
}
