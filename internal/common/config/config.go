// Package config 应用配置，YAML 文件加环境变量覆盖，时长字段使用 "30s"、"5m" 这类写法
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// 运行模式
const (
	ModeDebug      = "debug"
	ModeTest       = "test"
	ModeProduction = "production"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Crypto    CryptoConfig    `mapstructure:"crypto"`
	SMS       SMSConfig       `mapstructure:"sms"`
	Mail      MailConfig      `mapstructure:"mail"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Marketing MarketingConfig `mapstructure:"marketing"`
}

// IsProduction 生产模式下关闭 Swagger，gin 使用 release 模式
func (c *Config) IsProduction() bool {
	return c.Server.Mode == ModeProduction
}

// ServerConfig HTTP 服务
type ServerConfig struct {
	Name            string        `mapstructure:"name"`
	Mode            string        `mapstructure:"mode"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ListenAddr 监听地址
func (s *ServerConfig) ListenAddr() string {
	return ":" + strconv.Itoa(s.Port)
}

// DatabaseConfig 数据库，driver 为 sqlite 时 Name 是文件路径
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	Timezone        string        `mapstructure:"timezone"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogMode         bool          `mapstructure:"log_mode"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN postgres 连接串
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.Timezone,
	)
}

// RedisConfig 未启用时统计缓存、限流与 Redis 通知队列都会关闭
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr host:port
func (r *RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// MQTTConfig 优惠券事件发布
type MQTTConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Broker         string        `mapstructure:"broker"`
	ClientIDPrefix string        `mapstructure:"client_id_prefix"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	KeepAlive      time.Duration `mapstructure:"keep_alive"`
	AutoReconnect  bool          `mapstructure:"auto_reconnect"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	QoS            byte          `mapstructure:"qos"`
	Retained       bool          `mapstructure:"retained"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
}

// JWTConfig 登录令牌
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	Issuer     string        `mapstructure:"issuer"`
}

// CryptoConfig 密码哈希
type CryptoConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

// SMSConfig 阿里云短信，模板分别用于发券与核销通知
type SMSConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Provider         string `mapstructure:"provider"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	AccessKeySecret  string `mapstructure:"access_key_secret"`
	SignName         string `mapstructure:"sign_name"`
	AssignedTemplate string `mapstructure:"assigned_template"`
	RedeemedTemplate string `mapstructure:"redeemed_template"`
}

// MailConfig SMTP 发信
type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
}

// NotifyConfig 通知分发
type NotifyConfig struct {
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	UseRedis     bool          `mapstructure:"use_redis"`
	RedisQueue   string        `mapstructure:"redis_queue"`
	// EnqueueTimeout 单次写入 Redis 队列的上限
	EnqueueTimeout time.Duration `mapstructure:"enqueue_timeout"`
}

// LoggerConfig 日志，output 取 stdout、file 或 both
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // 天
	Compress   bool   `mapstructure:"compress"`
	Caller     bool   `mapstructure:"caller"`
}

// MetricsConfig Prometheus
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// TracingConfig OpenTelemetry
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// RateLimitConfig 登录与核销的每分钟请求上限
type RateLimitConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	LoginPerMinute  int  `mapstructure:"login_per_minute"`
	RedeemPerMinute int  `mapstructure:"redeem_per_minute"`
}

// CORSConfig 跨域
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"` // 秒
}

// MarketingConfig 优惠券业务参数
type MarketingConfig struct {
	// StatsCacheTTL 为 0 时统计不走缓存
	StatsCacheTTL time.Duration `mapstructure:"stats_cache_ttl"`
	// SweepInterval 为 0 时关闭后台巡检
	SweepInterval  time.Duration  `mapstructure:"sweep_interval"`
	TopN           int            `mapstructure:"top_n"`
	BootstrapAdmin BootstrapAdmin `mapstructure:"bootstrap_admin"`
}

// BootstrapAdmin 系统中还没有管理员时，用这组凭证登录会创建首个管理员
type BootstrapAdmin struct {
	Name     string `mapstructure:"name"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// Enabled 邮箱与密码都配置时生效
func (b *BootstrapAdmin) Enabled() bool {
	return b.Email != "" && b.Password != ""
}
