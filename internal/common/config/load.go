package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// 生产模式下必须替换的默认密钥
const defaultJWTSecret = "change-me-in-production"

var defaults = map[string]any{
	"server.name":             "coupon-platform-backend",
	"server.mode":             ModeDebug,
	"server.port":             8000,
	"server.read_timeout":     "30s",
	"server.write_timeout":    "30s",
	"server.shutdown_timeout": "10s",

	"database.driver":            "postgres",
	"database.host":              "localhost",
	"database.port":              5432,
	"database.user":              "postgres",
	"database.password":          "postgres",
	"database.name":              "coupon_platform",
	"database.sslmode":           "disable",
	"database.timezone":          "UTC",
	"database.max_idle_conns":    10,
	"database.max_open_conns":    100,
	"database.conn_max_lifetime": "1h",
	"database.log_mode":          false,
	"database.slow_threshold":    "200ms",
	"database.auto_migrate":      true,

	"redis.enabled":        true,
	"redis.password":       "",
	"redis.host":           "localhost",
	"redis.port":           6379,
	"redis.pool_size":      100,
	"redis.min_idle_conns": 10,
	"redis.dial_timeout":   "5s",
	"redis.read_timeout":   "3s",
	"redis.write_timeout":  "3s",

	"mqtt.enabled":          false,
	"mqtt.broker":           "tcp://localhost:1883",
	"mqtt.client_id_prefix": "coupon-platform-",
	"mqtt.keep_alive":       "60s",
	"mqtt.auto_reconnect":   true,
	"mqtt.connect_timeout":  "10s",
	"mqtt.qos":              1,
	"mqtt.topic_prefix":     "coupon-platform/",
	"mqtt.username":         "",
	"mqtt.password":         "",

	"jwt.secret":      defaultJWTSecret,
	"jwt.access_ttl":  "24h",
	"jwt.refresh_ttl": "720h",
	"jwt.issuer":      "coupon-platform",

	"crypto.bcrypt_cost": 10,

	// 无默认值的键也要登记，否则环境变量覆盖不会生效
	"sms.enabled":           false,
	"sms.provider":          "aliyun",
	"sms.access_key_id":     "",
	"sms.access_key_secret": "",
	"sms.sign_name":         "",
	"mail.enabled":          false,
	"mail.host":             "",
	"mail.port":             587,
	"mail.username":         "",
	"mail.password":         "",
	"mail.from":             "",
	"mail.from_name":        "Coupon Platform",

	"notify.workers":         4,
	"notify.queue_size":      1024,
	"notify.max_retries":     3,
	"notify.retry_backoff":   "500ms",
	"notify.redis_queue":     "notify:queue",
	"notify.use_redis":       false,
	"notify.enqueue_timeout": "1s",

	"logger.level":       "info",
	"logger.format":      "console",
	"logger.output":      "stdout",
	"logger.file_path":   "./logs/app.log",
	"logger.max_size":    100,
	"logger.max_backups": 10,
	"logger.max_age":     30,
	"logger.compress":    true,
	"logger.caller":      true,

	"metrics.enabled":   true,
	"metrics.namespace": "coupon_platform",
	"metrics.path":      "/metrics",

	"tracing.enabled":      false,
	"tracing.endpoint":     "",
	"tracing.service_name": "coupon-platform-backend",
	"tracing.sample_rate":  1.0,

	"ratelimit.enabled":           true,
	"ratelimit.login_per_minute":  10,
	"ratelimit.redeem_per_minute": 30,

	"cors.allowed_origins":   []string{"*"},
	"cors.allowed_methods":   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
	"cors.allowed_headers":   []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
	"cors.exposed_headers":   []string{"X-Request-ID", "Content-Disposition"},
	"cors.allow_credentials": true,
	"cors.max_age":           86400,

	"marketing.stats_cache_ttl":          "30s",
	"marketing.sweep_interval":           "5m",
	"marketing.top_n":                    5,
	"marketing.bootstrap_admin.name":     "Administrator",
	"marketing.bootstrap_admin.email":    "",
	"marketing.bootstrap_admin.password": "",
}

// Load 读取配置。path 为空时依次在 ./configs 与当前目录查找 config.yaml，找不到则只用默认值。
// 环境变量以 COUPON_ 为前缀覆盖同名键，例如 COUPON_JWT_SECRET、COUPON_MARKETING_BOOTSTRAP_ADMIN_PASSWORD
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("COUPON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查互相依赖或取值受限的配置项，一次返回全部问题
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.Server.Mode {
	case ModeDebug, ModeTest, ModeProduction:
	default:
		errs = append(errs, fmt.Errorf("server.mode: unknown mode %q", c.Server.Mode))
	}
	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port: %d out of range", c.Server.Port)
	check(c.Server.ShutdownTimeout > 0, "server.shutdown_timeout: must be positive")

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
	}
	check(c.Database.Name != "", "database.name: required")

	check(c.JWT.Secret != "", "jwt.secret: required")
	check(!c.IsProduction() || c.JWT.Secret != defaultJWTSecret, "jwt.secret: default secret not allowed in production")
	check(c.JWT.AccessTTL > 0, "jwt.access_ttl: must be positive")
	check(c.JWT.RefreshTTL >= c.JWT.AccessTTL, "jwt.refresh_ttl: must not be shorter than access_ttl")

	if c.RateLimit.Enabled {
		check(c.RateLimit.LoginPerMinute > 0, "ratelimit.login_per_minute: must be positive")
		check(c.RateLimit.RedeemPerMinute > 0, "ratelimit.redeem_per_minute: must be positive")
	}
	check(c.Marketing.TopN > 0, "marketing.top_n: must be positive")
	check(c.Marketing.StatsCacheTTL >= 0 && c.Marketing.SweepInterval >= 0, "marketing: intervals must not be negative")
	check(c.Notify.Workers > 0, "notify.workers: must be positive")

	if c.Mail.Enabled {
		check(c.Mail.Host != "" && c.Mail.From != "", "mail: host and from required when enabled")
	}
	if c.SMS.Enabled {
		check(c.SMS.AccessKeyID != "" && c.SMS.AccessKeySecret != "", "sms: access key required when enabled")
	}
	return errors.Join(errs...)
}
