package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config 保存应用程序配置。
type Config struct {
	App      AppConfig      `json:"app"`
	Mongo    MongoConfig    `json:"mongo"`
	Redis    RedisConfig    `json:"redis"`
	Email    EmailConfig    `json:"email"`
	Security SecurityConfig `json:"security"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env          string `json:"env"`           // 运行环境: local / prod
	LogLevel     string `json:"log_level"`     // 日志级别: debug / info / warn / error
	HTTPAddr     string `json:"http_addr"`     // API 服务监听地址
	ClientOrigin string `json:"client_origin"` // 允许跨域的前端 Origin
	ClientURL    string `json:"client_url"`    // 前端基础 URL，用于拼接重置链接

	// 邮件外发队列配置
	EnableMailOutbox bool   `json:"enable_mail_outbox"` // 是否启用 Redis Streams 邮件队列
	MailOutboxStream string `json:"mail_outbox_stream"` // Redis Stream 名称
	MailOutboxGroup  string `json:"mail_outbox_group"`  // Consumer Group 名称
}

// MongoConfig MongoDB 数据库配置。
type MongoConfig struct {
	URI      string `json:"uri"`      // 数据库连接字符串
	Database string `json:"database"` // 数据库名称
}

// RedisConfig Redis 配置（仅邮件外发队列使用）。
type RedisConfig struct {
	Addr     string `json:"addr"`     // Redis 地址 (host:port)
	Password string `json:"password"` // Redis 密码
}

// EmailConfig 邮件通知配置。
type EmailConfig struct {
	SMTPHost  string `json:"smtp_host"`
	SMTPPort  int    `json:"smtp_port"`
	SMTPUser  string `json:"smtp_user"`
	SMTPPass  string `json:"smtp_pass"`
	FromEmail string `json:"from_email"`
}

// SecurityConfig 安全相关配置。
type SecurityConfig struct {
	JWTSecret           string        `json:"jwt_secret"`            // 会话令牌签名密钥
	BcryptCost          int           `json:"bcrypt_cost"`           // bcrypt 工作因子
	SessionTTL          time.Duration `json:"session_ttl"`           // 会话令牌有效期（如 "168h"）
	VerificationCodeTTL time.Duration `json:"verification_code_ttl"` // 验证码有效期（如 "24h"）
	ResetTokenTTL       time.Duration `json:"reset_token_ttl"`       // 重置令牌有效期（如 "1h"）
}

// Load 从 JSON 文件加载配置。
//
// 它会尝试读取 configs/config.json 文件，如果不存在则使用默认值。
// 环境变量始终优先覆盖文件中的配置。
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	// 如果配置文件不存在，使用默认配置
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	// 应用默认值（对于未设置的字段）
	applyDefaults(cfg)

	// 环境变量优先覆盖配置
	applyEnvOverrides(cfg)

	return cfg, nil
}

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:              "local",
			LogLevel:         "info",
			HTTPAddr:         ":5000",
			ClientOrigin:     "http://localhost:5173",
			ClientURL:        "http://localhost:5173",
			EnableMailOutbox: false, // 默认关闭，同步发送
			MailOutboxStream: "authhive:mail:outbox",
			MailOutboxGroup:  "mail_workers",
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "authhive",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
		},
		Email: EmailConfig{
			SMTPHost:  "smtp.gmail.com",
			SMTPPort:  587,
			SMTPUser:  "",
			SMTPPass:  "",
			FromEmail: "",
		},
		Security: SecurityConfig{
			JWTSecret:           "dev_secret_change_me",
			BcryptCost:          10,
			SessionTTL:          7 * 24 * time.Hour,
			VerificationCodeTTL: 24 * time.Hour,
			ResetTokenTTL:       time.Hour,
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.App.ClientOrigin == "" {
		cfg.App.ClientOrigin = defaults.App.ClientOrigin
	}
	if cfg.App.ClientURL == "" {
		cfg.App.ClientURL = defaults.App.ClientURL
	}
	if cfg.App.MailOutboxStream == "" {
		cfg.App.MailOutboxStream = defaults.App.MailOutboxStream
	}
	if cfg.App.MailOutboxGroup == "" {
		cfg.App.MailOutboxGroup = defaults.App.MailOutboxGroup
	}
	if cfg.Mongo.URI == "" {
		cfg.Mongo.URI = defaults.Mongo.URI
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = defaults.Mongo.Database
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = defaults.Redis.Addr
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}
	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = defaults.Security.JWTSecret
	}
	if cfg.Security.BcryptCost == 0 {
		cfg.Security.BcryptCost = defaults.Security.BcryptCost
	}
	if cfg.Security.SessionTTL == 0 {
		cfg.Security.SessionTTL = defaults.Security.SessionTTL
	}
	if cfg.Security.VerificationCodeTTL == 0 {
		cfg.Security.VerificationCodeTTL = defaults.Security.VerificationCodeTTL
	}
	if cfg.Security.ResetTokenTTL == 0 {
		cfg.Security.ResetTokenTTL = defaults.Security.ResetTokenTTL
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("jwt_secret", "JWT_SECRET")
	_ = viper.BindEnv("mongo_uri", "MONGO_URI")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("smtp_pass", "SMTP_PASS")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	} else if v := os.Getenv("PORT"); v != "" {
		cfg.App.HTTPAddr = ":" + v
	}
	if v := os.Getenv("CLIENT_ORIGIN"); v != "" {
		cfg.App.ClientOrigin = v
	}
	if v := os.Getenv("CLIENT_URL"); v != "" {
		cfg.App.ClientURL = v
	}
	if v := os.Getenv("APP_ENABLE_MAIL_OUTBOX"); v != "" {
		cfg.App.EnableMailOutbox = v == "true" || v == "1"
	}
	if v := os.Getenv("APP_MAIL_OUTBOX_STREAM"); v != "" {
		cfg.App.MailOutboxStream = v
	}
	if v := os.Getenv("APP_MAIL_OUTBOX_GROUP"); v != "" {
		cfg.App.MailOutboxGroup = v
	}

	if v := viper.GetString("mongo_uri"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("MONGO_DB"); v != "" {
		cfg.Mongo.Database = v
	}

	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = i
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.Email.SMTPUser = v
	}
	if v := viper.GetString("smtp_pass"); v != "" {
		cfg.Email.SMTPPass = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.Email.FromEmail = v
	}

	if v := viper.GetString("jwt_secret"); v != "" {
		cfg.Security.JWTSecret = v
	}
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Security.BcryptCost = i
		}
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Security.SessionTTL = d
		}
	}
	if v := os.Getenv("VERIFICATION_CODE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Security.VerificationCodeTTL = d
		}
	}
	if v := os.Getenv("RESET_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Security.ResetTokenTTL = d
		}
	}
}

// UnmarshalJSON 自定义 JSON 解析，支持 Duration 字符串。
func (s *SecurityConfig) UnmarshalJSON(data []byte) error {
	type Alias SecurityConfig
	aux := &struct {
		SessionTTL          string `json:"session_ttl"`
		VerificationCodeTTL string `json:"verification_code_ttl"`
		ResetTokenTTL       string `json:"reset_token_ttl"`
		*Alias
	}{
		Alias: (*Alias)(s),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.SessionTTL != "" {
		duration, err := time.ParseDuration(aux.SessionTTL)
		if err != nil {
			return fmt.Errorf("invalid session_ttl format: %w", err)
		}
		s.SessionTTL = duration
	}
	if aux.VerificationCodeTTL != "" {
		duration, err := time.ParseDuration(aux.VerificationCodeTTL)
		if err != nil {
			return fmt.Errorf("invalid verification_code_ttl format: %w", err)
		}
		s.VerificationCodeTTL = duration
	}
	if aux.ResetTokenTTL != "" {
		duration, err := time.ParseDuration(aux.ResetTokenTTL)
		if err != nil {
			return fmt.Errorf("invalid reset_token_ttl format: %w", err)
		}
		s.ResetTokenTTL = duration
	}

	return nil
}

// MarshalJSON 自定义 JSON 序列化，将 Duration 转为字符串。
func (s SecurityConfig) MarshalJSON() ([]byte, error) {
	type Alias SecurityConfig
	return json.Marshal(&struct {
		SessionTTL          string `json:"session_ttl"`
		VerificationCodeTTL string `json:"verification_code_ttl"`
		ResetTokenTTL       string `json:"reset_token_ttl"`
		*Alias
	}{
		SessionTTL:          s.SessionTTL.String(),
		VerificationCodeTTL: s.VerificationCodeTTL.String(),
		ResetTokenTTL:       s.ResetTokenTTL.String(),
		Alias:               (*Alias)(&s),
	})
}
