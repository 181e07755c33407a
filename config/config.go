package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile 默认配置文件路径，可通过 CONFIG_FILE 覆盖
const DefaultConfigFile = "config/config.yaml"

// Config 应用配置结构体
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Redis     RedisConfig     `yaml:"redis"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Mail      MailConfig      `yaml:"mail"`
	Auth      AuthConfig      `yaml:"auth"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port           string        `yaml:"port"`           // 服务器监听端口
	ReadTimeout    time.Duration `yaml:"readTimeout"`    // 读取超时时间
	WriteTimeout   time.Duration `yaml:"writeTimeout"`   // 写入超时时间
	IdleTimeout    time.Duration `yaml:"idleTimeout"`    // 空闲超时时间
	ClientURL      string        `yaml:"clientURL"`      // 前端地址，用于拼接邮件中的链接
	AllowedOrigins []string      `yaml:"allowedOrigins"` // WebSocket 允许的 Origin，"*" 表示全部
	SecureCookie   bool          `yaml:"secureCookie"`   // token cookie 是否只在 HTTPS 下发送
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver       string        `yaml:"driver"`       // 数据库驱动类型 mysql/postgres
	Host         string        `yaml:"host"`         // 数据库主机地址
	Port         int           `yaml:"port"`         // 数据库端口
	Username     string        `yaml:"username"`     // 数据库用户名
	Password     string        `yaml:"password"`     // 数据库密码
	Database     string        `yaml:"database"`     // 数据库名称
	Charset      string        `yaml:"charset"`      // 字符集（mysql）
	SSLMode      string        `yaml:"sslmode"`      // SSL 模式（postgres）
	MaxIdle      int           `yaml:"maxIdle"`      // 最大空闲连接数
	MaxOpen      int           `yaml:"maxOpen"`      // 最大打开连接数
	QueryTimeout time.Duration `yaml:"queryTimeout"` // 单次查询超时，登录查询与消息存储共用
	LogSQL       bool          `yaml:"logSQL"`       // 是否打印SQL
}

// JWTConfig JWT配置（有效期固定为24小时，不在此配置）
type JWTConfig struct {
	Secret string `yaml:"secret"` // JWT密钥
	Issuer string `yaml:"issuer"` // JWT签发者
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`      // 日志级别
	Filename   string `yaml:"filename"`   // 日志文件名
	MaxSize    int    `yaml:"maxSize"`    // 单个日志文件最大大小(MB)
	MaxBackups int    `yaml:"maxBackups"` // 最大备份文件数
	MaxAge     int    `yaml:"maxAge"`     // 最大保存天数
	Compress   bool   `yaml:"compress"`   // 是否压缩
	Console    bool   `yaml:"console"`    // 是否同时输出到标准输出
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`  // 是否启用（在线状态镜像、登录锁定）
	Host     string `yaml:"host"`     // Redis主机地址
	Port     int    `yaml:"port"`     // Redis端口
	Password string `yaml:"password"` // Redis密码
	DB       int    `yaml:"db"`       // Redis数据库编号
}

// WebSocketConfig WebSocket 连接配置
type WebSocketConfig struct {
	PingInterval   time.Duration `yaml:"pingInterval"`   // 发送ping的间隔
	ReadTimeout    time.Duration `yaml:"readTimeout"`    // 读超时时间（未收到任何数据则断开）
	WriteTimeout   time.Duration `yaml:"writeTimeout"`   // 单次写超时
	SendBuffer     int           `yaml:"sendBuffer"`     // 每个连接的发送缓冲
	MaxMessageSize int64         `yaml:"maxMessageSize"` // 单帧最大字节数
	RateLimit      float64       `yaml:"rateLimit"`      // 每秒允许的客户端事件数
	RateBurst      int           `yaml:"rateBurst"`      // 突发事件数
}

// MailConfig 邮件发送配置
type MailConfig struct {
	Enabled  bool          `yaml:"enabled"`  // 未启用时只记录日志
	Host     string        `yaml:"host"`     // SMTP 主机
	Port     int           `yaml:"port"`     // SMTP 端口
	Username string        `yaml:"username"` // SMTP 用户名
	Password string        `yaml:"password"` // SMTP 密码
	From     string        `yaml:"from"`     // 发件地址
	FromName string        `yaml:"fromName"` // 发件人名称
	Timeout  time.Duration `yaml:"timeout"`  // 单封邮件发送超时
}

// AuthConfig 账号相关配置
type AuthConfig struct {
	VerificationTTL  time.Duration `yaml:"verificationTTL"`  // 邮箱验证令牌有效期
	ResetTTL         time.Duration `yaml:"resetTTL"`         // 重置密码令牌有效期
	BcryptCost       int           `yaml:"bcryptCost"`       // bcrypt 代价
	LockoutThreshold int           `yaml:"lockoutThreshold"` // 连续失败多少次后锁定
	LockoutWindow    time.Duration `yaml:"lockoutWindow"`    // 锁定时长
}

// LoadConfig 加载配置（混合方式：YAML文件 + 环境变量）
func LoadConfig() *Config {
	// 1. 首先从YAML文件加载默认配置
	config := loadFromYAML(getEnv("CONFIG_FILE", DefaultConfigFile))

	// 2. 用环境变量覆盖配置（环境变量优先级更高）
	overrideWithEnvVars(config)

	return config
}

// loadFromYAML 从YAML文件加载配置，文件中缺失的字段保留默认值
func loadFromYAML(filePath string) *Config {
	config := getDefaultConfig()

	data, err := os.ReadFile(filePath)
	if err != nil {
		// 如果文件不存在，返回默认配置
		return config
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		// 如果解析失败，返回默认配置
		return getDefaultConfig()
	}

	return config
}

// overrideWithEnvVars 用环境变量覆盖配置
func overrideWithEnvVars(config *Config) {
	// 服务器配置
	if port := getEnv("SERVER_PORT", ""); port != "" {
		config.Server.Port = port
	}
	if timeout := getEnvDuration("SERVER_READ_TIMEOUT", 0); timeout > 0 {
		config.Server.ReadTimeout = timeout
	}
	if timeout := getEnvDuration("SERVER_WRITE_TIMEOUT", 0); timeout > 0 {
		config.Server.WriteTimeout = timeout
	}
	if timeout := getEnvDuration("SERVER_IDLE_TIMEOUT", 0); timeout > 0 {
		config.Server.IdleTimeout = timeout
	}
	if url := getEnv("CLIENT_URL", ""); url != "" {
		config.Server.ClientURL = url
	}
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		config.Server.AllowedOrigins = splitList(origins)
	}
	config.Server.SecureCookie = getEnvBool("SECURE_COOKIE", config.Server.SecureCookie)

	// 数据库配置
	if driver := getEnv("DB_DRIVER", ""); driver != "" {
		config.Database.Driver = driver
	}
	if host := getEnv("DB_HOST", ""); host != "" {
		config.Database.Host = host
	}
	if port := getEnvInt("DB_PORT", 0); port > 0 {
		config.Database.Port = port
	}
	if username := getEnv("DB_USERNAME", ""); username != "" {
		config.Database.Username = username
	}
	if password := getEnv("DB_PASSWORD", ""); password != "" {
		config.Database.Password = password
	}
	if database := getEnv("DB_DATABASE", ""); database != "" {
		config.Database.Database = database
	}
	if charset := getEnv("DB_CHARSET", ""); charset != "" {
		config.Database.Charset = charset
	}
	if sslmode := getEnv("DB_SSLMODE", ""); sslmode != "" {
		config.Database.SSLMode = sslmode
	}
	if maxIdle := getEnvInt("DB_MAX_IDLE", 0); maxIdle > 0 {
		config.Database.MaxIdle = maxIdle
	}
	if maxOpen := getEnvInt("DB_MAX_OPEN", 0); maxOpen > 0 {
		config.Database.MaxOpen = maxOpen
	}
	if timeout := getEnvDuration("DB_QUERY_TIMEOUT", 0); timeout > 0 {
		config.Database.QueryTimeout = timeout
	}

	// JWT配置
	if secret := getEnv("JWT_SECRET", ""); secret != "" {
		config.JWT.Secret = secret
	}
	if issuer := getEnv("JWT_ISSUER", ""); issuer != "" {
		config.JWT.Issuer = issuer
	}

	// 日志配置
	if level := getEnv("LOG_LEVEL", ""); level != "" {
		config.Log.Level = level
	}
	if filename := getEnv("LOG_FILENAME", ""); filename != "" {
		config.Log.Filename = filename
	}
	if maxSize := getEnvInt("LOG_MAX_SIZE", 0); maxSize > 0 {
		config.Log.MaxSize = maxSize
	}
	if maxBackups := getEnvInt("LOG_MAX_BACKUPS", 0); maxBackups > 0 {
		config.Log.MaxBackups = maxBackups
	}
	if maxAge := getEnvInt("LOG_MAX_AGE", 0); maxAge > 0 {
		config.Log.MaxAge = maxAge
	}
	config.Log.Console = getEnvBool("LOG_CONSOLE", config.Log.Console)

	// Redis配置
	config.Redis.Enabled = getEnvBool("REDIS_ENABLED", config.Redis.Enabled)
	if host := getEnv("REDIS_HOST", ""); host != "" {
		config.Redis.Host = host
	}
	if port := getEnvInt("REDIS_PORT", 0); port > 0 {
		config.Redis.Port = port
	}
	if password := getEnv("REDIS_PASSWORD", ""); password != "" {
		config.Redis.Password = password
	}
	if db := getEnvInt("REDIS_DB", -1); db >= 0 {
		config.Redis.DB = db
	}

	// WebSocket配置
	if d := getEnvDuration("WS_PING_INTERVAL", 0); d > 0 {
		config.WebSocket.PingInterval = d
	}
	if d := getEnvDuration("WS_READ_TIMEOUT", 0); d > 0 {
		config.WebSocket.ReadTimeout = d
	}
	if d := getEnvDuration("WS_WRITE_TIMEOUT", 0); d > 0 {
		config.WebSocket.WriteTimeout = d
	}
	if n := getEnvInt("WS_SEND_BUFFER", 0); n > 0 {
		config.WebSocket.SendBuffer = n
	}

	// 邮件配置
	config.Mail.Enabled = getEnvBool("MAIL_ENABLED", config.Mail.Enabled)
	if host := getEnv("MAIL_HOST", ""); host != "" {
		config.Mail.Host = host
	}
	if port := getEnvInt("MAIL_PORT", 0); port > 0 {
		config.Mail.Port = port
	}
	if username := getEnv("MAIL_USERNAME", ""); username != "" {
		config.Mail.Username = username
	}
	if password := getEnv("MAIL_PASSWORD", ""); password != "" {
		config.Mail.Password = password
	}
	if from := getEnv("EMAIL_FROM", ""); from != "" {
		config.Mail.From = from
	}
	if name := getEnv("EMAIL_FROM_NAME", ""); name != "" {
		config.Mail.FromName = name
	}

	// 账号配置
	if cost := getEnvInt("BCRYPT_COST", 0); cost > 0 {
		config.Auth.BcryptCost = cost
	}
	if n := getEnvInt("LOCKOUT_THRESHOLD", 0); n > 0 {
		config.Auth.LockoutThreshold = n
	}
	if d := getEnvDuration("LOCKOUT_WINDOW", 0); d > 0 {
		config.Auth.LockoutWindow = d
	}
}

// getDefaultConfig 获取默认配置
func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "4000",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			ClientURL:      "http://localhost:3000",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Driver:       "mysql",
			Host:         "localhost",
			Port:         3306,
			Username:     "chat_user",
			Password:     "",
			Database:     "chat_app",
			Charset:      "utf8mb4",
			SSLMode:      "disable",
			MaxIdle:      10,
			MaxOpen:      100,
			QueryTimeout: 5 * time.Second,
		},
		JWT: JWTConfig{
			Secret: "change-me",
			Issuer: "chat-server",
		},
		Log: LogConfig{
			Level:      "info",
			Filename:   "logs/app.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     6379,
			Password: "",
			DB:       0,
		},
		WebSocket: WebSocketConfig{
			PingInterval:   30 * time.Second,
			ReadTimeout:    90 * time.Second,
			WriteTimeout:   10 * time.Second,
			SendBuffer:     256,
			MaxMessageSize: 64 * 1024,
			RateLimit:      20,
			RateBurst:      40,
		},
		Mail: MailConfig{
			Enabled:  false,
			Port:     587,
			FromName: "Chat App",
			Timeout:  15 * time.Second,
		},
		Auth: AuthConfig{
			VerificationTTL:  24 * time.Hour,
			ResetTTL:         time.Hour,
			BcryptCost:       10,
			LockoutThreshold: 5,
			LockoutWindow:    15 * time.Minute,
		},
	}
}

// 辅助函数：获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// 辅助函数：获取整数环境变量
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// 辅助函数：获取布尔环境变量
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// 辅助函数：获取时间环境变量
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// 辅助函数：逗号分隔列表
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
