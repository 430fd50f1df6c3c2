package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Credit    CreditConfig
	Stream    StreamConfig
	Providers ProvidersConfig
	Tools     ToolsConfig
	Title     TitleConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig 数据库配置
// Driver 支持 postgres 与 sqlite，sqlite 时使用 Path
type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	Path         string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig 可恢复流注册表的 pub/sub 连接
// URL 为空时禁用可恢复流
type RedisConfig struct {
	URL       string
	BufferTTL int // 秒
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret string
}

// CreditConfig 积分配置
// DefaultInputCost/DefaultOutputCost 用于补齐缺失的模型价目
type CreditConfig struct {
	InitialAmount     float64
	DefaultInputCost  float64
	DefaultOutputCost float64
}

// StreamConfig 生成流配置
type StreamConfig struct {
	SmoothDelay  int // 毫秒
	MaxRetries   int
	MaxSteps     int
	RetryBackoff int // 毫秒
}

// ProviderConfig 单个模型提供商的凭证
type ProviderConfig struct {
	APIKey  string
	BaseURL string
}

// ProvidersConfig 模型提供商配置
type ProvidersConfig struct {
	OpenAI   ProviderConfig
	DeepSeek ProviderConfig
	Qwen     ProviderConfig
	Claude   ProviderConfig
	Gemini   ProviderConfig
	Ollama   ProviderConfig
}

// ToolsConfig 工具配置
type ToolsConfig struct {
	WebSearch bool
}

// TitleConfig 标题生成配置
type TitleConfig struct {
	Enabled bool
}

var globalConfig *Config

// Load 加载配置
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 环境变量
	v.SetEnvPrefix("NEXT_CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("config not loaded")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetBufferTTL 获取回放缓冲保留时长
func (c *RedisConfig) GetBufferTTL() time.Duration {
	return time.Duration(c.BufferTTL) * time.Second
}

// GetSmoothDelay 获取按行平滑输出的间隔
func (c *StreamConfig) GetSmoothDelay() time.Duration {
	return time.Duration(c.SmoothDelay) * time.Millisecond
}

// GetRetryBackoff 获取重试退避间隔
func (c *StreamConfig) GetRetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoff) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "next-chat")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", true)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 0)

	// Database
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "next_chat")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "next_chat.db")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.bufferTTL", 600)

	// Credit
	v.SetDefault("credit.initialAmount", 0)
	v.SetDefault("credit.defaultInputCost", 0.001)
	v.SetDefault("credit.defaultOutputCost", 0.002)

	// Stream
	v.SetDefault("stream.smoothDelay", 10)
	v.SetDefault("stream.maxRetries", 3)
	v.SetDefault("stream.maxSteps", 5)
	v.SetDefault("stream.retryBackoff", 500)

	// Providers
	v.SetDefault("providers.openai.baseUrl", "https://api.openai.com/v1")
	v.SetDefault("providers.deepseek.baseUrl", "https://api.deepseek.com")
	v.SetDefault("providers.qwen.baseUrl", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("providers.ollama.baseUrl", "http://localhost:11434")

	// Tools / Title
	v.SetDefault("tools.webSearch", false)
	v.SetDefault("title.enabled", true)
}
