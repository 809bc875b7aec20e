package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis" validate:"required"`
	Broker   BrokerConfig   `mapstructure:"broker" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// RedisConfig holds the connection settings for the Redis instance backing
// the task registry, the stream locks and the conversation message store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// Broker driver names.
const (
	BrokerMemory   = "memory"
	BrokerRedis    = "redis"
	BrokerRabbitMQ = "rabbitmq"
)

// BrokerConfig selects the publish/subscribe backend used for task streaming.
type BrokerConfig struct {
	Driver      string `mapstructure:"driver" validate:"required,oneof=memory redis rabbitmq"`
	RabbitMQURL string `mapstructure:"rabbitmq_url" validate:"required_if=Driver rabbitmq"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// ProviderConfig holds credentials for one upstream generation provider.
// A provider with an empty APIKey is not registered.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	// Providers is keyed by provider name (openai, deepseek, dashscope, gemini, anthropic).
	Providers map[string]ProviderConfig `mapstructure:"providers" validate:"dive"`

	// CatalogPath points to a YAML model catalog. Empty means the built-in catalog.
	CatalogPath string `mapstructure:"catalog_path"`

	// TitlePrompt is appended as a user message for title generation tasks.
	TitlePrompt string `mapstructure:"title_prompt" validate:"required"`
}

// TaskConfig contains background task processing settings.
type TaskConfig struct {
	QueueSize            int `mapstructure:"queue_size" validate:"required,gt=0"`
	WorkerCount          int `mapstructure:"worker_count" validate:"required,gt=0"`
	StatusTTLMinutes     int `mapstructure:"status_ttl_minutes" validate:"required,gt=0"`
	StreamPacingMillis   int `mapstructure:"stream_pacing_millis" validate:"gte=0"`
	ShutdownGraceSeconds int `mapstructure:"shutdown_grace_seconds" validate:"gte=0"`
}
