package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "CHATRELAY"

// ConfigPathEnv names the environment variable holding an explicit config file path.
const ConfigPathEnv = EnvPrefix + "_CONFIG"

// KnownProviders lists the provider keys that receive environment bindings.
var KnownProviders = []string{"openai", "deepseek", "dashscope", "gemini", "anthropic"}

// DefaultTitlePrompt asks the model for a short conversation title.
const DefaultTitlePrompt = "Summarize the conversation above as a short title of at most ten words. " +
	"Reply with the title only, without quotes or punctuation at the end."

// Load configuration from environment variables and optionally a config file.
// The file path comes from CHATRELAY_CONFIG, falling back to ./config.yaml when present.
// Environment variables take precedence over values from config files.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(ConfigPathEnv))
}

// LoadFile behaves like Load but reads the given config file path.
// An empty path searches the working directory for an optional config.yaml.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("broker.driver", BrokerRedis)
	v.SetDefault("broker.rabbitmq_url", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime_minutes", 60)

	for _, name := range KnownProviders {
		v.SetDefault("llm.providers."+name+".api_key", "")
		v.SetDefault("llm.providers."+name+".base_url", "")
	}
	v.SetDefault("llm.catalog_path", "")
	v.SetDefault("llm.title_prompt", DefaultTitlePrompt)

	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.worker_count", 4)
	v.SetDefault("task.status_ttl_minutes", 60)
	v.SetDefault("task.stream_pacing_millis", 200)
	v.SetDefault("task.shutdown_grace_seconds", 30)
}
