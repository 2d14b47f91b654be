package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	API      APIConfig
	Retry    RetryConfig
	Feedback FeedbackConfig
	Session  SessionConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

// APIConfig describes the remote solving service. Level and UserID are
// forwarded verbatim in every solve request.
type APIConfig struct {
	BaseURL    string
	Level      string
	UserID     string
	TimeoutSec int
}

type RetryConfig struct {
	MaxAttempts    int
	InitialDelayMs int
	MaxDelayMs     int
	Multiplier     float64
}

type FeedbackConfig struct {
	NoticeMs int
}

type SessionConfig struct {
	DefaultQuestion string
}

type ServerConfig struct {
	Host                string
	Port                int
	ReadTimeout         int
	WriteTimeout        int
	BodyLimit           int
	AllowedOrigins      []string
	Development         bool
	MaxEventsPerMinute  int
	MaxQuestionLength   int
	MaxCorrectionLength int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c RetryConfig) InitialDelay() time.Duration {
	return time.Duration(c.InitialDelayMs) * time.Millisecond
}

func (c RetryConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

func (c FeedbackConfig) NoticeDuration() time.Duration {
	return time.Duration(c.NoticeMs) * time.Millisecond
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/mathrag")

	viper.SetEnvPrefix("MATHRAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.baseURL is required")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.maxAttempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.InitialDelayMs <= 0 {
		return fmt.Errorf("retry.initialDelayMs must be positive, got %d", c.Retry.InitialDelayMs)
	}
	if c.Feedback.NoticeMs <= 0 {
		return fmt.Errorf("feedback.noticeMs must be positive")
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("api.baseURL", "http://127.0.0.1:8000/api")
	viper.SetDefault("api.level", "JEE")
	viper.SetDefault("api.userID", "anon")
	viper.SetDefault("api.timeoutSec", 60)

	viper.SetDefault("retry.maxAttempts", 3)
	viper.SetDefault("retry.initialDelayMs", 1000)
	viper.SetDefault("retry.maxDelayMs", 30000)
	viper.SetDefault("retry.multiplier", 2.0)

	viper.SetDefault("feedback.noticeMs", 3000)

	viper.SetDefault("session.defaultQuestion", "What is the sum of the first 10 natural numbers?")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 1048576)
	viper.SetDefault("server.allowedOrigins", []string{"http://localhost:3000"})
	viper.SetDefault("server.development", true)
	viper.SetDefault("server.maxEventsPerMinute", 30)
	viper.SetDefault("server.maxQuestionLength", 5000)
	viper.SetDefault("server.maxCorrectionLength", 20000)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
	viper.SetDefault("logging.outputPath", "stdout")
}
