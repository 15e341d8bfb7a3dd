// Package config loads service settings from the environment and the
// subscription definitions from a YAML file.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sevigo/metroid/internal/core"
	"github.com/sevigo/metroid/internal/logger"
)

// Config holds the application's configuration values. It is built once at
// startup and passed by reference to every component that needs it.
type Config struct {
	Server            ServerConfig
	Database          DBConfig
	Logging           logger.Config
	NATS              NATSConfig
	Jobs              JobsConfig
	Publish           PublishConfig
	SubscriptionsFile string

	// Loaded from SubscriptionsFile.
	Subscriptions []core.SubscriptionConfig
	PublishTopics []core.TopicPublishConfig
}

// ServerConfig configures the operator HTTP API.
type ServerConfig struct {
	Port    string
	Enabled bool
}

// DBConfig configures the Postgres connection holding failure records.
type DBConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// NATSConfig configures broker connections.
type NATSConfig struct {
	ClientName     string
	ConnectTimeout time.Duration
	MaxReconnects  int
	AckWait        time.Duration
}

// JobsConfig configures the job execution backend.
type JobsConfig struct {
	MaxWorkers     int
	QueueSize      int
	SubmitTimeout  time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JobTimeout     time.Duration
	WebhookURL     string
}

// PublishConfig configures the outbound publisher.
type PublishConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RetryInterval time.Duration
}

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Field string
	Value string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Msg)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.enabled", true)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.username", "metroid")
	v.SetDefault("database.database", "metroid")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("nats.client_name", "metroid")
	v.SetDefault("nats.connect_timeout", "5s")
	v.SetDefault("nats.max_reconnects", 60)
	v.SetDefault("nats.ack_wait", "30s")

	v.SetDefault("jobs.max_workers", 5)
	v.SetDefault("jobs.queue_size", 100)
	v.SetDefault("jobs.submit_timeout", "5s")
	v.SetDefault("jobs.max_retries", 3)
	v.SetDefault("jobs.initial_backoff", "1s")
	v.SetDefault("jobs.max_backoff", "30s")
	v.SetDefault("jobs.job_timeout", "5m")

	v.SetDefault("publish.base_url", "https://api.intility.no/metro")
	v.SetDefault("publish.timeout", "10s")
	v.SetDefault("publish.retry_interval", "0s")

	v.SetDefault("subscriptions_file", "metroid.yml")
}

// LoadConfig reads configuration from METROID_* environment variables and an
// optional config file named by METROID_CONFIG_FILE, applies defaults, loads the subscriptions file and
// validates the result. It uses Viper to handle loading and precedence.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("METROID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path := os.Getenv("METROID_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	cfg := fromViper(v)

	file, err := LoadSubscriptions(cfg.SubscriptionsFile)
	if err != nil {
		return nil, err
	}
	cfg.Subscriptions = file.Subscriptions
	cfg.PublishTopics = file.Publish

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:    v.GetString("server.port"),
			Enabled: v.GetBool("server.enabled"),
		},
		Database: DBConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			Username:        v.GetString("database.username"),
			Password:        v.GetString("database.password"),
			Database:        v.GetString("database.database"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetDuration("database.conn_max_idle_time"),
		},
		Logging: logger.Config{
			Level:  strings.ToLower(v.GetString("logging.level")),
			Format: v.GetString("logging.format"),
			Output: v.GetString("logging.output"),
		},
		NATS: NATSConfig{
			ClientName:     v.GetString("nats.client_name"),
			ConnectTimeout: v.GetDuration("nats.connect_timeout"),
			MaxReconnects:  v.GetInt("nats.max_reconnects"),
			AckWait:        v.GetDuration("nats.ack_wait"),
		},
		Jobs: JobsConfig{
			MaxWorkers:     v.GetInt("jobs.max_workers"),
			QueueSize:      v.GetInt("jobs.queue_size"),
			SubmitTimeout:  v.GetDuration("jobs.submit_timeout"),
			MaxRetries:     v.GetInt("jobs.max_retries"),
			InitialBackoff: v.GetDuration("jobs.initial_backoff"),
			MaxBackoff:     v.GetDuration("jobs.max_backoff"),
			JobTimeout:     v.GetDuration("jobs.job_timeout"),
			WebhookURL:     v.GetString("jobs.webhook_url"),
		},
		Publish: PublishConfig{
			BaseURL:       strings.TrimRight(v.GetString("publish.base_url"), "/"),
			Timeout:       v.GetDuration("publish.timeout"),
			RetryInterval: v.GetDuration("publish.retry_interval"),
		},
		SubscriptionsFile: v.GetString("subscriptions_file"),
	}
}

// Validate checks service settings and publish topics. Subscription and
// handler definitions are validated by the routing registry, which also
// needs the job registry.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port <= 0 || port > 65535 {
		return &ValidationError{Field: "server.port", Value: c.Server.Port, Msg: "must be a port number between 1 and 65535"}
	}
	if c.Jobs.MaxWorkers <= 0 {
		return &ValidationError{Field: "jobs.max_workers", Value: strconv.Itoa(c.Jobs.MaxWorkers), Msg: "must be positive"}
	}
	if c.Jobs.QueueSize < 0 {
		return &ValidationError{Field: "jobs.queue_size", Value: strconv.Itoa(c.Jobs.QueueSize), Msg: "must not be negative"}
	}
	if c.Jobs.MaxRetries < 0 {
		return &ValidationError{Field: "jobs.max_retries", Value: strconv.Itoa(c.Jobs.MaxRetries), Msg: "must not be negative"}
	}
	if c.Jobs.SubmitTimeout <= 0 {
		return &ValidationError{Field: "jobs.submit_timeout", Value: c.Jobs.SubmitTimeout.String(), Msg: "must be positive"}
	}
	if c.Jobs.WebhookURL != "" {
		if err := validateURL(c.Jobs.WebhookURL); err != nil {
			return &ValidationError{Field: "jobs.webhook_url", Value: c.Jobs.WebhookURL, Msg: err.Error()}
		}
	}
	if err := validateURL(c.Publish.BaseURL); err != nil {
		return &ValidationError{Field: "publish.base_url", Value: c.Publish.BaseURL, Msg: err.Error()}
	}
	if c.Publish.RetryInterval < 0 {
		return &ValidationError{Field: "publish.retry_interval", Value: c.Publish.RetryInterval.String(), Msg: "must not be negative"}
	}

	seen := make(map[string]struct{}, len(c.PublishTopics))
	for i, topic := range c.PublishTopics {
		if topic.TopicName == "" {
			return &ValidationError{Field: fmt.Sprintf("publish[%d].topic_name", i), Msg: "must not be empty"}
		}
		if topic.Key == "" {
			return &ValidationError{Field: fmt.Sprintf("publish[%d].key", i), Value: topic.TopicName, Msg: "must not be empty"}
		}
		if _, dup := seen[topic.TopicName]; dup {
			return &ValidationError{Field: fmt.Sprintf("publish[%d].topic_name", i), Value: topic.TopicName, Msg: "duplicate topic"}
		}
		seen[topic.TopicName] = struct{}{}
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	return nil
}

// PublishKey returns the key configured for publishing to topicName.
func (c *Config) PublishKey(topicName string) (string, bool) {
	for _, t := range c.PublishTopics {
		if t.TopicName == topicName {
			return t.Key, true
		}
	}
	return "", false
}
