package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration for the occupancy service.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Level     LevelConfig     `mapstructure:"level"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Evaluator EvaluatorConfig `mapstructure:"evaluator"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
}

// HTTPConfig configures the ingestion and reporting server.
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodySize  int64         `mapstructure:"max_body_size"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	NodeID       string        `mapstructure:"node_id"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// LevelConfig holds the ascending exclusive upper bounds of each level.
// With n breakpoints the estimator produces levels 1..n+1.
type LevelConfig struct {
	Breakpoints []float64 `mapstructure:"breakpoints"`
}

// AlertsConfig bounds alert lifetimes. Durations are whole Units.
type AlertsConfig struct {
	Unit         time.Duration `mapstructure:"unit"`
	MinUnits     int           `mapstructure:"min_units"`
	MaxUnits     int           `mapstructure:"max_units"`
	ArchiveLimit int           `mapstructure:"archive_limit"`
}

type EvaluatorConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	NotifyTimeout time.Duration `mapstructure:"notify_timeout"`
}

// NotifierConfig selects and configures the email transport.
type NotifierConfig struct {
	// Kind is one of log, smtp, relay
	Kind  string      `mapstructure:"kind"`
	From  string      `mapstructure:"from"`
	SMTP  SMTPConfig  `mapstructure:"smtp"`
	Relay RelayConfig `mapstructure:"relay"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// RelayConfig points at an HTTP mail relay accepting JSON messages.
type RelayConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

// KafkaConfig wires the optional measurement consumer and event producer.
type KafkaConfig struct {
	Enabled           bool           `mapstructure:"enabled"`
	Brokers           []string       `mapstructure:"brokers"`
	EventsTopic       string         `mapstructure:"events_topic"`
	MeasurementsTopic string         `mapstructure:"measurements_topic"`
	GroupID           string         `mapstructure:"group_id"`
	QueueSize         int            `mapstructure:"queue_size"`
	Producer          ProducerConfig `mapstructure:"producer"`
}

// ProducerConfig tunes the Kafka writer pool.
type ProducerConfig struct {
	PoolSize     int           `mapstructure:"pool_size"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RequiredAcks int           `mapstructure:"required_acks"`
	Compression  string        `mapstructure:"compression"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodySize:  1 << 20,
			CORSOrigins:  []string{"*"},
		},
		Log: LogConfig{
			Level: "info",
		},
		Level: LevelConfig{
			Breakpoints: []float64{21, 41, 61, 81},
		},
		Alerts: AlertsConfig{
			Unit:         time.Hour,
			MinUnits:     1,
			MaxUnits:     8,
			ArchiveLimit: 1000,
		},
		Evaluator: EvaluatorConfig{
			Interval:      60 * time.Second,
			NotifyTimeout: 10 * time.Second,
		},
		Notifier: NotifierConfig{
			Kind: "log",
			From: "occupancy@localhost",
			SMTP: SMTPConfig{
				Host: "localhost",
				Port: 587,
			},
		},
		Kafka: KafkaConfig{
			Enabled:           false,
			Brokers:           []string{"localhost:9092"},
			EventsTopic:       "occupancy.alert-events",
			MeasurementsTopic: "occupancy.measurements",
			GroupID:           "occupancy",
			QueueSize:         1000,
			Producer: ProducerConfig{
				PoolSize:     2,
				BatchSize:    100,
				BatchTimeout: 100 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				RequiredAcks: 1,
				Compression:  "snappy",
				MaxRetries:   3,
				RetryBackoff: 100 * time.Millisecond,
			},
		},
	}
}

// Load reads configuration from an optional occupancy.{yaml,json,toml} file in
// dir, a .env file in the working directory and OCCUPANCY_* environment
// variables, in increasing order of precedence.
func Load(dir string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, Default())

	v.SetConfigName("occupancy")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix("OCCUPANCY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
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

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", d.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", d.HTTP.IdleTimeout)
	v.SetDefault("http.max_body_size", d.HTTP.MaxBodySize)
	v.SetDefault("http.cors_origins", d.HTTP.CORSOrigins)
	v.SetDefault("http.node_id", d.HTTP.NodeID)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)

	v.SetDefault("level.breakpoints", d.Level.Breakpoints)

	v.SetDefault("alerts.unit", d.Alerts.Unit)
	v.SetDefault("alerts.min_units", d.Alerts.MinUnits)
	v.SetDefault("alerts.max_units", d.Alerts.MaxUnits)
	v.SetDefault("alerts.archive_limit", d.Alerts.ArchiveLimit)

	v.SetDefault("evaluator.interval", d.Evaluator.Interval)
	v.SetDefault("evaluator.notify_timeout", d.Evaluator.NotifyTimeout)

	v.SetDefault("notifier.kind", d.Notifier.Kind)
	v.SetDefault("notifier.from", d.Notifier.From)
	v.SetDefault("notifier.smtp.host", d.Notifier.SMTP.Host)
	v.SetDefault("notifier.smtp.port", d.Notifier.SMTP.Port)
	v.SetDefault("notifier.smtp.username", d.Notifier.SMTP.Username)
	v.SetDefault("notifier.smtp.password", d.Notifier.SMTP.Password)
	v.SetDefault("notifier.relay.url", d.Notifier.Relay.URL)
	v.SetDefault("notifier.relay.token", d.Notifier.Relay.Token)

	v.SetDefault("kafka.enabled", d.Kafka.Enabled)
	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.events_topic", d.Kafka.EventsTopic)
	v.SetDefault("kafka.measurements_topic", d.Kafka.MeasurementsTopic)
	v.SetDefault("kafka.group_id", d.Kafka.GroupID)
	v.SetDefault("kafka.queue_size", d.Kafka.QueueSize)
	v.SetDefault("kafka.producer.pool_size", d.Kafka.Producer.PoolSize)
	v.SetDefault("kafka.producer.batch_size", d.Kafka.Producer.BatchSize)
	v.SetDefault("kafka.producer.batch_timeout", d.Kafka.Producer.BatchTimeout)
	v.SetDefault("kafka.producer.write_timeout", d.Kafka.Producer.WriteTimeout)
	v.SetDefault("kafka.producer.required_acks", d.Kafka.Producer.RequiredAcks)
	v.SetDefault("kafka.producer.compression", d.Kafka.Producer.Compression)
	v.SetDefault("kafka.producer.max_retries", d.Kafka.Producer.MaxRetries)
	v.SetDefault("kafka.producer.retry_backoff", d.Kafka.Producer.RetryBackoff)
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if len(c.Level.Breakpoints) == 0 {
		errs = append(errs, errors.New("level.breakpoints must not be empty"))
	} else if !sort.Float64sAreSorted(c.Level.Breakpoints) || hasDuplicates(c.Level.Breakpoints) {
		errs = append(errs, errors.New("level.breakpoints must be strictly ascending"))
	}
	if c.Alerts.Unit <= 0 {
		errs = append(errs, errors.New("alerts.unit must be positive"))
	}
	if c.Alerts.MinUnits < 1 || c.Alerts.MaxUnits < c.Alerts.MinUnits {
		errs = append(errs, fmt.Errorf("alerts duration bounds [%d, %d] are invalid", c.Alerts.MinUnits, c.Alerts.MaxUnits))
	}
	if c.Evaluator.Interval <= 0 {
		errs = append(errs, errors.New("evaluator.interval must be positive"))
	}
	if c.Evaluator.NotifyTimeout <= 0 {
		errs = append(errs, errors.New("evaluator.notify_timeout must be positive"))
	}

	switch c.Notifier.Kind {
	case "log":
	case "smtp":
		if c.Notifier.SMTP.Host == "" || c.Notifier.SMTP.Port <= 0 {
			errs = append(errs, errors.New("notifier.smtp.host and notifier.smtp.port are required"))
		}
	case "relay":
		if c.Notifier.Relay.URL == "" {
			errs = append(errs, errors.New("notifier.relay.url is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown notifier.kind %q", c.Notifier.Kind))
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
		}
		if c.Kafka.EventsTopic == "" && c.Kafka.MeasurementsTopic == "" {
			errs = append(errs, errors.New("kafka needs at least one of events_topic or measurements_topic"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func hasDuplicates(sorted []float64) bool {
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return true
		}
	}
	return false
}
