// Package conf loads hivewatch settings from a YAML file, HIVEWATCH_*
// environment variables and built-in defaults.
package conf

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // alerting.timezone must resolve on minimal images

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. HIVEWATCH_DATABASE_DSN.
const EnvPrefix = "HIVEWATCH"

// Settings is the full runtime configuration.
type Settings struct {
	Database DatabaseSettings
	Log      LogSettings
	Alerting AlertingSettings
	Locking  LockingSettings
	Redis    RedisSettings
	Feed     FeedSettings
	Server   ServerSettings
}

// DatabaseSettings selects the gorm dialector.
type DatabaseSettings struct {
	Driver       string // sqlite, mysql or postgres
	DSN          string
	MaxOpenConns int
}

type LogSettings struct {
	Level  string
	Format string
}

// AlertingSettings controls the evaluation engine.
type AlertingSettings struct {
	Interval          Duration // sweep cadence
	LookbackWindow    Duration // max age of a reading to be evaluated
	DedupWindow       Duration // unresolved alerts younger than this suppress new ones
	Concurrency       int
	Timezone          string // calendar used for the 24h weight comparison
	ThresholdCacheTTL Duration
	Retention         RetentionSettings
}

type RetentionSettings struct {
	ResolvedDays int
	Interval     Duration
}

// LockingSettings selects how alert creation is serialized per hive and kind.
type LockingSettings struct {
	Backend string // memory or redis
	TTL     Duration
}

type RedisSettings struct {
	Addr     string
	Password string
	DB       int
}

// FeedSettings configures the optional broker announcement of new alerts.
type FeedSettings struct {
	Backend string // none, mqtt or kafka
	MQTT    MQTTFeedSettings
	Kafka   KafkaFeedSettings
}

type MQTTFeedSettings struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         int
}

type KafkaFeedSettings struct {
	Brokers []string
	Topic   string
}

// ServerSettings configures the ops HTTP listener.
type ServerSettings struct {
	Enabled bool
	Listen  string
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "hivewatch.db")
	v.SetDefault("database.maxopenconns", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("alerting.interval", "10m")
	v.SetDefault("alerting.lookbackwindow", "10m")
	v.SetDefault("alerting.dedupwindow", "60m")
	v.SetDefault("alerting.concurrency", 1)
	v.SetDefault("alerting.timezone", "UTC")
	v.SetDefault("alerting.thresholdcachettl", "0s")
	v.SetDefault("alerting.retention.resolveddays", 30)
	v.SetDefault("alerting.retention.interval", "24h")

	v.SetDefault("locking.backend", "memory")
	v.SetDefault("locking.ttl", "30s")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("feed.backend", "none")
	v.SetDefault("feed.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("feed.mqtt.clientid", "hivewatch")
	v.SetDefault("feed.mqtt.username", "")
	v.SetDefault("feed.mqtt.password", "")
	v.SetDefault("feed.mqtt.topicprefix", "hivewatch/alerts")
	v.SetDefault("feed.mqtt.qos", 1)
	v.SetDefault("feed.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("feed.kafka.topic", "hivewatch.alerts")

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.listen", ":9464")
}

// Load reads configuration. An empty path searches ./hivewatch.yaml and
// $HOME/.config/hivewatch/hivewatch.yaml; a missing file is not an error
// unless path was given explicitly.
func Load(path string) (*Settings, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("hivewatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/hivewatch")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects settings the engine cannot run with.
func (s *Settings) Validate() error {
	var errs []error

	switch s.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", s.Database.Driver))
	}
	if s.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn: must not be empty"))
	}

	a := s.Alerting
	if a.Interval <= 0 {
		errs = append(errs, errors.New("alerting.interval: must be positive"))
	}
	if a.LookbackWindow <= 0 {
		errs = append(errs, errors.New("alerting.lookbackwindow: must be positive"))
	}
	if a.DedupWindow <= 0 {
		errs = append(errs, errors.New("alerting.dedupwindow: must be positive"))
	}
	if a.Concurrency < 1 {
		errs = append(errs, errors.New("alerting.concurrency: must be at least 1"))
	}
	if a.ThresholdCacheTTL < 0 {
		errs = append(errs, errors.New("alerting.thresholdcachettl: must not be negative"))
	}
	if _, err := time.LoadLocation(a.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("alerting.timezone: %w", err))
	}
	if a.Retention.ResolvedDays < 0 {
		errs = append(errs, errors.New("alerting.retention.resolveddays: must not be negative"))
	}

	switch s.Locking.Backend {
	case "memory":
	case "redis":
		if s.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr: required for redis locking"))
		}
		if s.Locking.TTL <= 0 {
			errs = append(errs, errors.New("locking.ttl: must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("locking.backend: unsupported backend %q", s.Locking.Backend))
	}

	switch s.Feed.Backend {
	case "none":
	case "mqtt":
		if s.Feed.MQTT.Broker == "" {
			errs = append(errs, errors.New("feed.mqtt.broker: must not be empty"))
		}
		if s.Feed.MQTT.QoS < 0 || s.Feed.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("feed.mqtt.qos: %d out of range", s.Feed.MQTT.QoS))
		}
	case "kafka":
		if len(s.Feed.Kafka.Brokers) == 0 || s.Feed.Kafka.Topic == "" {
			errs = append(errs, errors.New("feed.kafka: brokers and topic are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("feed.backend: unsupported backend %q", s.Feed.Backend))
	}

	if s.Server.Enabled && s.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen: must not be empty"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Location returns the configured alerting time zone. Validate has
// already checked it, so UTC is only a fallback for hand-built Settings.
func (a AlertingSettings) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
