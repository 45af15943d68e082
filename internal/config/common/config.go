package common_config

import (
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Sitewatch/internal/obs"
	"github.com/NordCoder/Sitewatch/internal/obs/retry"
	"github.com/NordCoder/Sitewatch/internal/outbox"
	kafkax "github.com/NordCoder/Sitewatch/internal/repository/kafka"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type LogFile struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type Log struct {
	Level  string  `mapstructure:"level"`
	Pretty bool    `mapstructure:"pretty"`
	File   LogFile `mapstructure:"file"`
}

func (lc Log) AsLoggerConfig(app App) obs.LogConfig {
	return obs.LogConfig{
		Level:  lc.Level,
		Pretty: lc.Pretty,
		App:    "sitewatch/" + app.Name,
		Env:    app.Env,
		Ver:    app.Version,
		File: obs.LogFile{
			Path:       lc.File.Path,
			MaxSizeMB:  lc.File.MaxSizeMB,
			MaxBackups: lc.File.MaxBackups,
			MaxAgeDays: lc.File.MaxAgeDays,
			Compress:   lc.File.Compress,
		},
	}
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// AsOTELConfig tags traces with the app's version and environment.
func (oc OTEL) AsOTELConfig(app App) *obs.OTELConfig {
	name := oc.ServiceName
	if name == "" {
		name = app.Name
	}
	return &obs.OTELConfig{
		Enable:         oc.Enable,
		Endpoint:       oc.OTLPEndpoint,
		ServiceName:    name,
		ServiceVersion: app.Version,
		Environment:    app.Env,
		SampleRatio:    oc.SampleRatio,
	}
}

type KafkaIn struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	GroupID       string   `mapstructure:"group_id"`
	Partitions    int      `mapstructure:"partitions"`
	FromBeginning bool     `mapstructure:"from_beginning"`
}

func (k KafkaIn) AsConsumerConfig(log *zap.Logger) *kafkax.ConsumerConfig {
	return &kafkax.ConsumerConfig{
		Brokers:       k.Brokers,
		GroupID:       k.GroupID,
		Topic:         k.Topic,
		Partitions:    k.Partitions,
		FromBeginning: k.FromBeginning,
		Logger:        log,
	}
}

type KafkaOut struct {
	Brokers    []string `mapstructure:"brokers"`
	Topic      string   `mapstructure:"topic"`
	Partitions int      `mapstructure:"partitions"`
}

// Worker bounds message processing and the per-message retry.
type Worker struct {
	Concurrency   int           `mapstructure:"concurrency"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryBase     time.Duration `mapstructure:"retry_base"`
	RetryMax      time.Duration `mapstructure:"retry_max"`
}

func (w Worker) Policy(name string, log *zap.Logger) retry.Policy {
	return retry.JobPolicy(name, w.RetryAttempts, w.RetryBase, w.RetryMax, log)
}

type Outbox struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	Wait          time.Duration `mapstructure:"wait"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
}

func (o Outbox) AsRunnerConfig() outbox.Config {
	return outbox.Config{
		Workers:       o.Workers,
		BatchSize:     o.BatchSize,
		Wait:          o.Wait,
		InProgressTTL: o.InProgressTTL,
	}
}

type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
