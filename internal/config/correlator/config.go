package correlator_config

import (
	common "github.com/NordCoder/Sitewatch/internal/config/common"
	"github.com/NordCoder/Sitewatch/internal/domain/alert"
	pginfra "github.com/NordCoder/Sitewatch/internal/repository/postgres"
)

type Config struct {
	App      common.App      `mapstructure:"app"`
	DB       pginfra.Config  `mapstructure:"db"`
	In       common.KafkaIn  `mapstructure:"kafka_in"`
	Out      common.KafkaOut `mapstructure:"kafka_out"`
	Worker   common.Worker   `mapstructure:"worker"`
	Outbox   common.Outbox   `mapstructure:"outbox"`
	Server   common.Server   `mapstructure:"server"`
	Log      common.Log      `mapstructure:"log"`
	OTEL     common.OTEL     `mapstructure:"otel"`
	Alerting alert.Policy    `mapstructure:"alerting"`
}

func Load(path string) (*Config, error) {
	v, err := common.NewViper(path)
	if err != nil {
		return nil, err
	}
	common.SetDefaults(v, "correlator")
	common.SetWorkerDefaults(v, 1)
	common.SetOutboxDefaults(v)
	common.SetKafkaDefaults(v, "kafka_in", common.TopicCheckEvents)
	common.SetKafkaDefaults(v, "kafka_out", common.TopicAlerts)
	v.SetDefault("kafka_in.group_id", "correlator")
	v.SetDefault("server.metrics_addr", ":8085")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.DB.DSN == "" {
		return nil, common.ErrConfig("db.dsn is required")
	}
	cfg.Alerting = cfg.Alerting.WithDefaults()
	return &cfg, nil
}
