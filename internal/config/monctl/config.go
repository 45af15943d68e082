package monctl_config

import (
	"time"

	common "github.com/NordCoder/Sitewatch/internal/config/common"
	pginfra "github.com/NordCoder/Sitewatch/internal/repository/postgres"
)

type Config struct {
	App       common.App      `mapstructure:"app"`
	DB        pginfra.Config  `mapstructure:"db"`
	Kafka     common.KafkaOut `mapstructure:"kafka"`
	Log       common.Log      `mapstructure:"log"`
	Retention time.Duration   `mapstructure:"retention"`
	// HealthAddr is the scheduler's gRPC ops address.
	HealthAddr string `mapstructure:"health_addr"`
	Actor      string `mapstructure:"actor"`
}

func Load(path string) (*Config, error) {
	v, err := common.NewViper(path)
	if err != nil {
		return nil, err
	}
	common.SetDefaults(v, "monctl")
	common.SetKafkaDefaults(v, "kafka", common.TopicCheckRequests)
	v.SetDefault("log.level", "warn")
	v.SetDefault("retention", "2160h")
	v.SetDefault("health_addr", "localhost:9090")
	v.SetDefault("actor", "monctl")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
