package check_worker_config

import (
	"time"

	common "github.com/NordCoder/Sitewatch/internal/config/common"
	"github.com/NordCoder/Sitewatch/internal/domain/alert"
	pginfra "github.com/NordCoder/Sitewatch/internal/repository/postgres"
)

type HTTPCheck struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
	MaxRedirects int           `mapstructure:"max_redirects"`
	VerifyTLS    bool          `mapstructure:"verify_tls"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

type Config struct {
	App      common.App      `mapstructure:"app"`
	DB       pginfra.Config  `mapstructure:"db"`
	In       common.KafkaIn  `mapstructure:"kafka_in"`
	Out      common.KafkaOut `mapstructure:"kafka_out"`
	HTTP     HTTPCheck       `mapstructure:"http"`
	Worker   common.Worker   `mapstructure:"worker"`
	Outbox   common.Outbox   `mapstructure:"outbox"`
	Server   common.Server   `mapstructure:"server"`
	Log      common.Log      `mapstructure:"log"`
	OTEL     common.OTEL     `mapstructure:"otel"`
	Alerting alert.Policy    `mapstructure:"alerting"`
}
