package notifier_config

import (
	"time"

	common "github.com/NordCoder/Sitewatch/internal/config/common"
	"github.com/NordCoder/Sitewatch/internal/domain/alert"
	pginfra "github.com/NordCoder/Sitewatch/internal/repository/postgres"
)

type SMTP struct {
	Enable     bool          `mapstructure:"enable"`
	Addr       string        `mapstructure:"addr"`
	From       string        `mapstructure:"from"`
	User       string        `mapstructure:"user"`
	Password   string        `mapstructure:"password"`
	UseTLS     bool          `mapstructure:"use_tls"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SubjPrefix string        `mapstructure:"subj_prefix"`
}

type Notify struct {
	EmailTo []string `mapstructure:"email_to"`
	// ShoutrrrURLs are service URLs such as slack://token@channel.
	ShoutrrrURLs []string `mapstructure:"shoutrrr_urls"`
}

type Config struct {
	App      common.App     `mapstructure:"app"`
	DB       pginfra.Config `mapstructure:"db"`
	In       common.KafkaIn `mapstructure:"kafka_in"`
	SMTP     SMTP           `mapstructure:"smtp"`
	Notify   Notify         `mapstructure:"notify"`
	Worker   common.Worker  `mapstructure:"worker"`
	Server   common.Server  `mapstructure:"server"`
	Log      common.Log     `mapstructure:"log"`
	OTEL     common.OTEL    `mapstructure:"otel"`
	Alerting alert.Policy   `mapstructure:"alerting"`
}
