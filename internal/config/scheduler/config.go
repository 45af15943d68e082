package scheduler_config

import (
	"time"

	common "github.com/NordCoder/Sitewatch/internal/config/common"
	"github.com/NordCoder/Sitewatch/internal/domain/alert"
	"github.com/NordCoder/Sitewatch/internal/obs"
	pginfra "github.com/NordCoder/Sitewatch/internal/repository/postgres"
)

type SchedCfg struct {
	BatchLimit       int           `mapstructure:"batch_limit"`
	Retention        time.Duration `mapstructure:"retention"`
	AggregateWorkers int           `mapstructure:"aggregate_workers"`
	HealthInterval   time.Duration `mapstructure:"health_interval"`
	StaleAfter       time.Duration `mapstructure:"stale_after"`
}

// Jobs holds one cron spec per job; an empty spec disables the job.
type Jobs struct {
	UptimeDispatch   string `mapstructure:"uptime_dispatch"`
	SSLDispatch      string `mapstructure:"ssl_dispatch"`
	AggregateHourly  string `mapstructure:"aggregate_hourly"`
	AggregateDaily   string `mapstructure:"aggregate_daily"`
	AggregateWeekly  string `mapstructure:"aggregate_weekly"`
	AggregateMonthly string `mapstructure:"aggregate_monthly"`
	PruneResults     string `mapstructure:"prune_results"`
}

type Ops struct {
	GRPCAddr string `mapstructure:"grpc_addr"`
	HTTPAddr string `mapstructure:"http_addr"`
}

func (o Ops) AsOpsConfig() obs.OpsConfig {
	return obs.OpsConfig{GRPCAddr: o.GRPCAddr, HTTPAddr: o.HTTPAddr}
}

type Config struct {
	App      common.App      `mapstructure:"app"`
	DB       pginfra.Config  `mapstructure:"db"`
	Kafka    common.KafkaOut `mapstructure:"kafka"`
	Sched    SchedCfg        `mapstructure:"sched"`
	Jobs     Jobs            `mapstructure:"jobs"`
	Ops      Ops             `mapstructure:"ops"`
	Log      common.Log      `mapstructure:"log"`
	OTEL     common.OTEL     `mapstructure:"otel"`
	Alerting alert.Policy    `mapstructure:"alerting"`
}
