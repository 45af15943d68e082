package scheduler_config

import (
	common "github.com/NordCoder/Sitewatch/internal/config/common"
)

func Load(path string) (*Config, error) {
	v, err := common.NewViper(path)
	if err != nil {
		return nil, err
	}
	common.SetDefaults(v, "scheduler")
	common.SetKafkaDefaults(v, "kafka", common.TopicCheckRequests)

	v.SetDefault("sched.batch_limit", 100)
	v.SetDefault("sched.retention", "2160h")
	v.SetDefault("sched.aggregate_workers", 4)
	v.SetDefault("sched.health_interval", "10s")
	v.SetDefault("sched.stale_after", "2m")

	v.SetDefault("jobs.uptime_dispatch", "@every 30s")
	v.SetDefault("jobs.ssl_dispatch", "0 6,18 * * *")
	v.SetDefault("jobs.aggregate_hourly", "5 * * * *")
	v.SetDefault("jobs.aggregate_daily", "15 0 * * *")
	v.SetDefault("jobs.aggregate_weekly", "30 0 * * 1")
	v.SetDefault("jobs.aggregate_monthly", "45 0 1 * *")
	v.SetDefault("jobs.prune_results", "0 3 * * *")

	v.SetDefault("ops.grpc_addr", ":9090")
	v.SetDefault("ops.http_addr", ":8082")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.DB.DSN == "" {
		return nil, common.ErrConfig("db.dsn is required")
	}
	if cfg.Sched.Retention <= 0 {
		return nil, common.ErrConfig("sched.retention must be positive")
	}
	cfg.Alerting = cfg.Alerting.WithDefaults()
	return &cfg, nil
}
