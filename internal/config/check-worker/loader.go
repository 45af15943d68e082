package check_worker_config

import (
	common "github.com/NordCoder/Sitewatch/internal/config/common"
)

func Load(path string) (*Config, error) {
	v, err := common.NewViper(path)
	if err != nil {
		return nil, err
	}
	common.SetDefaults(v, "check-worker")
	common.SetWorkerDefaults(v, 16)
	common.SetOutboxDefaults(v)
	common.SetKafkaDefaults(v, "kafka_in", common.TopicCheckRequests)
	common.SetKafkaDefaults(v, "kafka_out", common.TopicCheckEvents)
	v.SetDefault("kafka_in.group_id", "check-worker")

	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.user_agent", "Sitewatch/1.0")
	v.SetDefault("http.max_redirects", 5)
	v.SetDefault("http.verify_tls", true)
	v.SetDefault("http.max_body_bytes", 2<<20)

	v.SetDefault("server.metrics_addr", ":8083")

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
