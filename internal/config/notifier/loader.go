package notifier_config

import (
	common "github.com/NordCoder/Sitewatch/internal/config/common"
)

func Load(path string) (*Config, error) {
	v, err := common.NewViper(path)
	if err != nil {
		return nil, err
	}
	common.SetDefaults(v, "notifier")
	common.SetWorkerDefaults(v, 1)
	common.SetKafkaDefaults(v, "kafka_in", common.TopicAlerts)
	v.SetDefault("kafka_in.group_id", "notifier")

	v.SetDefault("smtp.enable", true)
	v.SetDefault("smtp.addr", "localhost:1025")
	v.SetDefault("smtp.from", "noreply@sitewatch.dev")
	v.SetDefault("smtp.use_tls", false)
	v.SetDefault("smtp.timeout", "5s")
	v.SetDefault("smtp.subj_prefix", "[Sitewatch]")

	v.SetDefault("notify.email_to", []string{"ops@localhost"})
	v.SetDefault("notify.shoutrrr_urls", []string{})

	v.SetDefault("server.metrics_addr", ":8084")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.DB.DSN == "" {
		return nil, common.ErrConfig("db.dsn is required")
	}
	if cfg.SMTP.Enable && len(cfg.Notify.EmailTo) == 0 {
		return nil, common.ErrConfig("notify.email_to is required when smtp is enabled")
	}
	if !cfg.SMTP.Enable && len(cfg.Notify.ShoutrrrURLs) == 0 {
		return nil, common.ErrConfig("no notification channel configured")
	}
	cfg.Alerting = cfg.Alerting.WithDefaults()
	return &cfg, nil
}
