package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	common "github.com/NordCoder/Sitewatch/internal/config/common"
	"github.com/NordCoder/Sitewatch/internal/repository/kafka"
)

var defaultTopics = []string{
	common.TopicCheckRequests,
	common.TopicCheckEvents,
	common.TopicAlerts,
}

func main() {
	broker := pflag.String("broker", env("KAFKA_BROKER", "kafka:9092"), "bootstrap broker")
	topics := pflag.StringSlice("topics", splitEnv("KAFKA_TOPICS", defaultTopics), "topics to create")
	partitions := pflag.Int("partitions", 3, "partitions per topic")
	rf := pflag.Int("replication-factor", 1, "replication factor")
	wait := pflag.Duration("wait", 30*time.Second, "time to wait for each topic to get leaders")
	pflag.Parse()

	l, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, t := range *topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		err := kafka.EnsureTopic(ctx, []string{*broker}, kafka.TopicSpec{
			Name:              t,
			NumPartitions:     *partitions,
			ReplicationFactor: *rf,
			MaxWait:           *wait,
		}, l)
		if err != nil {
			l.Fatal("ensure topic", zap.String("topic", t), zap.Error(err))
		}
	}
	l.Info("kafka-init ok", zap.Strings("topics", *topics))
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitEnv(k string, def []string) []string {
	if v := os.Getenv(k); v != "" {
		return strings.Split(v, ",")
	}
	return def
}
