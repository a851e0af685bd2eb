package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/davidleathers/dutch-auction-exchange/internal/api/websocket"
	"github.com/davidleathers/dutch-auction-exchange/internal/infrastructure/config"
)

// Process level metrics for the DAX API. Request metrics live with the
// REST middleware; auction and settlement metrics go through OpenTelemetry.

func registerBuildInfo(cfg *config.Config) {
	promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dax",
		Name:      "build_info",
		Help:      "Build and runtime configuration of the running API",
		ConstLabels: prometheus.Labels{
			"version":     cfg.Version,
			"environment": cfg.Environment,
			"driver":      cfg.Database.Driver,
			"currency":    cfg.Auction.CurrencySymbol,
		},
	}).Set(1)
}

func registerHubMetrics(hub *websocket.EventHub) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "dax",
		Subsystem: "websocket",
		Name:      "connected_clients",
		Help:      "Number of event stream subscribers",
	}, func() float64 { return float64(hub.ClientCount()) })
}

func registerRedisMetrics(client *redis.Client) {
	stat := func(name, help string, read func(*redis.PoolStats) uint32) {
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "dax",
			Subsystem: "redis_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(client.PoolStats())) })
	}

	stat("total_connections", "Connections in the redis pool", func(s *redis.PoolStats) uint32 { return s.TotalConns })
	stat("idle_connections", "Idle connections in the redis pool", func(s *redis.PoolStats) uint32 { return s.IdleConns })
	stat("hits", "Times a free connection was found in the pool", func(s *redis.PoolStats) uint32 { return s.Hits })
	stat("misses", "Times a free connection was not found in the pool", func(s *redis.PoolStats) uint32 { return s.Misses })
	stat("timeouts", "Times a wait for a connection timed out", func(s *redis.PoolStats) uint32 { return s.Timeouts })
}
