package config

import (
	"gopkg.in/yaml.v3"
	"os"
)

type SupplierConfig struct {
	ApiKey string `yaml:"api_key"`
	// Base URL of the request/response API channel.
	ApiURL string `yaml:"api_url"`
	// Base URL of the bulk file feed channel.
	FeedURL string `yaml:"feed_url"`
	// Requests per minute allowed against the API channel, per endpoint.
	ApiRateLimit int `yaml:"api_rate_limit"`
	// Feed files are served in Windows-1251 by some suppliers.
	FeedEncoding string `yaml:"feed_encoding"`
}

type SchedulerConfig struct {
	// Time of day for the daily full sync, "15:04" format.
	FullSyncAt string `yaml:"full_sync_at"`
	// Interval between incremental syncs, in hours.
	IncrementalHours int `yaml:"incremental_hours"`
	// Interval between pending-queue drains, in minutes.
	QueueIntervalMinutes int `yaml:"queue_interval_minutes"`
	// Maximum queued part-update requests drained per pass.
	QueueDrainLimit int `yaml:"queue_drain_limit"`
	// Delay before retrying a failed scheduled sync, in minutes.
	RetryDelayMinutes int `yaml:"retry_delay_minutes"`
	// A full sync older than this many hours triggers one at startup.
	FullSyncCeilingHours int `yaml:"full_sync_ceiling_hours"`
}

type AppConfig struct {
	Supplier  SupplierConfig  `yaml:"supplier"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	// Listen address for the metrics endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

func LoadConfig(filename string) (*AppConfig, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	config := &AppConfig{}
	if err := decoder.Decode(config); err != nil {
		return nil, err
	}
	config.applyDefaults()
	return config, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Supplier.ApiRateLimit <= 0 {
		c.Supplier.ApiRateLimit = 60
	}
	if c.Scheduler.FullSyncAt == "" {
		c.Scheduler.FullSyncAt = "02:00"
	}
	if c.Scheduler.IncrementalHours <= 0 {
		c.Scheduler.IncrementalHours = 6
	}
	if c.Scheduler.QueueIntervalMinutes <= 0 {
		c.Scheduler.QueueIntervalMinutes = 5
	}
	if c.Scheduler.QueueDrainLimit <= 0 {
		c.Scheduler.QueueDrainLimit = 25
	}
	if c.Scheduler.RetryDelayMinutes <= 0 {
		c.Scheduler.RetryDelayMinutes = 15
	}
	if c.Scheduler.FullSyncCeilingHours <= 0 {
		c.Scheduler.FullSyncCeilingHours = 48
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9090"
	}
}
