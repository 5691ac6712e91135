package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Remote
		Connectivity
		Downloads
		Tasks
	}

	HTTP struct {
		Port   int32
		Host   string
		APIKey string // empty disables API key checking
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Remote struct {
		BaseURL string
		Timeout time.Duration
	}
	Connectivity struct {
		ProbeURL      string
		ProbeInterval time.Duration
		ProbeTimeout  time.Duration
	}
	Downloads struct {
		BatchSize        int
		MaxRetries       int
		MaxConcurrent    int
		CacheOnlineReads bool
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
		PruneSchedule     string // Cron format: "0 * * * *" = hourly
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", DefaultPort)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("api_key", "")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Remote Bible source defaults
	v.SetDefault("remote_base_url", DefaultRemoteBaseURL)
	v.SetDefault("remote_timeout", "10s")

	// Connectivity probing defaults
	v.SetDefault("connectivity_probe_url", DefaultRemoteBaseURL+"/health")
	v.SetDefault("connectivity_probe_interval", "30s")
	v.SetDefault("connectivity_probe_timeout", "5s")

	// Download defaults
	v.SetDefault("download_batch_size", 10)
	v.SetDefault("download_max_retries", 3)
	v.SetDefault("download_max_concurrent", 2)
	v.SetDefault("cache_online_reads", false)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")
	v.SetDefault("task_prune_schedule", "0 * * * *") // Hourly at :00

	return &Config{
		HTTP: HTTP{
			Port:   v.GetInt32("PORT"),
			Host:   v.GetString("HOST"),
			APIKey: v.GetString("API_KEY"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Remote: Remote{
			BaseURL: v.GetString("REMOTE_BASE_URL"),
			Timeout: v.GetDuration("REMOTE_TIMEOUT"),
		},
		Connectivity: Connectivity{
			ProbeURL:      v.GetString("CONNECTIVITY_PROBE_URL"),
			ProbeInterval: v.GetDuration("CONNECTIVITY_PROBE_INTERVAL"),
			ProbeTimeout:  v.GetDuration("CONNECTIVITY_PROBE_TIMEOUT"),
		},
		Downloads: Downloads{
			BatchSize:        v.GetInt("DOWNLOAD_BATCH_SIZE"),
			MaxRetries:       v.GetInt("DOWNLOAD_MAX_RETRIES"),
			MaxConcurrent:    v.GetInt("DOWNLOAD_MAX_CONCURRENT"),
			CacheOnlineReads: v.GetBool("CACHE_ONLINE_READS"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
			PruneSchedule:     v.GetString("TASK_PRUNE_SCHEDULE"),
		},
	}
}
