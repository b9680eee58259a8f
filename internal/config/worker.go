package config

import "time"

type WorkerConfig struct {
	Count        int
	PollInterval time.Duration
}

func DefaultHistoryWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		Count:        getEnvIntWithDefault("HISTORY_WORKER_COUNT", 3),
		PollInterval: getEnvDurationWithDefault("HISTORY_WORKER_POLL_INTERVAL", 5*time.Second),
	}
}

// Archive runs are heavy and rare, one goroutine is enough.
func DefaultArchiveWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		Count:        getEnvIntWithDefault("ARCHIVE_WORKER_COUNT", 1),
		PollInterval: getEnvDurationWithDefault("ARCHIVE_WORKER_POLL_INTERVAL", 10*time.Second),
	}
}
