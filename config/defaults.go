// Sensible defaults for every configuration section.
package config

import "time"

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	return &Config{
		Engine:    DefaultEngineConfig(),
		Results:   DefaultResultsConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Events:    DefaultEventsConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultEngineConfig returns the default task knobs: no retries, no
// timeout, results persisted.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultRetries:     0,
		DefaultRetryDelay:  0,
		DefaultRetryJitter: 0,
		DefaultTimeout:     0,
		PersistResults:     true,
	}
}

// DefaultResultsConfig returns the default result store selection.
func DefaultResultsConfig() ResultsConfig {
	return ResultsConfig{
		Backend: "memory",
	}
}

// DefaultRedisConfig returns the default Redis client settings.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig returns the default orchestrator database settings.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Name:            "taskflow.db",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}

// DefaultEventsConfig returns the default event worker settings.
func DefaultEventsConfig() EventsConfig {
	return EventsConfig{
		Enabled:         false,
		Channel:         "taskflow:events",
		BufferSize:      1024,
		PublishTimeout:  5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// DefaultLogConfig returns the default logging settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default telemetry settings.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "taskflow",
		SampleRate:   1.0,
	}
}
