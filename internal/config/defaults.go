package config

import "time"

// Default configuration values.
const (
	DefaultDialect         = "sql"
	DefaultLogLevel        = "warn"
	DefaultOutput          = "auto" // TTY=text, otherwise json
	DefaultAddr            = "127.0.0.1:7357"
	DefaultShutdownTimeout = 5 * time.Second
)

// Output modes.
const (
	OutputAuto = "auto"
	OutputText = "text"
	OutputJSON = "json"
)

func defaults() map[string]any {
	return map[string]any{
		"dialect":                 DefaultDialect,
		"log_level":               DefaultLogLevel,
		"verbose":                 false,
		"output":                  DefaultOutput,
		"server.addr":             DefaultAddr,
		"server.shutdown_timeout": DefaultShutdownTimeout.String(),
	}
}

// Default returns the configuration used when nothing is loaded.
func Default() *Config {
	return &Config{
		Dialect:  DefaultDialect,
		LogLevel: DefaultLogLevel,
		Output:   DefaultOutput,
		Server: ServerConfig{
			Addr:            DefaultAddr,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
	}
}
