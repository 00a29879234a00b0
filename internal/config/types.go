// Package config loads the sqlgrammar tool configuration.
//
// Sources are layered, lowest precedence first: built-in defaults, the
// sqlgrammar.yaml (or .yml) file found in the working directory or above it,
// SQLGRAMMAR_* environment variables and explicitly set command-line flags.
package config

import "time"

// Config holds all tool configuration options.
type Config struct {
	Dialect     string       `koanf:"dialect"`
	Branches    []string     `koanf:"branches"`
	GrammarDirs []string     `koanf:"grammar_dirs"`
	LogLevel    string       `koanf:"log_level"`
	Verbose     bool         `koanf:"verbose"`
	Output      string       `koanf:"output"`
	Server      ServerConfig `koanf:"server"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
	// File is the config file that was loaded, if any.
	File string `koanf:"-"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}
