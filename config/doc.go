// Package config holds the process-wide configuration for the run engine
// and its backends, loaded with precedence defaults, then YAML file, then
// environment variables.
package config
