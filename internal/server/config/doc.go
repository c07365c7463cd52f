// Package config provides the plonemetrics-server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: masking of secrets for logging
//
// Configuration is loaded via internal/infra/confloader from a YAML file
// and PLONEMETRICS_ prefixed environment variables.
package config
