// Package config holds the plonemetrics-cli settings file
// (~/.plonemetrics/cli.yaml by default).
//
// Precedence, lowest first: built-in defaults, the settings file,
// PLONEMETRICS_* environment variables, command-line flags. The last two are
// applied by the command package through urfave/cli.
package config
