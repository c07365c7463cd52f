// Package output formats plonemetrics-cli results as a table, JSON or YAML.
package output
