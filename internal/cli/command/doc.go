// Package command defines the plonemetrics-cli commands using urfave/cli/v2:
//
//   - scrape: fetch the exposition feed and show it as a table, JSON or YAML
//   - health: check liveness and readiness
//   - object: read and write objects through the object API
//   - config: show or initialise the CLI settings file
//   - version: show client and server versions
package command
