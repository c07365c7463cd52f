// Package confloader loads layered configuration with koanf.
//
// Sources, lowest priority first:
//
//  1. Defaults prefilled in the target struct
//  2. YAML configuration file
//  3. Environment aliases (for example SERVICE_NAME)
//  4. Prefixed environment variables
//
// Prefixed variables separate sections with a double underscore, so
// PLONEMETRICS_METRICS__SERVICE_NAME sets metrics.service_name.
//
// Watcher reports changes of the configuration file through fsnotify so
// the server can apply the hot-reloadable settings.
package confloader
