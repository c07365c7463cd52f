// Package main provides the entry point for plonemetrics-cli.
//
// plonemetrics-cli fetches and pretty-prints the exposition feed of a
// plonemetrics-server, checks its health and reads or writes objects
// through its object API.
//
// Usage:
//
//	plonemetrics-cli --server 127.0.0.1:9102 scrape
//	plonemetrics-cli -o json scrape --filter cache
//	plonemetrics-cli health
package main
