// Package exposition renders and parses the Prometheus text exposition
// format used by the metrics endpoint.
//
// The renderer is byte-stable: labels keep their insertion order, an empty
// label set still renders as "name{}", and HELP/TYPE lines are only written
// when set. The parser reads the same grammar back and is used by the CLI.
package exposition
