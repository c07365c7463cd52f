// Package shutdown coordinates graceful termination of plonemetrics-server.
//
// Hooks registered with OnShutdown run in reverse registration order once
// SIGINT or SIGTERM arrives, Trigger is called, or the context given to
// WaitContext is cancelled. All hooks share one deadline.
package shutdown
