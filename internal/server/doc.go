// Package server manages the lifecycle of the process's HTTP servers:
// non-blocking start, asynchronous error reporting, and signal-driven
// graceful shutdown for the API and metrics listeners together.
package server
