// Package cmdserver implements the remote command server: a catalog
// endpoint describing the available commands and an execute endpoint
// dispatching to a DuckDuckGo web search backend and a restricted
// Python code runner.
package cmdserver
