// Package handlers implements the assistant's HTTP endpoints: the
// assist workflow entry point and the health probe.
package handlers
