// Package mcp implements the client side of the remote command
// protocol: a catalog-driven HTTP client that discovers the server's
// commands once per client lifetime, validates arguments locally
// against each command's parameter schema, and dispatches execution
// requests. Discovered commands can be projected into llm tool schemas
// so agents call them through native function calling.
package mcp
