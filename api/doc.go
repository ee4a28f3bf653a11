// Package api defines the HTTP wire contract of the assistant: the
// assist request/response shapes and their validation rules.
package api
