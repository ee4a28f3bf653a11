// Package ollama adapts a local Ollama daemon to the llm.Provider
// interface via its OpenAI-compatible /v1 endpoint.
package ollama
