// Package config loads the assistant's configuration with the
// precedence defaults -> YAML file -> environment variables.
package config
