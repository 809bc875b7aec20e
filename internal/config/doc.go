// Package config loads the server configuration from an optional YAML file
// and CHATRELAY_* environment variables, and validates it before any
// connection is opened.
package config
