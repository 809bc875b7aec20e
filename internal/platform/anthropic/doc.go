// Package anthropic adapts the Anthropic Messages API to generation.Adapter.
package anthropic
