// Package openaicompat adapts OpenAI-compatible chat completion endpoints
// (OpenAI itself and DeepSeek) to the generation.Adapter contract.
//
// Upstream deltas are incremental; the adapter accumulates them so every
// emitted event carries the cumulative content.
package openaicompat
