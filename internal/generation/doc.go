// Package generation defines the contract between the task executor and
// external text-generation providers. Adapters for each upstream live under
// internal/platform and report progress as a sequence of Events on a
// channel supplied by the caller.
package generation
