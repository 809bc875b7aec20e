// Package events decouples task admission from task construction. The
// admission service emits a TaskRequestEvent and registered handlers build
// and queue the matching background task.
package events
