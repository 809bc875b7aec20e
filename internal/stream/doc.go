// Package stream relays a task's events to one HTTP observer as
// server-sent events.
package stream
