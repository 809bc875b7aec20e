// Package api exposes the task lifecycle over HTTP: admission, status
// lookup, deletion and the server-sent event stream of a running task.
// Handlers translate service and task errors into status codes through
// MapErrorToStatusCode and never leak internal error text to clients.
package api
