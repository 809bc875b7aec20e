// Package task runs generation tasks in the background and tracks their
// lifecycle. A task moves from pending to running and then to finished or
// failed; the Executor is the only writer of that status and of the events
// published on the task's topic.
package task
