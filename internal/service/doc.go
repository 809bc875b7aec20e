// Package service contains the application use cases that sit between the
// HTTP layer and the task machinery. TaskService admits generation tasks:
// it checks conversation ownership and credits synchronously, records the
// task as pending and hands it to the background runner through the event
// emitter. Generation failures never surface here; they are recorded on the
// task itself.
package service
