// Package pubsub provides the in-process implementation of task topics used
// when the service runs as a single instance. Distributed implementations
// backed by Redis and RabbitMQ live under internal/platform.
package pubsub
