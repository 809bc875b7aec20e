// Package rabbitmq implements task.Broker on RabbitMQ.
//
// Every task gets a queue named streaming_<task_id>, bound to the direct
// exchange "streaming" with the queue name as routing key. Queues carry an
// x-expires argument so a queue nobody consumes is removed by the server.
package rabbitmq
