// Package redis implements the task registry, the stream lock, the
// conversation message store and a pub/sub task broker on top of Redis.
//
// Key layout:
//
//	task:<id>          task status, SET ... EX <ttl>
//	stream_lock:<id>   stream observer lock, SET ... NX EX <ttl>
//	messages:<id>      conversation or preset history, list of JSON messages
//	streaming:<id>     pub/sub channel carrying task events
package redis
