// Package domain contains the core entities shared by the task bridge:
// conversation messages, preset generation parameters and the billing view
// of users. It is independent of any storage or transport.
package domain
