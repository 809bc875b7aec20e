// Package store defines the persistence interfaces used by the task bridge:
// conversations and their presets, message history, users and the credit
// ledger. Implementations live under internal/platform.
package store
