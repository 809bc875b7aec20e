// Package postgres implements the relational stores on PostgreSQL through
// the pgx database/sql driver: conversation metadata (chats joined with
// their presets), the billing view of users and the credit ledger.
//
// The schema lives in the embedded goose migrations under migrations/.
package postgres
