// Package gemini adapts Google's Gemini API to the generation.Adapter
// contract using the google.golang.org/genai client.
//
// Roles are mapped onto Gemini's two-role model: assistant messages become
// "model" turns and system messages are sent as the system instruction.
// Streamed chunks carry incremental text which the adapter accumulates.
//
// A request is retried with exponential backoff when it fails before any
// content reaches the caller. Once a delta has been emitted the failure is
// returned as is.
package gemini
