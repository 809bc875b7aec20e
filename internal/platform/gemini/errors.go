package gemini

import "errors"

// ErrNoContents is returned when a request has no user or model turns.
var ErrNoContents = errors.New("gemini request has no contents")
