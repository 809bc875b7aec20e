package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxRequestBodyBytes bounds the JSON bodies the API accepts.
const MaxRequestBodyBytes = 1 << 20

// ErrMalformedBody is returned by DecodeJSON for bodies that are not a
// single JSON document.
var ErrMalformedBody = errors.New("malformed request body")

// DecodeJSON decodes exactly one JSON document from the request body into v.
// Input beyond MaxRequestBodyBytes is never read.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxRequestBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON document", ErrMalformedBody)
	}
	return nil
}
