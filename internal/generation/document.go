package generation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// MaxDocumentBytes caps how much of a single-document reply is read.
const MaxDocumentBytes = 8 << 20

// IsJSONDocument reports whether res is a successful reply carrying one
// JSON document where an event stream was requested.
func IsJSONDocument(res *http.Response) bool {
	if res == nil || res.StatusCode != http.StatusOK {
		return false
	}
	mediaType, _, _ := mime.ParseMediaType(res.Header.Get("Content-Type"))
	return mediaType == "application/json"
}

func readDocument(res *http.Response) ([]byte, error) {
	defer func() { _ = res.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(res.Body, MaxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading document: %v", ErrInvalidResponse, err)
	}
	return body, nil
}

// DocumentCapture takes a single-document reply out of an SDK streaming
// call. The SDK then sees an empty event stream and the adapter decodes
// Body itself. Intercept matches the middleware signature of the
// Stainless-generated SDKs. A DocumentCapture serves one Generate call.
type DocumentCapture struct {
	body []byte
}

// Intercept passes the request on and swallows a JSON document reply.
func (d *DocumentCapture) Intercept(req *http.Request, next func(*http.Request) (*http.Response, error)) (*http.Response, error) {
	res, err := next(req)
	if err != nil || !IsJSONDocument(res) {
		return res, err
	}
	body, err := readDocument(res)
	if err != nil {
		return nil, err
	}
	d.body = body
	res.Header.Set("Content-Type", "text/event-stream")
	res.Body = io.NopCloser(bytes.NewReader(nil))
	res.ContentLength = 0
	return res, nil
}

// Body returns the captured document, or nil when the reply was a stream.
func (d *DocumentCapture) Body() []byte {
	return d.body
}

// documentTransport rewrites a JSON document reply, an object or an array
// of objects, into one SSE data frame per object.
type documentTransport struct {
	base http.RoundTripper
}

// DocumentAsStream wraps base so single-document replies reach a stream
// decoder as SSE frames. A nil base means http.DefaultTransport.
func DocumentAsStream(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &documentTransport{base: base}
}

func (t *documentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.base.RoundTrip(req)
	if err != nil || !IsJSONDocument(res) {
		return res, err
	}
	body, err := readDocument(res)
	if err != nil {
		return nil, err
	}
	frames, err := documentFrames(body)
	if err != nil {
		return nil, err
	}
	res.Header.Set("Content-Type", "text/event-stream")
	res.Body = io.NopCloser(bytes.NewReader(frames))
	res.ContentLength = int64(len(frames))
	return res, nil
}

func documentFrames(body []byte) ([]byte, error) {
	body = bytes.TrimSpace(body)
	docs := []json.RawMessage{body}
	if bytes.HasPrefix(body, []byte("[")) {
		if err := json.Unmarshal(body, &docs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	}

	var out bytes.Buffer
	for _, doc := range docs {
		var compact bytes.Buffer
		if err := json.Compact(&compact, doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		out.WriteString("data: ")
		out.Write(compact.Bytes())
		out.WriteString("\n\n")
	}
	return out.Bytes(), nil
}
