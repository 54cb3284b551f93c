package httpmsg

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Response is an inbound HTTP response message.
type Response struct {
	message

	StatusCode int
	Reason     string
}

// NewResponse returns an empty, invalid response.
func NewResponse() *Response {
	return &Response{message: newMessage()}
}

// Valid reports whether a status code was parsed.
func (r *Response) Valid() bool {
	return r.StatusCode != 0
}

// OK reports whether the status code is 200.
func (r *Response) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Server returns the value of the Server header, or "".
func (r *Response) Server() string {
	return r.Header("Server")
}

// StartLine renders the status line, e.g. "HTTP/1.1 200 OK".
func (r *Response) StartLine() string {
	return fmt.Sprintf("%s %d %s", r.Version, r.StatusCode, r.Reason)
}

// Serialize emits the response as wire bytes. Chunk framing is never
// re-emitted; a decoded chunked body serializes with Content-Length.
func (r *Response) Serialize() []byte {
	return r.message.serialize(r.StartLine())
}

// Parse consumes a full response message, accepting CRLF or LF line
// endings and decoding chunked transfer encoding into the body.
func (r *Response) Parse(raw []byte) error {
	startLine, headerLines, body, err := splitMessage(raw)
	if err != nil {
		return err
	}

	fields := strings.SplitN(startLine, " ", 3)
	if len(fields) < 2 {
		return fmt.Errorf("malformed status line %q", startLine)
	}

	version, err := ParseVersion(fields[0])
	if err != nil {
		return err
	}

	code, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil || code < 100 || code > 599 {
		return fmt.Errorf("bad status code in %q", startLine)
	}

	r.message = newMessage()
	r.Version = version
	r.StatusCode = code
	if len(fields) == 3 {
		r.Reason = strings.TrimSpace(fields[2])
	}
	if r.Reason == "" {
		r.Reason = http.StatusText(code)
	}

	if err := r.parseHeaders(headerLines); err != nil {
		return err
	}
	return r.parseBody(body)
}
