package httpmsg

import (
	"fmt"
	"regexp"
	"strings"
)

// URIRoot is the request target used when no URI is supplied or the
// supplied one fails validation.
const URIRoot = "/"

// UserAgent identifies outbound probe requests.
const UserAgent = "SvcScan/1.0"

var uriRegexp = regexp.MustCompile(`^([!#$&-;=?-\[\]_a-z~]|%[0-9a-fA-F]{2})+$`)

var knownMethods = map[string]struct{}{
	"GET": {}, "HEAD": {}, "POST": {}, "PUT": {},
	"DELETE": {}, "OPTIONS": {}, "PATCH": {}, "TRACE": {},
}

// Request is an outbound (or parsed) HTTP request message.
type Request struct {
	message

	Method string
	URI    string
}

// NewRequest builds a request for the given host with the default probe
// headers attached. An invalid or empty URI falls back to the root
// document.
func NewRequest(method, host, uri string) *Request {
	r := &Request{
		message: newMessage(),
		Method:  strings.ToUpper(method),
		URI:     URIRoot,
	}

	r.AddHeader("Accept", "text/*, application/json, application/xml")
	r.AddHeader("Connection", "close")
	r.AddHeader("User-Agent", UserAgent)

	if host != "" {
		r.AddHeader("Host", host)
	}
	r.SetURI(uri)

	return r
}

// SetURI applies uri when it passes validation, otherwise the root URI.
func (r *Request) SetURI(uri string) {
	if uri == "" || !ValidURI(uri) {
		uri = URIRoot
	}
	r.URI = uri
}

// ValidURI reports whether uri is an acceptable HTTP request target.
func ValidURI(uri string) bool {
	return uriRegexp.MatchString(uri)
}

// Valid reports whether the request has a known method, a non-empty
// Host header and a well-formed URI.
func (r *Request) Valid() bool {
	if _, ok := knownMethods[r.Method]; !ok {
		return false
	}
	return r.Header("Host") != "" && ValidURI(r.URI)
}

// StartLine renders the request line, e.g. "HEAD / HTTP/1.1".
func (r *Request) StartLine() string {
	return fmt.Sprintf("%s %s %s", r.Method, r.URI, r.Version)
}

// Serialize emits the request as wire bytes.
func (r *Request) Serialize() []byte {
	return r.message.serialize(r.StartLine())
}

// Parse consumes a full request message, accepting CRLF or LF line
// endings.
func (r *Request) Parse(raw []byte) error {
	startLine, headerLines, body, err := splitMessage(raw)
	if err != nil {
		return err
	}

	fields := strings.Fields(startLine)
	if len(fields) != 3 {
		return fmt.Errorf("malformed request line %q", startLine)
	}

	version, err := ParseVersion(fields[2])
	if err != nil {
		return err
	}

	r.message = newMessage()
	r.Version = version
	r.Method = strings.ToUpper(fields[0])
	r.URI = fields[1]

	if err := r.parseHeaders(headerLines); err != nil {
		return err
	}
	return r.parseBody(body)
}
