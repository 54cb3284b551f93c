// Package httpmsg models the HTTP/1.x request and response messages the
// probe exchanges with plaintext and TLS-wrapped web servers.
package httpmsg

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is an HTTP protocol version.
type Version struct {
	Major int
	Minor int
}

// V11 is the version every outbound probe request speaks.
var V11 = Version{Major: 1, Minor: 1}

// String renders the canonical start-line form, e.g. "HTTP/1.1".
func (v Version) String() string {
	return fmt.Sprintf("HTTP/%d.%d", v.Major, v.Minor)
}

// Num collapses the version into a single integer, e.g. 11 for 1.1.
func (v Version) Num() int {
	return v.Major*10 + v.Minor
}

// NumString is the collapsed numeric form, e.g. "11".
func (v Version) NumString() string {
	return strconv.Itoa(v.Num())
}

// Dotted is the bare dotted form, e.g. "1.1".
func (v Version) Dotted() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// ParseVersion parses a start-line version token such as "HTTP/1.1".
func ParseVersion(s string) (Version, error) {
	rest, ok := strings.CutPrefix(s, "HTTP/")
	if !ok {
		return Version{}, fmt.Errorf("bad version %q", s)
	}
	major, minor, ok := strings.Cut(rest, ".")
	if !ok {
		return Version{}, fmt.Errorf("bad version %q", s)
	}
	maj, err := strconv.Atoi(major)
	if err != nil {
		return Version{}, fmt.Errorf("bad version %q", s)
	}
	min, err := strconv.Atoi(minor)
	if err != nil {
		return Version{}, fmt.Errorf("bad version %q", s)
	}
	return Version{Major: maj, Minor: min}, nil
}
