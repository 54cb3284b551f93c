// Package registry exposes the embedded IANA-style port registry: a
// line-indexed CSV blob mapping each port number to its well-known
// protocol, service name and summary.
package registry

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed ports.csv
var portsCSV string

// Record is one registry entry.
type Record struct {
	Proto   string
	Service string
	Summary string
}

// Registry is a read-only port-to-service lookup table. Line n-1 of the
// embedded blob describes port n.
type Registry struct {
	lines []string
}

// Load parses the embedded registry blob. An empty or missing blob is
// fatal and surfaces at engine construction.
func Load() (*Registry, error) {
	return parse(portsCSV)
}

func parse(blob string) (*Registry, error) {
	if strings.TrimSpace(blob) == "" {
		return nil, fmt.Errorf("registry: embedded port data is empty")
	}
	lines := strings.Split(strings.ReplaceAll(blob, "\r\n", "\n"), "\n")
	return &Registry{lines: lines}, nil
}

// Lookup returns the record for the given port. A port beyond the blob
// or with a blank line yields ok=false, not an error.
func (r *Registry) Lookup(port uint16) (Record, bool) {
	if port == 0 || int(port) > len(r.lines) {
		return Record{}, false
	}
	line := strings.TrimSpace(r.lines[port-1])
	if line == "" {
		return Record{}, false
	}

	fields := splitFields(line)
	if len(fields) < 4 {
		return Record{}, false
	}
	return Record{Proto: fields[1], Service: fields[2], Summary: fields[3]}, true
}

// splitFields breaks a CSV record into at most four fields, stripping
// optional double quotes. The summary field may itself contain commas.
func splitFields(line string) []string {
	fields := strings.SplitN(line, ",", 4)
	for i, f := range fields {
		fields[i] = strings.Trim(strings.TrimSpace(f), `"`)
	}
	return fields
}
