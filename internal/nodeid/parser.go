// internal/nodeid/parser.go
package nodeid

import (
	"fmt"
	"regexp"
	"strconv"
)

// nameRegex splits a canonical node name into its base and sequence number.
var nameRegex = regexp.MustCompile(`^(.+)_(\d+)$`)

// Split recovers the base name and sequence number from a name issued by a Registry.
func Split(name string) (string, uint64, error) {
	if name == "" {
		return "", 0, fmt.Errorf("node name cannot be empty")
	}

	matches := nameRegex.FindStringSubmatch(name)
	if matches == nil {
		return "", 0, fmt.Errorf("invalid node name format: %q", name)
	}

	seq, err := strconv.ParseUint(matches[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid node sequence in %q: %w", name, err)
	}
	return matches[1], seq, nil
}

// Base returns the base part of a canonical node name, or the name itself
// when it does not carry a sequence suffix.
func Base(name string) string {
	base, _, err := Split(name)
	if err != nil {
		return name
	}
	return base
}
