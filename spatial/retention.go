package spatial

import (
	"fmt"
	"strings"
)

// RetentionPolicy decides what the details and geometry views hold when the
// selection is cleared or names a match that is not loaded.
type RetentionPolicy int

const (
	// RetainStale keeps showing the last resolved value.
	RetainStale RetentionPolicy = iota
	// ClearUnresolved resets the views to nil.
	ClearUnresolved
)

func (p RetentionPolicy) String() string {
	switch p {
	case RetainStale:
		return "retain"
	case ClearUnresolved:
		return "clear"
	}
	return fmt.Sprintf("retention(%d)", int(p))
}

// ParseRetention accepts "retain" or "clear".
func ParseRetention(s string) (RetentionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "retain":
		return RetainStale, nil
	case "clear":
		return ClearUnresolved, nil
	}
	return RetainStale, fmt.Errorf("unknown retention policy %q", s)
}
