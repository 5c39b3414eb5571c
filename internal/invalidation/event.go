// Package invalidation defines the origin-change events that purge cached
// image dimensions.
package invalidation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	OpUpdate = "update"
	OpDelete = "delete"
)

// maxPaths bounds a single event so one message cannot stall a partition.
const maxPaths = 1000

// Event announces that the source images at Paths changed or were removed.
type Event struct {
	Version int       `json:"version"`
	Op      string    `json:"op"`
	Paths   []string  `json:"paths"`
	TS      time.Time `json:"ts"`
	Source  string    `json:"source,omitempty"`
}

var ErrInvalidEvent = errors.New("invalid invalidation event")

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("%w: version must be 1", ErrInvalidEvent)
	}
	switch e.Op {
	case OpUpdate, OpDelete:
	default:
		return fmt.Errorf("%w: op must be update|delete", ErrInvalidEvent)
	}
	if e.TS.IsZero() {
		return fmt.Errorf("%w: ts is required", ErrInvalidEvent)
	}
	if len(e.Paths) == 0 {
		return fmt.Errorf("%w: paths is required", ErrInvalidEvent)
	}
	if len(e.Paths) > maxPaths {
		return fmt.Errorf("%w: at most %d paths per event", ErrInvalidEvent, maxPaths)
	}
	for i, p := range e.Paths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: paths[%d] is empty", ErrInvalidEvent, i)
		}
	}
	return nil
}
