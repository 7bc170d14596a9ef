package complaint

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound          = errors.New("complaint not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("complaint was modified concurrently")
)

// ValidationError reports user-correctable input problems keyed by field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
