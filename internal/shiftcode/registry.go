// =============================================================================
// Roster Importer - Shift Code Registry
// =============================================================================

package shiftcode

import (
	"context"
	"fmt"
	"sort"
)

// Lister is the shift-type collaborator the registry is loaded from.
type Lister interface {
	ListKnownCodes(ctx context.Context) ([]string, error)
}

// Registry is the set of shift codes known for one validation call.
// It is loaded fresh per call and grows when a forced validation accepts
// unknown codes. A Registry is not safe for concurrent use.
type Registry struct {
	codes map[string]bool
	added []string
}

// NewRegistry creates a registry holding the given codes.
func NewRegistry(codes ...string) *Registry {
	r := &Registry{codes: make(map[string]bool, len(codes))}
	for _, c := range codes {
		if c != "" {
			r.codes[c] = true
		}
	}
	return r
}

// Load queries the collaborator and builds a registry from its codes.
func Load(ctx context.Context, lister Lister) (*Registry, error) {
	codes, err := lister.ListKnownCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list shift codes: %w", err)
	}
	return NewRegistry(codes...), nil
}

// Known reports whether code is registered.
func (r *Registry) Known(code string) bool {
	return r.codes[code]
}

// Add registers code for the rest of the batch. It returns true when the
// code was not known before.
func (r *Registry) Add(code string) bool {
	if code == "" || r.codes[code] {
		return false
	}
	r.codes[code] = true
	r.added = append(r.added, code)
	return true
}

// Codes returns every registered code, sorted.
func (r *Registry) Codes() []string {
	out := make([]string, 0, len(r.codes))
	for c := range r.codes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Added returns the codes registered through Add, in registration order.
func (r *Registry) Added() []string {
	return append([]string(nil), r.added...)
}

// Len returns the number of registered codes.
func (r *Registry) Len() int {
	return len(r.codes)
}
