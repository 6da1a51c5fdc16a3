// =============================================================================
// Roster Importer - Membership
// =============================================================================
//
// A roster file usually covers a whole department while an import targets
// one group inside it. The membership set decides which rows belong to the
// selected group; rows for anyone else are skipped, not rejected.
//
// The reserved group "all" disables filtering: the set is derived from every
// name seen in the batch.
//
// =============================================================================

package membership

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// AllGroup is the sentinel group meaning "no filtering".
const AllGroup = "all"

// ErrUnknownGroup is returned by providers for a group they do not define.
var ErrUnknownGroup = errors.New("unknown group")

// Provider lists the display names of a group.
type Provider interface {
	ListNamesForGroup(ctx context.Context, group string) ([]string, error)
}

// =============================================================================
// NAME NORMALIZATION
// =============================================================================

// NormalizeName trims a display name and either collapses runs of
// whitespace to one space or, with strip set, removes whitespace entirely.
// Rosters typed in CJK often space out every character ("賴 秉 宏").
func NormalizeName(name string, strip bool) string {
	if strip {
		return strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, name)
	}
	return strings.Join(strings.Fields(name), " ")
}

// =============================================================================
// SET
// =============================================================================

// Set is the ordered set of names admitted for one validation call.
type Set struct {
	group    string
	sentinel bool
	strip    bool
	names    []string
	index    map[string]bool
}

// NewSet creates a set for group holding names. Names are normalized the
// same way row names are.
func NewSet(group string, names []string, strip bool) *Set {
	s := &Set{
		group:    group,
		sentinel: group == AllGroup,
		strip:    strip,
		index:    make(map[string]bool, len(names)),
	}
	for _, n := range names {
		s.add(NormalizeName(n, strip))
	}
	return s
}

// Resolve builds the set for group. The sentinel group (or an empty group
// name) never calls the provider.
func Resolve(ctx context.Context, provider Provider, group string, strip bool) (*Set, error) {
	if group == "" || group == AllGroup {
		return NewSet(AllGroup, nil, strip), nil
	}

	if provider == nil {
		return nil, fmt.Errorf("group %q: %w", group, ErrUnknownGroup)
	}

	names, err := provider.ListNamesForGroup(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of %q: %w", group, err)
	}
	return NewSet(group, names, strip), nil
}

// Group returns the group name.
func (s *Set) Group() string { return s.group }

// IsSentinel reports whether the set derives its members from the batch.
func (s *Set) IsSentinel() bool { return s.sentinel }

// Admit reports whether a normalized row name belongs to the set. Under the
// sentinel every name is admitted and recorded.
func (s *Set) Admit(name string) bool {
	if s.sentinel {
		s.add(name)
		return true
	}
	return s.index[name]
}

// Contains reports whether name is a member, without recording it.
func (s *Set) Contains(name string) bool {
	return s.index[NormalizeName(name, s.strip)]
}

// Names returns the members in insertion order.
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of members.
func (s *Set) Len() int { return len(s.names) }

func (s *Set) add(name string) {
	if name == "" || s.index[name] {
		return
	}
	s.index[name] = true
	s.names = append(s.names, name)
}

// =============================================================================
// CONFIG PROVIDER
// =============================================================================

// ConfigProvider serves groups defined in configuration.
type ConfigProvider struct {
	groups map[string][]string
}

// NewConfigProvider creates a provider over group name -> member names.
func NewConfigProvider(groups map[string][]string) *ConfigProvider {
	return &ConfigProvider{groups: groups}
}

// ListNamesForGroup returns the configured members of group.
func (p *ConfigProvider) ListNamesForGroup(_ context.Context, group string) ([]string, error) {
	names, ok := p.groups[group]
	if !ok {
		return nil, fmt.Errorf("group %q: %w", group, ErrUnknownGroup)
	}
	return append([]string(nil), names...), nil
}

// Groups returns the configured group names, sorted.
func (p *ConfigProvider) Groups() []string {
	out := make([]string, 0, len(p.groups))
	for g := range p.groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
