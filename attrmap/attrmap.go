// Package attrmap maps abstract metacard attribute names to backend-native
// field names and back.
//
// Lookups are case-insensitive exact matches and never fail: a name without
// a mapping passes through unchanged. Per-source overrides registered with
// RegisterOverride take priority over the built-in table. Registration must
// happen before the mapper is frozen; a frozen mapper is read-only and safe
// for concurrent use.
package attrmap

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync/atomic"
)

var (
	// ErrFrozen is returned when registering an override on a frozen mapper.
	ErrFrozen = errors.New("attrmap: mapper is frozen")

	// ErrEmptyName is returned when an override has an empty name.
	ErrEmptyName = errors.New("attrmap: empty attribute name")

	// ErrAmbiguousName is returned when a set of overrides holds names that
	// differ only in case.
	ErrAmbiguousName = errors.New("attrmap: ambiguous attribute name")
)

// Mapper is a bidirectional attribute name table.
type Mapper struct {
	builtin   map[string]entry
	overrides map[string]entry
	reverse   map[string]string
	frozen    atomic.Bool
}

type entry struct {
	abstract string
	native   string
}

// New creates a mapper from a built-in abstract -> native table.
// The table is copied.
func New(builtin map[string]string) *Mapper {
	m := &Mapper{
		builtin:   make(map[string]entry, len(builtin)),
		overrides: make(map[string]entry),
		reverse:   make(map[string]string, len(builtin)),
	}
	for abstract, native := range builtin {
		m.builtin[fold(abstract)] = entry{abstract: abstract, native: native}
	}
	m.rebuildReverse()
	return m
}

// RegisterOverride maps abstract to native ahead of the built-in table.
// The last registration for a name wins.
func (m *Mapper) RegisterOverride(abstract, native string) error {
	if m.frozen.Load() {
		return ErrFrozen
	}
	if strings.TrimSpace(abstract) == "" || strings.TrimSpace(native) == "" {
		return ErrEmptyName
	}
	m.overrides[fold(abstract)] = entry{abstract: abstract, native: native}
	m.rebuildReverse()
	return nil
}

// RegisterOverrides registers every entry of overrides, or none of them on
// error. A map has no registration order, so names that differ only in case
// are rejected.
func (m *Mapper) RegisterOverrides(overrides map[string]string) error {
	names := slices.Sorted(maps.Keys(overrides))
	seen := make(map[string]string, len(names))
	for _, abstract := range names {
		if strings.TrimSpace(abstract) == "" || strings.TrimSpace(overrides[abstract]) == "" {
			return ErrEmptyName
		}
		if prev, ok := seen[fold(abstract)]; ok {
			return fmt.Errorf("%w: %q and %q", ErrAmbiguousName, prev, abstract)
		}
		seen[fold(abstract)] = abstract
	}
	for _, abstract := range names {
		if err := m.RegisterOverride(abstract, overrides[abstract]); err != nil {
			return err
		}
	}
	return nil
}

// Freeze makes the mapper read-only. It is safe to call more than once.
func (m *Mapper) Freeze() {
	m.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (m *Mapper) Frozen() bool {
	return m.frozen.Load()
}

// ToNative returns the backend-native name for an abstract attribute name.
func (m *Mapper) ToNative(name string) string {
	key := fold(name)
	if e, ok := m.overrides[key]; ok {
		return e.native
	}
	if e, ok := m.builtin[key]; ok {
		return e.native
	}
	return name
}

// ToAbstract returns the abstract attribute name for a backend-native name.
func (m *Mapper) ToAbstract(name string) string {
	if abstract, ok := m.reverse[fold(name)]; ok {
		return abstract
	}
	return name
}

// rebuildReverse recomputes native -> abstract. Overrides shadow built-ins
// mapped to the same native name. Abstract names keep the casing they were
// registered with.
func (m *Mapper) rebuildReverse() {
	reverse := make(map[string]string, len(m.builtin)+len(m.overrides))
	for key, e := range m.builtin {
		if _, overridden := m.overrides[key]; overridden {
			continue
		}
		setReverse(reverse, e.native, e.abstract)
	}
	shadow := make(map[string]string, len(m.overrides))
	for _, e := range m.overrides {
		setReverse(shadow, e.native, e.abstract)
	}
	for native, abstract := range shadow {
		reverse[native] = abstract
	}
	m.reverse = reverse
}

// setReverse keeps the lexically smallest abstract name when several map to
// the same native name, so the result does not depend on map iteration order.
func setReverse(reverse map[string]string, native, abstract string) {
	key := fold(native)
	if prev, ok := reverse[key]; ok && prev <= abstract {
		return
	}
	reverse[key] = abstract
}

func fold(s string) string {
	return strings.ToLower(s)
}
