// Package facility holds the static facility registry and the name resolver
// used by every surface that shows a facility to a person.
package facility

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Variant selects the fallback wording for identifiers missing from the registry.
type Variant string

const (
	VariantFacility  Variant = "facility"
	VariantApartment Variant = "apartment"
)

const (
	LabelFacility  = "מתקן"
	LabelApartment = "דירה"
)

// Label returns the fallback label for the variant.
func (v Variant) Label() string {
	if v == VariantApartment {
		return LabelApartment
	}
	return LabelFacility
}

// ParseVariant accepts "facility", "apartment" or an empty string (facility).
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case "", VariantFacility:
		return VariantFacility, nil
	case VariantApartment:
		return VariantApartment, nil
	default:
		return "", fmt.Errorf("unknown facility variant %q", s)
	}
}

// Static mapping for human-friendly names.
// Extend here if you add more facilities.
var defaultNames = map[string]string{
	"1":  "רותם",
	"2":  "דפנה",
	"3":  "ארז",
	"4":  "אורן",
	"5":  "מוריה",
	"6":  "זקיף מוריה",
	"7":  "אגוז",
	"8":  "מלונית אגוז",
	"9":  "ורד",
	"10": "מלונית ורד",
	"11": "אקליפטוס",
	"12": "זקיף אקליפטוס",
}

// DefaultNames returns a copy of the built-in table.
func DefaultNames() map[string]string {
	out := make(map[string]string, len(defaultNames))
	for k, v := range defaultNames {
		out[k] = v
	}
	return out
}

// Entry is one registry row.
type Entry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Registry is immutable after New returns, so concurrent reads need no locking.
type Registry struct {
	names         map[string]string
	ids           []string
	fallbackLabel string
}

var ErrEmptyName = errors.New("facility: empty display name")

// New copies names into a registry. An empty fallbackLabel falls back to LabelFacility.
func New(names map[string]string, fallbackLabel string) (*Registry, error) {
	if fallbackLabel == "" {
		fallbackLabel = LabelFacility
	}

	r := &Registry{
		names:         make(map[string]string, len(names)),
		ids:           make([]string, 0, len(names)),
		fallbackLabel: fallbackLabel,
	}
	for id, name := range names {
		if id == "" {
			return nil, errors.New("facility: empty id")
		}
		if name == "" {
			return nil, fmt.Errorf("%w for id %q", ErrEmptyName, id)
		}
		r.names[id] = name
		r.ids = append(r.ids, id)
	}
	sortIDs(r.ids)
	return r, nil
}

// Default returns the built-in registry with the facility fallback label.
func Default() *Registry {
	r, err := New(defaultNames, LabelFacility)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the registered name for id, or "<fallback label> <id>".
func (r *Registry) Resolve(id string) string {
	if name, ok := r.names[id]; ok {
		return name
	}
	return r.fallbackLabel + " " + id
}

func (r *Registry) Lookup(id string) (string, bool) {
	name, ok := r.names[id]
	return name, ok
}

func (r *Registry) Has(id string) bool {
	_, ok := r.names[id]
	return ok
}

// IDs returns registered ids in numeric order; non-numeric ids sort last.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, Entry{ID: id, Name: r.names[id]})
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.names)
}

func (r *Registry) FallbackLabel() string {
	return r.fallbackLabel
}

func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		switch {
		case errA == nil && errB == nil:
			if a != b {
				return a < b
			}
			return ids[i] < ids[j]
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
}
