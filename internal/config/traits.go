package config

import (
	"fmt"
	"strings"
)

// TraitRegistry maps authored trait names to bits of the 64-bit trait field.
// It is built once from configuration and never mutated afterwards.
type TraitRegistry struct {
	names []string
	bits  map[string]uint64
}

// NewTraitRegistry creates a registry; names beyond MaxTraits are ignored.
func NewTraitRegistry(names []string) *TraitRegistry {
	if len(names) > MaxTraits {
		names = names[:MaxTraits]
	}
	r := &TraitRegistry{
		names: append([]string(nil), names...),
		bits:  make(map[string]uint64, len(names)),
	}
	for i, name := range r.names {
		r.bits[name] = 1 << uint(i)
	}
	return r
}

// Mask returns the combined bitfield for the given trait names.
func (r *TraitRegistry) Mask(names ...string) (uint64, error) {
	var mask uint64
	for _, name := range names {
		bit, ok := r.bits[name]
		if !ok {
			return 0, fmt.Errorf("unknown trait %q", name)
		}
		mask |= bit
	}
	return mask, nil
}

// Names returns the trait names set in mask, in registry order.
func (r *TraitRegistry) Names(mask uint64) []string {
	var out []string
	for i, name := range r.names {
		if mask&(1<<uint(i)) != 0 {
			out = append(out, name)
		}
	}
	return out
}

// Format renders a mask as "a|b", or "none" for the empty mask.
func (r *TraitRegistry) Format(mask uint64) string {
	names := r.Names(mask)
	if len(names) == 0 {
		if mask != 0 {
			return fmt.Sprintf("0x%x", mask)
		}
		return "none"
	}
	return strings.Join(names, "|")
}

// Len returns the number of registered traits.
func (r *TraitRegistry) Len() int { return len(r.names) }
