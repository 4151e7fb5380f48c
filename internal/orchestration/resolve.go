package orchestration

import "maps"

// lookup returns the first set layer, in priority order.
func lookup[T any](layers ...*T) (T, bool) {
	for _, l := range layers {
		if l != nil {
			return *l, true
		}
	}
	var zero T
	return zero, false
}

// resolve is the three-layer attribute lookup: step override, then
// orchestration default, then action default.
func resolve[T any](step, orchestration, action *T) T {
	v, _ := lookup(step, orchestration, action)
	return v
}

// overlay merges mappings left to right into a fresh map; later layers win
// on key collision. Input layers are never modified.
func overlay(layers ...map[string]any) map[string]any {
	merged := make(map[string]any)
	for _, l := range layers {
		maps.Copy(merged, l)
	}
	return merged
}

// normalize returns nil when v equals the fallback, so that an override
// matching the inherited value is stored as unset.
func normalize[T comparable](v T, fallback T, hasFallback bool) *T {
	if hasFallback && v == fallback {
		return nil
	}
	return &v
}
