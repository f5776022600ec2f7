// Package defaults holds the registry of safe return literals used by
// synthesized stubs.
//
// A Registry is immutable. Build one with New or Default and derive
// variants with With; nothing in the package keeps process-wide state.
package defaults

import (
	"fmt"
	"sort"
	"strings"
)

// Registry maps a C type name to the literal a stub returns for it.
type Registry struct {
	values map[string]string
}

// builtin is the A121 table: primitive widths plus the SDK enumerations a
// function can return, each mapped to one valid enumerator.
var builtin = map[string]string{
	"bool":     "true",
	"char":     "0",
	"int":      "0",
	"unsigned": "0",
	"size_t":   "0",
	"int8_t":   "0",
	"uint8_t":  "0",
	"int16_t":  "0",
	"uint16_t": "0",
	"int32_t":  "-1",
	"uint32_t": "0",
	"int64_t":  "0",
	"uint64_t": "0",
	"float":    "0.1f",
	"double":   "0.1",

	"acc_sensor_id_t":                          "1",
	"acc_config_profile_t":                     "ACC_CONFIG_PROFILE_3",
	"acc_config_idle_state_t":                  "ACC_CONFIG_IDLE_STATE_SLEEP",
	"acc_config_prf_t":                         "ACC_CONFIG_PRF_13_0_MHZ",
	"acc_rss_test_state_t":                     "ACC_RSS_TEST_STATE_COMPLETE",
	"acc_detector_distance_threshold_method_t": "ACC_DETECTOR_DISTANCE_THRESHOLD_METHOD_FIXED_STRENGTH",
	"acc_detector_distance_peak_sorting_t":     "ACC_DETECTOR_DISTANCE_PEAK_SORTING_STRONGEST",
	"acc_detector_distance_reflector_shape_t":  "ACC_DETECTOR_DISTANCE_REFLECTOR_SHAPE_GENERIC",
}

// New returns a registry holding a copy of values. Empty type names or
// literals are rejected.
func New(values map[string]string) (*Registry, error) {
	r := &Registry{values: make(map[string]string, len(values))}
	for typ, lit := range values {
		typ, lit = normalize(typ), strings.TrimSpace(lit)
		if typ == "" || lit == "" {
			return nil, fmt.Errorf("defaults: empty entry %q -> %q", typ, lit)
		}
		r.values[typ] = lit
	}
	return r, nil
}

// Default returns the built-in A121 registry.
func Default() *Registry {
	r, _ := New(builtin)
	return r
}

// With returns a new registry with overrides applied on top of r.
func (r *Registry) With(overrides map[string]string) (*Registry, error) {
	merged := make(map[string]string, len(r.values)+len(overrides))
	for k, v := range r.values {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return New(merged)
}

// Lookup returns the literal for a type. A leading const qualifier is
// ignored so "const uint32_t" resolves like "uint32_t".
func (r *Registry) Lookup(typ string) (string, bool) {
	typ = normalize(typ)
	if lit, ok := r.values[typ]; ok {
		return lit, true
	}
	if rest, ok := strings.CutPrefix(typ, "const "); ok {
		lit, ok := r.values[rest]
		return lit, ok
	}
	return "", false
}

// Types returns every covered type name, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.values))
	for k := range r.values {
		types = append(types, k)
	}
	sort.Strings(types)
	return types
}

// Len returns the number of covered types.
func (r *Registry) Len() int { return len(r.values) }

func normalize(typ string) string {
	return strings.Join(strings.Fields(typ), " ")
}

// ---------------------------------------------------------------------------
// Verification against header enumerations
// ---------------------------------------------------------------------------

// Mismatch is a registry entry whose literal is not an enumerator of the
// enum type it is registered for.
type Mismatch struct {
	Type        string
	Literal     string
	Enumerators []string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s is not one of [%s]", m.Type, m.Literal, strings.Join(m.Enumerators, ", "))
}

// Verify checks every registry entry whose type appears in enums (type name
// to enumerator names, as declared in the headers). Types absent from enums
// are not checked. Mismatches are returned sorted by type.
func (r *Registry) Verify(enums map[string][]string) []Mismatch {
	var out []Mismatch
	for _, typ := range r.Types() {
		names, ok := enums[typ]
		if !ok {
			continue
		}
		lit := r.values[typ]
		found := false
		for _, n := range names {
			if n == lit {
				found = true
				break
			}
		}
		if !found {
			out = append(out, Mismatch{Type: typ, Literal: lit, Enumerators: names})
		}
	}
	return out
}
