// Package group defines the A121 header groups and resolves which of them a
// build enables.
//
// Selection happens once: ParseCapabilities turns feature names into a
// Capabilities value and Enabled filters the catalog with it. The resulting
// slice is what every pipeline stage sees.
package group

import (
	"fmt"
	"sort"
	"strings"

	"stubgen/internal/model"
)

// Catalog returns the header groups of the A121 SDK in build order.
func Catalog() []model.HeaderGroup {
	return []model.HeaderGroup{
		{
			ID: "acconeer_a121",
			Headers: []string{
				"acc_hal_definitions_a121.h",
				"acc_definitions_common.h",
				"acc_processing.h",
				"acc_sensor.h",
				"acc_config.h",
				"acc_config_subsweep.h",
				"acc_definitions_a121.h",
				"acc_version.h",
				"acc_rss_a121.h",
			},
		},
		{
			ID: "acc_detector_distance_a121",
			Headers: []string{
				"acc_detector_distance_definitions.h",
				"acc_detector_distance.h",
			},
			Requires: model.Distance,
		},
		{
			ID:       "acc_detector_presence_a121",
			Headers:  []string{"acc_detector_presence.h"},
			Requires: model.Presence,
		},
	}
}

// Capabilities is the set of optional features turned on for a build.
type Capabilities map[model.Capability]bool

var known = map[model.Capability]bool{
	model.Distance: true,
	model.Presence: true,
}

// ParseCapabilities parses feature names such as ["distance", "presence"].
// Entries may themselves be comma separated. Unknown names are an error.
func ParseCapabilities(names []string) (Capabilities, error) {
	caps := Capabilities{}
	for _, entry := range names {
		for _, name := range strings.Split(entry, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			c := model.Capability(name)
			if !known[c] {
				return nil, fmt.Errorf("unknown feature %q (known: distance, presence)", name)
			}
			caps[c] = true
		}
	}
	return caps, nil
}

// Has reports whether a group with the given requirement is active.
func (c Capabilities) Has(req model.Capability) bool {
	return req == model.Always || c[req]
}

// Names returns the enabled capability names, sorted.
func (c Capabilities) Names() []string {
	var names []string
	for k, on := range c {
		if on {
			names = append(names, string(k))
		}
	}
	sort.Strings(names)
	return names
}

// Enabled filters groups down to the ones whose condition holds, keeping
// catalog order. It rejects invalid groups and groups that would write the
// same output files.
func Enabled(groups []model.HeaderGroup, caps Capabilities) ([]model.HeaderGroup, error) {
	seen := make(map[string]bool, len(groups))
	var out []model.HeaderGroup
	for _, g := range groups {
		if err := g.Validate(); err != nil {
			return nil, err
		}
		if seen[g.ID] {
			return nil, fmt.Errorf("header group %q defined twice", g.ID)
		}
		seen[g.ID] = true
		if g.Requires != model.Always && !known[g.Requires] {
			return nil, fmt.Errorf("header group %q: unknown requirement %q", g.ID, g.Requires)
		}
		if caps.Has(g.Requires) {
			out = append(out, g)
		}
	}
	return out, nil
}

// Find returns the group with the given id.
func Find(groups []model.HeaderGroup, id string) (model.HeaderGroup, bool) {
	for _, g := range groups {
		if g.ID == id {
			return g, true
		}
	}
	return model.HeaderGroup{}, false
}
