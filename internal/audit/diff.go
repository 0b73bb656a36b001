package audit

import (
	"encoding/json"
	"reflect"
)

// Change is the before and after value of a modified key.
type Change struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// Diff is the structural difference between two snapshots. Empty buckets are
// nil and omitted when serialised.
type Diff struct {
	Added    map[string]any    `json:"added,omitempty"`
	Removed  map[string]any    `json:"removed,omitempty"`
	Modified map[string]Change `json:"modified,omitempty"`
}

// IsEmpty reports whether no bucket has entries.
func (d Diff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// GenerateDiff compares before and after key by key. Values present on both
// sides are compared by their JSON encoding.
func GenerateDiff(before, after map[string]any) Diff {
	var d Diff
	for k, av := range after {
		bv, ok := before[k]
		if !ok {
			if d.Added == nil {
				d.Added = make(map[string]any)
			}
			d.Added[k] = copyValue(av)
			continue
		}
		if !sameValue(bv, av) {
			if d.Modified == nil {
				d.Modified = make(map[string]Change)
			}
			d.Modified[k] = Change{Before: copyValue(bv), After: copyValue(av)}
		}
	}
	for k, bv := range before {
		if _, ok := after[k]; !ok {
			if d.Removed == nil {
				d.Removed = make(map[string]any)
			}
			d.Removed[k] = copyValue(bv)
		}
	}
	return d
}

func sameValue(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return string(ab) == string(bb)
}

func (d Diff) clone() Diff {
	out := Diff{
		Added:   CopyMap(d.Added),
		Removed: CopyMap(d.Removed),
	}
	if d.Modified != nil {
		out.Modified = make(map[string]Change, len(d.Modified))
		for k, c := range d.Modified {
			out.Modified[k] = Change{Before: copyValue(c.Before), After: copyValue(c.After)}
		}
	}
	return out
}
