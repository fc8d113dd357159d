package audit

import "reflect"

// FieldChange records the before and after value of one field.
type FieldChange struct {
	Old any `json:"oldValue"`
	New any `json:"newValue"`
}

// Diff maps changed field names to their before/after values.
type Diff map[string]FieldChange

// ComputeDiff compares two snapshots field by field and returns the changed
// fields. Fields present only in old are reported with a nil new value, and
// vice versa. Returns nil when nothing changed.
func ComputeDiff(oldValues, newValues map[string]any) Diff {
	diff := Diff{}
	for field, oldVal := range oldValues {
		newVal, ok := newValues[field]
		if !ok {
			diff[field] = FieldChange{Old: oldVal, New: nil}
			continue
		}
		if !reflect.DeepEqual(oldVal, newVal) {
			diff[field] = FieldChange{Old: oldVal, New: newVal}
		}
	}
	for field, newVal := range newValues {
		if _, ok := oldValues[field]; !ok {
			diff[field] = FieldChange{Old: nil, New: newVal}
		}
	}
	if len(diff) == 0 {
		return nil
	}
	return diff
}

// ToValues converts a diff into separate old/new value maps for storage.
func (d Diff) ToValues() (oldValues, newValues map[string]any) {
	if len(d) == 0 {
		return nil, nil
	}
	oldValues = make(map[string]any, len(d))
	newValues = make(map[string]any, len(d))
	for field, change := range d {
		oldValues[field] = change.Old
		newValues[field] = change.New
	}
	return oldValues, newValues
}
