package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
)

// FieldMap is the dynamic, template-defined payload of a document: field name
// to variant value (string, number, bool or null). Fields are declared at
// runtime by templates, so this is a map rather than a static struct; any
// ordering requirement is satisfied by iterating SortedFields.
type FieldMap map[string]any

// SortedFields returns the field names in deterministic order.
func (m FieldMap) SortedFields() []string {
	fields := make([]string, 0, len(m))
	for name := range m {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

// Fingerprint derives the schema fingerprint of the payload: a sha256 over
// the sorted field-name:type pairs. Two payloads with the same field names
// and value types share a fingerprint regardless of the values themselves.
func (m FieldMap) Fingerprint() string {
	h := sha256.New()
	for _, name := range m.SortedFields() {
		fmt.Fprintf(h, "%s:%s;", name, variantKind(m[name]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func variantKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, float32, int, int32, int64:
		return "number"
	default:
		return "other"
	}
}

// DiffKind classifies a single field change between two payloads.
type DiffKind string

const (
	DiffAdded    DiffKind = "added"
	DiffRemoved  DiffKind = "removed"
	DiffModified DiffKind = "modified"
)

// DiffEntry is one field-level change between two snapshots.
type DiffEntry struct {
	Field    string   `json:"field"`
	OldValue any      `json:"old_value"`
	NewValue any      `json:"new_value"`
	Kind     DiffKind `json:"kind"`
}

// Diff compares two payloads field by field over the union of their keys and
// reports added, removed and modified entries in sorted field order. Unchanged
// fields are skipped. Comparison is structural equality only; no nested
// semantic diffing.
func Diff(oldState, newState FieldMap) []DiffEntry {
	union := make(map[string]struct{}, len(oldState)+len(newState))
	for name := range oldState {
		union[name] = struct{}{}
	}
	for name := range newState {
		union[name] = struct{}{}
	}

	fields := make([]string, 0, len(union))
	for name := range union {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	entries := make([]DiffEntry, 0, len(fields))
	for _, name := range fields {
		oldValue, inOld := oldState[name]
		newValue, inNew := newState[name]
		switch {
		case !inOld:
			entries = append(entries, DiffEntry{Field: name, NewValue: newValue, Kind: DiffAdded})
		case !inNew:
			entries = append(entries, DiffEntry{Field: name, OldValue: oldValue, Kind: DiffRemoved})
		case !reflect.DeepEqual(oldValue, newValue):
			entries = append(entries, DiffEntry{Field: name, OldValue: oldValue, NewValue: newValue, Kind: DiffModified})
		}
	}
	return entries
}
