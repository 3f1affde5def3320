package migration

import (
	"fmt"
	"strings"
)

// Flags selects migrations by status. A nil field does not filter; a set
// field requires an exact match. Set fields are AND-ed.
type Flags struct {
	Local      *bool
	Registered *bool
	Requested  *bool
}

// Is returns a predicate value for Flags
func Is(v bool) *bool {
	return &v
}

// IsZero reports whether no predicate is set
func (f Flags) IsZero() bool {
	return f.Local == nil && f.Registered == nil && f.Requested == nil
}

// Match reports whether r satisfies every predicate set in f
func (f Flags) Match(r Record) bool {
	if f.Local != nil && *f.Local != r.Local {
		return false
	}
	if f.Registered != nil && *f.Registered != r.Registered {
		return false
	}
	if f.Requested != nil && *f.Requested != r.Requested {
		return false
	}
	return true
}

// OnlyLocal pins f to migrations present in the local directory
func OnlyLocal(f Flags) Flags {
	f.Local = Is(true)
	return f
}

// OnlyRegistered pins f to migrations recorded in the registry
func OnlyRegistered(f Flags) Flags {
	f.Registered = Is(true)
	return f
}

// Unregistered pins f to local migrations that the registry does not know
func Unregistered(f Flags) Flags {
	f.Local = Is(true)
	f.Registered = Is(false)
	return f
}

// OnlyRequested pins f to migrations the user asked for
func OnlyRequested(f Flags) Flags {
	f.Requested = Is(true)
	return f
}

// Field names a single Record field for Pluck
type Field int

const (
	FieldFilename Field = iota
	FieldBasename
	FieldID
	FieldLocal
	FieldRegistered
	FieldRequested
	FieldPath
	FieldAppliedAt
	FieldAppliedAtFormatted
)

var fieldNames = map[Field]string{
	FieldFilename:           "filename",
	FieldBasename:           "basename",
	FieldID:                 "id",
	FieldLocal:              "local",
	FieldRegistered:         "registered",
	FieldRequested:          "requested",
	FieldPath:               "path",
	FieldAppliedAt:          "appliedAt",
	FieldAppliedAtFormatted: "appliedAtFormatted",
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// ParseField resolves a field name, case-insensitively
func ParseField(name string) (Field, error) {
	for field, n := range fieldNames {
		if strings.EqualFold(n, name) {
			return field, nil
		}
	}
	return 0, fmt.Errorf("unknown migration field %q", name)
}

// Value returns the named field of r
func (r Record) Value(field Field) any {
	switch field {
	case FieldFilename:
		return r.Filename
	case FieldBasename:
		return r.Basename
	case FieldID:
		return r.ID
	case FieldLocal:
		return r.Local
	case FieldRegistered:
		return r.Registered
	case FieldRequested:
		return r.Requested
	case FieldPath:
		return r.Path
	case FieldAppliedAt:
		return r.AppliedAt
	case FieldAppliedAtFormatted:
		return r.AppliedAtFormatted
	}
	return nil
}

// Map returns the matching records keyed by filename. With zero flags this
// is every record. The map is a copy; changing it does not change the store.
func (s *Store) Map(f Flags) map[string]Record {
	out := make(map[string]Record, len(s.order))
	for _, filename := range s.order {
		r := *s.records[filename]
		if f.Match(r) {
			out[filename] = r
		}
	}
	return out
}

// List returns the matching records in filename order
func (s *Store) List(f Flags) []Record {
	out := make([]Record, 0, len(s.order))
	for _, filename := range s.order {
		r := *s.records[filename]
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Pluck returns one field of every matching record, in filename order
func (s *Store) Pluck(f Flags, field Field) []any {
	records := s.List(f)
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r.Value(field)
	}
	return out
}

// Filenames returns the filenames of the matching records, in order
func (s *Store) Filenames(f Flags) []string {
	records := s.List(f)
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Filename
	}
	return out
}
