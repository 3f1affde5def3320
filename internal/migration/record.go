package migration

import "path/filepath"

// Record is the reconciled status of one migration file.
//
// Path is set only while Local is true. AppliedAt and AppliedAtFormatted are
// set only while Registered is true, and always change together.
type Record struct {
	Filename string
	Basename string
	ID       int

	Local      bool
	Registered bool
	Requested  bool

	Path               string
	AppliedAt          string
	AppliedAtFormatted string
}

// Partial is what a sync pass knows about a migration before expansion.
// Unset flags default to false.
type Partial struct {
	Filename   string
	Local      bool
	Registered bool
	Requested  bool

	AppliedAt          string
	AppliedAtFormatted string
}

// Applied is a registry entry as fed to SyncRegistered
type Applied struct {
	Filename           string
	AppliedAt          string
	AppliedAtFormatted string
}

// Expand derives a full Record from p. The path is joined onto dir when the
// migration is local; timestamps are kept only when it is registered and
// both are set.
func Expand(dir string, p Partial) Record {
	r := Record{
		Filename:   p.Filename,
		Basename:   Basename(p.Filename),
		ID:         ID(p.Filename),
		Local:      p.Local,
		Registered: p.Registered,
		Requested:  p.Requested,
	}

	if r.Local {
		r.Path = filepath.Join(dir, r.Filename)
	}

	// The two timestamps are kept as a pair or not at all
	if r.Registered && p.AppliedAt != "" && p.AppliedAtFormatted != "" {
		r.AppliedAt = p.AppliedAt
		r.AppliedAtFormatted = p.AppliedAtFormatted
	}

	return r
}

// Merge combines two views of the same migration.
//
// Both nil yields nil, which tells the caller to drop the key. With one side
// nil the other is returned unchanged. Otherwise identity comes from
// incoming, flags are OR-ed and the path is recomputed against dir. The
// timestamps move as a complete pair: incoming's when it has both, else
// base's when it has both, else none.
func Merge(dir string, base, incoming *Record) *Record {
	switch {
	case base == nil && incoming == nil:
		return nil
	case base == nil:
		r := *incoming
		return &r
	case incoming == nil:
		r := *base
		return &r
	}

	merged := &Record{
		Filename:   incoming.Filename,
		Basename:   incoming.Basename,
		ID:         incoming.ID,
		Local:      base.Local || incoming.Local,
		Registered: base.Registered || incoming.Registered,
		Requested:  base.Requested || incoming.Requested,
	}

	if merged.Local {
		merged.Path = filepath.Join(dir, merged.Filename)
	}

	if !merged.Registered {
		return merged
	}

	for _, from := range []*Record{incoming, base} {
		if from.AppliedAt != "" && from.AppliedAtFormatted != "" {
			merged.AppliedAt = from.AppliedAt
			merged.AppliedAtFormatted = from.AppliedAtFormatted
			break
		}
	}

	return merged
}
