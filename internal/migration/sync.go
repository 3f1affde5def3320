package migration

import (
	"fmt"
	"strconv"

	"github.com/franz/camo/internal/util"
	"github.com/spf13/afero"
)

// SetLocalDirectory validates dir and re-syncs local migrations from it.
// An invalid directory leaves the store untouched.
func (s *Store) SetLocalDirectory(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: the local migrations directory is empty", util.ErrInvalidConfig)
	}

	info, err := s.fs.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: the local migrations directory path is not a directory: %s", util.ErrInvalidConfig, dir)
	}

	names, err := s.readLocal(dir)
	if err != nil {
		return err
	}

	s.dir = dir
	s.applyLocal(names)
	return nil
}

// SyncLocal re-reads the configured directory. Migrations that disappeared
// since the last sync lose their local status; see UnsetLocal.
func (s *Store) SyncLocal() error {
	if s.dir == "" {
		return fmt.Errorf("%w: no local migrations directory is set", util.ErrInvalidConfig)
	}

	names, err := s.readLocal(s.dir)
	if err != nil {
		return err
	}

	s.applyLocal(names)
	return nil
}

// UnsetLocal clears the local dimension of every local migration.
// Registered migrations stay in the store without a path or a request;
// the rest are removed, since nothing but the directory listing knew about
// them. Requests only ever apply to local migrations, so they are resolved
// again after the next directory sync.
func (s *Store) UnsetLocal() {
	for _, filename := range s.Filenames(OnlyLocal(Flags{})) {
		r := s.records[filename]
		if !r.Registered {
			s.remove(filename)
			continue
		}
		r.Local = false
		r.Path = ""
		r.Requested = false
	}
	s.reindex()
}

// SyncRegistered merges registry entries into the store. Entries with
// invalid filenames are skipped. Nothing is ever demoted here: the registry
// is fetched at most once per run.
func (s *Store) SyncRegistered(entries []Applied) {
	batch := make([]Record, 0, len(entries))
	for _, e := range entries {
		if !IsValidFilename(e.Filename) {
			util.DebugLog("Ignoring registered entry with invalid name: %q", e.Filename)
			continue
		}
		batch = append(batch, s.Expand(Partial{
			Filename:           e.Filename,
			Registered:         true,
			AppliedAt:          e.AppliedAt,
			AppliedAtFormatted: e.AppliedAtFormatted,
		}))
	}
	s.MergeAll(batch)
}

// SyncRequested marks the local migrations named by tokens as requested.
// A token may be a filename, a basename or a numeric id; only local
// migrations can be requested. Tokens that match nothing are returned.
func (s *Store) SyncRequested(tokens []string) []string {
	local := s.List(OnlyLocal(Flags{}))

	var unresolved []string
	batch := make([]Record, 0, len(tokens))
	for _, token := range tokens {
		r, ok := resolve(local, token)
		if !ok {
			unresolved = append(unresolved, token)
			continue
		}
		batch = append(batch, s.Expand(Partial{Filename: r.Filename, Requested: true}))
	}

	s.MergeAll(batch)
	return unresolved
}

// LocalVariants lists every token that SyncRequested accepts: the filename,
// basename and id of each local migration.
func (s *Store) LocalVariants() []string {
	local := s.List(OnlyLocal(Flags{}))
	variants := make([]string, 0, len(local)*3)
	for _, r := range local {
		variants = append(variants, r.Filename, r.Basename, strconv.Itoa(r.ID))
	}
	return variants
}

// Matches reports whether token names r by filename, basename or id
func (r Record) Matches(token string) bool {
	return r.Filename == token || r.Basename == token || strconv.Itoa(r.ID) == token
}

func resolve(records []Record, token string) (Record, bool) {
	for _, r := range records {
		if r.Matches(token) {
			return r, true
		}
	}
	return Record{}, false
}

func (s *Store) readLocal(dir string) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: the local migrations directory could not be read: %s: %v", util.ErrInvalidConfig, dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsValidFilename(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func (s *Store) applyLocal(names []string) {
	s.UnsetLocal()

	batch := make([]Record, 0, len(names))
	for _, name := range names {
		batch = append(batch, s.Expand(Partial{Filename: name, Local: true}))
	}
	s.MergeAll(batch)

	util.DebugLog("Synced %d local migrations from %s", len(batch), s.dir)
}
