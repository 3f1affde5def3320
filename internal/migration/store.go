package migration

import (
	"sort"

	"github.com/spf13/afero"
)

// Store holds the reconciled status of every migration seen in this run,
// keyed by filename and kept in lexicographic filename order.
//
// A Store is not safe for concurrent use; callers sequence directory sync,
// registry sync and request resolution one after another.
type Store struct {
	fs      afero.Fs
	dir     string
	records map[string]*Record
	order   []string
}

// New creates an empty Store reading local migrations through fs.
// Call SetLocalDirectory before syncing local files.
func New(fs afero.Fs) *Store {
	return &Store{
		fs:      fs,
		records: make(map[string]*Record),
	}
}

// Open creates a Store and performs the initial directory sync of dir
func Open(fs afero.Fs, dir string) (*Store, error) {
	s := New(fs)
	if err := s.SetLocalDirectory(dir); err != nil {
		return nil, err
	}
	return s, nil
}

// Directory returns the configured local migrations directory
func (s *Store) Directory() string {
	return s.dir
}

// Len returns the number of migrations in the store
func (s *Store) Len() int {
	return len(s.order)
}

// Get returns the record for filename
func (s *Store) Get(filename string) (Record, bool) {
	r, ok := s.records[filename]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Expand derives a Record from p against the configured directory
func (s *Store) Expand(p Partial) Record {
	return Expand(s.dir, p)
}

// Merge combines base and incoming against the configured directory
func (s *Store) Merge(base, incoming *Record) *Record {
	return Merge(s.dir, base, incoming)
}

// MergeAll merges a batch of records into the store, one filename at a time,
// and then restores filename order. Applying the same batch twice leaves the
// store as applying it once.
func (s *Store) MergeAll(records []Record) {
	for i := range records {
		incoming := records[i]
		key := incoming.Filename

		merged := s.Merge(s.records[key], &incoming)
		if merged == nil {
			delete(s.records, key)
			continue
		}
		s.records[key] = merged
	}

	s.reindex()
}

// remove drops filename from the store without re-sorting
func (s *Store) remove(filename string) {
	delete(s.records, filename)
}

func (s *Store) reindex() {
	order := make([]string, 0, len(s.records))
	for filename := range s.records {
		order = append(order, filename)
	}
	sort.Strings(order)
	s.order = order
}
