package migration

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore returns a store whose directory is set without a sync, so
// tests can drive MergeAll directly.
func newTestStore() *Store {
	s := New(afero.NewMemMapFs())
	s.dir = testDir
	return s
}

func registeredRecord(s *Store, filename, appliedAt string) Record {
	return s.Expand(Partial{
		Filename:           filename,
		Registered:         true,
		AppliedAt:          appliedAt,
		AppliedAtFormatted: "formatted " + appliedAt,
	})
}

// assertInvariants checks presence coupling and ordering for every record
func assertInvariants(t *testing.T, s *Store) {
	t.Helper()

	records := s.List(Flags{})
	require.Len(t, records, s.Len())
	assert.True(t, sort.SliceIsSorted(records, func(i, j int) bool {
		return records[i].Filename < records[j].Filename
	}), "records out of order")

	for _, r := range records {
		if r.Local {
			assert.Equal(t, filepath.Join(s.Directory(), r.Filename), r.Path, r.Filename)
		} else {
			assert.Empty(t, r.Path, r.Filename)
		}
		if !r.Registered {
			assert.Empty(t, r.AppliedAt, r.Filename)
			assert.Empty(t, r.AppliedAtFormatted, r.Filename)
		}
		assert.Equal(t, r.AppliedAt == "", r.AppliedAtFormatted == "", r.Filename)
	}
}

func TestMergeAllOrdersRegisteredThenLocal(t *testing.T) {
	s := newTestStore()

	s.MergeAll([]Record{
		registeredRecord(s, "300-x", "2022-01-01T00:00:00Z"),
		registeredRecord(s, "400-y", "2022-01-02T00:00:00Z"),
	})
	s.MergeAll([]Record{
		s.Expand(Partial{Filename: "200-two.ts", Local: true}),
		s.Expand(Partial{Filename: "100-one.ts", Local: true}),
	})

	assert.Equal(t, []string{"100-one.ts", "200-two.ts", "300-x", "400-y"}, s.Filenames(Flags{}))
	assertInvariants(t, s)
}

func TestMergeAllLocalThenRegistered(t *testing.T) {
	s := newTestStore()

	s.MergeAll([]Record{s.Expand(Partial{Filename: "100-one.ts", Local: true})})
	s.MergeAll([]Record{registeredRecord(s, "100-one.ts", testApplied)})

	require.Equal(t, 1, s.Len())
	r, ok := s.Get("100-one.ts")
	require.True(t, ok)
	assert.True(t, r.Local)
	assert.True(t, r.Registered)
	assert.Equal(t, filepath.Join(testDir, "100-one.ts"), r.Path)
	assert.Equal(t, testApplied, r.AppliedAt)
}

func TestMergeAllIsIdempotent(t *testing.T) {
	batch := func(s *Store) []Record {
		return []Record{
			s.Expand(Partial{Filename: "100-one.ts", Local: true}),
			registeredRecord(s, "100-one.ts", testApplied),
			s.Expand(Partial{Filename: "200-two.ts", Requested: true}),
			registeredRecord(s, "300-three.ts", testApplied),
		}
	}

	once := newTestStore()
	once.MergeAll(batch(once))

	twice := newTestStore()
	twice.MergeAll(batch(twice))
	twice.MergeAll(batch(twice))

	assert.Equal(t, once.Map(Flags{}), twice.Map(Flags{}))
	assert.Equal(t, once.Filenames(Flags{}), twice.Filenames(Flags{}))
}

func TestMergeAllFlagsOnlyPromote(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := newTestStore()

	seen := make(map[string]Record)
	for round := 0; round < 50; round++ {
		batch := make([]Record, 0, 5)
		for i := 0; i < 5; i++ {
			filename := fmt.Sprintf("%d-m.ts", rng.Intn(8))
			p := Partial{
				Filename:   filename,
				Local:      rng.Intn(3) == 0,
				Registered: rng.Intn(3) == 0,
				Requested:  rng.Intn(3) == 0,
			}
			if p.Registered && rng.Intn(2) == 0 {
				p.AppliedAt = fmt.Sprintf("t%d", round)
				p.AppliedAtFormatted = fmt.Sprintf("f%d", round)
			}
			batch = append(batch, s.Expand(p))
		}
		s.MergeAll(batch)

		for _, r := range s.List(Flags{}) {
			before, ok := seen[r.Filename]
			if ok {
				assert.True(t, r.Local || !before.Local, "local demoted: %s", r.Filename)
				assert.True(t, r.Registered || !before.Registered, "registered demoted: %s", r.Filename)
				assert.True(t, r.Requested || !before.Requested, "requested demoted: %s", r.Filename)
				if before.AppliedAt != "" {
					assert.NotEmpty(t, r.AppliedAt, "timestamp lost: %s", r.Filename)
				}
			}
			seen[r.Filename] = r
		}
		assertInvariants(t, s)
	}
}

func TestMergeAllOrderIsIndependentOfInsertion(t *testing.T) {
	names := []string{"20-y.ts", "100-x.ts", "3-z.ts", "1000-w.ts"}

	forward := newTestStore()
	for _, n := range names {
		forward.MergeAll([]Record{forward.Expand(Partial{Filename: n, Local: true})})
	}

	backward := newTestStore()
	for i := len(names) - 1; i >= 0; i-- {
		backward.MergeAll([]Record{backward.Expand(Partial{Filename: names[i], Local: true})})
	}

	// lexicographic, not numeric
	expected := []string{"100-x.ts", "1000-w.ts", "20-y.ts", "3-z.ts"}
	assert.Equal(t, expected, forward.Filenames(Flags{}))
	assert.Equal(t, expected, backward.Filenames(Flags{}))
}

func TestGetMissing(t *testing.T) {
	s := newTestStore()
	_, ok := s.Get("100-none.ts")
	assert.False(t, ok)
}
