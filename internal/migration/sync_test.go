package migration

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/camo/internal/util"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMigrations(t *testing.T, fs afero.Fs, dir string, names ...string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(dir, 0755))
	for _, name := range names {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, name), []byte("module.exports = function () {}\n"), 0644))
	}
}

func TestOpenSyncsValidFilesOnly(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeMigrations(t, fs, "/m", "100-one.ts", "200-two.js", "README.md", "300.ts", "no-id.ts")
	require.NoError(t, fs.MkdirAll("/m/400-a-directory.ts", 0755))

	s, err := Open(fs, "/m")
	require.NoError(t, err)

	assert.Equal(t, "/m", s.Directory())
	assert.Equal(t, []string{"100-one.ts", "200-two.js"}, s.Filenames(Flags{}))
	for _, r := range s.List(Flags{}) {
		assert.True(t, r.Local)
		assert.Equal(t, filepath.Join("/m", r.Filename), r.Path)
	}
}

func TestSetLocalDirectoryErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeMigrations(t, fs, "/m", "100-one.ts")
	require.NoError(t, afero.WriteFile(fs, "/file.txt", []byte("x"), 0644))

	tests := []struct {
		name string
		dir  string
	}{
		{"empty", ""},
		{"missing", "/nope"},
		{"not a directory", "/file.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(fs, "/m")
			require.NoError(t, err)

			err = s.SetLocalDirectory(tt.dir)
			require.Error(t, err)
			assert.True(t, errors.Is(err, util.ErrInvalidConfig))

			// unchanged on failure
			assert.Equal(t, "/m", s.Directory())
			assert.Equal(t, []string{"100-one.ts"}, s.Filenames(Flags{}))
		})
	}
}

func TestSetLocalDirectoryUnreadable(t *testing.T) {
	base := afero.NewMemMapFs()
	writeMigrations(t, base, "/m", "100-one.ts")
	fs := &unreadableFs{Fs: base, dir: "/m"}

	_, err := Open(fs, "/m")
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrInvalidConfig))
	assert.Contains(t, err.Error(), "could not be read")
}

func TestSyncLocalWithoutDirectory(t *testing.T) {
	s := New(afero.NewMemMapFs())
	err := s.SyncLocal()
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrInvalidConfig))
}

func TestSyncLocalDemotesRemovedFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeMigrations(t, fs, "/m", "100-one.ts", "200-two.ts", "300-three.ts")

	s, err := Open(fs, "/m")
	require.NoError(t, err)
	s.SyncRegistered([]Applied{{
		Filename:           "200-two.ts",
		AppliedAt:          testApplied,
		AppliedAtFormatted: testFormatted,
	}})

	require.NoError(t, fs.Remove("/m/100-one.ts"))
	require.NoError(t, fs.Remove("/m/200-two.ts"))
	require.NoError(t, s.SyncLocal())

	_, ok := s.Get("100-one.ts")
	assert.False(t, ok, "local-only migration should be gone")

	r, ok := s.Get("200-two.ts")
	require.True(t, ok)
	assert.False(t, r.Local)
	assert.Empty(t, r.Path)
	assert.True(t, r.Registered)
	assert.Equal(t, testApplied, r.AppliedAt)
	assert.Equal(t, testFormatted, r.AppliedAtFormatted)

	assert.Equal(t, []string{"200-two.ts", "300-three.ts"}, s.Filenames(Flags{}))
	assertInvariants(t, s)
}

func TestSetLocalDirectoryRecomputesPaths(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeMigrations(t, fs, "/a", "100-one.ts", "200-two.ts")
	writeMigrations(t, fs, "/b", "100-one.ts")

	s, err := Open(fs, "/a")
	require.NoError(t, err)
	require.NoError(t, s.SetLocalDirectory("/b"))

	assert.Equal(t, []string{"100-one.ts"}, s.Filenames(Flags{}))
	r, _ := s.Get("100-one.ts")
	assert.Equal(t, "/b/100-one.ts", r.Path)
}

func TestSyncRegisteredSkipsInvalidNames(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeMigrations(t, fs, "/m", "100-one.ts")
	s, err := Open(fs, "/m")
	require.NoError(t, err)

	s.SyncRegistered([]Applied{
		{Filename: "100-one.ts", AppliedAt: testApplied, AppliedAtFormatted: testFormatted},
		{Filename: "500-remote-only.js", AppliedAt: testApplied, AppliedAtFormatted: testFormatted},
		{Filename: "not a migration", AppliedAt: testApplied},
	})

	assert.Equal(t, []string{"100-one.ts", "500-remote-only.js"}, s.Filenames(Flags{}))
	assert.Equal(t, []string{"100-one.ts"}, s.Filenames(OnlyLocal(Flags{Registered: Is(true)})))
	assert.Equal(t, []string{"500-remote-only.js"}, s.Filenames(OnlyRegistered(Flags{Local: Is(false)})))
	assertInvariants(t, s)

	// a second fetch never demotes
	s.SyncRegistered(nil)
	assert.Len(t, s.Filenames(OnlyRegistered(Flags{})), 2)
}

func TestSyncRequested(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeMigrations(t, fs, "/m", "100-one.ts", "200-two.ts", "300-three.ts")
	s, err := Open(fs, "/m")
	require.NoError(t, err)
	s.SyncRegistered([]Applied{{Filename: "400-remote.ts", AppliedAt: testApplied, AppliedAtFormatted: testFormatted}})

	unresolved := s.SyncRequested([]string{"100", "two-hundred-typo", "200-two", "300-three.ts", "400-remote.ts"})

	assert.Equal(t, []string{"two-hundred-typo", "400-remote.ts"}, unresolved)
	assert.Equal(t, []string{"100-one.ts", "200-two.ts", "300-three.ts"}, s.Filenames(OnlyRequested(Flags{})))

	r, _ := s.Get("400-remote.ts")
	assert.False(t, r.Requested)
}

func TestSyncRequestedOnlyTypoDropped(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeMigrations(t, fs, "/m", "100-one.ts", "200-two.ts")
	s, err := Open(fs, "/m")
	require.NoError(t, err)

	unresolved := s.SyncRequested([]string{"100", "two-hundred-typo"})

	assert.Equal(t, []string{"two-hundred-typo"}, unresolved)
	assert.Equal(t, []string{"100-one.ts"}, s.Filenames(OnlyRequested(Flags{})))
	assert.Equal(t, 2, s.Len())
}

func TestSyncRequestedNeverUnrequests(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeMigrations(t, fs, "/m", "100-one.ts", "200-two.ts")
	s, err := Open(fs, "/m")
	require.NoError(t, err)

	s.SyncRequested([]string{"100"})
	s.SyncRequested([]string{"200"})
	s.SyncRequested(nil)

	assert.Equal(t, []string{"100-one.ts", "200-two.ts"}, s.Filenames(OnlyRequested(Flags{})))
}

func TestLocalVariants(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeMigrations(t, fs, "/m", "100-one.ts", "200-two.js")
	s, err := Open(fs, "/m")
	require.NoError(t, err)
	s.SyncRegistered([]Applied{{Filename: "300-remote.ts"}})

	assert.Equal(t, []string{
		"100-one.ts", "100-one", "100",
		"200-two.js", "200-two", "200",
	}, s.LocalVariants())
}

// unreadableFs lets Stat succeed but fails to open dir for listing
type unreadableFs struct {
	afero.Fs
	dir string
}

func (u *unreadableFs) Open(name string) (afero.File, error) {
	if name == u.dir {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return u.Fs.Open(name)
}

func TestSyncRegisteredHalfTimestamps(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeMigrations(t, fs, "/m", "100-a.ts")
	s, err := Open(fs, "/m")
	require.NoError(t, err)

	s.SyncRegistered([]Applied{{Filename: "100-a.ts", AppliedAt: "T1", AppliedAtFormatted: "F1"}})
	s.SyncRegistered([]Applied{
		{Filename: "100-a.ts", AppliedAt: "T2"},
		{Filename: "200-b.ts", AppliedAt: "garbage"},
	})

	a, _ := s.Get("100-a.ts")
	assert.Equal(t, "T1", a.AppliedAt)
	assert.Equal(t, "F1", a.AppliedAtFormatted)

	b, ok := s.Get("200-b.ts")
	require.True(t, ok)
	assert.True(t, b.Registered)
	assert.Empty(t, b.AppliedAt)
	assert.Empty(t, b.AppliedAtFormatted)

	assertInvariants(t, s)
}

func TestUnsetLocalDropsRequests(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeMigrations(t, fs, "/m", "100-one.ts", "200-two.ts")

	s, err := Open(fs, "/m")
	require.NoError(t, err)
	s.SyncRegistered([]Applied{{
		Filename:           "200-two.ts",
		AppliedAt:          testApplied,
		AppliedAtFormatted: testFormatted,
	}})
	assert.Empty(t, s.SyncRequested([]string{"100", "200"}))

	s.UnsetLocal()

	_, ok := s.Get("100-one.ts")
	assert.False(t, ok)

	r, ok := s.Get("200-two.ts")
	require.True(t, ok)
	assert.True(t, r.Registered)
	assert.False(t, r.Local)
	assert.False(t, r.Requested)
	assert.Empty(t, s.Filenames(OnlyRequested(Flags{})))
	assertInvariants(t, s)

	// a resync restores the files but not the requests
	require.NoError(t, s.SyncLocal())
	assert.Equal(t, []string{"100-one.ts", "200-two.ts"}, s.Filenames(OnlyLocal(Flags{})))
	assert.Empty(t, s.Filenames(OnlyRequested(Flags{})))
	assertInvariants(t, s)
}
