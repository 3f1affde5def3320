package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/camo/internal/ledger"
	"github.com/franz/camo/internal/migration"
	"github.com/franz/camo/internal/registry"
)

// contentLedger is a Ledger without stored checksums
type contentLedger struct {
	entries []registry.Entry
}

func (c *contentLedger) Connect(context.Context) error           { return nil }
func (c *contentLedger) CheckContentType(context.Context) error  { return nil }
func (c *contentLedger) CreateContentType(context.Context) error { return nil }
func (c *contentLedger) Register(context.Context, string, string) error {
	return nil
}

func (c *contentLedger) Entries(context.Context) ([]registry.Entry, error) {
	return c.entries, nil
}

func editedFixture(t *testing.T) (afero.Fs, *migration.Store) {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"100-one.ts":   "module.exports = 1\n",
		"200-two.ts":   "module.exports = 2 // changed\n",
		"300-three.ts": "module.exports = 3\n",
	}
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, "/m/"+name, []byte(content), 0644))
	}
	store, err := migration.Open(fs, "/m")
	require.NoError(t, err)
	return fs, store
}

func TestEditedSinceAppliedFromContent(t *testing.T) {
	ctx := context.Background()
	fs, store := editedFixture(t)

	l := &contentLedger{entries: []registry.Entry{
		{Name: "100-one.ts", Content: "module.exports = 1", AppliedAt: "T1"},
		{Name: "200-two.ts", Content: "module.exports = 2", AppliedAt: "T2"},
		{Name: "050-remote.ts", Content: "gone", AppliedAt: "T0"},
	}}
	entries, err := l.Entries(ctx)
	require.NoError(t, err)
	store.SyncRegistered(toApplied(entries, nil))

	sums := appliedChecksums(ctx, l, entries)
	assert.Len(t, sums, 3)
	assert.Equal(t, []string{"200-two.ts"}, editedSinceApplied(fs, store, sums))
}

func TestEditedSinceAppliedFromLedgerChecksums(t *testing.T) {
	ctx := context.Background()
	fs, store := editedFixture(t)

	db, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.CreateContentType(ctx))
	require.NoError(t, db.Register(ctx, "100-one.ts", "module.exports = 1"))
	require.NoError(t, db.Register(ctx, "200-two.ts", "module.exports = 2"))

	entries, err := db.Entries(ctx)
	require.NoError(t, err)
	store.SyncRegistered(toApplied(entries, nil))

	sums := appliedChecksums(ctx, db, entries)
	sum, err := db.Checksum(ctx, "100-one.ts")
	require.NoError(t, err)
	assert.Equal(t, sum, sums["100-one.ts"])

	assert.Equal(t, []string{"200-two.ts"}, editedSinceApplied(fs, store, sums))
}

func TestEditedSinceAppliedWithoutEntries(t *testing.T) {
	fs, store := editedFixture(t)
	assert.Empty(t, editedSinceApplied(fs, store, nil))
}
