package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/camo/internal/migration"
	"github.com/franz/camo/internal/util"
)

func testStore(t *testing.T) *migration.Store {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, name := range []string{"100-one.ts", "200-two.ts", "300-three.js"} {
		require.NoError(t, afero.WriteFile(fs, "/m/"+name, []byte("x"), 0644))
	}
	store, err := migration.Open(fs, "/m")
	require.NoError(t, err)

	store.SyncRegistered([]migration.Applied{
		{Filename: "050-remote.ts", AppliedAt: "2024-01-02T10:00:00Z", AppliedAtFormatted: "Tue, 02 Jan 2024, 10:00:00 UTC"},
		{Filename: "100-one.ts", AppliedAt: "2024-01-03T10:00:00Z", AppliedAtFormatted: "Wed, 03 Jan 2024, 10:00:00 UTC"},
	})
	return store
}

func filenames(records []migration.Record) string {
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Filename
	}
	return strings.Join(names, ",")
}

func TestParseListArgs(t *testing.T) {
	store := testStore(t)

	tests := []struct {
		args []string
		want string
	}{
		{nil, "050-remote.ts,100-one.ts,200-two.ts,300-three.js"},
		{[]string{"local"}, "100-one.ts,200-two.ts,300-three.js"},
		{[]string{"registered"}, "050-remote.ts,100-one.ts"},
		{[]string{"local", "registered"}, "100-one.ts"},
		{[]string{"Registered", "LOCAL"}, "100-one.ts"},
		{[]string{"unregistered"}, "200-two.ts,300-three.js"},
		{[]string{"200", "300-three", "050-remote.ts"}, "050-remote.ts,200-two.ts,300-three.js"},
		{[]string{"999"}, ""},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			q := parseListArgs(tt.args)
			assert.NotEmpty(t, q.title)
			assert.Equal(t, tt.want, filenames(selectRecords(store, q)))
		})
	}
}

func TestPrintStatus(t *testing.T) {
	util.SetColors(false)
	store := testStore(t)
	now := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	printStatus(&buf, "all migrations", store.List(migration.Flags{}), now)
	out := buf.String()

	assert.Contains(t, out, "4 all migrations")
	assert.Contains(t, out, "Registered")
	assert.Contains(t, out, "Wed, 03 Jan 2024, 10:00:00 UTC (2 days ago)")

	lines := strings.Split(out, "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "200-two.ts") {
			assert.True(t, strings.HasSuffix(strings.TrimRight(line, " "), "-"), "unregistered rows have no applied time: %q", line)
		}
	}
}

func TestPrintStatusEmpty(t *testing.T) {
	util.SetColors(false)

	var buf bytes.Buffer
	printStatus(&buf, "matching migrations", nil, time.Now())
	assert.Equal(t, "Warning: No matching migrations found.\n", buf.String())
}

func TestPrintField(t *testing.T) {
	store := testStore(t)

	var buf bytes.Buffer
	printField(&buf, pluckRecords(store, parseListArgs([]string{"unregistered"}), migration.FieldID))
	assert.Equal(t, "200\n300\n", buf.String())
}

func TestPluckRecords(t *testing.T) {
	store := testStore(t)

	tests := []struct {
		args  []string
		field migration.Field
		want  []any
	}{
		{nil, migration.FieldFilename, []any{"050-remote.ts", "100-one.ts", "200-two.ts", "300-three.js"}},
		{[]string{"registered"}, migration.FieldLocal, []any{false, true}},
		{[]string{"300", "100-one"}, migration.FieldBasename, []any{"100-one", "300-three"}},
		{[]string{"999"}, migration.FieldFilename, []any{}},
	}

	for _, tt := range tests {
		q := parseListArgs(tt.args)
		assert.Equal(t, tt.want, pluckRecords(store, q, tt.field), "args %v", tt.args)
		assert.Len(t, pluckRecords(store, q, tt.field), len(selectRecords(store, q)), "args %v", tt.args)
	}
}
