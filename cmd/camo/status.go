package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/franz/camo/internal/migration"
	"github.com/franz/camo/internal/registry"
	"github.com/franz/camo/internal/ui"
	"github.com/franz/camo/internal/util"
)

var statusCmd = &cobra.Command{
	Use:     "status [local|registered|unregistered|migration...]",
	Aliases: []string{"list", "ls"},
	Short:   "Show local and registered migrations",
	Long: `Show every migration known locally or in the ledger.

Arguments narrow the listing:
  local                 migrations with a local file
  registered            migrations registered in the ledger
  local registered      migrations that are both
  unregistered          local migrations that are not registered yet
  <migration...>        migrations named by filename, basename or id

Use --field to print a single column, one value per line, for scripting.
Use --watch to keep the listing current while files are added or removed.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().String("field", "", "print only this field (filename, basename, id, local, registered, path, appliedAt, appliedAtFormatted)")
	statusCmd.Flags().BoolP("watch", "w", false, "re-render when the local directory changes")
}

// listQuery is a parsed status argument list
type listQuery struct {
	title  string
	flags  migration.Flags
	tokens []string
}

func parseListArgs(args []string) listQuery {
	has := make(map[string]bool, len(args))
	for _, a := range args {
		has[strings.ToLower(a)] = true
	}

	switch {
	case has["local"] && has["registered"]:
		return listQuery{
			title: "migrations that are local and registered",
			flags: migration.Flags{Local: migration.Is(true), Registered: migration.Is(true)},
		}
	case has["local"]:
		return listQuery{
			title: "migrations that are local",
			flags: migration.OnlyLocal(migration.Flags{}),
		}
	case has["registered"]:
		return listQuery{
			title: "migrations that are registered",
			flags: migration.OnlyRegistered(migration.Flags{}),
		}
	case has["unregistered"]:
		return listQuery{
			title: "migrations that are local and unregistered",
			flags: migration.Unregistered(migration.Flags{}),
		}
	case len(args) > 0:
		return listQuery{
			title:  "matching migrations",
			tokens: args,
		}
	}
	return listQuery{title: "all migrations"}
}

// selectRecords applies q to the store
func selectRecords(store *migration.Store, q listQuery) []migration.Record {
	records := store.List(q.flags)
	if len(q.tokens) == 0 {
		return records
	}

	matched := make([]migration.Record, 0, len(q.tokens))
	for _, r := range records {
		for _, token := range q.tokens {
			if r.Matches(token) {
				matched = append(matched, r)
				break
			}
		}
	}
	return matched
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	s := loadSettings()
	if err := s.require(); err != nil {
		return err
	}

	var field *migration.Field
	if name, _ := cmd.Flags().GetString("field"); name != "" {
		f, err := migration.ParseField(name)
		if err != nil {
			return fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
		}
		field = &f
	}

	store, err := openStore(s)
	if err != nil {
		return err
	}

	l, closeLedger, err := openLedger(ctx, s)
	if err != nil {
		return err
	}
	defer closeLedger()

	var sums map[string]string
	switch err := l.CheckContentType(ctx); {
	case errors.Is(err, registry.ErrContentTypeNotFound):
		util.WarnLog("The content type %q does not exist yet; run 'camo init'", s.ContentTypeID)
	case err != nil:
		return fail(exitContentTypeFind, "There was a problem finding the Contentful migration content type.", err)
	default:
		entries, err := fetchEntries(ctx, l)
		if err != nil {
			return err
		}
		store.SyncRegistered(toApplied(entries, time.Local))
		sums = appliedChecksums(ctx, l, entries)
	}

	fs := afero.NewOsFs()
	q := parseListArgs(args)
	render := func() {
		if field != nil {
			printField(out, pluckRecords(store, q, *field))
			return
		}
		printStatus(out, q.title, selectRecords(store, q), time.Now())
		if edited := editedSinceApplied(fs, store, sums); len(edited) > 0 {
			fmt.Fprintln(out)
			fmt.Fprintln(out, ui.Warning("The following migrations were edited after they were applied:"))
			ui.List(out, "", edited)
		}
	}
	render()

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		return watchDirectory(ctx, store, render)
	}
	return nil
}

// pluckRecords projects field of the records q selects
func pluckRecords(store *migration.Store, q listQuery, field migration.Field) []any {
	values := store.Pluck(q.flags, field)
	if len(q.tokens) == 0 {
		return values
	}

	// Pluck and List share order, so tokens filter by position
	matched := make([]any, 0, len(q.tokens))
	for i, r := range store.List(q.flags) {
		for _, token := range q.tokens {
			if r.Matches(token) {
				matched = append(matched, values[i])
				break
			}
		}
	}
	return matched
}

func printField(w io.Writer, values []any) {
	for _, v := range values {
		fmt.Fprintln(w, v)
	}
}

func printStatus(w io.Writer, title string, records []migration.Record, now time.Time) {
	if len(records) == 0 {
		fmt.Fprintln(w, ui.Warning("No matching migrations found."))
		return
	}

	fmt.Fprintf(w, "%d %s\n\n", len(records), title)

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.Filename, ui.Mark(r.Local), ui.Mark(r.Registered), appliedColumn(r, now)})
	}
	ui.Table(w, []string{"Name", "Local", "Registered", "Applied"}, rows)
}

func appliedColumn(r migration.Record, now time.Time) string {
	if !r.Registered || r.AppliedAt == "" {
		return "-"
	}
	t, err := registry.ParseAppliedAt(r.AppliedAt)
	if err != nil {
		return r.AppliedAtFormatted
	}
	return fmt.Sprintf("%s (%s)", r.AppliedAtFormatted, humanize.RelTime(t, now, "ago", "from now"))
}

// watchDirectory re-syncs the local directory after each burst of changes
// until ctx is done
func watchDirectory(ctx context.Context, store *migration.Store, render func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", store.Directory(), err)
	}
	defer watcher.Close()

	if err := watcher.Add(store.Directory()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", store.Directory(), err)
	}
	util.InfoLog("Watching %s (Ctrl-C to stop)", store.Directory())

	const debounce = 250 * time.Millisecond
	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !migration.IsValidFilename(filepath.Base(event.Name)) {
				continue
			}
			util.DebugLog("%s: %s", event.Op, event.Name)
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			util.WarnLog("Watch error: %v", err)

		case <-timer.C:
			if err := store.SyncLocal(); err != nil {
				return fail(exitEngine, "Could not read the local migrations directory.", err)
			}
			render()
		}
	}
}
