package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/camo/internal/migration"
	"github.com/franz/camo/internal/report"
	"github.com/franz/camo/internal/runner"
	"github.com/franz/camo/internal/ui"
	"github.com/franz/camo/internal/util"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [migration...]",
	Short: "Apply local migrations that are not registered yet",
	Long: `Apply migrations from the local directory to the target environment.

Without arguments every local migration that is not registered is applied,
in filename order. With arguments only the named migrations are applied; a
migration can be named by its filename (100-add-author.ts), its basename
(100-add-author) or its numeric id (100).

Every applied migration is registered as an entry of the migration content
type, so it is never applied twice. The first failing migration stops the
run.

Use --dry to list what would be applied without applying anything.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().StringSliceP("migrations", "m", nil, "migrations to apply (filename, basename or id)")
	migrateCmd.Flags().BoolP("dry", "d", false, "list the migrations that would be applied without applying them")
	migrateCmd.Flags().Int("concurrency", 4, "parallel file checks before applying")
	migrateCmd.Flags().Bool("report", true, "write a markdown summary of the run to the events directory")

	viper.BindPFlag("dry", migrateCmd.Flags().Lookup("dry"))
	viper.BindPFlag("concurrency", migrateCmd.Flags().Lookup("concurrency"))
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	s := loadSettings()
	dryRun := viper.GetBool("dry")

	requestedFlag, _ := cmd.Flags().GetStringSlice("migrations")
	tokens := append(requestedFlag, args...)

	if err := s.require(); err != nil {
		return err
	}

	details := connectionDetails(s)
	if dryRun {
		details = append(details, [2]string{"Dry Run", "yes"})
	}
	ui.Definitions(out, details)
	fmt.Fprintln(out)

	store, err := openStore(s)
	if err != nil {
		return err
	}

	logger := newEventLogger(s)
	defer logger.Close()
	logger.LogSyncLocal(store.Directory(), len(store.Filenames(migration.OnlyLocal(migration.Flags{}))))

	l, closeLedger, err := openLedger(ctx, s)
	if err != nil {
		return err
	}
	defer closeLedger()

	if _, err := ensureContentType(ctx, l, out); err != nil {
		return err
	}

	entries, err := fetchEntries(ctx, l)
	if err != nil {
		return err
	}
	store.SyncRegistered(toApplied(entries, time.Local))
	logger.LogSyncRegistered(s.Ledger, len(entries))

	// Edited migrations are never re-applied
	if edited := editedSinceApplied(afero.NewOsFs(), store, appliedChecksums(ctx, l, entries)); len(edited) > 0 {
		fmt.Fprintln(out, ui.Warning("The following migrations were edited after they were applied:"))
		ui.List(out, "", edited)
	}

	// Registered migrations whose files are gone usually mean the local
	// directory is behind the environment
	orphaned := store.Filenames(migration.OnlyRegistered(migration.Flags{Local: migration.Is(false)}))
	if len(orphaned) > 0 {
		fmt.Fprintln(out, ui.Warning("The following migrations are registered in Contentful but have no local file:"))
		ui.List(out, "", orphaned)
		if err := confirmOrAbort("Do you wish to proceed anyway?"); err != nil {
			return err
		}
	}

	var (
		targets    []string
		unresolved []string
	)

	if len(tokens) == 0 {
		targets = store.Filenames(migration.Unregistered(migration.Flags{}))
		if len(targets) == 0 {
			fmt.Fprintln(out, ui.Success("All local migrations are already registered in Contentful"))
			return nil
		}
	} else {
		unresolved = store.SyncRequested(tokens)
		logRequests(logger, store, tokens, unresolved)
		if len(unresolved) > 0 {
			fmt.Fprintln(out, ui.Warning("The following requested migrations do not match any local migration:"))
			ui.List(out, "", unresolved)
		}

		// nil keeps requested migrations whatever their registration
		var applyRegistered *bool
		again := store.Filenames(migration.OnlyRequested(migration.Flags{Registered: migration.Is(true)}))
		if len(again) > 0 {
			fmt.Fprintln(out, ui.Warning("The following requested migrations are already registered in Contentful:"))
			ui.List(out, "", again)
			ok, err := ui.Confirm("Do you wish to remove these migrations from the migration process?", "", true)
			if err != nil {
				return err
			}
			if ok {
				applyRegistered = migration.Is(false)
			}
		}

		targets = store.Filenames(migration.OnlyRequested(migration.Flags{Registered: applyRegistered}))
		if len(targets) == 0 {
			fmt.Fprintln(out, ui.Warning("No local migrations match the requested migrations"))
			return nil
		}
	}

	if !dryRun {
		ui.List(out, "The following migrations will be applied:", targets)
		if err := confirmOrAbort("Do you wish to proceed with the migration?"); err != nil {
			return err
		}
	}

	executor, err := runner.NewCommandExecutor(s.MigrationCommand, runner.Credentials{
		AccessToken:   s.AccessToken,
		SpaceID:       s.SpaceID,
		EnvironmentID: s.EnvironmentID,
	})
	if err != nil {
		return fail(exitApply, "There was a problem applying the Contentful migrations.", err)
	}

	r := runner.New(&runner.Config{
		Fs:          afero.NewOsFs(),
		Executor:    executor,
		Ledger:      l,
		DryRun:      dryRun,
		Concurrency: viper.GetInt("concurrency"),
		Progress:    util.IsInteractive(),
		Out:         out,
		Logger:      logger,
	})

	result, runErr := r.Run(ctx, toTargets(store, targets))

	if writeReport, _ := cmd.Flags().GetBool("report"); writeReport {
		writeSummary(s, dryRun, result, unresolved, logger)
	}

	if runErr != nil {
		return fail(exitApply, "There was a problem applying the Contentful migrations.", runErr)
	}

	if !dryRun {
		fmt.Fprintln(out, ui.Success("Applied %d migrations.", result.Count(report.StatusApplied)))
	}
	return nil
}

// confirmOrAbort turns a declined confirmation into util.ErrAborted
func confirmOrAbort(title string) error {
	ok, err := ui.Confirm(title, "", false)
	if err != nil {
		return err
	}
	if !ok {
		return util.ErrAborted
	}
	return nil
}

func toTargets(store *migration.Store, filenames []string) []runner.Target {
	targets := make([]runner.Target, 0, len(filenames))
	for _, filename := range filenames {
		r, _ := store.Get(filename)
		targets = append(targets, runner.Target{Filename: r.Filename, Path: r.Path})
	}
	return targets
}

func logRequests(logger *report.EventLogger, store *migration.Store, tokens, unresolved []string) {
	missing := make(map[string]bool, len(unresolved))
	for _, token := range unresolved {
		missing[token] = true
	}

	local := store.List(migration.OnlyLocal(migration.Flags{}))
	for _, token := range tokens {
		if missing[token] {
			logger.LogRequest(token, "")
			continue
		}
		for _, r := range local {
			if r.Matches(token) {
				logger.LogRequest(token, r.Filename)
				break
			}
		}
	}
}

func newEventLogger(s settings) *report.EventLogger {
	if s.EventsDir == "" {
		return report.NullLogger()
	}

	level := report.LevelInfo
	if viper.GetBool("quiet") {
		level = report.LevelWarning
	} else if viper.GetBool("verbose") {
		level = report.LevelDebug
	}

	logger, err := report.NewEventLogger(s.EventsDir, level)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}
	util.DebugLog("Event log: %s", logger.Path())
	return logger
}

func writeSummary(s settings, dryRun bool, result *runner.Result, unresolved []string, logger *report.EventLogger) {
	if s.EventsDir == "" || result == nil || len(result.Items) == 0 {
		return
	}

	summary := &report.SummaryReport{
		GeneratedAt:  time.Now(),
		Duration:     result.Duration,
		Directory:    s.LocalDirectory,
		Ledger:       s.Ledger,
		DryRun:       dryRun,
		Items:        result.Items,
		Unresolved:   unresolved,
		EventLogPath: logger.Path(),
	}

	path := filepath.Join(s.EventsDir, fmt.Sprintf("summary-%s.md", summary.GeneratedAt.Format("20060102-150405")))
	if err := report.WriteMarkdownReport(summary, path); err != nil {
		util.WarnLog("Failed to write summary: %v", err)
		return
	}
	util.InfoLog("Summary: %s", path)
}
