package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/franz/camo/internal/ledger"
	"github.com/franz/camo/internal/migration"
	"github.com/franz/camo/internal/registry"
	"github.com/franz/camo/internal/runner"
	"github.com/franz/camo/internal/util"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure camo can operate correctly.

This command checks:
- The migration command (npx contentful-migration by default)
- The local migrations directory and its file names
- Credentials (access token and space ID)
- Ledger reachability and the migration content type
- SQLite version and, with --ledger sqlite, the ledger database

Use this command to troubleshoot issues before running 'camo migrate'.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== camo doctor - System Diagnostics ===")
	util.InfoLog("")

	s := loadSettings()
	results := []checkResult{}

	// 1. Check the migration command
	results = append(results, checkMigrationCommand(s.MigrationCommand))

	// 2. Check the local directory
	results = append(results, checkMigrationsDirectory(afero.NewOsFs(), s.LocalDirectory))

	// 3. Check credentials
	results = append(results, checkCredentials(s))

	// 4. Check SQLite
	results = append(results, checkSQLite())

	// 5. Check the ledger
	if s.Ledger == ledgerSQLite {
		results = append(results, checkDatabase(s.LedgerDB))
	}
	if s.require() == nil {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		results = append(results, checkLedger(ctx, s))
		cancel()
	}

	// Print results
	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("Some critical checks failed. Please resolve errors before running camo.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("All checks passed! camo is ready to migrate.")
	}

	return nil
}

// checkMigrationCommand verifies the migration program can be found
func checkMigrationCommand(command string) checkResult {
	executor, err := runner.NewCommandExecutor(command, runner.Credentials{})
	if err != nil {
		return checkResult{
			name:    "Migration command",
			error:   true,
			message: err.Error(),
		}
	}

	path, err := exec.LookPath(executor.Program())
	if err != nil {
		return checkResult{
			name:    "Migration command",
			error:   true,
			message: fmt.Sprintf("%s not found (required to apply migrations)", executor.Program()),
		}
	}

	return checkResult{
		name:    "Migration command",
		message: path,
	}
}

// checkMigrationsDirectory verifies the directory is readable and reports
// files that will be ignored because of their names
func checkMigrationsDirectory(fs afero.Fs, dir string) checkResult {
	store, err := migration.Open(fs, dir)
	if err != nil {
		return checkResult{
			name:    "Migrations directory",
			error:   true,
			message: util.ErrorMessage(err),
		}
	}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return checkResult{
			name:    "Migrations directory",
			error:   true,
			message: fmt.Sprintf("cannot read %s: %v", dir, err),
		}
	}

	var ignored int
	for _, entry := range entries {
		if !entry.IsDir() && !migration.IsValidFilename(entry.Name()) {
			ignored++
		}
	}

	local := len(store.Filenames(migration.OnlyLocal(migration.Flags{})))
	if ignored > 0 {
		return checkResult{
			name:    "Migrations directory",
			warning: true,
			message: fmt.Sprintf("%s (%d migrations, %d files ignored: names must look like 100-add-author.ts)", dir, local, ignored),
		}
	}

	return checkResult{
		name:    "Migrations directory",
		message: fmt.Sprintf("%s (%d migrations)", dir, local),
	}
}

// checkCredentials verifies a token and space are configured
func checkCredentials(s settings) checkResult {
	if s.Ledger == ledgerSQLite {
		if s.AccessToken == "" || s.SpaceID == "" {
			return checkResult{
				name:    "Credentials",
				warning: true,
				message: "access token or space ID missing (needed by the migration command)",
			}
		}
	}

	switch {
	case s.AccessToken == "":
		return checkResult{
			name:    "Credentials",
			error:   true,
			message: "no access token (use --access-token, CONTENTFUL_MIGRATION_ACCESS_TOKEN or 'camo login')",
		}
	case s.SpaceID == "":
		return checkResult{
			name:    "Credentials",
			error:   true,
			message: "no space ID (use --space-id or CONTENTFUL_MIGRATION_SPACE_ID)",
		}
	}

	return checkResult{
		name:    "Credentials",
		message: fmt.Sprintf("token from %s, space %s/%s", s.TokenSource, s.SpaceID, s.EnvironmentID),
	}
}

// checkSQLite verifies SQLite version
func checkSQLite() checkResult {
	// modernc.org/sqlite needs no external sqlite
	version := ledger.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies the ledger database file
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Ledger database",
			warning: true,
			message: "no database path specified (use --ledger-db flag or config)",
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Ledger database",
				message: fmt.Sprintf("%s (will be created on first run)", dbPath),
			}
		}
		return checkResult{
			name:    "Ledger database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Ledger database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	db, err := ledger.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Ledger database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Ledger database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	return checkResult{
		name:    "Ledger database",
		message: fmt.Sprintf("%s (%s)", dbPath, humanize.Bytes(uint64(info.Size()))),
	}
}

// checkLedger connects to the ledger and looks for the content type
func checkLedger(ctx context.Context, s settings) checkResult {
	name := fmt.Sprintf("Ledger (%s)", s.Ledger)

	l, closeLedger, err := openLedger(ctx, s)
	if err != nil {
		return checkResult{
			name:    name,
			error:   true,
			message: util.ErrorMessage(errors.Unwrap(err)),
		}
	}
	defer closeLedger()

	err = l.CheckContentType(ctx)
	if errors.Is(err, registry.ErrContentTypeNotFound) {
		return checkResult{
			name:    name,
			warning: true,
			message: fmt.Sprintf("content type %q does not exist (run 'camo init')", s.ContentTypeID),
		}
	}
	if err != nil {
		return checkResult{
			name:    name,
			error:   true,
			message: util.ErrorMessage(err),
		}
	}

	entries, err := l.Entries(ctx)
	if err != nil {
		return checkResult{
			name:    name,
			error:   true,
			message: util.ErrorMessage(err),
		}
	}

	return checkResult{
		name:    name,
		message: fmt.Sprintf("content type %q, %d registered migrations", s.ContentTypeID, len(entries)),
	}
}
