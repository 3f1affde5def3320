package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/franz/camo/internal/credential"
	"github.com/franz/camo/internal/ledger"
	"github.com/franz/camo/internal/migration"
	"github.com/franz/camo/internal/registry"
	"github.com/franz/camo/internal/util"
)

const (
	ledgerContentful = "contentful"
	ledgerSQLite     = "sqlite"
)

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (CONTENTFUL_MIGRATION_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := strings.TrimSpace(viper.GetString(key))
	if val == "" {
		return defaultValue
	}
	return val
}

// settings is the resolved configuration of one command
type settings struct {
	AccessToken      string
	TokenSource      string
	SpaceID          string
	EnvironmentID    string
	ContentTypeID    string
	ContentTypeName  string
	LocalDirectory   string
	Ledger           string
	LedgerDB         string
	MigrationCommand string
	EventsDir        string
}

func loadSettings() settings {
	s := settings{
		AccessToken:      GetConfigString("access-token", ""),
		TokenSource:      "flag or environment",
		SpaceID:          GetConfigString("space-id", ""),
		EnvironmentID:    GetConfigString("environment-id", registry.DefaultEnvironmentID),
		ContentTypeID:    GetConfigString("content-type-id", registry.DefaultContentTypeID),
		ContentTypeName:  GetConfigString("content-type-name", registry.DefaultContentTypeName),
		LocalDirectory:   resolveDirectory(GetConfigString("local-directory", "migrations")),
		Ledger:           strings.ToLower(GetConfigString("ledger", ledgerContentful)),
		LedgerDB:         GetConfigString("ledger-db", "camo-ledger.db"),
		MigrationCommand: GetConfigString("migration-command", ""),
		EventsDir:        GetConfigString("events-dir", ""),
	}

	if s.AccessToken == "" {
		token, err := credential.Get(credential.AccessTokenKey)
		switch {
		case err == nil:
			s.AccessToken = token
			s.TokenSource = "keyring"
		case !errors.Is(err, util.ErrNotFound):
			util.DebugLog("Keyring unavailable: %v", err)
		}
	}
	if s.AccessToken == "" {
		s.TokenSource = ""
	}

	return s
}

// require checks the options a Contentful connection needs, in the order
// and with the exit codes the tool has always used
func (s settings) require() error {
	if s.Ledger != ledgerContentful && s.Ledger != ledgerSQLite {
		return fail(exitEngine, "Unknown ledger.", fmt.Errorf("%w: %q is not contentful or sqlite", util.ErrInvalidConfig, s.Ledger))
	}

	checks := []struct {
		value string
		code  int
		name  string
		flag  string
	}{
		{s.AccessToken, exitAccessToken, "access token", "--access-token"},
		{s.SpaceID, exitSpaceID, "space ID", "--space-id"},
		{s.EnvironmentID, exitEnvironmentID, "environment ID", "--environment-id"},
		{s.ContentTypeID, exitContentTypeID, "content type ID", "--content-type-id"},
		{s.ContentTypeName, exitContentTypeName, "content type name", "--content-type-name"},
	}
	for _, c := range checks {
		// A local ledger needs no Contentful credentials to record entries
		if s.Ledger == ledgerSQLite && c.code <= exitEnvironmentID {
			continue
		}
		if c.value == "" {
			envVar := "CONTENTFUL_MIGRATION_" + strings.ToUpper(strings.ReplaceAll(strings.TrimPrefix(c.flag, "--"), "-", "_"))
			return fail(c.code, fmt.Sprintf("The Contentful %s is missing.", c.name),
				fmt.Errorf("%w: use %s or %s", util.ErrInvalidConfig, c.flag, envVar))
		}
	}
	return nil
}

// resolveDirectory makes a relative directory relative to the working directory
func resolveDirectory(dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		return dir
	}
	return filepath.Join(wd, dir)
}

// openStore reads the local migrations directory
func openStore(s settings) (*migration.Store, error) {
	store, err := migration.Open(afero.NewOsFs(), s.LocalDirectory)
	if err != nil {
		return nil, fail(exitEngine, "Could not initiate the migrations API.", err)
	}
	return store, nil
}

// openLedger builds the configured ledger and connects to it. The returned
// close function is never nil.
func openLedger(ctx context.Context, s settings) (registry.Ledger, func() error, error) {
	noop := func() error { return nil }

	var l registry.Ledger
	closeFn := noop

	switch s.Ledger {
	case ledgerSQLite:
		store, err := ledger.OpenWithOptions(s.LedgerDB, &ledger.OpenOptions{
			ContentTypeID:   s.ContentTypeID,
			ContentTypeName: s.ContentTypeName,
		})
		if err != nil {
			return nil, noop, fail(exitConnect, "There was a problem opening the ledger database.", err)
		}
		l, closeFn = store, store.Close
	default:
		client, err := registry.NewClient(registry.Config{
			AccessToken:     s.AccessToken,
			SpaceID:         s.SpaceID,
			EnvironmentID:   s.EnvironmentID,
			ContentTypeID:   s.ContentTypeID,
			ContentTypeName: s.ContentTypeName,
		})
		if err != nil {
			return nil, noop, fail(exitConnect, "There was a problem connecting to Contentful.", err)
		}
		l = client
	}

	start := time.Now()
	if err := l.Connect(ctx); err != nil {
		closeFn()
		return nil, noop, fail(exitConnect, "There was a problem connecting to Contentful.", err)
	}
	util.DebugLog("Connecting took %s", time.Since(start).Round(time.Millisecond))

	return l, closeFn, nil
}

// toApplied converts ledger entries for Registry Sync
func toApplied(entries []registry.Entry, loc *time.Location) []migration.Applied {
	applied := make([]migration.Applied, 0, len(entries))
	for _, e := range entries {
		formatted := e.Formatted(loc)
		if formatted == "" {
			// unparseable timestamps are shown as stored
			formatted = e.AppliedAt
		}
		applied = append(applied, migration.Applied{
			Filename:           e.Name,
			AppliedAt:          e.AppliedAt,
			AppliedAtFormatted: formatted,
		})
	}
	return applied
}

// connectionDetails lists what a command is about to talk to
func connectionDetails(s settings) [][2]string {
	token := "<not supplied>"
	if s.AccessToken != "" {
		token = "<supplied>"
		if s.TokenSource == "keyring" {
			token = "<from keyring>"
		}
	}

	pairs := [][2]string{
		{"Access Token", token},
		{"Space ID", s.SpaceID},
		{"Environment ID", s.EnvironmentID},
		{"Content Type ID", s.ContentTypeID},
		{"Content Type Name", s.ContentTypeName},
		{"Migrations Directory", s.LocalDirectory},
	}
	if s.Ledger == ledgerSQLite {
		pairs = append(pairs, [2]string{"Ledger", s.LedgerDB})
	}
	return pairs
}
