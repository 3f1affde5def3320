package main

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/afero"

	"github.com/franz/camo/internal/migration"
	"github.com/franz/camo/internal/registry"
	"github.com/franz/camo/internal/util"
)

// appliedChecksums maps each registered migration to the checksum of the
// content it was applied with. Ledgers that store checksums are asked
// directly; otherwise the registered content is hashed.
func appliedChecksums(ctx context.Context, l registry.Ledger, entries []registry.Entry) map[string]string {
	sums := make(map[string]string, len(entries))
	checksummer, hasChecksums := l.(registry.Checksummer)

	for _, e := range entries {
		if hasChecksums {
			sum, err := checksummer.Checksum(ctx, e.Name)
			if err == nil {
				sums[e.Name] = sum
				continue
			}
			if !errors.Is(err, util.ErrNotFound) {
				util.DebugLog("Checksum of %s unavailable: %v", e.Name, err)
			}
		}
		sums[e.Name] = util.HashBytes([]byte(strings.TrimSpace(e.Content)))
	}
	return sums
}

// editedSinceApplied lists local, registered migrations whose file no longer
// matches the content they were registered with
func editedSinceApplied(fs afero.Fs, store *migration.Store, sums map[string]string) []string {
	var edited []string
	for _, r := range store.List(migration.OnlyLocal(migration.Flags{Registered: migration.Is(true)})) {
		applied, ok := sums[r.Filename]
		if !ok {
			continue
		}
		local, err := util.ContentHash(fs, r.Path)
		if err != nil {
			util.DebugLog("Cannot hash %s: %v", r.Path, err)
			continue
		}
		if local != applied {
			edited = append(edited, r.Filename)
		}
	}
	return edited
}
