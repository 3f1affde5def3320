package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/franz/camo/internal/registry"
	"github.com/franz/camo/internal/ui"
	"github.com/franz/camo/internal/util"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the content type that records applied migrations",
	Long: `Create the migration content type in the target space and environment.

The content type has a unique "name" field holding the migration filename and
a "content" field holding the applied script. Running init again when the
content type exists does nothing. 'camo migrate' offers to create it as well.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s := loadSettings()
	if err := s.require(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ui.Definitions(out, connectionDetails(s))
	fmt.Fprintln(out)

	l, closeLedger, err := openLedger(ctx, s)
	if err != nil {
		return err
	}
	defer closeLedger()

	created, err := ensureContentType(ctx, l, out)
	if err != nil {
		return err
	}
	if !created {
		fmt.Fprintln(out, ui.Success("The content type %q already exists.", s.ContentTypeID))
	}
	return nil
}

// ensureContentType checks for the migration content type and, after
// confirmation, creates it. It reports whether it created one.
func ensureContentType(ctx context.Context, l registry.Ledger, out io.Writer) (bool, error) {
	err := l.CheckContentType(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, registry.ErrContentTypeNotFound) {
		return false, fail(exitContentTypeFind, "There was a problem finding the Contentful migration content type.", err)
	}

	fmt.Fprintln(out, ui.Warning("The Contentful migration content type does not exist."))
	ok, err := ui.Confirm("Do you wish to create the Contentful migration content type in this Contentful space and environment?", "", true)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, util.ErrAborted
	}

	if err := l.CreateContentType(ctx); err != nil {
		return false, fail(exitContentTypeMake, "There was a problem creating the Contentful migration content type.", err)
	}
	fmt.Fprintln(out, ui.Success("Created the Contentful migration content type."))
	return true, nil
}

// fetchEntries reads every registered migration from the ledger
func fetchEntries(ctx context.Context, l registry.Ledger) ([]registry.Entry, error) {
	entries, err := l.Entries(ctx)
	if err != nil {
		return nil, fail(exitEntries, "There was a problem fetching the registered Contentful migrations.", err)
	}
	util.DebugLog("Fetched %d registered migrations", len(entries))
	return entries, nil
}
