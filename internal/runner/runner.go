package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sourcegraph/conc/iter"
	"github.com/spf13/afero"

	"github.com/franz/camo/internal/registry"
	"github.com/franz/camo/internal/report"
	"github.com/franz/camo/internal/util"
)

var (
	// ErrNotAFile means a migration path is missing or is not a regular file
	ErrNotAFile = errors.New("migration is not a file")

	// ErrEmptyMigration means a migration file has no content
	ErrEmptyMigration = errors.New("migration is empty")
)

// Target is one migration to apply
type Target struct {
	Filename string
	Path     string
}

// Runner applies migrations in order and registers each one once it succeeds
type Runner struct {
	fs          afero.Fs
	executor    Executor
	ledger      registry.Ledger
	dryRun      bool
	concurrency int
	progress    bool
	out         io.Writer
	logger      *report.EventLogger
}

// Config holds runner configuration
type Config struct {
	Fs          afero.Fs
	Executor    Executor
	Ledger      registry.Ledger
	DryRun      bool
	Concurrency int       // parallel file reads during preflight
	Progress    bool      // show a progress bar on stderr
	Out         io.Writer // dry run listing; defaults to stdout
	Logger      *report.EventLogger
}

// New creates a new Runner
func New(cfg *Config) *Runner {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	return &Runner{
		fs:          cfg.Fs,
		executor:    cfg.Executor,
		ledger:      cfg.Ledger,
		dryRun:      cfg.DryRun,
		concurrency: cfg.Concurrency,
		progress:    cfg.Progress,
		out:         cfg.Out,
		logger:      cfg.Logger,
	}
}

// Result represents the outcome of a run
type Result struct {
	Items    []report.ItemSummary
	Duration time.Duration
}

// Count returns how many items ended with status
func (r *Result) Count(status string) int {
	n := 0
	for _, item := range r.Items {
		if item.Status == status {
			n++
		}
	}
	return n
}

// prepared is a target after preflight
type prepared struct {
	target   Target
	content  string
	size     int64
	checksum string
	err      error
}

// Run checks every target, then applies them one by one in the given order.
// A failing preflight applies nothing. A failing migration stops the run;
// migrations after it are reported as skipped.
func (r *Runner) Run(ctx context.Context, targets []Target) (*Result, error) {
	start := time.Now()
	result := &Result{Items: make([]report.ItemSummary, 0, len(targets))}
	defer func() { result.Duration = time.Since(start) }()

	if !r.dryRun && (r.executor == nil || r.ledger == nil) {
		return result, fmt.Errorf("%w: runner needs an executor and a ledger", util.ErrInvalidConfig)
	}

	// Targets without a local file are never run
	runnable := make([]Target, 0, len(targets))
	for _, t := range targets {
		if t.Path == "" {
			r.logger.LogSkip(t.Filename, "no local file")
			result.Items = append(result.Items, report.ItemSummary{
				Filename: t.Filename,
				Status:   report.StatusSkipped,
				Error:    "no local file",
			})
			continue
		}
		runnable = append(runnable, t)
	}

	if len(runnable) == 0 {
		util.InfoLog("No migrations to run")
		return result, nil
	}

	preps := r.preflight(runnable)
	var errs []error
	for _, p := range preps {
		if p.err != nil {
			errs = append(errs, p.err)
		}
	}
	if len(errs) > 0 {
		for _, p := range preps {
			item := itemFor(p)
			if p.err != nil {
				item.Status = report.StatusFailed
				item.Error = p.err.Error()
				r.logger.LogSkip(p.target.Filename, p.err.Error())
			} else {
				item.Status = report.StatusSkipped
				item.Error = "preflight failed"
			}
			result.Items = append(result.Items, item)
		}
		return result, errors.Join(errs...)
	}

	if r.dryRun {
		return result, r.dryRunAll(preps, result)
	}
	return result, r.applyAll(ctx, preps, result)
}

// preflight reads every target concurrently, keeping input order
func (r *Runner) preflight(targets []Target) []prepared {
	mapper := iter.Mapper[Target, prepared]{MaxGoroutines: r.concurrency}
	return mapper.Map(targets, func(t *Target) prepared {
		return r.check(*t)
	})
}

func (r *Runner) check(t Target) prepared {
	p := prepared{target: t}

	info, err := r.fs.Stat(t.Path)
	if err != nil || !info.Mode().IsRegular() {
		p.err = fmt.Errorf("%w: %s at %s", ErrNotAFile, t.Filename, t.Path)
		return p
	}

	raw, err := afero.ReadFile(r.fs, t.Path)
	if err != nil {
		p.err = fmt.Errorf("failed to read %s: %w", t.Filename, err)
		return p
	}

	p.content = strings.TrimSpace(string(raw))
	if p.content == "" {
		p.err = fmt.Errorf("%w: %s at %s", ErrEmptyMigration, t.Filename, t.Path)
		return p
	}

	p.size = int64(len(raw))
	p.checksum = util.HashBytes([]byte(p.content))
	return p
}

func (r *Runner) dryRunAll(preps []prepared, result *Result) error {
	fmt.Fprintln(r.out, "DRY RUN: would have executed the following Contentful migrations:")
	for _, p := range preps {
		fmt.Fprintf(r.out, " → %s: %s\n", p.target.Filename, p.target.Path)
		r.logger.LogDryRun(p.target.Filename, p.target.Path, 0, nil)

		item := itemFor(p)
		item.Status = report.StatusDryRun
		result.Items = append(result.Items, item)
	}
	return nil
}

func (r *Runner) applyAll(ctx context.Context, preps []prepared, result *Result) error {
	var bar *progressbar.ProgressBar
	if r.progress && !util.IsQuiet() {
		bar = progressbar.NewOptions(len(preps),
			progressbar.OptionSetDescription("Applying"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
		defer bar.Finish()
	}

	for i, p := range preps {
		item := itemFor(p)

		if err := ctx.Err(); err != nil {
			r.skipRest(preps[i:], result, "cancelled")
			return err
		}

		if bar != nil {
			bar.Describe(p.target.Filename)
		}

		stepStart := time.Now()
		err := r.executor.Execute(ctx, p.target.Path)
		item.Duration = time.Since(stepStart)
		r.logger.LogApply(p.target.Filename, p.target.Path, p.checksum, item.Duration, err)
		if err != nil {
			item.Status = report.StatusFailed
			item.Error = err.Error()
			result.Items = append(result.Items, item)
			r.skipRest(preps[i+1:], result, "an earlier migration failed")
			return fmt.Errorf("failed to apply %s: %w", p.target.Filename, err)
		}

		// Register only after the migration has been applied
		err = r.ledger.Register(ctx, p.target.Filename, p.content)
		r.logger.LogRegister(p.target.Filename, err)
		if err != nil {
			item.Status = report.StatusFailed
			item.Error = err.Error()
			result.Items = append(result.Items, item)
			r.skipRest(preps[i+1:], result, "an earlier migration failed")
			return fmt.Errorf("%s was applied but could not be registered: %w", p.target.Filename, err)
		}

		item.Status = report.StatusApplied
		result.Items = append(result.Items, item)
		if bar != nil {
			bar.Add(1)
		} else {
			util.SuccessLog("Applied %s", p.target.Filename)
		}
	}

	return nil
}

func (r *Runner) skipRest(rest []prepared, result *Result, reason string) {
	for _, p := range rest {
		item := itemFor(p)
		item.Status = report.StatusSkipped
		item.Error = reason
		r.logger.LogSkip(p.target.Filename, reason)
		result.Items = append(result.Items, item)
	}
}

func itemFor(p prepared) report.ItemSummary {
	return report.ItemSummary{
		Filename: p.target.Filename,
		Path:     p.target.Path,
		Bytes:    p.size,
	}
}
