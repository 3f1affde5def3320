package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Item statuses in a run summary
const (
	StatusApplied    = "applied"
	StatusDryRun     = "dry-run"
	StatusFailed     = "failed"
	StatusSkipped    = "skipped"
	StatusUnresolved = "unresolved"
)

// SummaryReport describes one migrate run
type SummaryReport struct {
	GeneratedAt time.Time
	Duration    time.Duration

	Directory string
	Ledger    string
	DryRun    bool

	Items      []ItemSummary
	Unresolved []string

	EventLogPath string
}

// ItemSummary is the outcome for one requested migration
type ItemSummary struct {
	Filename string
	Path     string
	Status   string
	Bytes    int64
	Duration time.Duration
	Error    string
}

// Count returns how many items have the given status
func (r *SummaryReport) Count(status string) int {
	n := 0
	for _, item := range r.Items {
		if item.Status == status {
			n++
		}
	}
	return n
}

// WriteMarkdownReport writes the summary as markdown to outputPath
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var md strings.Builder

	// Header
	md.WriteString("# Contentful Migrations - Run Summary\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))

	if report.Directory != "" {
		md.WriteString(fmt.Sprintf("**Directory:** `%s`\n\n", report.Directory))
	}
	if report.Ledger != "" {
		md.WriteString(fmt.Sprintf("**Ledger:** %s\n\n", report.Ledger))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	// Overview
	md.WriteString("## Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Requested | %d |\n", len(report.Items)))
	if report.DryRun {
		md.WriteString(fmt.Sprintf("| Dry Runs | %d |\n", report.Count(StatusDryRun)))
	} else {
		md.WriteString(fmt.Sprintf("| Applied | %d |\n", report.Count(StatusApplied)))
	}
	if n := report.Count(StatusFailed); n > 0 {
		md.WriteString(fmt.Sprintf("| Failed | %d |\n", n))
	}
	if n := report.Count(StatusSkipped); n > 0 {
		md.WriteString(fmt.Sprintf("| Skipped | %d |\n", n))
	}
	if len(report.Unresolved) > 0 {
		md.WriteString(fmt.Sprintf("| Unresolved | %d |\n", len(report.Unresolved)))
	}
	if report.Duration > 0 {
		md.WriteString(fmt.Sprintf("| Duration | %s |\n", report.Duration.Round(time.Millisecond)))
	}
	md.WriteString("\n")

	// Migrations
	if len(report.Items) > 0 {
		md.WriteString("## Migrations\n\n")
		md.WriteString("| Migration | Status | Size | Time | Error |\n")
		md.WriteString("|-----------|--------|------|------|-------|\n")
		for _, item := range report.Items {
			md.WriteString(fmt.Sprintf("| `%s` | %s | %s | %s | %s |\n",
				item.Filename,
				item.Status,
				humanize.Bytes(uint64(item.Bytes)),
				item.Duration.Round(time.Millisecond),
				escapeCell(item.Error)))
		}
		md.WriteString("\n")
	}

	// Unresolved
	if len(report.Unresolved) > 0 {
		md.WriteString("## Unresolved Requests\n\n")
		for _, token := range report.Unresolved {
			md.WriteString(fmt.Sprintf("- `%s`\n", token))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by [camo](https://github.com/franz/camo)*\n")

	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// escapeCell keeps error text from breaking a markdown table row
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
