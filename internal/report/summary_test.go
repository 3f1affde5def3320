package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteMarkdownReport(t *testing.T) {
	tmpDir := t.TempDir()
	outputPath := filepath.Join(tmpDir, "reports", "summary.md")

	report := &SummaryReport{
		GeneratedAt:  time.Now(),
		Duration:     3 * time.Second,
		Directory:    "/project/migrations",
		Ledger:       "contentful",
		EventLogPath: "/project/.camo/events.jsonl",
		Items: []ItemSummary{
			{Filename: "100-one.ts", Status: StatusApplied, Bytes: 2048, Duration: time.Second},
			{Filename: "200-two.ts", Status: StatusFailed, Bytes: 10, Error: "validation | failed\nbadly"},
			{Filename: "300-three.ts", Status: StatusSkipped, Error: "migration file is empty"},
		},
		Unresolved: []string{"typo"},
	}

	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	md := string(content)

	expected := []string{
		"# Contentful Migrations - Run Summary",
		"**Directory:** `/project/migrations`",
		"**Ledger:** contentful",
		"| Requested | 3 |",
		"| Applied | 1 |",
		"| Failed | 1 |",
		"| Skipped | 1 |",
		"| Unresolved | 1 |",
		"| `100-one.ts` | applied | 2.0 kB |",
		"validation \\| failed badly",
		"## Unresolved Requests",
		"- `typo`",
	}
	for _, want := range expected {
		if !strings.Contains(md, want) {
			t.Errorf("Report missing %q", want)
		}
	}
}

func TestMarkdownReportDryRun(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "summary.md")

	report := &SummaryReport{
		GeneratedAt: time.Now(),
		DryRun:      true,
		Items: []ItemSummary{
			{Filename: "100-one.ts", Status: StatusDryRun},
		},
	}
	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}

	content, _ := os.ReadFile(outputPath)
	md := string(content)

	if !strings.Contains(md, "| Dry Runs | 1 |") {
		t.Error("Expected dry run count")
	}
	if strings.Contains(md, "| Applied |") {
		t.Error("Dry run report should not count applied migrations")
	}
}

func TestReportWithEmptyData(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "summary.md")

	report := &SummaryReport{GeneratedAt: time.Now()}
	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}

	content, _ := os.ReadFile(outputPath)
	md := string(content)

	if !strings.Contains(md, "| Requested | 0 |") {
		t.Error("Expected zero requested")
	}
	for _, section := range []string{"## Migrations", "## Unresolved Requests", "| Failed |"} {
		if strings.Contains(md, section) {
			t.Errorf("Empty report should not contain %q", section)
		}
	}
}

func TestSummaryCount(t *testing.T) {
	report := &SummaryReport{Items: []ItemSummary{
		{Status: StatusApplied},
		{Status: StatusApplied},
		{Status: StatusFailed},
	}}

	if got := report.Count(StatusApplied); got != 2 {
		t.Errorf("Count(applied) = %d, want 2", got)
	}
	if got := report.Count(StatusSkipped); got != 0 {
		t.Errorf("Count(skipped) = %d, want 0", got)
	}
}
