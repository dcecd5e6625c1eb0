package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var exportHeader = []string{"ID", "User Email", "User Name", "Question", "Answer", "Question Time"}

// exportCSV writes records as CSV. The id column is written bare; every text
// column is quoted with embedded quotes doubled. Newlines are kept verbatim.
func exportCSV(w io.Writer, records []QARecord) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(exportHeader, ",") + "\n"); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		fields := []string{
			rec.ID.String(),
			csvQuote(rec.User.Email),
			csvQuote(rec.User.FullName),
			csvQuote(rec.Question),
			csvQuote(rec.Answer),
			csvQuote(rec.QuestionTime),
		}
		if _, err := bw.WriteString(strings.Join(fields, ",") + "\n"); err != nil {
			return fmt.Errorf("write csv row %s: %w", rec.ID, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func csvQuote(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func exportFilename(now time.Time) string {
	return "qa-data-" + now.UTC().Format(filterDateLayout) + ".csv"
}

// writeExportFile writes records into dir and returns the file path.
func writeExportFile(dir string, now time.Time, records []QARecord) (string, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir %q: %w", dir, err)
	}
	path := filepath.Join(dir, exportFilename(now))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file %q: %w", path, err)
	}
	if err := exportCSV(file, records); err != nil {
		_ = file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close export file %q: %w", path, err)
	}
	return path, nil
}

type exportOptions struct {
	filters  queryFilters
	pageSize int
	out      string
}

func runExportCommand(args []string) error {
	opts, err := parseExportArgs(args)
	if err != nil {
		return err
	}
	if err := validateFilters(opts.filters); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.pageSize <= 0 {
		opts.pageSize = cfg.UI.PageSize
	}
	if opts.out == "" {
		opts.out = cfg.Export.Dir
	}

	log := newConsoleLogger(os.Stderr, cfg.Log.Level)
	backend, closeBackend, err := newBackend(cfg, log)
	if err != nil {
		return err
	}
	defer closeBackend()

	q := buildQuery(opts.filters, opts.pageSize)
	page, err := backend.ListQARecords(context.Background(), q)
	if err != nil {
		return err
	}

	if opts.out == "-" {
		return exportCSV(os.Stdout, page.Items)
	}
	path, err := writeExportFile(opts.out, time.Now(), page.Items)
	if err != nil {
		return err
	}
	log.Info().
		Str("path", path).
		Int("rows", len(page.Items)).
		Int("total", page.TotalCount).
		Int("page", q.Page).
		Msg("exported qa records")
	return nil
}

func parseExportArgs(args []string) (exportOptions, error) {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts exportOptions
	fs.StringVar(&opts.filters.Search, "search", "", "full-text search over question and answer")
	fs.StringVar(&opts.filters.UserID, "user", "", "only rows for this user id")
	fs.StringVar(&opts.filters.DateFrom, "date-from", "", "earliest question date (YYYY-MM-DD)")
	fs.StringVar(&opts.filters.DateTo, "date-to", "", "latest question date (YYYY-MM-DD)")
	fs.IntVar(&opts.filters.Page, "page", 1, "page to export")
	fs.IntVar(&opts.pageSize, "page-size", 0, "rows per page (default from config)")
	fs.StringVar(&opts.out, "out", "", "output directory, or - for stdout")

	if err := fs.Parse(args); err != nil {
		return exportOptions{}, fmt.Errorf("%w\n%s", err, exportUsageText())
	}
	if fs.NArg() > 0 {
		return exportOptions{}, fmt.Errorf("unexpected arguments: %s\n%s", strings.Join(fs.Args(), " "), exportUsageText())
	}
	if opts.pageSize < 0 {
		return exportOptions{}, fmt.Errorf("--page-size must be positive\n%s", exportUsageText())
	}
	opts.out = strings.TrimSpace(opts.out)
	return opts, nil
}

func exportUsageText() string {
	return strings.TrimSpace(`
Usage:
  qa-console export [--search text] [--user id] [--date-from YYYY-MM-DD]
                    [--date-to YYYY-MM-DD] [--page n] [--page-size n] [--out dir|-]

Writes one page of Q&A records as qa-data-YYYY-MM-DD.csv (UTC date).
`)
}
