// Command migrate republishes the images referenced by vault notes to the
// pinning service and rewrites the references to ipfs:// CIDs.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/term"

	"vaultpin/internal/batch"
	"vaultpin/internal/config"
	"vaultpin/internal/journal"
	"vaultpin/internal/pinning"
	"vaultpin/internal/rewrite"
	"vaultpin/internal/vault"
)

type runOptions struct {
	ConfigPath string
	File       string
	Dir        string
	All        bool
	DryRun     bool
	SkipKnown  bool
	Yes        bool
	Quiet      bool
}

func main() {
	os.Exit(runCLI(os.Args[1:], os.Stdout, os.Stderr))
}

func runCLI(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var opts runOptions
	fs.StringVar(&opts.ConfigPath, "config", "vaultpin.yaml", "config file path")
	fs.StringVar(&opts.File, "file", "", "process a single note")
	fs.StringVar(&opts.Dir, "dir", "", "process every note under a folder")
	fs.BoolVar(&opts.All, "all", false, "process the entire vault")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "classify and report without uploading or writing")
	fs.BoolVar(&opts.SkipKnown, "skip-known", false, "reuse journaled CIDs for byte-identical content")
	fs.BoolVar(&opts.Yes, "yes", false, "auto-confirm processing the entire vault")
	fs.BoolVar(&opts.Quiet, "quiet", false, "suppress the progress bar")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		_, _ = fmt.Fprintln(errOut, "usage: migrate [--config <path>] (--file <note> | --dir <folder> | --all) [--dry-run] [--skip-known] [--yes] [--quiet]")
		return 2
	}
	targets := 0
	if opts.File != "" {
		targets++
	}
	if opts.Dir != "" {
		targets++
	}
	if opts.All {
		targets++
	}
	if targets != 1 {
		_, _ = fmt.Fprintln(errOut, "ERROR: exactly one of --file, --dir, --all is required")
		return 2
	}

	report, err := execute(opts, out, errOut)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "ERROR: %v\n", err)
		return 1
	}
	batch.PrintReport(out, report)
	if report.Failed > 0 || report.NoteErrors > 0 {
		return 1
	}
	return 0
}

func execute(opts runOptions, out io.Writer, errOut io.Writer) (batch.Report, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return batch.Report{}, err
	}
	setupLogging(errOut, cfg.LogLevel)

	if cfg.APIToken == "" && !opts.DryRun {
		return batch.Report{}, pinning.ErrTokenMissing
	}

	if opts.All && !opts.Yes {
		ok, err := promptYesNo(fmt.Sprintf("Process every note under %s? [y/N]: ", cfg.VaultPath))
		if err != nil {
			return batch.Report{}, err
		}
		if !ok {
			return batch.Report{}, fmt.Errorf("aborted")
		}
	}

	v := vault.Open(cfg.VaultPath)
	client := pinning.New(cfg.Endpoint, cfg.APIToken, &http.Client{})

	var jr *journal.Journal
	if !opts.DryRun {
		jr, err = journal.Open(cfg.JournalPath())
		if err != nil {
			slog.Warn("journal unavailable, continuing without it", "err", err)
			jr = nil
		} else {
			defer jr.Close()
		}
	}

	rw := &rewrite.Rewriter{
		Cfg:      cfg,
		Vault:    v,
		Uploader: client,
		Fetcher:  &rewrite.HTTPFetcher{},
		Journal:  jr,
		Notify: rewrite.NotifierFunc(func(msg string) {
			_, _ = fmt.Fprintf(errOut, "WARN: %s\n", msg)
		}),
		DryRun:    opts.DryRun,
		SkipKnown: opts.SkipKnown,
		RunID:     uuid.NewString(),
	}

	var sink rewrite.StatusSink = batch.NopSink{}
	if !opts.Quiet {
		sink = batch.NewProgressSink(errOut)
	}
	driver := &batch.Driver{Vault: v, Rewriter: rw, Sink: sink, Out: out}

	ctx := context.Background()
	switch {
	case opts.File != "":
		return driver.RunNote(ctx, opts.File)
	case opts.Dir != "":
		return driver.RunFolder(ctx, opts.Dir)
	default:
		return driver.RunAll(ctx)
	}
}

func setupLogging(w io.Writer, level string) {
	lvl := new(slog.LevelVar)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl.Set(slog.LevelDebug)
	case "warn", "warning":
		lvl.Set(slog.LevelWarn)
	case "error":
		lvl.Set(slog.LevelError)
	default:
		lvl.Set(slog.LevelInfo)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})))
}

func promptYesNo(prompt string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("stdin is not a terminal (use --yes to auto-confirm)")
	}
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes", nil
}
