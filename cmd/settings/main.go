// Command settings shows and mutates the configuration, and lists the
// upload history. It is the only surface that writes the config file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"vaultpin/internal/config"
	"vaultpin/internal/journal"
)

func main() {
	os.Exit(runCLI(os.Args[1:], os.Stdout, os.Stderr))
}

func runCLI(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("settings", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var cfgPath string
	fs.StringVar(&cfgPath, "config", "vaultpin.yaml", "config file path")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		rest = []string{"show"}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "ERROR: %v\n", err)
		return 1
	}

	switch rest[0] {
	case "show":
		printConfig(out, cfg)
		return 0
	case "set":
		if len(rest) != 3 {
			_, _ = fmt.Fprintln(errOut, "usage: settings [--config <path>] set <key> <value>")
			return 2
		}
		if err := cfg.Set(rest[1], rest[2]); err != nil {
			_, _ = fmt.Fprintf(errOut, "ERROR: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(out, "%s = %s\n", rest[1], rest[2])
		return 0
	case "history":
		limit := 20
		if len(rest) == 2 {
			if n, err := strconv.Atoi(rest[1]); err == nil && n > 0 {
				limit = n
			}
		}
		if err := printHistory(out, cfg, limit); err != nil {
			_, _ = fmt.Fprintf(errOut, "ERROR: %v\n", err)
			return 1
		}
		return 0
	default:
		_, _ = fmt.Fprintln(errOut, "usage: settings [--config <path>] (show | set <key> <value> | history [n])")
		return 2
	}
}

func printConfig(out io.Writer, cfg *config.Config) {
	token := "(not set)"
	if cfg.APIToken != "" {
		token = "(set)"
	}
	_, _ = fmt.Fprintf(out, "vault_path        : %s\n", cfg.VaultPath)
	_, _ = fmt.Fprintf(out, "api_token         : %s\n", token)
	_, _ = fmt.Fprintf(out, "endpoint          : %s\n", cfg.Endpoint)
	_, _ = fmt.Fprintf(out, "gateway           : %s\n", cfg.Gateway)
	_, _ = fmt.Fprintf(out, "mode              : %s\n", cfg.Mode)
	_, _ = fmt.Fprintf(out, "auto_upload_paste : %t\n", cfg.AutoUploadPaste)
	_, _ = fmt.Fprintf(out, "auto_upload_drop  : %t\n", cfg.AutoUploadDrop)
	_, _ = fmt.Fprintf(out, "backup_originals  : %t\n", cfg.BackupOriginals)
	_, _ = fmt.Fprintf(out, "backup_folder     : %s\n", cfg.BackupFolder)
	_, _ = fmt.Fprintf(out, "group_name        : %s\n", cfg.GroupName)
	_, _ = fmt.Fprintf(out, "transform.enabled : %t\n", cfg.Transform.Enabled)
	_, _ = fmt.Fprintf(out, "transform.width   : %d\n", cfg.Transform.Width)
	_, _ = fmt.Fprintf(out, "transform.height  : %d\n", cfg.Transform.Height)
	_, _ = fmt.Fprintf(out, "transform.quality : %d\n", cfg.Transform.Quality)
	_, _ = fmt.Fprintf(out, "transform.format  : %s\n", cfg.Transform.Format)
	_, _ = fmt.Fprintf(out, "transform.fit     : %s\n", cfg.Transform.Fit)
	_, _ = fmt.Fprintf(out, "listen_addr       : %s\n", cfg.ListenAddr)
	_, _ = fmt.Fprintf(out, "refresh_interval  : %s\n", cfg.RefreshInterval)
	_, _ = fmt.Fprintf(out, "log_level         : %s\n", cfg.LogLevel)
}

func printHistory(out io.Writer, cfg *config.Config, limit int) error {
	jr, err := journal.Open(cfg.JournalPath())
	if err != nil {
		return err
	}
	defer jr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	entries, err := jr.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No uploads recorded.")
		return nil
	}
	for _, e := range entries {
		_, _ = fmt.Fprintf(out, "%s  %-7s  %s  %s (from %s)\n",
			e.CreatedAt.Format(time.RFC3339), e.Mode, e.CID, e.Filename, e.NotePath)
	}
	return nil
}
