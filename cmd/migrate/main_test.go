package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunCLITargetValidation(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"no target", nil},
		{"two targets", []string{"--file", "a.md", "--all"}},
		{"three targets", []string{"--file", "a.md", "--dir", "d", "--all"}},
		{"positional arg", []string{"--all", "extra"}},
		{"unknown flag", []string{"--bogus"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out, errOut strings.Builder
			if code := runCLI(tc.args, &out, &errOut); code != 2 {
				t.Fatalf("expected exit 2, got %d (stderr: %s)", code, errOut.String())
			}
		})
	}
}

func TestRunCLIMissingToken(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "")

	var out, errOut strings.Builder
	code := runCLI([]string{"--config", cfgPath, "--file", "note.md"}, &out, &errOut)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(errOut.String(), "token") {
		t.Fatalf("expected token error, got: %s", errOut.String())
	}
}

func TestRunCLIDryRun(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "")
	note := "![cat](cat.png)\n![done](ipfs://bafyexisting)\n"
	mustWrite(t, filepath.Join(dir, "note.md"), note)
	mustWrite(t, filepath.Join(dir, "cat.png"), "catbytes")

	var out, errOut strings.Builder
	code := runCLI([]string{"--config", cfgPath, "--file", "note.md", "--dry-run", "--quiet"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", code, errOut.String())
	}
	if !strings.Contains(out.String(), "notes=1 changed=1 refs=2 uploaded=0 replaced=1 skipped=1 failed=0 note_errors=0") {
		t.Fatalf("unexpected report:\n%s", out.String())
	}

	// A dry run never rewrites the note.
	got, err := os.ReadFile(filepath.Join(dir, "note.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != note {
		t.Fatalf("dry run modified the note:\n%s", got)
	}
}

func TestRunCLIAllRequiresConfirmation(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "tok")

	var out, errOut strings.Builder
	code := runCLI([]string{"--config", cfgPath, "--all"}, &out, &errOut)
	if code != 1 {
		t.Fatalf("expected exit 1 without --yes on a non-terminal, got %d", code)
	}
	if !strings.Contains(errOut.String(), "--yes") {
		t.Fatalf("expected hint about --yes, got: %s", errOut.String())
	}
}

func writeTestConfig(t *testing.T, vaultDir, token string) string {
	t.Helper()
	lines := []string{
		"vault_path: " + vaultDir,
		"data_path: " + filepath.Join(vaultDir, ".data"),
		"log_level: error",
	}
	if token != "" {
		lines = append(lines, "api_token: "+token)
	}
	path := filepath.Join(vaultDir, "vaultpin.yaml")
	mustWrite(t, path, strings.Join(lines, "\n")+"\n")
	return path
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
