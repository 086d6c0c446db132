package vault

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-billy/v6/util"
)

var ErrUnsafePath = errors.New("unsafe path")

// Vault is the local tree of notes and attachments. All paths are
// slash-separated and vault-relative. Backing the vault with billy keeps
// the rewriter testable against an in-memory filesystem.
type Vault struct {
	fs billy.Filesystem
}

func New(fs billy.Filesystem) *Vault {
	return &Vault{fs: fs}
}

func Open(root string) *Vault {
	return &Vault{fs: osfs.New(root)}
}

func NewInMemory() *Vault {
	return &Vault{fs: memfs.New()}
}

func NormalizePath(p string) (string, error) {
	if strings.ContainsRune(p, 0) {
		return "", ErrUnsafePath
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	clean := path.Clean(strings.TrimPrefix(p, "/"))
	if clean == "." || strings.HasPrefix(clean, "..") {
		return "", ErrUnsafePath
	}
	return clean, nil
}

func (v *Vault) Read(p string) ([]byte, error) {
	clean, err := NormalizePath(p)
	if err != nil {
		return nil, err
	}
	data, err := util.ReadFile(v.fs, clean)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", clean, err)
	}
	return data, nil
}

func (v *Vault) Exists(p string) bool {
	clean, err := NormalizePath(p)
	if err != nil {
		return false
	}
	info, err := v.fs.Stat(clean)
	return err == nil && !info.IsDir()
}

// WriteAtomic writes through a temp file in the target directory and
// renames it into place, so a crash never leaves a half-written note.
func (v *Vault) WriteAtomic(p string, data []byte) error {
	clean, err := NormalizePath(p)
	if err != nil {
		return err
	}
	dir := path.Dir(clean)
	if dir != "." {
		if err := v.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	tmp, err := v.fs.TempFile(dir, ".tmp."+path.Base(clean)+".")
	if err != nil {
		return fmt.Errorf("temp file for %s: %w", clean, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = v.fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", clean, err)
	}
	if err := tmp.Close(); err != nil {
		_ = v.fs.Remove(tmpName)
		return fmt.Errorf("close %s: %w", clean, err)
	}
	if err := v.fs.Rename(tmpName, clean); err != nil {
		_ = v.fs.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w", clean, err)
	}
	return nil
}

// Write is a plain non-atomic write, used for test fixtures and backups.
func (v *Vault) Write(p string, data []byte) error {
	clean, err := NormalizePath(p)
	if err != nil {
		return err
	}
	if dir := path.Dir(clean); dir != "." {
		if err := v.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	if err := util.WriteFile(v.fs, clean, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", clean, err)
	}
	return nil
}

// Notes lists every .md file under dir (the whole vault when dir is empty),
// sorted for deterministic batch order.
func (v *Vault) Notes(dir string) ([]string, error) {
	root := "."
	if dir != "" {
		clean, err := NormalizePath(dir)
		if err != nil {
			return nil, err
		}
		root = clean
	}
	var notes []string
	err := util.Walk(v.fs, root, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, os.ErrNotExist) && p == root {
				return walkErr
			}
			return nil
		}
		name := info.Name()
		if info.IsDir() {
			if strings.HasPrefix(name, ".") && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(path.Ext(name), ".md") {
			return nil
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, "./"), "/")
		notes = append(notes, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(notes)
	return notes, nil
}

// ResolveLink resolves a vault-relative reference the way the host app
// does: relative to the containing note first, then from the vault root,
// then by unique basename anywhere in the vault.
func (v *Vault) ResolveLink(ref, notePath string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	noteDir := path.Dir(notePath)
	candidates := []string{ref}
	if noteDir != "." && noteDir != "" {
		candidates = append([]string{path.Join(noteDir, ref)}, candidates...)
	}
	for _, c := range candidates {
		clean, err := NormalizePath(c)
		if err != nil {
			continue
		}
		if v.Exists(clean) {
			return clean, true
		}
	}
	if strings.Contains(ref, "/") {
		return "", false
	}
	match, ok := v.findByBasename(ref)
	return match, ok
}

func (v *Vault) findByBasename(name string) (string, bool) {
	var matches []string
	_ = util.Walk(v.fs, ".", func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil || info.IsDir() {
			return nil
		}
		if info.Name() == name {
			matches = append(matches, strings.TrimPrefix(strings.TrimPrefix(p, "./"), "/"))
		}
		return nil
	})
	if len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[0], true
}
