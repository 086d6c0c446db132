// Package rewrite orchestrates one pass over a note: classify every image
// reference, fetch and upload the ones that need migrating, and substitute
// the replacement literals without touching surrounding text.
package rewrite

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"vaultpin/internal/classify"
	"vaultpin/internal/config"
	"vaultpin/internal/journal"
	"vaultpin/internal/vault"
)

// Uploader is the slice of the pinning client the rewriter needs.
type Uploader interface {
	PinPublic(ctx context.Context, data []byte, filename, groupID string) (string, error)
	UploadPrivate(ctx context.Context, data []byte, filename, groupID string) (string, error)
	ResolveGroup(ctx context.Context, name string, public bool) string
	Host() string
}

// Fetcher downloads remote image bytes.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// HTTPFetcher fetches over a plain HTTP client.
type HTTPFetcher struct {
	Client *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	return data, nil
}

// Rewriter processes notes one at a time. It is not safe for concurrent
// use; batches run serially by design.
type Rewriter struct {
	Cfg      *config.Config
	Vault    *vault.Vault
	Uploader Uploader
	Fetcher  Fetcher
	Notify   Notifier
	Journal  *journal.Journal

	// DryRun classifies and reports without uploading or writing.
	DryRun bool
	// SkipKnown reuses a journaled CID for byte-identical content.
	SkipKnown bool
	// RunID tags journal entries from one batch run.
	RunID string
	// OnImage fires after each reference is handled, for progress.
	OnImage func()

	Now func() time.Time

	groupID       string
	groupResolved bool
}

// Result summarizes one pass over one note.
type Result struct {
	Refs     int
	Uploaded int
	Replaced int
	Skipped  int
	Failed   int
	Changed  bool
}

func (rw *Rewriter) now() time.Time {
	if rw.Now != nil {
		return rw.Now()
	}
	return time.Now()
}

func (rw *Rewriter) notify(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if rw.Notify != nil {
		rw.Notify.Notify(msg)
		return
	}
	slog.Warn(msg)
}

func (rw *Rewriter) group(ctx context.Context) string {
	if rw.groupResolved {
		return rw.groupID
	}
	rw.groupResolved = true
	if rw.Cfg.GroupName != "" && !rw.DryRun {
		rw.groupID = rw.Uploader.ResolveGroup(ctx, rw.Cfg.GroupName, rw.Cfg.Mode == config.ModePublic)
	}
	return rw.groupID
}

// ProcessNote runs one full pass over a note. A returned error means the
// note itself could not be read or written; individual image failures are
// notified and skipped.
func (rw *Rewriter) ProcessNote(ctx context.Context, notePath string) (Result, error) {
	var res Result

	content, err := rw.Vault.Read(notePath)
	if err != nil {
		return res, fmt.Errorf("note %s: %w", notePath, err)
	}
	text := string(content)
	refs := ScanRefs(text)
	res.Refs = len(refs)

	// Identical decoded references inside one pass share a single upload
	// and a single replacement literal.
	dedup := make(map[string]string)
	working := text

	for _, ref := range refs {
		if repl, ok := dedup[ref.Decoded]; ok {
			working = strings.Replace(working, ref.Raw, repl, 1)
			res.Replaced++
			rw.imageDone()
			continue
		}

		repl, uploaded, err := rw.processRef(ctx, notePath, ref)
		if err != nil {
			rw.notify("image %q in %s: %v", ref.Decoded, notePath, err)
			res.Failed++
			rw.imageDone()
			continue
		}
		if repl == "" {
			res.Skipped++
			rw.imageDone()
			continue
		}
		dedup[ref.Decoded] = repl
		working = strings.Replace(working, ref.Raw, repl, 1)
		res.Replaced++
		if uploaded {
			res.Uploaded++
		}
		rw.imageDone()
	}

	if working != text {
		res.Changed = true
		if !rw.DryRun {
			if err := rw.Vault.WriteAtomic(notePath, []byte(working)); err != nil {
				return res, fmt.Errorf("note %s: %w", notePath, err)
			}
		}
	}
	return res, nil
}

func (rw *Rewriter) imageDone() {
	if rw.OnImage != nil {
		rw.OnImage()
	}
}

// processRef handles a single reference. It returns the replacement
// literal ("" when the reference is left alone) and whether an actual
// upload happened.
func (rw *Rewriter) processRef(ctx context.Context, notePath string, ref Ref) (string, bool, error) {
	cls := classify.Classify(ref.Decoded, notePath, rw.Vault, rw.Uploader.Host())
	switch cls.Kind {
	case classify.AlreadyIPFS, classify.Skip:
		return "", false, nil
	}

	var data []byte
	var filename string
	var err error

	switch cls.Kind {
	case classify.LocalFile:
		data, err = rw.Vault.Read(cls.LocalPath)
		if err != nil {
			return "", false, err
		}
		filename = path.Base(cls.LocalPath)
	case classify.RemoteDirect, classify.RemoteCDN:
		canonical := ref.Decoded
		if cls.Kind == classify.RemoteCDN {
			canonical = classify.Normalize(ref.Decoded)
		}
		if rw.DryRun {
			return rw.replacement("dry-run"), false, nil
		}
		data, err = rw.Fetcher.Fetch(ctx, canonical)
		if err != nil {
			return "", false, err
		}
		filename = remoteFilename(canonical, rw.now())
	}

	if rw.DryRun {
		return rw.replacement("dry-run"), false, nil
	}

	hash := journal.ContentHash(data)
	if rw.SkipKnown && rw.Journal != nil {
		if cid, err := rw.Journal.LookupCID(ctx, hash, rw.Cfg.Mode); err == nil && cid != "" {
			rw.backup(cls, data)
			return rw.replacement(cid), false, nil
		}
	}

	cid, err := rw.upload(ctx, data, filename)
	if err != nil {
		return "", false, err
	}
	if cid == "" {
		return "", false, fmt.Errorf("service returned empty cid")
	}

	rw.backup(cls, data)

	if rw.Journal != nil {
		if err := rw.Journal.Record(ctx, journal.Entry{
			RunID:    rw.RunID,
			NotePath: notePath,
			Ref:      ref.Decoded,
			Hash:     hash,
			CID:      cid,
			Mode:     rw.Cfg.Mode,
			Filename: filename,
		}); err != nil {
			slog.Warn("journal record failed", "err", err)
		}
	}

	return rw.replacement(cid), true, nil
}

func (rw *Rewriter) upload(ctx context.Context, data []byte, filename string) (string, error) {
	groupID := rw.group(ctx)
	if rw.Cfg.Mode == config.ModePrivate {
		return rw.Uploader.UploadPrivate(ctx, data, filename, groupID)
	}
	return rw.Uploader.PinPublic(ctx, data, filename, groupID)
}

// backup writes a copy of local originals before the note is rewritten.
// A backup failure is notified but never blocks the replacement.
func (rw *Rewriter) backup(cls classify.Result, data []byte) {
	if !rw.Cfg.BackupOriginals || cls.Kind != classify.LocalFile {
		return
	}
	if _, err := rw.Vault.WriteBackup(rw.Cfg.BackupFolder, cls.LocalPath, data); err != nil {
		rw.notify("backup of %s failed: %v", cls.LocalPath, err)
	}
}

// replacement builds the new literal. Private uploads carry the alt text
// "private"; that is how visibility is recovered at render time.
func (rw *Rewriter) replacement(cid string) string {
	if rw.Cfg.Mode == config.ModePrivate {
		return "![private](ipfs://" + cid + ")"
	}
	return "![](ipfs://" + cid + ")"
}

func remoteFilename(rawURL string, now time.Time) string {
	ext := strings.ToLower(path.Ext(urlPath(rawURL)))
	if !classify.IsImageExt(ext) {
		ext = ".jpg"
	}
	return fmt.Sprintf("remote-%d%s", now.UnixMilli(), ext)
}

func urlPath(rawURL string) string {
	if i := strings.Index(rawURL, "?"); i >= 0 {
		rawURL = rawURL[:i]
	}
	return rawURL
}
