// Package batch applies the rewriter to one note, a folder, or the whole
// vault, sequentially, with progress accounting.
package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"vaultpin/internal/rewrite"
	"vaultpin/internal/vault"
)

type Driver struct {
	Vault    *vault.Vault
	Rewriter *rewrite.Rewriter
	Sink     rewrite.StatusSink
	Out      io.Writer

	stats rewrite.Stats
}

// Report accumulates outcomes across one run; a single image or note
// failure never aborts the batch.
type Report struct {
	Notes        int
	ChangedNotes int
	Refs         int
	Uploaded     int
	Replaced     int
	Skipped      int
	Failed       int
	NoteErrors   int
}

func (d *Driver) RunNote(ctx context.Context, notePath string) (Report, error) {
	return d.run(ctx, []string{notePath})
}

func (d *Driver) RunFolder(ctx context.Context, dir string) (Report, error) {
	notes, err := d.Vault.Notes(dir)
	if err != nil {
		return Report{}, err
	}
	return d.run(ctx, notes)
}

func (d *Driver) RunAll(ctx context.Context) (Report, error) {
	notes, err := d.Vault.Notes("")
	if err != nil {
		return Report{}, err
	}
	return d.run(ctx, notes)
}

func (d *Driver) run(ctx context.Context, notes []string) (Report, error) {
	var report Report
	d.stats.Reset()
	d.stats.TotalFiles = len(notes)

	// Pre-count so progress has a stable denominator.
	perNote := make(map[string]int, len(notes))
	for _, note := range notes {
		content, err := d.Vault.Read(note)
		if err != nil {
			continue
		}
		n := rewrite.CountRefs(string(content))
		perNote[note] = n
		d.stats.TotalImages += n
	}
	d.update()

	d.Rewriter.OnImage = func() {
		d.stats.ProcessedImages++
		d.stats.CurrentFileProcessed++
		d.update()
	}
	defer func() { d.Rewriter.OnImage = nil }()

	for _, note := range notes {
		d.stats.CurrentFileName = note
		d.stats.CurrentFileImages = perNote[note]
		d.stats.CurrentFileProcessed = 0
		d.update()

		res, err := d.Rewriter.ProcessNote(ctx, note)
		report.Notes++
		report.Refs += res.Refs
		report.Uploaded += res.Uploaded
		report.Replaced += res.Replaced
		report.Skipped += res.Skipped
		report.Failed += res.Failed
		if res.Changed {
			report.ChangedNotes++
		}
		if err != nil {
			report.NoteErrors++
			slog.Error("note failed", "note", note, "err", err)
		}

		d.stats.ProcessedFiles++
		d.update()
	}

	if d.Sink != nil {
		d.Sink.Done()
	}
	d.stats.Reset()
	return report, nil
}

func (d *Driver) update() {
	if d.Sink != nil {
		d.Sink.Update(d.stats)
	}
}

// PrintReport writes the end-of-run summary: an aligned human block plus
// one machine-readable line.
func PrintReport(out io.Writer, r Report) {
	_, _ = fmt.Fprintf(out, "Run summary:\n")
	_, _ = fmt.Fprintf(out, "  notes        : %d\n", r.Notes)
	_, _ = fmt.Fprintf(out, "  notes changed: %d\n", r.ChangedNotes)
	_, _ = fmt.Fprintf(out, "  references   : %d\n", r.Refs)
	_, _ = fmt.Fprintf(out, "  uploaded     : %d\n", r.Uploaded)
	_, _ = fmt.Fprintf(out, "  replaced     : %d\n", r.Replaced)
	_, _ = fmt.Fprintf(out, "  skipped      : %d\n", r.Skipped)
	_, _ = fmt.Fprintf(out, "  failed       : %d\n", r.Failed)
	_, _ = fmt.Fprintf(out, "  note errors  : %d\n", r.NoteErrors)
	_, _ = fmt.Fprintf(out, "notes=%d changed=%d refs=%d uploaded=%d replaced=%d skipped=%d failed=%d note_errors=%d\n",
		r.Notes, r.ChangedNotes, r.Refs, r.Uploaded, r.Replaced, r.Skipped, r.Failed, r.NoteErrors)
}
