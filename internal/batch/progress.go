package batch

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"vaultpin/internal/rewrite"
)

// ProgressSink renders batch progress as a terminal bar over the total
// image count.
type ProgressSink struct {
	out  io.Writer
	bar  *progressbar.ProgressBar
	seen int
}

func NewProgressSink(out io.Writer) *ProgressSink {
	return &ProgressSink{out: out}
}

func (p *ProgressSink) Update(s rewrite.Stats) {
	if p.bar == nil {
		if s.TotalImages == 0 {
			return
		}
		p.bar = progressbar.NewOptions64(
			int64(s.TotalImages),
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription("Migrating images"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	if s.ProcessedImages > p.seen {
		_ = p.bar.Add(s.ProcessedImages - p.seen)
		p.seen = s.ProcessedImages
	}
}

func (p *ProgressSink) Done() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// NopSink discards progress updates.
type NopSink struct{}

func (NopSink) Update(rewrite.Stats) {}
func (NopSink) Done()                {}
