package rewrite

// Stats is the batch-wide processing record. It is written only by the
// batch driver and surfaced to a status sink after each image and file.
type Stats struct {
	TotalFiles           int
	ProcessedFiles       int
	TotalImages          int
	ProcessedImages      int
	CurrentFileImages    int
	CurrentFileProcessed int
	CurrentFileName      string
}

func (s *Stats) Reset() {
	*s = Stats{}
}

// StatusSink receives progress updates during a batch run.
type StatusSink interface {
	Update(s Stats)
	Done()
}

// Notifier is the user-facing notification channel for per-image failures.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }
