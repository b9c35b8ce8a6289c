// Package batch holds the counters and log helpers shared by the loaders.
package batch

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Stats counts what a batch step did with its input.
type Stats struct {
	Processed int `json:"processed"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Add folds o into s.
func (s *Stats) Add(o Stats) {
	s.Processed += o.Processed
	s.Inserted += o.Inserted
	s.Updated += o.Updated
	s.Unchanged += o.Unchanged
	s.Skipped += o.Skipped
	s.Failed += o.Failed
}

func (s Stats) String() string {
	return fmt.Sprintf("processed=%d inserted=%d updated=%d unchanged=%d skipped=%d failed=%d",
		s.Processed, s.Inserted, s.Updated, s.Unchanged, s.Skipped, s.Failed)
}

// LogStats logs the final counts of a step.
func LogStats(component string, s Stats, duration time.Duration) {
	log.Printf("[%s] done %s in %dms", component, s, duration.Milliseconds())
}

// LogSkip logs a record that was skipped without failing the step.
func LogSkip(component, what string, err error) {
	log.Printf("[%s] skip %s: %v", component, what, err)
}

// LogError logs a failure of one unit of work in a larger step.
func LogError(component, operation string, err error) {
	log.Printf("[%s] %s error: %v", component, operation, err)
}

// Progress prints a dot every Every ticks so long scans show they are alive.
type Progress struct {
	Every int
	Out   io.Writer
	n     int
}

// NewProgress writes to stderr every n ticks.
func NewProgress(n int) *Progress {
	return &Progress{Every: n, Out: os.Stderr}
}

// Tick counts one unit of work.
func (p *Progress) Tick() {
	if p == nil || p.Every <= 0 {
		return
	}
	p.n++
	if p.n%p.Every == 0 {
		fmt.Fprint(p.Out, ".")
	}
}

// Done ends the dot line if any dots were printed.
func (p *Progress) Done() {
	if p == nil || p.Every <= 0 || p.n < p.Every {
		return
	}
	fmt.Fprintln(p.Out)
}

// Count returns the number of ticks so far.
func (p *Progress) Count() int {
	if p == nil {
		return 0
	}
	return p.n
}
