package generator

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/manash/pollgen/pkg/models"
)

type stats struct {
	mu sync.Mutex
	s  models.Statistics
}

func (st *stats) recordHit() {
	st.mu.Lock()
	st.s.CacheHits++
	st.mu.Unlock()
}

func (st *stats) recordGenerated(elapsed time.Duration) {
	st.mu.Lock()
	st.s.ImagesGenerated++
	st.s.TotalGenerationTime += elapsed
	st.mu.Unlock()
}

func (st *stats) recordError() {
	st.mu.Lock()
	st.s.Errors++
	st.mu.Unlock()
}

func (st *stats) snapshot() models.Statistics {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

// WriteStatistics prints s the way the stats command shows it.
func WriteStatistics(w io.Writer, s models.Statistics) {
	color.New(color.FgCyan, color.Bold).Fprintln(w, "Session statistics:")
	fmt.Fprintf(w, "  Images generated:   %s\n", humanize.Comma(int64(s.ImagesGenerated)))
	fmt.Fprintf(w, "  Cache hits:         %s\n", humanize.Comma(int64(s.CacheHits)))
	fmt.Fprintf(w, "  Cache hit rate:     %.1f%%\n", s.CacheHitRate())
	fmt.Fprintf(w, "  Avg generation:     %s\n", s.AverageGenerationTime().Round(time.Millisecond))
	fmt.Fprintf(w, "  Total generation:   %s\n", s.TotalGenerationTime.Round(time.Millisecond))
	errs := color.New(color.FgGreen)
	if s.Errors > 0 {
		errs = color.New(color.FgRed)
	}
	errs.Fprintf(w, "  Errors:             %d\n", s.Errors)
}
