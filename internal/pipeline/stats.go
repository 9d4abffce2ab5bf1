package pipeline

import (
	"fmt"
	"io"
	"time"
)

// StageTiming records how long each pipeline stage took.
type StageTiming struct {
	Validate   time.Duration
	Cycles     time.Duration
	Dedupe     time.Duration
	Inline     time.Duration
	Flatten    time.Duration
	QueryShape time.Duration
	Emit       time.Duration
	Total      time.Duration
}

// RunStats accumulates what one compilation did: transform counts, skip
// counts, and query-shape detection outcomes. Skips and degraded detections
// live here, never in errors.
type RunStats struct {
	Timing StageTiming

	CycleCount    int
	NodesInCycles int

	DuplicatesRemoved int

	Inlined     int
	InlineSkips int

	PropertiesFlattened int
	FlattenConflicts    int
	FlattenSkips        int

	ShapesDetected   int
	ShapesUndetected int
}

// NewRunStats creates empty statistics.
func NewRunStats() *RunStats {
	return &RunStats{}
}

// Print writes the timing and transform breakdown in the build report
// format.
func (s *RunStats) Print(w io.Writer) {
	fmt.Fprintf(w, "\n--- timing ---\n")
	fmt.Fprintf(w, "  validate:      %s\n", s.Timing.Validate.Round(time.Millisecond))
	fmt.Fprintf(w, "  cycles:        %s\n", s.Timing.Cycles.Round(time.Millisecond))
	fmt.Fprintf(w, "  dedupe:        %s\n", s.Timing.Dedupe.Round(time.Millisecond))
	fmt.Fprintf(w, "  inline:        %s\n", s.Timing.Inline.Round(time.Millisecond))
	fmt.Fprintf(w, "  flatten:       %s\n", s.Timing.Flatten.Round(time.Millisecond))
	fmt.Fprintf(w, "  queryshape:    %s\n", s.Timing.QueryShape.Round(time.Millisecond))
	fmt.Fprintf(w, "  emit:          %s\n", s.Timing.Emit.Round(time.Millisecond))
	fmt.Fprintf(w, "  total:         %s\n", s.Timing.Total.Round(time.Millisecond))

	fmt.Fprintf(w, "--- transforms ---\n")
	fmt.Fprintf(w, "  cycles found:       %d (%d nodes)\n", s.CycleCount, s.NodesInCycles)
	fmt.Fprintf(w, "  duplicates removed: %d\n", s.DuplicatesRemoved)
	fmt.Fprintf(w, "  inlined:            %d (%d skipped)\n", s.Inlined, s.InlineSkips)
	fmt.Fprintf(w, "  flattened:          %d properties, %d conflicts (%d skipped)\n",
		s.PropertiesFlattened, s.FlattenConflicts, s.FlattenSkips)
	fmt.Fprintf(w, "  query shapes:       %d detected, %d undetected\n",
		s.ShapesDetected, s.ShapesUndetected)
}
