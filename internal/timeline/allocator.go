package timeline

import (
	"fmt"
	"sort"

	"github.com/noorkids/storyplayer/pkg/types"
)

const (
	// DefaultCoverWeight gives the cover page 1.5x the dwell time of a
	// regular page
	DefaultCoverWeight = 1.5
)

// Allocate distributes totalDurationSeconds of narration across pageCount
// pages. Non-cover pages carry weight 1 and the cover page carries
// coverWeight. The returned windows tile the duration exactly: contiguous,
// non-overlapping, starting at 0 and ending at totalDurationSeconds, with
// the final end forced to the exact total to absorb floating-point
// remainder.
func Allocate(totalDurationSeconds float64, pageCount int, coverWeight float64) ([]types.TimeWindow, error) {
	if pageCount < 1 {
		return nil, fmt.Errorf("page count must be at least 1, got %d", pageCount)
	}
	if totalDurationSeconds <= 0 {
		return nil, fmt.Errorf("total duration must be positive, got %f", totalDurationSeconds)
	}
	if coverWeight <= 0 {
		coverWeight = DefaultCoverWeight
	}

	windows := make([]types.TimeWindow, pageCount)

	if pageCount == 1 {
		windows[0] = types.TimeWindow{Start: 0, End: totalDurationSeconds}
		return windows, nil
	}

	unitSeconds := totalDurationSeconds / (float64(pageCount-1) + coverWeight)

	cursor := 0.0
	for i := 0; i < pageCount; i++ {
		length := unitSeconds
		if i == 0 {
			length = unitSeconds * coverWeight
		}
		windows[i] = types.TimeWindow{Start: cursor, End: cursor + length}
		cursor = windows[i].End
	}

	// Force exact tiling at the end of the track
	windows[pageCount-1].End = totalDurationSeconds

	return windows, nil
}

// FindWindow returns the index of the window containing pos, treating each
// window as the half-open interval [Start, End). Positions before 0 map to
// the first window; positions at or past the final end map to the last.
// Windows must be the sorted, contiguous output of Allocate.
func FindWindow(windows []types.TimeWindow, pos float64) int {
	if len(windows) == 0 {
		return 0
	}
	if pos < windows[0].Start {
		return 0
	}
	last := len(windows) - 1
	if pos >= windows[last].End {
		return last
	}

	// First window whose end is past pos
	return sort.Search(len(windows), func(i int) bool {
		return windows[i].End > pos
	})
}
