package rawpreview

import (
	"sort"

	"rawpreview/rawparser"
)

// rankCandidates orders candidates best-first for the given options and
// reports whether the size window was empty, in which case the fallback
// ordering (largest under max, else smallest overall) applies.
func rankCandidates(candidates []rawparser.PreviewCandidate, opts *ExtractionOptions) ([]rawparser.PreviewCandidate, bool) {
	if len(candidates) == 0 {
		return nil, false
	}

	var inWindow []rawparser.PreviewCandidate
	for _, c := range candidates {
		if int64(c.Size) >= opts.TargetMinSize && int64(c.Size) <= opts.TargetMaxSize {
			inWindow = append(inWindow, c)
		}
	}

	if len(inWindow) > 0 {
		mid := (opts.TargetMinSize + opts.TargetMaxSize) / 2
		sort.SliceStable(inWindow, func(i, j int) bool {
			a, b := inWindow[i], inWindow[j]
			aExact := a.Quality == opts.PreferQuality
			bExact := b.Quality == opts.PreferQuality
			if aExact != bExact {
				return aExact
			}
			if da, db := tierDistance(a.Quality, opts.PreferQuality), tierDistance(b.Quality, opts.PreferQuality); da != db {
				return da < db
			}
			if a.Priority != b.Priority {
				return a.Priority > b.Priority
			}
			return midDistance(a, mid) < midDistance(b, mid)
		})
		return inWindow, false
	}

	fallback := make([]rawparser.PreviewCandidate, len(candidates))
	copy(fallback, candidates)

	var underMax []rawparser.PreviewCandidate
	for _, c := range fallback {
		if int64(c.Size) <= opts.TargetMaxSize {
			underMax = append(underMax, c)
		}
	}
	if len(underMax) > 0 {
		// Largest candidate that still respects the ceiling.
		sort.SliceStable(underMax, func(i, j int) bool {
			return underMax[i].Size > underMax[j].Size
		})
		return underMax, true
	}

	// Everything oversized, take the least oversized first.
	sort.SliceStable(fallback, func(i, j int) bool {
		return fallback[i].Size < fallback[j].Size
	})
	return fallback, true
}

func tierDistance(a, b rawparser.Quality) int {
	d := int(a) - int(b)
	if d < 0 {
		return -d
	}
	return d
}

func midDistance(c rawparser.PreviewCandidate, mid int64) int64 {
	d := int64(c.Size) - mid
	if d < 0 {
		return -d
	}
	return d
}
