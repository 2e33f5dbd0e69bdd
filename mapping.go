package rawpreview

import (
	"sort"
	"strings"

	"rawpreview/rawparser"
)

// previewMapping pins the candidate-list positions of the full and medium
// previews for cameras whose locator output order is known. sizeBased
// selects by byte size instead: largest for full, second largest for medium.
type previewMapping struct {
	fullIndex   int
	mediumIndex int
	sizeBased   bool
}

// nikonModelMappings resolves a NEF camera model to its mapping by substring
// match, first entry wins. Entries are ordered most specific first so "Z 6"
// cannot shadow "Z 6II" and "Z 6III". Recent Z-series bodies write their
// previews in an unpredictable order and need size-based selection; the
// traditional DSLRs keep the full preview first and the medium second.
var nikonModelMappings = []struct {
	model   string
	mapping previewMapping
}{
	{"Z 6III", previewMapping{-1, -2, true}},
	{"Z 6II", previewMapping{-1, -2, true}},
	{"Z 7II", previewMapping{-1, -2, true}},
	{"Z 9", previewMapping{-1, -2, true}},
	{"Z 8", previewMapping{-1, -2, true}},
	{"Z 6", previewMapping{0, 1, false}},
	{"Z 5", previewMapping{-1, -2, true}},
	{"Z fc", previewMapping{-1, -2, true}},
	{"Z 30", previewMapping{-1, -2, true}},
	{"D7500", previewMapping{0, 1, false}},
	{"D7200", previewMapping{0, 1, false}},
	{"D5600", previewMapping{0, 1, false}},
	{"D3500", previewMapping{0, 1, false}},
	{"D850", previewMapping{-1, -2, true}},
	{"D810", previewMapping{0, 1, false}},
	{"D780", previewMapping{-1, -2, true}},
	{"D750", previewMapping{0, 1, false}},
	{"D610", previewMapping{0, 1, false}},
	{"D6", previewMapping{-1, -2, true}},
}

// formatMappings holds the per-format positions for the non-Nikon formats.
// Sony ARW locators emit the full preview third; CR3 emits THMB, PRVW, MDAT
// in that order, so full sits at index 2 and medium at 1.
var formatMappings = map[rawparser.RawFormat]previewMapping{
	rawparser.FormatARW: {2, 0, false},
	rawparser.FormatCR2: {0, 1, false},
	rawparser.FormatCR3: {2, 1, false},
	rawparser.FormatDNG: {0, 1, false},
	rawparser.FormatRAF: {0, 1, false},
	rawparser.FormatORF: {0, 1, false},
	rawparser.FormatRW2: {0, 1, false},
}

func nikonMapping(model string) previewMapping {
	for _, entry := range nikonModelMappings {
		if strings.Contains(model, entry.model) {
			return entry.mapping
		}
	}
	// Unknown bodies get size-based selection.
	return previewMapping{-1, -2, true}
}

func largestCandidate(candidates []rawparser.PreviewCandidate) rawparser.PreviewCandidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Size > best.Size {
			best = c
		}
	}
	return best
}

func secondLargestCandidate(candidates []rawparser.PreviewCandidate) rawparser.PreviewCandidate {
	if len(candidates) == 1 {
		return candidates[0]
	}
	sorted := make([]rawparser.PreviewCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Size > sorted[j].Size
	})
	return sorted[1]
}

// selectMapped picks the full or medium preview from the locator's candidate
// list. model is consulted only for NEF; candidates must be non-empty.
func selectMapped(format rawparser.RawFormat, model string, candidates []rawparser.PreviewCandidate, medium bool) rawparser.PreviewCandidate {
	var mapping previewMapping
	var known bool
	if format == rawparser.FormatNEF {
		mapping, known = nikonMapping(model), true
	} else {
		mapping, known = formatMappings[format]
	}

	if medium {
		switch {
		case known && (mapping.sizeBased || mapping.mediumIndex == -2):
			return secondLargestCandidate(candidates)
		case known && mapping.mediumIndex < len(candidates):
			return candidates[mapping.mediumIndex]
		case len(candidates) > 1:
			return candidates[1]
		}
		return candidates[0]
	}

	switch {
	case known && (mapping.sizeBased || mapping.fullIndex == -1):
		return largestCandidate(candidates)
	case known && mapping.fullIndex < len(candidates):
		return candidates[mapping.fullIndex]
	}
	return candidates[0]
}
