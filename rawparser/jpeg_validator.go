package rawparser

// JPEG marker bytes used by the validator.
const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerTEM  = 0x01
	markerRST0 = 0xD0
	markerRST7 = 0xD7
)

var (
	jpegSOI = []byte{0xFF, markerSOI}
	jpegEOI = []byte{0xFF, markerEOI}
)

// horspoolIndex returns the index of the first occurrence of pat in data,
// or -1. Boyer-Moore-Horspool: the skip table lets the scan jump over runs
// of bytes that cannot start a match, which matters on multi-megabyte
// previews where 0xFF is rare.
func horspoolIndex(data, pat []byte) int {
	m := len(pat)
	if m == 0 || m > len(data) {
		return -1
	}

	var skip [256]int
	for i := range skip {
		skip[i] = m
	}
	for i := 0; i < m-1; i++ {
		skip[pat[i]] = m - 1 - i
	}

	i := m - 1
	for i < len(data) {
		j := 0
		for j < m && data[i-j] == pat[m-1-j] {
			j++
		}
		if j == m {
			return i - m + 1
		}
		i += skip[data[i]]
	}
	return -1
}

// horspoolLastIndex returns the index of the last occurrence of pat in data,
// or -1. Used to find the EOI marker, which sits at or near the tail.
func horspoolLastIndex(data, pat []byte) int {
	m := len(pat)
	if m == 0 || m > len(data) {
		return -1
	}

	var skip [256]int
	for i := range skip {
		skip[i] = m
	}
	for i := m - 1; i > 0; i-- {
		skip[pat[i]] = i
	}

	i := len(data) - m
	for i >= 0 {
		j := 0
		for j < m && data[i+j] == pat[j] {
			j++
		}
		if j == m {
			return i
		}
		i -= skip[data[i]]
	}
	return -1
}

// FindJPEGStart returns the offset of the first SOI marker in data, or -1.
func FindJPEGStart(data []byte) int {
	return horspoolIndex(data, jpegSOI)
}

// FindJPEGEnd returns the offset one past the EOI marker of the JPEG stream
// beginning at start, or -1 if no EOI follows.
func FindJPEGEnd(data []byte, start int) int {
	if start < 0 || start+2 > len(data) {
		return -1
	}
	idx := horspoolIndex(data[start+2:], jpegEOI)
	if idx < 0 {
		return -1
	}
	return start + 2 + idx + 2
}

// IsValidJPEG reports whether data is a structurally sound JPEG stream.
// Non-strict mode checks only the boundary markers: SOI at the front and an
// EOI somewhere behind it. Strict mode additionally walks the marker chain
// and rejects unterminated segments.
func IsValidJPEG(data []byte, strict bool) bool {
	if len(data) < 4 {
		return false
	}
	if data[0] != 0xFF || data[1] != markerSOI {
		return false
	}
	if !strict {
		return horspoolLastIndex(data[2:], jpegEOI) >= 0
	}
	return walkMarkerChain(data)
}

// walkMarkerChain verifies that the segments from SOI to EOI are internally
// consistent: every marker that carries a length stays in bounds, and the
// entropy-coded section after SOS terminates in an EOI.
func walkMarkerChain(data []byte) bool {
	pos := 2 // past SOI
	for pos+1 < len(data) {
		if data[pos] != 0xFF {
			return false
		}
		// Fill bytes before a marker are legal.
		for pos+1 < len(data) && data[pos+1] == 0xFF {
			pos++
		}
		if pos+1 >= len(data) {
			return false
		}
		marker := data[pos+1]
		pos += 2

		switch {
		case marker == markerEOI:
			return true
		case marker == markerSOI:
			return false
		case marker == markerTEM || (marker >= markerRST0 && marker <= markerRST7):
			// Standalone markers carry no segment.
			continue
		case marker == markerSOS:
			length, ok := segmentLength(data, pos)
			if !ok {
				return false
			}
			pos += length
			// Entropy-coded data runs until the next real marker. Stuffed
			// zero bytes and restart markers stay inside the scan.
			end := scanEntropy(data, pos)
			if end < 0 {
				return false
			}
			return true
		default:
			length, ok := segmentLength(data, pos)
			if !ok {
				return false
			}
			pos += length
		}
	}
	return false
}

// segmentLength reads the 2-byte big-endian segment length at pos and checks
// the whole segment fits inside data. The returned length includes the two
// length bytes themselves.
func segmentLength(data []byte, pos int) (int, bool) {
	if pos+2 > len(data) {
		return 0, false
	}
	length := int(data[pos])<<8 | int(data[pos+1])
	if length < 2 || pos+length > len(data) {
		return 0, false
	}
	return length, true
}

// scanEntropy searches the entropy-coded section starting at pos for the EOI
// marker, skipping byte-stuffed 0xFF00 pairs and restart markers. Returns the
// offset just past EOI, or -1 if the section never terminates.
func scanEntropy(data []byte, pos int) int {
	for {
		rel := horspoolIndex(data[pos:], []byte{0xFF})
		if rel < 0 || pos+rel+1 >= len(data) {
			return -1
		}
		at := pos + rel
		next := data[at+1]
		switch {
		case next == 0x00 || next == 0xFF:
			pos = at + 2
			if next == 0xFF {
				pos = at + 1
			}
		case next >= markerRST0 && next <= markerRST7:
			pos = at + 2
		case next == markerEOI:
			return at + 2
		default:
			// A non-restart marker inside the scan ends the image data;
			// accept only if an EOI still follows.
			tail := horspoolIndex(data[at:], jpegEOI)
			if tail < 0 {
				return -1
			}
			return at + tail + 2
		}
	}
}
