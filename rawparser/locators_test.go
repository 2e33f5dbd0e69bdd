package rawparser

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"rawpreview/governor"
)

// inWindowJPEG is sized to land inside the 200KB-3MB target window and above
// the thumbnail ceiling.
func inWindowJPEG() []byte {
	return buildJPEG(600 * 1024)
}

func locate(t *testing.T, format RawFormat, data []byte) []PreviewCandidate {
	t.Helper()
	l, err := NewLocatorRegistry().Get(format)
	if err != nil {
		t.Fatalf("no locator for %s: %v", format, err)
	}
	candidates, err := l.LocateCandidates(parseOf(data))
	if err != nil {
		t.Fatalf("LocateCandidates: %v", err)
	}
	return candidates
}

func findByType(candidates []PreviewCandidate, typ string) (PreviewCandidate, bool) {
	for _, c := range candidates {
		if c.Type == typ {
			return c, true
		}
	}
	return PreviewCandidate{}, false
}

func TestCR2Locator(t *testing.T) {
	preview := inWindowJPEG()
	thumb := buildJPEG(2048)
	data := buildCR2(preview, thumb)

	candidates := locate(t, FormatCR2, data)
	if len(candidates) != 2 {
		t.Fatalf("candidate count = %d, want 2", len(candidates))
	}

	main, ok := findByType(candidates, "CR2_IFD0")
	if !ok {
		t.Fatal("CR2_IFD0 candidate missing")
	}
	if main.Priority != 10 {
		t.Errorf("priority = %d, want 10", main.Priority)
	}
	if main.Quality != QualityPreview {
		t.Errorf("quality = %s, want preview", main.Quality)
	}
	if main.Width != 2256 || main.Height != 1504 {
		t.Errorf("dimensions = %dx%d, want 2256x1504", main.Width, main.Height)
	}
	if !bytes.Equal(data[main.Offset:main.Offset+main.Size], preview) {
		t.Error("candidate range does not round-trip the embedded preview")
	}

	small, ok := findByType(candidates, "CR2_IFD1")
	if !ok {
		t.Fatal("CR2_IFD1 candidate missing")
	}
	if small.Priority != 1 || small.Quality != QualityThumbnail {
		t.Errorf("thumbnail priority/quality = %d/%s", small.Priority, small.Quality)
	}
}

func TestCR2LocatorOutOfWindowPriority(t *testing.T) {
	data := buildCR2(buildJPEG(64*1024), buildJPEG(2048))
	candidates := locate(t, FormatCR2, data)
	main, ok := findByType(candidates, "CR2_IFD0")
	if !ok {
		t.Fatal("CR2_IFD0 candidate missing")
	}
	if main.Priority != 5 {
		t.Errorf("out-of-window priority = %d, want 5", main.Priority)
	}
}

func TestNEFLocator(t *testing.T) {
	preview := inWindowJPEG()
	data := buildNEF(preview)

	candidates := locate(t, FormatNEF, data)
	if len(candidates) != 1 {
		t.Fatalf("candidate count = %d, want 1 (tag pair rediscovery must dedupe)", len(candidates))
	}

	// The dedicated JpgFromRaw tag pair points at the same bytes the generic
	// SubIFD walk found, so the single candidate carries the upgraded
	// priority and name while keeping the walk's dimensions.
	c := candidates[0]
	if c.Type != "NEF_JpgFromRaw" {
		t.Errorf("type = %s, want NEF_JpgFromRaw", c.Type)
	}
	if c.Priority != 12 {
		t.Errorf("priority = %d, want 12", c.Priority)
	}
	if c.Width != 4288 || c.Height != 2848 {
		t.Errorf("dimensions = %dx%d, want 4288x2848", c.Width, c.Height)
	}
	if c.IFDIndex >= 0 {
		t.Errorf("IFDIndex = %d, want negative for a SubIFD", c.IFDIndex)
	}
	if !bytes.Equal(data[c.Offset:c.Offset+c.Size], preview) {
		t.Error("candidate range does not round-trip the embedded preview")
	}
}

func TestARWLocator(t *testing.T) {
	preview := inWindowJPEG()
	data := buildARW(preview)

	candidates := locate(t, FormatARW, data)
	if len(candidates) != 1 {
		t.Fatalf("candidate count = %d, want 1", len(candidates))
	}

	c := candidates[0]
	if c.Type != "ARW_Preview" {
		t.Errorf("type = %s, want ARW_Preview", c.Type)
	}
	if c.Priority != 10 {
		t.Errorf("priority = %d, want 10", c.Priority)
	}
	if c.SubfileType != 1 {
		t.Errorf("subfile type = %d, want 1", c.SubfileType)
	}
	if c.Orientation != 8 {
		t.Errorf("orientation = %d, want 8", c.Orientation)
	}
}

func TestDNGLocator(t *testing.T) {
	thumb := buildJPEG(2048)
	preview := inWindowJPEG()
	data := buildDNG(thumb, preview)

	candidates := locate(t, FormatDNG, data)
	if len(candidates) != 2 {
		t.Fatalf("candidate count = %d, want 2", len(candidates))
	}

	ifd0, ok := findByType(candidates, "DNG_IFD0")
	if !ok {
		t.Fatal("DNG_IFD0 candidate missing")
	}
	if ifd0.Priority != 2 || ifd0.Quality != QualityThumbnail {
		t.Errorf("IFD0 priority/quality = %d/%s", ifd0.Priority, ifd0.Quality)
	}

	var reduced *PreviewCandidate
	for i := range candidates {
		if candidates[i].SubfileType == 1 {
			reduced = &candidates[i]
		}
	}
	if reduced == nil {
		t.Fatal("reduced-resolution candidate missing")
	}
	if reduced.Priority != 10 {
		t.Errorf("reduced priority = %d, want 10", reduced.Priority)
	}
}

func TestRAFLocator(t *testing.T) {
	preview := inWindowJPEG()
	data := buildRAF(preview)

	candidates := locate(t, FormatRAF, data)
	if len(candidates) != 1 {
		t.Fatalf("candidate count = %d, want 1", len(candidates))
	}

	c := candidates[0]
	if c.Type != "RAF_Header" {
		t.Errorf("type = %s, want RAF_Header", c.Type)
	}
	if c.Priority != 10 {
		t.Errorf("priority = %d, want 10", c.Priority)
	}
	if !bytes.Equal(data[c.Offset:c.Offset+c.Size], preview) {
		t.Error("candidate range does not round-trip the embedded preview")
	}
}

func TestRAFLocatorScanFallback(t *testing.T) {
	preview := buildJPEG(4096)
	data := buildRAF(preview)
	// Corrupt the header table; the locator should still find the stream by
	// scanning for markers.
	f := &fixture{buf: data}
	f.be32(rafJpegOffsetField, 0xFFFFFFFF)
	f.be32(rafJpegLengthField, 0xFFFFFFFF)

	candidates := locate(t, FormatRAF, data)
	if len(candidates) != 1 {
		t.Fatalf("candidate count = %d, want 1", len(candidates))
	}
	if candidates[0].Type != "RAF_Scan" {
		t.Errorf("type = %s, want RAF_Scan", candidates[0].Type)
	}
	if !bytes.Equal(data[candidates[0].Offset:candidates[0].Offset+candidates[0].Size], preview) {
		t.Error("scanned range does not round-trip the embedded preview")
	}
}

func TestORFLocator(t *testing.T) {
	preview := inWindowJPEG()
	data := buildORF(preview)

	candidates := locate(t, FormatORF, data)
	if len(candidates) != 1 {
		t.Fatalf("candidate count = %d, want 1", len(candidates))
	}
	if candidates[0].Type != "ORF_IFD0" {
		t.Errorf("type = %s, want ORF_IFD0", candidates[0].Type)
	}
	if candidates[0].Priority != 10 {
		t.Errorf("priority = %d, want 10", candidates[0].Priority)
	}
}

func TestRW2Locator(t *testing.T) {
	preview := inWindowJPEG()
	data := buildRW2(preview)

	candidates := locate(t, FormatRW2, data)
	if len(candidates) != 1 {
		t.Fatalf("candidate count = %d, want 1", len(candidates))
	}

	c := candidates[0]
	if c.Type != "RW2_JpgFromRaw" {
		t.Errorf("type = %s, want RW2_JpgFromRaw", c.Type)
	}
	if c.Priority != 10 {
		t.Errorf("priority = %d, want 10", c.Priority)
	}
	if !bytes.Equal(data[c.Offset:c.Offset+c.Size], preview) {
		t.Error("candidate range does not round-trip the embedded preview")
	}
}

func TestCR3Locator(t *testing.T) {
	preview := inWindowJPEG()
	thumb := buildJPEG(2048)
	data := buildCR3(preview, thumb)

	candidates := locate(t, FormatCR3, data)
	if len(candidates) != 2 {
		t.Fatalf("candidate count = %d, want 2", len(candidates))
	}

	th, ok := findByType(candidates, "CR3_THMB")
	if !ok {
		t.Fatal("CR3_THMB candidate missing")
	}
	if th.Priority != 1 || th.Quality != QualityThumbnail {
		t.Errorf("thumbnail priority/quality = %d/%s", th.Priority, th.Quality)
	}
	if !bytes.Equal(data[th.Offset:th.Offset+th.Size], thumb) {
		t.Error("THMB range does not round-trip the embedded thumbnail")
	}

	prvw, ok := findByType(candidates, "CR3_PRVW")
	if !ok {
		t.Fatal("CR3_PRVW candidate missing")
	}
	if prvw.Priority != 5 || prvw.Quality != QualityPreview {
		t.Errorf("PRVW priority/quality = %d/%s", prvw.Priority, prvw.Quality)
	}
	if !bytes.Equal(data[prvw.Offset:prvw.Offset+prvw.Size], preview) {
		t.Error("PRVW range does not round-trip the embedded preview")
	}
}

func TestLocatorsSkipInvalidCandidates(t *testing.T) {
	preview := buildJPEG(4096)
	data := buildCR2(preview, buildJPEG(2048))
	// Destroy the preview's SOI; only the thumbnail should survive.
	copy(data[0xA0:], []byte{0x00, 0x00})

	candidates := locate(t, FormatCR2, data)
	if len(candidates) != 1 {
		t.Fatalf("candidate count = %d, want 1", len(candidates))
	}
	if candidates[0].Type != "CR2_IFD1" {
		t.Errorf("surviving candidate = %s, want CR2_IFD1", candidates[0].Type)
	}
}

func TestParseBytesHonorsGovernor(t *testing.T) {
	data := buildCR2(buildJPEG(4096), buildJPEG(2048))

	expired := governor.New(-time.Second, 100)
	pr := parseWithGovernor(data, expired)
	if _, err := pr.Bytes(0, 8); !errors.Is(err, governor.ErrTimeoutExceeded) {
		t.Errorf("expired budget: err = %v, want timeout", err)
	}

	tight := governor.New(time.Minute, 1)
	tight.Track(2 * 1024 * 1024)
	pr = parseWithGovernor(data, tight)
	if _, err := pr.Bytes(0, 8); !errors.Is(err, governor.ErrMemoryExceeded) {
		t.Errorf("spent memory budget: err = %v, want memory", err)
	}
}
