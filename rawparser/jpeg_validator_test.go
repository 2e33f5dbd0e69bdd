package rawparser

import (
	"bytes"
	"testing"
)

func TestHorspoolIndex(t *testing.T) {
	data := []byte{0x00, 0x11, 0xFF, 0xD8, 0x22, 0xFF, 0xD8, 0x33}

	if got := horspoolIndex(data, jpegSOI); got != 2 {
		t.Errorf("horspoolIndex = %d, want 2", got)
	}
	if got := horspoolLastIndex(data, jpegSOI); got != 5 {
		t.Errorf("horspoolLastIndex = %d, want 5", got)
	}
	if got := horspoolIndex(data, []byte{0xAB, 0xCD}); got != -1 {
		t.Errorf("horspoolIndex for absent pattern = %d, want -1", got)
	}
	if got := horspoolIndex(nil, jpegSOI); got != -1 {
		t.Errorf("horspoolIndex on empty data = %d, want -1", got)
	}
	if got := horspoolIndex(data, nil); got != -1 {
		t.Errorf("horspoolIndex with empty pattern = %d, want -1", got)
	}
}

func TestFindJPEGBounds(t *testing.T) {
	jpeg := buildJPEG(64)
	padded := append(append([]byte{0x01, 0x02, 0x03}, jpeg...), 0x04, 0x05)

	start := FindJPEGStart(padded)
	if start != 3 {
		t.Fatalf("FindJPEGStart = %d, want 3", start)
	}
	end := FindJPEGEnd(padded, start)
	if end != 3+len(jpeg) {
		t.Fatalf("FindJPEGEnd = %d, want %d", end, 3+len(jpeg))
	}
	if !bytes.Equal(padded[start:end], jpeg) {
		t.Error("recovered range differs from the embedded stream")
	}
}

func TestIsValidJPEG(t *testing.T) {
	jpeg := buildJPEG(128)

	if !IsValidJPEG(jpeg, false) {
		t.Error("well-formed stream rejected in non-strict mode")
	}
	if !IsValidJPEG(jpeg, true) {
		t.Error("well-formed stream rejected in strict mode")
	}

	if IsValidJPEG(nil, false) {
		t.Error("nil accepted")
	}
	if IsValidJPEG([]byte{0xFF, 0xD8}, false) {
		t.Error("bare SOI accepted")
	}
	if IsValidJPEG(jpeg[1:], false) {
		t.Error("stream without leading SOI accepted")
	}

	truncated := jpeg[:len(jpeg)-2]
	if IsValidJPEG(truncated, false) {
		t.Error("stream without EOI accepted in non-strict mode")
	}
	if IsValidJPEG(truncated, true) {
		t.Error("stream without EOI accepted in strict mode")
	}
}

func TestIsValidJPEGStrictSegmentBounds(t *testing.T) {
	jpeg := buildJPEG(128)

	// Inflate the APP0 length field past the end of the stream.
	broken := append([]byte(nil), jpeg...)
	broken[4], broken[5] = 0x7F, 0xFF
	if IsValidJPEG(broken, true) {
		t.Error("oversized segment length accepted in strict mode")
	}
	if !IsValidJPEG(broken, false) {
		t.Error("non-strict mode should not inspect segment lengths")
	}
}

func TestIsValidJPEGStuffedBytesAndRestarts(t *testing.T) {
	jpeg := buildJPEG(64)

	// Splice stuffed 0xFF00 pairs and a restart marker into the entropy
	// section; both are legal inside the scan.
	withStuffing := append([]byte(nil), jpeg[:40]...)
	withStuffing = append(withStuffing, 0xFF, 0x00, 0xFF, 0xD0, 0x42)
	withStuffing = append(withStuffing, jpeg[40:]...)
	if !IsValidJPEG(withStuffing, true) {
		t.Error("stuffed bytes and restart markers rejected in strict mode")
	}
}
