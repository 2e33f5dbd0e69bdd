package rawparser

import (
	"bytes"
	"encoding/binary"
)

var bigEndian = binary.BigEndian

// ISO base media box types used by CR3.
const (
	boxTypeFTYP = 0x66747970 // "ftyp"
	boxTypeUUID = 0x75756964 // "uuid"
	boxTypeMDAT = 0x6D646174 // "mdat"
)

// prvwSignature marks Canon's PRVW preview record inside the UUID box.
const prvwSignature = 0x50525657 // "PRVW"

// cr3PreviewUUID is the extended type of the Canon box that carries the
// medium preview.
var cr3PreviewUUID = []byte{
	0xea, 0xf4, 0x2b, 0x5e, 0x1c, 0x98, 0x4b, 0x88,
	0xb9, 0xfb, 0xb7, 0xdc, 0x40, 0x6e, 0x4d, 0x16,
}

var (
	thmbSignature = []byte("THMB")
	cmt1Signature = []byte("CMT1")
)

// isoBox is an ISO base media file format box header.
type isoBox struct {
	Size int64
	Type uint32
}

// CR3Locator finds previews in Canon CR3 files, which are box-structured
// (ISO BMFF) rather than TIFF-derived: a THMB thumbnail, a PRVW medium
// preview inside Canon's UUID box, and a full-resolution JPEG inside mdat.
type CR3Locator struct{}

func (*CR3Locator) Format() RawFormat { return FormatCR3 }

func canParseCR3(pr *Parse) bool {
	if pr.Size() < 20 {
		return false
	}
	boxType, ok := pr.readU32(4, bigEndian)
	if !ok || boxType != boxTypeFTYP {
		return false
	}
	brand, ok := pr.readU32(8, bigEndian)
	return ok && (brand == 0x63723320 || brand == 0x63727820) // "cr3 " or "crx "
}

// parseBox reads the box header at offset. Boxes with a zero size extend to
// the end of the input; a 64-bit extended size is clamped to the input.
func parseBox(pr *Parse, offset int64) (isoBox, bool) {
	size32, ok := pr.readU32(offset, bigEndian)
	if !ok {
		return isoBox{}, false
	}
	boxType, ok := pr.readU32(offset+4, bigEndian)
	if !ok {
		return isoBox{}, false
	}

	box := isoBox{Size: int64(size32), Type: boxType}
	switch size32 {
	case 0:
		box.Size = pr.Size() - offset
	case 1:
		hi, ok1 := pr.readU32(offset+8, bigEndian)
		lo, ok2 := pr.readU32(offset+12, bigEndian)
		if !ok1 || !ok2 {
			return isoBox{}, false
		}
		box.Size = int64(hi)<<32 | int64(lo)
		if box.Size > pr.Size()-offset {
			box.Size = pr.Size() - offset
		}
	}
	return box, true
}

func (l *CR3Locator) LocateCandidates(pr *Parse) ([]PreviewCandidate, error) {
	if !canParseCR3(pr) {
		return nil, nil
	}

	orientation, err := l.extractOrientation(pr)
	if err != nil {
		return nil, err
	}

	var previews []PreviewCandidate

	if thumb, ok, err := l.thumbnailPreview(pr); err != nil {
		return previews, err
	} else if ok {
		thumb.Orientation = orientation
		previews = append(previews, thumb)
	}

	if medium, ok, err := l.mediumPreview(pr); err != nil {
		return previews, err
	} else if ok {
		medium.Orientation = orientation
		previews = append(previews, medium)
	}

	if full, ok, err := l.fullResolutionPreview(pr); err != nil {
		return previews, err
	} else if ok {
		full.Orientation = orientation
		previews = append(previews, full)
	}

	return previews, nil
}

// jpegRangeAt locates a JPEG stream starting at or after searchStart and
// ending before limit, returning its absolute offset and size.
func jpegRangeAt(pr *Parse, searchStart, limit int64) (int64, int64, error) {
	start, err := pr.findMarker(searchStart, limit, jpegSOI)
	if err != nil || start < 0 {
		return -1, 0, err
	}
	end, err := pr.findMarker(start+2, limit, jpegEOI)
	if err != nil || end < 0 {
		return -1, 0, err
	}
	return start, end + 2 - start, nil
}

// thumbnailPreview extracts the THMB box thumbnail.
func (l *CR3Locator) thumbnailPreview(pr *Parse) (PreviewCandidate, bool, error) {
	at, err := pr.findMarker(0, pr.Size(), thmbSignature)
	if err != nil || at < 0 {
		return PreviewCandidate{}, false, err
	}

	// The JPEG follows the 16-byte THMB record header.
	offset, size, err := jpegRangeAt(pr, at+16, pr.Size())
	if err != nil || offset < 0 {
		return PreviewCandidate{}, false, err
	}

	data, err := pr.Bytes(offset, size)
	if err != nil || !IsValidJPEG(data, false) {
		return PreviewCandidate{}, false, err
	}

	return PreviewCandidate{
		Offset:   uint32(offset),
		Size:     uint32(size),
		Width:    160,
		Height:   120,
		IsJPEG:   true,
		IFDIndex: -1,
		Quality:  QualityThumbnail,
		Priority: 1,
		Type:     "CR3_THMB",
	}, true, nil
}

// mediumPreview walks the top-level boxes for Canon's preview UUID box and
// extracts the PRVW record inside it.
func (l *CR3Locator) mediumPreview(pr *Parse) (PreviewCandidate, bool, error) {
	var offset int64
	for offset+8 <= pr.Size() {
		if err := pr.Check(); err != nil {
			return PreviewCandidate{}, false, err
		}
		box, ok := parseBox(pr, offset)
		if !ok || box.Size < 8 {
			break
		}

		if box.Type == boxTypeUUID && box.Size >= 32 {
			uuid, err := pr.Bytes(offset+8, 16)
			if err == nil && bytes.Equal(uuid, cr3PreviewUUID) {
				p, found, err := l.previewFromUUID(pr, offset+24, box.Size-24)
				if err != nil || found {
					return p, found, err
				}
			}
		}

		offset += box.Size
	}
	return PreviewCandidate{}, false, nil
}

// previewFromUUID parses the PRVW record at the start of the preview UUID
// box payload.
func (l *CR3Locator) previewFromUUID(pr *Parse, dataOffset, dataSize int64) (PreviewCandidate, bool, error) {
	if dataSize < 16 {
		return PreviewCandidate{}, false, nil
	}

	// Eight bytes of record header precede the PRVW box itself.
	prvwOffset := dataOffset + 8
	prvwSize, ok1 := pr.readU32(prvwOffset, bigEndian)
	sig, ok2 := pr.readU32(prvwOffset+4, bigEndian)
	if !ok1 || !ok2 || sig != prvwSignature || prvwSize <= 20 {
		return PreviewCandidate{}, false, nil
	}

	limit := prvwOffset + int64(prvwSize)
	if limit > pr.Size() {
		limit = pr.Size()
	}

	// Skip the PRVW internal header before searching for the JPEG.
	offset, size, err := jpegRangeAt(pr, prvwOffset+8+16, limit)
	if err != nil || offset < 0 {
		return PreviewCandidate{}, false, err
	}

	data, err := pr.Bytes(offset, size)
	if err != nil || !IsValidJPEG(data, false) {
		return PreviewCandidate{}, false, err
	}

	return PreviewCandidate{
		Offset:   uint32(offset),
		Size:     uint32(size),
		IsJPEG:   true,
		IFDIndex: -2,
		Quality:  QualityPreview,
		Priority: 5,
		Type:     "CR3_PRVW",
	}, true, nil
}

// fullResolutionPreview looks for a large JPEG inside the mdat box. Only
// streams over 1MB count as full-resolution candidates.
func (l *CR3Locator) fullResolutionPreview(pr *Parse) (PreviewCandidate, bool, error) {
	var offset int64
	for offset+8 <= pr.Size() {
		if err := pr.Check(); err != nil {
			return PreviewCandidate{}, false, err
		}
		box, ok := parseBox(pr, offset)
		if !ok || box.Size < 8 {
			break
		}

		if box.Type == boxTypeMDAT {
			limit := offset + box.Size
			if limit > pr.Size() {
				limit = pr.Size()
			}
			jpegOffset, size, err := jpegRangeAt(pr, offset+8, limit)
			if err != nil {
				return PreviewCandidate{}, false, err
			}
			if jpegOffset < 0 || size <= 1024*1024 {
				return PreviewCandidate{}, false, nil
			}

			data, err := pr.Bytes(jpegOffset, size)
			if err != nil || !IsValidJPEG(data, false) {
				return PreviewCandidate{}, false, err
			}

			return PreviewCandidate{
				Offset:   uint32(jpegOffset),
				Size:     uint32(size),
				Width:    5472,
				Height:   3648,
				IsJPEG:   true,
				IFDIndex: -3,
				Quality:  QualityFull,
				Priority: 10,
				Type:     "CR3_MDAT",
			}, true, nil
		}

		offset += box.Size
	}
	return PreviewCandidate{}, false, nil
}

// extractOrientation reads the orientation value from the CMT1 metadata
// record; the value sits 0x140 bytes into the record, little-endian.
func (l *CR3Locator) extractOrientation(pr *Parse) (uint16, error) {
	at, err := pr.findMarker(0, pr.Size(), cmt1Signature)
	if err != nil {
		return 1, err
	}
	if at < 0 {
		return 1, nil
	}
	orientation, ok := pr.readU16(at+0x140, binary.LittleEndian)
	if ok && orientation >= 1 && orientation <= 8 {
		return orientation, nil
	}
	return 1, nil
}
