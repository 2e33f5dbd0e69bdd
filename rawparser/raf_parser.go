package rawparser

import (
	"encoding/binary"

	"rawpreview/reader"
)

// Fujifilm RAF layout. The file is not TIFF based: a fixed signature is
// followed by a header table whose fields are big-endian regardless of
// platform, with the embedded JPEG's offset and length at fixed positions.
const (
	rafSignature       = "FUJIFILMCCD-RAW"
	rafJpegOffsetField = 84
	rafJpegLengthField = 88
	rafHeaderTableEnd  = 92
)

// RAFLocator finds the embedded JPEG in Fujifilm RAF files.
type RAFLocator struct{}

func (*RAFLocator) Format() RawFormat { return FormatRAF }

func canParseRAF(pr *Parse) bool {
	sig, err := pr.Bytes(0, int64(len(rafSignature)))
	if err != nil {
		return false
	}
	return string(sig) == rafSignature
}

func (l *RAFLocator) LocateCandidates(pr *Parse) ([]PreviewCandidate, error) {
	if !canParseRAF(pr) {
		return nil, nil
	}

	var previews []PreviewCandidate

	jpegOffset, ok1 := pr.readU32(rafJpegOffsetField, bigEndian)
	jpegSize, ok2 := pr.readU32(rafJpegLengthField, bigEndian)
	if ok1 && ok2 && jpegOffset > 0 && jpegSize > 0 &&
		int64(jpegOffset)+int64(jpegSize) <= pr.Size() {
		data, err := pr.Bytes(int64(jpegOffset), int64(jpegSize))
		if err != nil {
			if govErr := pr.Check(); govErr != nil {
				return nil, govErr
			}
		} else if IsValidJPEG(data, false) {
			candidate := PreviewCandidate{
				Offset:      jpegOffset,
				Size:        jpegSize,
				IsJPEG:      true,
				Quality:     ClassifyPreview(0, 0, int64(jpegSize)),
				Orientation: embeddedOrientation(data),
				Type:        "RAF_Header",
			}
			if candidate.InTargetRange() {
				candidate.Priority = 10
			} else {
				candidate.Priority = 7
			}
			previews = append(previews, candidate)
		}
	}

	if len(previews) > 0 {
		return previews, nil
	}

	// Header table unusable, fall back to a raw marker scan.
	start, err := pr.findMarker(rafHeaderTableEnd, pr.Size(), jpegSOI)
	if err != nil {
		return nil, err
	}
	if start < 0 {
		return nil, nil
	}
	end, err := pr.findMarker(start+2, pr.Size(), jpegEOI)
	if err != nil {
		return nil, err
	}
	if end < 0 {
		return nil, nil
	}
	size := end + 2 - start
	data, err := pr.Bytes(start, size)
	if err != nil || !IsValidJPEG(data, false) {
		return nil, pr.Check()
	}
	candidate := PreviewCandidate{
		Offset:      uint32(start),
		Size:        uint32(size),
		IsJPEG:      true,
		Quality:     ClassifyPreview(0, 0, size),
		Orientation: embeddedOrientation(data),
		Type:        "RAF_Scan",
	}
	if candidate.InTargetRange() {
		candidate.Priority = 10
	} else {
		candidate.Priority = 7
	}
	return []PreviewCandidate{candidate}, nil
}

// embeddedOrientation reads the Exif orientation out of an embedded JPEG's
// APP1 segment, when present. The APP1 payload is a complete TIFF structure,
// so the regular header parser applies to it. RAF and RW2 keep orientation
// there rather than in the outer container.
func embeddedOrientation(jpeg []byte) uint16 {
	if len(jpeg) < 4 || jpeg[0] != 0xFF || jpeg[1] != markerSOI {
		return 1
	}
	pos := 2
	for pos+4 <= len(jpeg) {
		if jpeg[pos] != 0xFF {
			break
		}
		marker := jpeg[pos+1]
		if marker == markerSOS || marker == markerEOI {
			break
		}
		segLen := int(binary.BigEndian.Uint16(jpeg[pos+2 : pos+4]))
		if segLen < 2 || pos+2+segLen > len(jpeg) {
			break
		}
		if marker == 0xE1 && segLen >= 8 {
			payload := jpeg[pos+4 : pos+2+segLen]
			if len(payload) > 6 && string(payload[:6]) == "Exif\x00\x00" {
				sub := NewParse(reader.FromBytes(payload[6:]), nil)
				t := NewTiffParser(sub)
				if t.ParseHeader() {
					return t.Orientation()
				}
				return 1
			}
		}
		pos += 2 + segLen
	}
	return 1
}
