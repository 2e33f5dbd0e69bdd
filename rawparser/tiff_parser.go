package rawparser

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// TIFF tags the preview walk cares about.
const (
	tagImageWidth       = 0x0100
	tagImageHeight      = 0x0101
	tagCompression      = 0x0103
	tagMake             = 0x010F
	tagModel            = 0x0110
	tagStripOffsets     = 0x0111
	tagOrientation      = 0x0112
	tagStripByteCounts  = 0x0117
	tagSubIFDs          = 0x014A
	tagJPEGFormat       = 0x0201
	tagJPEGFormatLength = 0x0202
	tagSoftware         = 0x0131
	tagNewSubfileType   = 0x00FE
	tagDNGVersion       = 0xC612
)

// TIFF field types.
const (
	typeByte     = 1
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
)

// tiffMagic is the classic TIFF magic number; rw2Magic is Panasonic's
// modified value.
const (
	tiffMagic = 0x002A
	rw2Magic  = 0x0055
)

// maxChainIFDs bounds the walk along the main IFD chain so a cyclic or
// corrupted next-pointer cannot spin forever.
const maxChainIFDs = 16

// TiffTag is one 12-byte IFD entry. The raw value bytes are kept so inline
// values (total size <= 4) can be decoded with the directory's byte order.
type TiffTag struct {
	Tag         uint16
	Type        uint16
	Count       uint32
	ValueOffset uint32
	raw         [4]byte
}

// TiffIFD is one parsed image file directory.
type TiffIFD struct {
	Tags       map[uint16]TiffTag
	NextOffset uint32
}

// TiffParser walks the IFD structure shared by the TIFF-derived RAW formats.
// Byte order is fixed once by ParseHeader and applied to every subsequent
// multi-byte read.
type TiffParser struct {
	pr       *Parse
	order    binary.ByteOrder
	magic    uint16
	firstIFD uint32
}

// NewTiffParser creates a navigator over the given parse state.
func NewTiffParser(pr *Parse) *TiffParser {
	return &TiffParser{pr: pr, order: binary.LittleEndian}
}

// ByteOrder returns the directory byte order established by ParseHeader.
func (t *TiffParser) ByteOrder() binary.ByteOrder {
	return t.order
}

// FirstIFDOffset returns the offset of IFD0 as declared by the header.
func (t *TiffParser) FirstIFDOffset() uint32 {
	return t.firstIFD
}

// ParseHeader reads the byte-order marker, magic number, and first IFD
// offset. Only the standard 0x002A magic is accepted; locators that handle
// vendor-modified headers use ParseHeaderMagic.
func (t *TiffParser) ParseHeader() bool {
	return t.ParseHeaderMagic(tiffMagic)
}

// ParseHeaderMagic is ParseHeader accepting any of the given magic values,
// for formats such as RW2 (0x0055) that reuse the TIFF layout under a
// vendor-private magic number.
func (t *TiffParser) ParseHeaderMagic(accept ...uint16) bool {
	head, err := t.pr.Bytes(0, 8)
	if err != nil || len(head) < 8 {
		return false
	}

	switch {
	case head[0] == 'I' && head[1] == 'I':
		t.order = binary.LittleEndian
	case head[0] == 'M' && head[1] == 'M':
		t.order = binary.BigEndian
	default:
		return false
	}

	magic := t.order.Uint16(head[2:4])
	ok := false
	for _, m := range accept {
		if magic == m {
			ok = true
			break
		}
	}
	if !ok {
		return false
	}

	t.magic = magic
	t.firstIFD = t.order.Uint32(head[4:8])
	return true
}

// Magic returns the magic word read by the last successful header parse.
func (t *TiffParser) Magic() uint16 {
	return t.magic
}

// ParseIFD reads the directory at offset. A directory that points outside
// the input fails with an error scoped to that one lookup; callers continue
// with other candidates.
func (t *TiffParser) ParseIFD(offset uint32) (*TiffIFD, error) {
	if err := t.pr.Check(); err != nil {
		return nil, err
	}

	numEntries, ok := t.pr.readU16(int64(offset), t.order)
	if !ok {
		return nil, fmt.Errorf("IFD offset %#x outside input", offset)
	}

	entriesEnd := int64(offset) + 2 + int64(numEntries)*12
	if entriesEnd+4 > t.pr.Size() {
		return nil, fmt.Errorf("IFD at %#x truncated (%d entries)", offset, numEntries)
	}

	ifd := &TiffIFD{Tags: make(map[uint16]TiffTag, numEntries)}
	raw, err := t.pr.Bytes(int64(offset)+2, int64(numEntries)*12)
	if err != nil {
		return nil, err
	}

	for i := 0; i < int(numEntries); i++ {
		if i%64 == 0 {
			if err := t.pr.Check(); err != nil {
				return nil, err
			}
		}
		entry := raw[i*12 : i*12+12]
		tag := TiffTag{
			Tag:         t.order.Uint16(entry[0:2]),
			Type:        t.order.Uint16(entry[2:4]),
			Count:       t.order.Uint32(entry[4:8]),
			ValueOffset: t.order.Uint32(entry[8:12]),
		}
		copy(tag.raw[:], entry[8:12])
		if tag.Tag != 0 {
			ifd.Tags[tag.Tag] = tag
		}
	}

	next, ok := t.pr.readU32(entriesEnd, t.order)
	if !ok {
		next = 0
	}
	ifd.NextOffset = next
	return ifd, nil
}

func typeSize(fieldType uint16) uint32 {
	switch fieldType {
	case typeByte, typeASCII:
		return 1
	case typeShort:
		return 2
	case typeLong:
		return 4
	case typeRational:
		return 8
	default:
		return 0
	}
}

// TagValue32 resolves a tag's first value as a 32-bit integer, following the
// value-or-offset convention. Returns 0 when the tag cannot be resolved.
func (t *TiffParser) TagValue32(tag TiffTag) uint32 {
	size := typeSize(tag.Type)
	if size == 0 {
		return 0
	}

	if size*tag.Count <= 4 {
		switch tag.Type {
		case typeShort:
			return uint32(t.order.Uint16(tag.raw[:2]))
		case typeLong:
			return t.order.Uint32(tag.raw[:])
		case typeByte:
			return uint32(tag.raw[0])
		}
		return 0
	}

	switch tag.Type {
	case typeShort:
		v, _ := t.pr.readU16(int64(tag.ValueOffset), t.order)
		return uint32(v)
	case typeLong:
		v, _ := t.pr.readU32(int64(tag.ValueOffset), t.order)
		return v
	}
	return 0
}

// TagValues32 resolves every value of a tag as 32-bit integers.
func (t *TiffParser) TagValues32(tag TiffTag) []uint32 {
	size := typeSize(tag.Type)
	if size == 0 || tag.Count == 0 {
		return nil
	}

	total := int64(size) * int64(tag.Count)
	var data []byte
	if total <= 4 {
		data = tag.raw[:total]
	} else {
		var err error
		data, err = t.pr.Bytes(int64(tag.ValueOffset), total)
		if err != nil {
			return nil
		}
	}

	values := make([]uint32, 0, tag.Count)
	for i := uint32(0); i < tag.Count; i++ {
		switch tag.Type {
		case typeShort:
			values = append(values, uint32(t.order.Uint16(data[i*2:])))
		case typeLong:
			values = append(values, t.order.Uint32(data[i*4:]))
		case typeByte:
			values = append(values, uint32(data[i]))
		default:
			return nil
		}
	}
	return values
}

// TagString resolves an ASCII tag, trimming trailing NULs and spaces.
func (t *TiffParser) TagString(tag TiffTag) string {
	if tag.Type != typeASCII || tag.Count == 0 {
		return ""
	}

	var data []byte
	if tag.Count <= 4 {
		data = tag.raw[:tag.Count]
	} else {
		var err error
		data, err = t.pr.Bytes(int64(tag.ValueOffset), int64(tag.Count))
		if err != nil {
			return ""
		}
	}
	return strings.TrimRight(string(data), "\x00 ")
}

// FindPreviews walks the IFD chain and every SubIFD, emitting one candidate
// per directory that declares an embedded image via StripOffsets or the
// JPEGInterchangeFormat pair. Individual malformed directories are skipped.
func (t *TiffParser) FindPreviews() ([]PreviewCandidate, error) {
	var previews []PreviewCandidate

	offset := t.firstIFD
	for ifdIndex := 0; offset != 0 && int64(offset) < t.pr.Size() && ifdIndex < maxChainIFDs; ifdIndex++ {
		if err := t.pr.Check(); err != nil {
			return previews, err
		}

		ifd, err := t.ParseIFD(offset)
		if err != nil {
			if govErr := t.pr.Check(); govErr != nil {
				return previews, govErr
			}
			break
		}

		if p, ok := t.previewFromIFD(ifd, ifdIndex); ok {
			previews = append(previews, p)
		}

		if subTag, ok := ifd.Tags[tagSubIFDs]; ok {
			for i, subOffset := range t.TagValues32(subTag) {
				subIFD, err := t.ParseIFD(subOffset)
				if err != nil {
					if govErr := t.pr.Check(); govErr != nil {
						return previews, govErr
					}
					continue
				}
				if p, ok := t.previewFromIFD(subIFD, -1-i); ok {
					previews = append(previews, p)
				}
			}
		}

		if ifd.NextOffset == offset {
			break
		}
		offset = ifd.NextOffset
	}

	return previews, nil
}

// previewFromIFD extracts candidate preview geometry from one directory.
func (t *TiffParser) previewFromIFD(ifd *TiffIFD, ifdIndex int) (PreviewCandidate, bool) {
	preview := PreviewCandidate{IFDIndex: ifdIndex, Orientation: 1}

	if offsets, counts, ok := t.stripPair(ifd); ok {
		preview.Offset = offsets
		preview.Size = counts
	}

	// JPEGInterchangeFormat pair takes precedence when both are present
	// (thumbnail IFDs in NEF and DNG use it).
	jpegOffset, hasOffset := ifd.Tags[tagJPEGFormat]
	jpegLength, hasLength := ifd.Tags[tagJPEGFormatLength]
	if hasOffset && hasLength {
		preview.Offset = t.TagValue32(jpegOffset)
		preview.Size = t.TagValue32(jpegLength)
	}

	if tag, ok := ifd.Tags[tagImageWidth]; ok {
		preview.Width = t.TagValue32(tag)
	}
	if tag, ok := ifd.Tags[tagImageHeight]; ok {
		preview.Height = t.TagValue32(tag)
	}
	if tag, ok := ifd.Tags[tagCompression]; ok {
		compression := t.TagValue32(tag)
		preview.IsJPEG = compression == 6 || compression == 7
	}
	if tag, ok := ifd.Tags[tagNewSubfileType]; ok {
		preview.SubfileType = t.TagValue32(tag)
	}

	return preview, preview.Offset != 0 && preview.Size != 0
}

// stripPair resolves the StripOffsets/StripByteCounts pair to a single
// contiguous range, taking the first strip of each.
func (t *TiffParser) stripPair(ifd *TiffIFD) (offset, size uint32, ok bool) {
	offsetsTag, hasOffsets := ifd.Tags[tagStripOffsets]
	countsTag, hasCounts := ifd.Tags[tagStripByteCounts]
	if !hasOffsets || !hasCounts {
		return 0, 0, false
	}
	offsets := t.TagValues32(offsetsTag)
	counts := t.TagValues32(countsTag)
	if len(offsets) == 0 || len(counts) == 0 || len(offsets) != len(counts) {
		return 0, 0, false
	}
	return offsets[0], counts[0], true
}

// Orientation reads the EXIF orientation tag from IFD0, defaulting to 1.
func (t *TiffParser) Orientation() uint16 {
	ifd, err := t.ParseIFD(t.firstIFD)
	if err != nil {
		return 1
	}
	tag, ok := ifd.Tags[tagOrientation]
	if !ok {
		return 1
	}
	orientation := uint16(t.TagValue32(tag))
	if orientation >= 1 && orientation <= 8 {
		return orientation
	}
	return 1
}

// CameraModel returns IFD0's Model tag, or "UNKNOWN" when the tag is absent
// or unreadable.
func (t *TiffParser) CameraModel() string {
	ifd, err := t.ParseIFD(t.firstIFD)
	if err != nil {
		return "UNKNOWN"
	}
	tag, ok := ifd.Tags[tagModel]
	if !ok {
		return "UNKNOWN"
	}
	if s := t.TagString(tag); s != "" {
		return s
	}
	return "UNKNOWN"
}

// makeMatches reports whether IFD0's Make tag starts with prefix.
func makeMatches(t *TiffParser, prefix string) bool {
	ifd, err := t.ParseIFD(t.firstIFD)
	if err != nil {
		return false
	}
	tag, ok := ifd.Tags[tagMake]
	if !ok {
		return false
	}
	return strings.HasPrefix(t.TagString(tag), prefix)
}
