package rawparser

import (
	"encoding/binary"

	"rawpreview/governor"
	"rawpreview/reader"
)

// parseOf wraps a byte slice in the parse state the locators expect.
func parseOf(data []byte) *Parse {
	return NewParse(reader.FromBytes(data), nil)
}

func parseWithGovernor(data []byte, gov *governor.Governor) *Parse {
	return NewParse(reader.FromBytes(data), gov)
}

// buildJPEG returns a structurally valid JPEG of exactly total bytes
// (minimum 32): SOI, APP0, SOS, entropy fill, EOI. The fill never contains
// 0xFF, so marker scans find only the real boundaries.
func buildJPEG(total int) []byte {
	b := make([]byte, 0, total)
	b = append(b, 0xFF, 0xD8)
	b = append(b,
		0xFF, 0xE0, 0x00, 0x10,
		'J', 'F', 'I', 'F', 0x00,
		0x01, 0x01, 0x00,
		0x00, 0x01, 0x00, 0x01,
		0x00, 0x00)
	b = append(b, 0xFF, 0xDA, 0x00, 0x08, 0x01, 0x01, 0x00, 0x00, 0x3F, 0x00)
	for len(b) < total-2 {
		b = append(b, 0x55)
	}
	b = append(b, 0xFF, 0xD9)
	return b
}

// fixture assembles binary test files in place.
type fixture struct {
	buf []byte
}

func newFixture(size int) *fixture {
	return &fixture{buf: make([]byte, size)}
}

func (f *fixture) u16(off int, v uint16)  { binary.LittleEndian.PutUint16(f.buf[off:], v) }
func (f *fixture) u32(off int, v uint32)  { binary.LittleEndian.PutUint32(f.buf[off:], v) }
func (f *fixture) be32(off int, v uint32) { binary.BigEndian.PutUint32(f.buf[off:], v) }
func (f *fixture) put(off int, b []byte)  { copy(f.buf[off:], b) }

func (f *fixture) putString(off int, s string) {
	copy(f.buf[off:], s)
	f.buf[off+len(s)] = 0
}

// tiffHeader writes a little-endian header with the given magic word.
func (f *fixture) tiffHeader(magic uint16, firstIFD uint32) {
	f.buf[0], f.buf[1] = 'I', 'I'
	f.u16(2, magic)
	f.u32(4, firstIFD)
}

// TIFF field types used by the fixtures.
const (
	ftByte  = 1
	ftASCII = 2
	ftShort = 3
	ftLong  = 4
	ftUndef = 7
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	value uint32
}

// ifd writes a directory at off and returns the offset just past its
// next-IFD pointer.
func (f *fixture) ifd(off int, entries []ifdEntry, next uint32) int {
	f.u16(off, uint16(len(entries)))
	p := off + 2
	for _, e := range entries {
		f.u16(p, e.tag)
		f.u16(p+2, e.typ)
		f.u32(p+4, e.count)
		f.u32(p+8, e.value)
		p += 12
	}
	f.u32(p, next)
	return p + 4
}

// buildCR2 lays out a CR2 with a preview in IFD0 (strip convention) and a
// thumbnail in IFD1 (JPEGInterchangeFormat convention).
func buildCR2(preview, thumb []byte) []byte {
	const (
		ifd0Off    = 0x10
		ifd1Off    = 0x70
		previewOff = 0xA0
	)
	thumbOff := previewOff + len(preview)
	f := newFixture(thumbOff + len(thumb))

	f.tiffHeader(tiffMagic, ifd0Off)
	f.put(8, []byte{'C', 'R', 2, 0})

	f.ifd(ifd0Off, []ifdEntry{
		{tagImageWidth, ftLong, 1, 2256},
		{tagImageHeight, ftLong, 1, 1504},
		{tagStripOffsets, ftLong, 1, previewOff},
		{tagOrientation, ftShort, 1, 1},
		{tagStripByteCounts, ftLong, 1, uint32(len(preview))},
	}, ifd1Off)

	f.ifd(ifd1Off, []ifdEntry{
		{tagJPEGFormat, ftLong, 1, uint32(thumbOff)},
		{tagJPEGFormatLength, ftLong, 1, uint32(len(thumb))},
	}, 0)

	f.put(previewOff, preview)
	f.put(thumbOff, thumb)
	return f.buf
}

// buildNEF lays out a NEF whose preview sits in a SubIFD behind the
// JpgFromRaw tag pair.
func buildNEF(preview []byte) []byte {
	const (
		ifd0Off    = 0x08
		makeOff    = 0x50
		subIFDOff  = 0x70
		previewOff = 0xD0
	)
	f := newFixture(previewOff + len(preview))

	f.tiffHeader(tiffMagic, ifd0Off)
	f.ifd(ifd0Off, []ifdEntry{
		{tagMake, ftASCII, 18, makeOff},
		{tagOrientation, ftShort, 1, 1},
		{tagSubIFDs, ftLong, 1, subIFDOff},
	}, 0)
	f.putString(makeOff, "NIKON CORPORATION")

	f.ifd(subIFDOff, []ifdEntry{
		{tagImageWidth, ftLong, 1, 4288},
		{tagImageHeight, ftLong, 1, 2848},
		{tagJPEGFormat, ftLong, 1, previewOff},
		{tagJPEGFormatLength, ftLong, 1, uint32(len(preview))},
	}, 0)

	f.put(previewOff, preview)
	return f.buf
}

// buildARW lays out an ARW whose IFD0 is a reduced-resolution preview.
func buildARW(preview []byte) []byte {
	const (
		ifd0Off    = 0x08
		makeOff    = 0x70
		previewOff = 0x80
	)
	f := newFixture(previewOff + len(preview))

	f.tiffHeader(tiffMagic, ifd0Off)
	f.ifd(ifd0Off, []ifdEntry{
		{tagNewSubfileType, ftLong, 1, 1},
		{tagImageWidth, ftLong, 1, 1616},
		{tagImageHeight, ftLong, 1, 1080},
		{tagMake, ftASCII, 5, makeOff},
		{tagStripOffsets, ftLong, 1, previewOff},
		{tagOrientation, ftShort, 1, 8},
		{tagStripByteCounts, ftLong, 1, uint32(len(preview))},
	}, 0)
	f.putString(makeOff, "SONY")

	f.put(previewOff, preview)
	return f.buf
}

// buildDNG lays out a DNG with a thumbnail in IFD0 and a reduced-resolution
// preview in a SubIFD.
func buildDNG(thumb, preview []byte) []byte {
	const (
		ifd0Off   = 0x08
		subIFDOff = 0x80
		thumbOff  = 0xF0
	)
	previewOff := thumbOff + len(thumb)
	f := newFixture(previewOff + len(preview))

	f.tiffHeader(tiffMagic, ifd0Off)
	f.ifd(ifd0Off, []ifdEntry{
		{tagImageWidth, ftLong, 1, 256},
		{tagImageHeight, ftLong, 1, 171},
		{tagStripOffsets, ftLong, 1, uint32(thumbOff)},
		{tagOrientation, ftShort, 1, 1},
		{tagStripByteCounts, ftLong, 1, uint32(len(thumb))},
		{tagSubIFDs, ftLong, 1, subIFDOff},
		{tagDNGVersion, ftByte, 4, 0x00000401},
	}, 0)

	f.ifd(subIFDOff, []ifdEntry{
		{tagNewSubfileType, ftLong, 1, 1},
		{tagImageWidth, ftLong, 1, 1024},
		{tagImageHeight, ftLong, 1, 683},
		{tagStripOffsets, ftLong, 1, uint32(previewOff)},
		{tagStripByteCounts, ftLong, 1, uint32(len(preview))},
	}, 0)

	f.put(thumbOff, thumb)
	f.put(previewOff, preview)
	return f.buf
}

// buildRAF lays out a RAF: fixed signature, big-endian offset and length
// fields in the header table, preview at the recorded position.
func buildRAF(preview []byte) []byte {
	const previewOff = 0x100
	f := newFixture(previewOff + len(preview))

	f.put(0, []byte(rafSignature))
	f.be32(rafJpegOffsetField, previewOff)
	f.be32(rafJpegLengthField, uint32(len(preview)))
	f.put(previewOff, preview)
	return f.buf
}

// buildORF lays out an Olympus file with the "IIRO" vendor header.
func buildORF(preview []byte) []byte {
	const (
		ifd0Off    = 0x08
		previewOff = 0x60
	)
	f := newFixture(previewOff + len(preview))

	f.tiffHeader(orfMagic, ifd0Off)
	f.ifd(ifd0Off, []ifdEntry{
		{tagImageWidth, ftLong, 1, 1600},
		{tagImageHeight, ftLong, 1, 1200},
		{tagStripOffsets, ftLong, 1, previewOff},
		{tagOrientation, ftShort, 1, 1},
		{tagStripByteCounts, ftLong, 1, uint32(len(preview))},
	}, 0)

	f.put(previewOff, preview)
	return f.buf
}

// buildRW2 lays out a Panasonic file: magic 0x0055 and the vendor
// JpgFromRaw tag whose count is the JPEG's byte length.
func buildRW2(preview []byte) []byte {
	const (
		ifd0Off    = 0x10
		previewOff = 0x40
	)
	f := newFixture(previewOff + len(preview))

	f.tiffHeader(rw2Magic, ifd0Off)
	f.ifd(ifd0Off, []ifdEntry{
		{tagJpgFromRaw, ftUndef, uint32(len(preview)), previewOff},
	}, 0)

	f.put(previewOff, preview)
	return f.buf
}

// buildCR3 lays out a CR3: ftyp with the "cr3 " brand, the Canon preview
// UUID box holding a PRVW record, and a THMB thumbnail box.
func buildCR3(preview, thumb []byte) []byte {
	const ftypSize = 16
	uuidOff := ftypSize
	prvwJpegOff := uuidOff + 24 + 8 + 24 // box header, uuid, record header, PRVW header
	prvwSize := 24 + len(preview)
	uuidSize := 32 + prvwSize

	thmbOff := uuidOff + uuidSize
	thmbJpegOff := thmbOff + 20
	thmbSize := 20 + len(thumb)

	f := newFixture(thmbOff + thmbSize)

	f.be32(0, ftypSize)
	f.put(4, []byte("ftyp"))
	f.put(8, []byte("cr3 "))

	f.be32(uuidOff, uint32(uuidSize))
	f.put(uuidOff+4, []byte("uuid"))
	f.put(uuidOff+8, cr3PreviewUUID)
	f.be32(uuidOff+32, uint32(prvwSize))
	f.put(uuidOff+36, []byte("PRVW"))
	f.put(prvwJpegOff, preview)

	f.be32(thmbOff, uint32(thmbSize))
	f.put(thmbOff+4, []byte("THMB"))
	f.put(thmbJpegOff, thumb)
	return f.buf
}
