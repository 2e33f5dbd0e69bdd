package rawparser

// RawFormat identifies which preview locator strategy applies to an input.
type RawFormat string

// Supported RAW format values. PEF is declared for completeness but has no
// locator; files from Pentax cameras classify by their TIFF structure.
const (
	FormatUnknown RawFormat = "unknown"
	FormatCR2     RawFormat = "cr2"
	FormatCR3     RawFormat = "cr3"
	FormatNEF     RawFormat = "nef"
	FormatARW     RawFormat = "arw"
	FormatDNG     RawFormat = "dng"
	FormatRAF     RawFormat = "raf"
	FormatORF     RawFormat = "orf"
	FormatPEF     RawFormat = "pef"
	FormatRW2     RawFormat = "rw2"
)

// MinInputSize is the smallest input the detector will classify; anything
// shorter is treated as corrupted by the caller.
const MinInputSize = 16

// DetectFormat classifies the input into one of the supported formats, or
// FormatUnknown. It is total on arbitrary input, including zero length, and
// never panics. Detection runs in priority order: formats with unambiguous
// signatures (CR2 magic, CR3 brand, RAF header) before the TIFF-based
// formats that need a maker-tag lookup.
func DetectFormat(pr *Parse) RawFormat {
	if pr.Size() < MinInputSize {
		return FormatUnknown
	}

	switch {
	case canParseCR2(pr):
		return FormatCR2
	case canParseCR3(pr):
		return FormatCR3
	case canParseNEF(pr):
		return FormatNEF
	case canParseARW(pr):
		return FormatARW
	case canParseDNG(pr):
		return FormatDNG
	case canParseRAF(pr):
		return FormatRAF
	case canParseORF(pr):
		return FormatORF
	case canParseRW2(pr):
		return FormatRW2
	}
	return FormatUnknown
}
