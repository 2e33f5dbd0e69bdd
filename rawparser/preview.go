package rawparser

// Quality is the coarse fidelity tier of an embedded preview.
type Quality int

const (
	QualityThumbnail Quality = iota
	QualityPreview
	QualityFull
)

func (q Quality) String() string {
	switch q {
	case QualityThumbnail:
		return "thumbnail"
	case QualityPreview:
		return "preview"
	case QualityFull:
		return "full"
	default:
		return "unknown"
	}
}

// ParseQuality maps a tier name back to its Quality value. Unrecognized
// names fall back to QualityPreview.
func ParseQuality(s string) Quality {
	switch s {
	case "thumbnail":
		return QualityThumbnail
	case "full":
		return QualityFull
	default:
		return QualityPreview
	}
}

// Target size window previews are judged against when assigning priority.
const (
	TargetMinSize = 200 * 1024
	TargetMaxSize = 3 * 1024 * 1024
)

// PreviewCandidate is one embedded image discovered inside a RAW file.
// Candidates are produced per extraction call and never persisted.
type PreviewCandidate struct {
	Offset uint32
	Size   uint32
	Width  uint32
	Height uint32
	IsJPEG bool

	// SubfileType carries the TIFF NewSubfileType value when present
	// (1 marks a reduced-resolution image).
	SubfileType uint32

	// IFDIndex records where the candidate came from: 0+ for IFDs on the
	// main chain, negative values for SubIFDs and vendor-private areas.
	IFDIndex int

	Quality     Quality
	Priority    int
	Orientation uint16

	// Type names the format-specific location, e.g. "CR2_IFD0" or
	// "ARW_SR2Private".
	Type string
}

// InTargetRange reports whether the candidate's byte length falls inside the
// default 200KB-3MB window.
func (c PreviewCandidate) InTargetRange() bool {
	return c.Size >= TargetMinSize && c.Size <= TargetMaxSize
}

// ClassifyPreview assigns a quality tier from declared dimensions and byte
// size. Dimensions of zero (unknown) leave the size thresholds in charge.
func ClassifyPreview(width, height uint32, size int64) Quality {
	const (
		thumbnailMaxSize   = 500 * 1024
		thumbnailMaxWidth  = 320
		thumbnailMaxHeight = 240
		previewMinWidth    = 800
		previewMinHeight   = 600
	)

	if size <= thumbnailMaxSize ||
		(width <= thumbnailMaxWidth && height <= thumbnailMaxHeight && width > 0 && height > 0) {
		return QualityThumbnail
	}

	if size >= TargetMinSize && size <= TargetMaxSize &&
		width >= previewMinWidth && height >= previewMinHeight {
		return QualityPreview
	}

	if size > TargetMaxSize || width > 2048 || height > 2048 {
		return QualityFull
	}

	return QualityPreview
}

// indexOfCandidate returns the position of the candidate with the same
// offset and size, or -1. The vendor-private scanners can rediscover previews
// the generic walk already found.
func indexOfCandidate(list []PreviewCandidate, c PreviewCandidate) int {
	for i, existing := range list {
		if existing.Offset == c.Offset && existing.Size == c.Size {
			return i
		}
	}
	return -1
}

func containsCandidate(list []PreviewCandidate, c PreviewCandidate) bool {
	return indexOfCandidate(list, c) >= 0
}
