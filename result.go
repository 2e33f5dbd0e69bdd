package rawpreview

import "rawpreview/rawparser"

// ExtractionResult is what every extraction entry point returns. Failure is
// expressed through Err rather than a returned error so async callers get one
// value over a channel.
type ExtractionResult struct {
	Success bool
	Format  rawparser.RawFormat

	// Preview describes the chosen candidate; meaningful only on success.
	Preview rawparser.PreviewCandidate

	// JPEGData is a self-contained copy of the preview bytes.
	JPEGData []byte

	// Warning is set on success when the selected preview came from the
	// out-of-window fallback and failed validation.
	Warning ErrorCode

	// Err describes the failure when Success is false.
	Err *ErrorInfo

	// Metadata carries exiftool fields when IncludeMetadata was requested and
	// the exiftool binary was available.
	Metadata map[string]string
}

// ErrorCode returns the result's failure code, or CodeSuccess.
func (r ExtractionResult) ErrorCode() ErrorCode {
	if r.Err == nil {
		return CodeSuccess
	}
	return r.Err.Code
}

func failure(format rawparser.RawFormat, err *ErrorInfo) ExtractionResult {
	return ExtractionResult{Format: format, Err: err}
}

// PreviewResult pairs one discovered candidate with its bytes, for the
// enumerate-everything entry point.
type PreviewResult struct {
	Candidate rawparser.PreviewCandidate
	Data      []byte
}

// PreviewListResult packs ExtractAllPreviews' two return values into one,
// for channel delivery.
type PreviewListResult struct {
	Previews []PreviewResult
	Err      error
}
