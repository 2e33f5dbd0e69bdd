// Package rawpreview extracts the embedded JPEG previews that camera RAW
// files carry alongside their sensor data. It detects the container format,
// enumerates every preview the file holds, and returns the one that best
// matches the caller's size and quality preferences, without ever decoding
// RAW pixels.
package rawpreview

import (
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/sync/singleflight"

	"rawpreview/governor"
	"rawpreview/logging"
	"rawpreview/rawparser"
	"rawpreview/reader"
)

// largeInputThreshold is the file size above which the governor additionally
// samples process RSS before parsing begins.
const largeInputThreshold = 200 * 1024 * 1024

// Extractor owns the locator registry and the optional result cache. The
// zero value is not usable; create one with NewExtractor. All methods are
// safe for concurrent use.
type Extractor struct {
	registry *rawparser.LocatorRegistry
	cache    *resultCache
	group    singleflight.Group
}

// NewExtractor creates an extractor with all built-in format locators.
func NewExtractor() *Extractor {
	return &Extractor{
		registry: rawparser.NewLocatorRegistry(),
		cache:    newResultCache(),
	}
}

var defaultExtractor = NewExtractor()

// ExtractPreview extracts the best-matching preview from the RAW file at
// path. A nil opts uses the defaults.
func ExtractPreview(path string, opts *ExtractionOptions) ExtractionResult {
	return defaultExtractor.ExtractPreview(path, opts)
}

// ExtractPreviewFromBuffer is ExtractPreview over an in-memory RAW file.
func ExtractPreviewFromBuffer(data []byte, opts *ExtractionOptions) ExtractionResult {
	return defaultExtractor.ExtractPreviewFromBuffer(data, opts)
}

// ExtractAllPreviews returns every valid preview found in the file, without
// size filtering.
func ExtractAllPreviews(path string) ([]PreviewResult, error) {
	return defaultExtractor.ExtractAllPreviews(path)
}

// ExtractMediumPreview returns the medium preview chosen by camera and
// format mapping over the candidate list, bypassing the size window.
func ExtractMediumPreview(path string, opts *ExtractionOptions) ExtractionResult {
	return defaultExtractor.ExtractMediumPreview(path, opts)
}

// ExtractFullPreview returns the full-resolution preview chosen by camera
// and format mapping over the candidate list, bypassing the size window.
func ExtractFullPreview(path string, opts *ExtractionOptions) ExtractionResult {
	return defaultExtractor.ExtractFullPreview(path, opts)
}

// DetectFormat classifies the file at path, or FormatUnknown when the file
// cannot be read or matches no known signature.
func DetectFormat(path string) rawparser.RawFormat {
	return defaultExtractor.DetectFormat(path)
}

// DetectFormatFromBuffer classifies an in-memory RAW file.
func DetectFormatFromBuffer(data []byte) rawparser.RawFormat {
	return defaultExtractor.DetectFormatFromBuffer(data)
}

// ExtractPreview extracts the best-matching preview from the RAW file at
// path. When opts.UseCache is set, a hit returns the cached result and
// concurrent misses for the same file collapse into one extraction.
func (e *Extractor) ExtractPreview(path string, opts *ExtractionOptions) ExtractionResult {
	o := opts.normalized()

	if o.UseCache {
		if key, ok := cacheKey(path, o); ok {
			if res, hit := e.cache.get(key); hit {
				logging.DebugLog("cache hit: %s", path)
				return res
			}
			v, _, _ := e.group.Do(key, func() (interface{}, error) {
				res := e.extractPath(path, o)
				if res.Success {
					e.cache.put(key, res)
				}
				return res, nil
			})
			return v.(ExtractionResult)
		}
	}

	return e.extractPath(path, o)
}

// ExtractPreviewFromBuffer extracts from data without touching the
// filesystem. A nil buffer is rejected as INVALID_FORMAT; results never
// alias the input.
func (e *Extractor) ExtractPreviewFromBuffer(data []byte, opts *ExtractionOptions) ExtractionResult {
	o := opts.normalized()
	if data == nil {
		return failure(rawparser.FormatUnknown,
			newError(CodeInvalidFormat, "nil input buffer", ""))
	}
	res := e.extract(reader.FromBytes(data), "(buffer)", o)
	if res.Success {
		res.JPEGData = append([]byte(nil), res.JPEGData...)
	}
	return res
}

func (e *Extractor) extractPath(path string, o *ExtractionOptions) ExtractionResult {
	r, err := reader.Open(path)
	if err != nil {
		errInfo := openError(err, path)
		logging.LogExtraction(path, false, errInfo.Message)
		return failure(rawparser.FormatUnknown, errInfo)
	}
	defer r.Close()

	res := e.extract(r, path, o)
	if res.Success {
		logging.LogExtraction(path, true, "")
		if o.IncludeMetadata {
			res.Metadata = readMetadata(path)
		}
	} else {
		logging.LogExtraction(path, false, res.Err.Message)
	}
	return res
}

// extract runs the full pipeline over an open reader: budget setup, format
// detection, candidate location, ranking, and validation of the winner.
// It never panics across this boundary.
func (e *Extractor) extract(r reader.Reader, name string, o *ExtractionOptions) (res ExtractionResult) {
	format := rawparser.FormatUnknown
	defer func() {
		if p := recover(); p != nil {
			logging.LogError("panic extracting %s: %v", name, p)
			res = failure(format,
				newError(CodeUnknownError, fmt.Sprintf("internal error: %v", p), name))
		}
	}()

	if r.Size() < rawparser.MinInputSize {
		return failure(rawparser.FormatUnknown,
			newError(CodeCorruptedFile,
				fmt.Sprintf("input too small (%d bytes)", r.Size()), name))
	}

	gov := governor.New(o.Timeout, o.MaxMemoryMB)
	if r.Size() > largeInputThreshold {
		if err := gov.CheckProcess(r.Size()); err != nil {
			return failure(rawparser.FormatUnknown,
				newError(CodeMemoryLimitExceeded, err.Error(), name))
		}
	}

	pr := rawparser.NewParse(r, gov)

	format = rawparser.DetectFormat(pr)
	// An exhausted budget makes detection fail vacuously; report the budget,
	// not the format.
	if err := gov.Check(); err != nil {
		return failure(format, governorError(err, name))
	}
	if format == rawparser.FormatUnknown {
		return failure(format,
			newError(CodeInvalidFormat, "not a recognized RAW format", name))
	}
	logging.DebugLog("detected %s: %s", format, name)

	locator, err := e.registry.Get(format)
	if err != nil {
		return failure(format, newError(CodeInvalidFormat, err.Error(), name))
	}

	candidates, err := locator.LocateCandidates(pr)
	if err != nil {
		return failure(format, governorError(err, name))
	}
	if len(candidates) == 0 {
		return failure(format,
			newError(CodeNoPreviewsFound, "no embedded previews found", name))
	}
	logging.DebugLog("%d candidate previews in %s", len(candidates), name)

	ranked, fallbackUsed := rankCandidates(candidates, o)

	for _, c := range ranked {
		data, err := pr.Bytes(int64(c.Offset), int64(c.Size))
		if err != nil {
			if gov.Check() != nil {
				return failure(format, governorError(gov.Check(), name))
			}
			continue
		}
		if !rawparser.IsValidJPEG(data, o.StrictValidation) {
			continue
		}
		res := ExtractionResult{
			Success:  true,
			Format:   format,
			Preview:  c,
			JPEGData: data,
		}
		if fallbackUsed {
			logging.LogWarning("no preview inside size window for %s, using %s (%d bytes)",
				name, c.Type, c.Size)
		}
		return res
	}

	// Nothing passed strict validation. A fallback choice is still returned,
	// carrying a validation warning.
	if fallbackUsed {
		c := ranked[0]
		data, err := pr.Bytes(int64(c.Offset), int64(c.Size))
		if err == nil {
			logging.LogWarning("fallback preview in %s failed validation", name)
			return ExtractionResult{
				Success:  true,
				Format:   format,
				Preview:  c,
				JPEGData: data,
				Warning:  CodeValidationFailed,
			}
		}
	}

	return failure(format,
		newError(CodeValidationFailed, "no candidate passed validation", name))
}

// ExtractAllPreviews opens the file and returns every discovered candidate
// with its bytes. Default budgets apply.
func (e *Extractor) ExtractAllPreviews(path string) ([]PreviewResult, error) {
	o := DefaultOptions()

	r, err := reader.Open(path)
	if err != nil {
		return nil, openError(err, path)
	}
	defer r.Close()

	if r.Size() < rawparser.MinInputSize {
		return nil, newError(CodeCorruptedFile,
			fmt.Sprintf("input too small (%d bytes)", r.Size()), path)
	}

	gov := governor.New(o.Timeout, o.MaxMemoryMB)
	pr := rawparser.NewParse(r, gov)

	format := rawparser.DetectFormat(pr)
	if govErr := gov.Check(); govErr != nil {
		return nil, governorError(govErr, path)
	}
	if format == rawparser.FormatUnknown {
		return nil, newError(CodeInvalidFormat, "not a recognized RAW format", path)
	}
	locator, err := e.registry.Get(format)
	if err != nil {
		return nil, newError(CodeInvalidFormat, err.Error(), path)
	}

	candidates, err := locator.LocateCandidates(pr)
	if err != nil {
		return nil, governorError(err, path)
	}

	var results []PreviewResult
	for _, c := range candidates {
		data, err := pr.Bytes(int64(c.Offset), int64(c.Size))
		if err != nil {
			if govErr := gov.Check(); govErr != nil {
				return results, governorError(govErr, path)
			}
			continue
		}
		if !rawparser.IsValidJPEG(data, false) {
			continue
		}
		results = append(results, PreviewResult{Candidate: c, Data: data})
	}
	if len(results) == 0 {
		return nil, newError(CodeNoPreviewsFound, "no embedded previews found", path)
	}
	return results, nil
}

// ExtractMediumPreview returns the medium preview chosen by camera and
// format mapping over the candidate list, bypassing the size window. A nil
// opts uses the defaults.
func (e *Extractor) ExtractMediumPreview(path string, opts *ExtractionOptions) ExtractionResult {
	return e.extractMapped(path, opts, true)
}

// ExtractFullPreview returns the full-resolution preview chosen by camera
// and format mapping over the candidate list, bypassing the size window.
func (e *Extractor) ExtractFullPreview(path string, opts *ExtractionOptions) ExtractionResult {
	return e.extractMapped(path, opts, false)
}

// extractMapped runs the positional pipeline: same detection and location as
// extract, then mapping-based selection instead of window ranking. The
// candidates already passed boundary validation during location, so the
// mapped bytes are returned as found.
func (e *Extractor) extractMapped(path string, opts *ExtractionOptions, medium bool) ExtractionResult {
	o := opts.normalized()

	r, err := reader.Open(path)
	if err != nil {
		errInfo := openError(err, path)
		logging.LogExtraction(path, false, errInfo.Message)
		return failure(rawparser.FormatUnknown, errInfo)
	}
	defer r.Close()

	if r.Size() < rawparser.MinInputSize {
		return failure(rawparser.FormatUnknown,
			newError(CodeCorruptedFile,
				fmt.Sprintf("input too small (%d bytes)", r.Size()), path))
	}

	gov := governor.New(o.Timeout, o.MaxMemoryMB)
	pr := rawparser.NewParse(r, gov)

	format := rawparser.DetectFormat(pr)
	if err := gov.Check(); err != nil {
		return failure(format, governorError(err, path))
	}
	if format == rawparser.FormatUnknown {
		return failure(format,
			newError(CodeInvalidFormat, "not a recognized RAW format", path))
	}

	locator, err := e.registry.Get(format)
	if err != nil {
		return failure(format, newError(CodeInvalidFormat, err.Error(), path))
	}
	candidates, err := locator.LocateCandidates(pr)
	if err != nil {
		return failure(format, governorError(err, path))
	}
	if len(candidates) == 0 {
		return failure(format,
			newError(CodeNoPreviewsFound, "no embedded previews found", path))
	}

	model := ""
	if format == rawparser.FormatNEF {
		t := rawparser.NewTiffParser(pr)
		if t.ParseHeader() {
			model = t.CameraModel()
		}
	}

	c := selectMapped(format, model, candidates, medium)
	if int64(c.Offset)+int64(c.Size) > r.Size() {
		return failure(format,
			newError(CodeCorruptedFile, "preview extends beyond file bounds", path))
	}
	data, err := pr.Bytes(int64(c.Offset), int64(c.Size))
	if err != nil {
		if govErr := gov.Check(); govErr != nil {
			return failure(format, governorError(govErr, path))
		}
		return failure(format, newError(CodeCorruptedFile, err.Error(), path))
	}

	res := ExtractionResult{
		Success:  true,
		Format:   format,
		Preview:  c,
		JPEGData: data,
	}
	logging.LogExtraction(path, true, "")
	if o.IncludeMetadata {
		res.Metadata = readMetadata(path)
	}
	return res
}

// DetectFormat classifies the file at path without extracting anything.
func (e *Extractor) DetectFormat(path string) rawparser.RawFormat {
	r, err := reader.Open(path)
	if err != nil {
		return rawparser.FormatUnknown
	}
	defer r.Close()
	return rawparser.DetectFormat(rawparser.NewParse(r, nil))
}

// DetectFormatFromBuffer classifies an in-memory RAW file.
func (e *Extractor) DetectFormatFromBuffer(data []byte) rawparser.RawFormat {
	return rawparser.DetectFormat(rawparser.NewParse(reader.FromBytes(data), nil))
}

// openError maps an open failure onto the error taxonomy.
func openError(err error, path string) *ErrorInfo {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return newError(CodeFileNotFound, "file does not exist", path)
	case errors.Is(err, fs.ErrPermission):
		return newError(CodeFileAccessDenied, "file is not readable", path)
	}
	return newError(CodeUnknownError, err.Error(), path)
}

// governorError maps a budget abort onto the error taxonomy.
func governorError(err error, context string) *ErrorInfo {
	switch {
	case errors.Is(err, governor.ErrTimeoutExceeded):
		return newError(CodeTimeoutExceeded, "extraction timed out", context)
	case errors.Is(err, governor.ErrMemoryExceeded):
		return newError(CodeMemoryLimitExceeded, "memory budget exceeded", context)
	}
	return newError(CodeUnknownError, err.Error(), context)
}
