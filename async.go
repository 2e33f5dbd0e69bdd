package rawpreview

import "rawpreview/rawparser"

// ExtractPreviewAsync runs ExtractPreview on its own goroutine and delivers
// the result over the returned channel, which is closed after the single
// send. Every public operation has an async variant in this shape.
func ExtractPreviewAsync(path string, opts *ExtractionOptions) <-chan ExtractionResult {
	return defaultExtractor.ExtractPreviewAsync(path, opts)
}

// ExtractPreviewFromBufferAsync is the buffer variant of ExtractPreviewAsync.
func ExtractPreviewFromBufferAsync(data []byte, opts *ExtractionOptions) <-chan ExtractionResult {
	return defaultExtractor.ExtractPreviewFromBufferAsync(data, opts)
}

// ExtractAllPreviewsAsync is the async variant of ExtractAllPreviews.
func ExtractAllPreviewsAsync(path string) <-chan PreviewListResult {
	return defaultExtractor.ExtractAllPreviewsAsync(path)
}

// ExtractMediumPreviewAsync is the async variant of ExtractMediumPreview.
func ExtractMediumPreviewAsync(path string, opts *ExtractionOptions) <-chan ExtractionResult {
	return defaultExtractor.ExtractMediumPreviewAsync(path, opts)
}

// ExtractFullPreviewAsync is the async variant of ExtractFullPreview.
func ExtractFullPreviewAsync(path string, opts *ExtractionOptions) <-chan ExtractionResult {
	return defaultExtractor.ExtractFullPreviewAsync(path, opts)
}

// DetectFormatAsync is the async variant of DetectFormat.
func DetectFormatAsync(path string) <-chan rawparser.RawFormat {
	return defaultExtractor.DetectFormatAsync(path)
}

func (e *Extractor) ExtractPreviewAsync(path string, opts *ExtractionOptions) <-chan ExtractionResult {
	ch := make(chan ExtractionResult, 1)
	go func() {
		ch <- e.ExtractPreview(path, opts)
		close(ch)
	}()
	return ch
}

func (e *Extractor) ExtractPreviewFromBufferAsync(data []byte, opts *ExtractionOptions) <-chan ExtractionResult {
	ch := make(chan ExtractionResult, 1)
	go func() {
		ch <- e.ExtractPreviewFromBuffer(data, opts)
		close(ch)
	}()
	return ch
}

func (e *Extractor) ExtractAllPreviewsAsync(path string) <-chan PreviewListResult {
	ch := make(chan PreviewListResult, 1)
	go func() {
		previews, err := e.ExtractAllPreviews(path)
		ch <- PreviewListResult{Previews: previews, Err: err}
		close(ch)
	}()
	return ch
}

func (e *Extractor) ExtractMediumPreviewAsync(path string, opts *ExtractionOptions) <-chan ExtractionResult {
	ch := make(chan ExtractionResult, 1)
	go func() {
		ch <- e.ExtractMediumPreview(path, opts)
		close(ch)
	}()
	return ch
}

func (e *Extractor) ExtractFullPreviewAsync(path string, opts *ExtractionOptions) <-chan ExtractionResult {
	ch := make(chan ExtractionResult, 1)
	go func() {
		ch <- e.ExtractFullPreview(path, opts)
		close(ch)
	}()
	return ch
}

func (e *Extractor) DetectFormatAsync(path string) <-chan rawparser.RawFormat {
	ch := make(chan rawparser.RawFormat, 1)
	go func() {
		ch <- e.DetectFormat(path)
		close(ch)
	}()
	return ch
}
