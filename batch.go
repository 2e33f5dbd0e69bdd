package rawpreview

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"rawpreview/logging"
)

// rawExtensions lists the file extensions the directory walker hands to the
// extractor.
var rawExtensions = map[string]bool{
	".cr2": true,
	".cr3": true,
	".nef": true,
	".arw": true,
	".dng": true,
	".raf": true,
	".orf": true,
	".pef": true,
	".rw2": true,
}

// IsRawFile reports whether path carries a recognized RAW extension.
func IsRawFile(path string) bool {
	return rawExtensions[strings.ToLower(filepath.Ext(path))]
}

// BatchEntry is the outcome for one file of a directory extraction.
type BatchEntry struct {
	Path   string
	Result ExtractionResult
}

// BatchSummary aggregates a directory extraction run.
type BatchSummary struct {
	Processed int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
}

// defaultWorkers returns three quarters of the CPU count, minimum one.
func defaultWorkers() int {
	n := (runtime.NumCPU() * 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// ExtractDirectory walks dir recursively and extracts a preview from every
// file with a RAW extension, using workers parallel extractions (<=0 picks a
// default). Entries come back sorted by path.
func ExtractDirectory(dir string, opts *ExtractionOptions, workers int) ([]BatchEntry, BatchSummary, error) {
	return defaultExtractor.ExtractDirectory(dir, opts, workers)
}

func (e *Extractor) ExtractDirectory(dir string, opts *ExtractionOptions, workers int) ([]BatchEntry, BatchSummary, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, BatchSummary{}, fmt.Errorf("cannot access %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, BatchSummary{}, fmt.Errorf("%s is not a directory", dir)
	}
	if workers <= 0 {
		workers = defaultWorkers()
	}

	var wg sync.WaitGroup
	entriesChan := make(chan BatchEntry, 100)
	semaphore := make(chan struct{}, workers)

	var entries []BatchEntry
	collected := make(chan struct{})
	go func() {
		for entry := range entriesChan {
			entries = append(entries, entry)
		}
		close(collected)
	}()

	start := time.Now()
	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logging.LogWarning("skipping %s: %v", path, err)
			return nil
		}
		if info.IsDir() || !IsRawFile(path) {
			return nil
		}

		wg.Add(1)
		semaphore <- struct{}{}
		go func(path string) {
			defer wg.Done()
			defer func() { <-semaphore }()
			entriesChan <- BatchEntry{Path: path, Result: e.ExtractPreview(path, opts)}
		}(path)
		return nil
	})

	wg.Wait()
	close(entriesChan)
	<-collected

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	summary := BatchSummary{Processed: len(entries), Elapsed: time.Since(start)}
	for _, entry := range entries {
		if entry.Result.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	logging.LogInfo("directory extraction of %s: %d files, %d succeeded, %d failed in %v",
		dir, summary.Processed, summary.Succeeded, summary.Failed, summary.Elapsed)
	return entries, summary, walkErr
}
