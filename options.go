package rawpreview

import (
	"fmt"
	"hash/fnv"
	"time"

	"rawpreview/rawparser"
)

// Default budgets and selection window, matching ExtractionOptions' zero
// configuration.
const (
	DefaultTargetMinSize = rawparser.TargetMinSize
	DefaultTargetMaxSize = rawparser.TargetMaxSize
	DefaultTimeout       = 5000 * time.Millisecond
	DefaultMaxMemoryMB   = 100
)

// ExtractionOptions controls one extraction call. The zero value is not
// usable directly; pass nil or start from DefaultOptions.
type ExtractionOptions struct {
	// TargetMinSize and TargetMaxSize bound the preferred preview byte size.
	TargetMinSize int64
	TargetMaxSize int64

	// PreferQuality selects the preferred tier when several candidates fall
	// inside the size window.
	PreferQuality rawparser.Quality

	// UseCache enables the process-wide result cache for path-based calls.
	UseCache bool

	// Timeout is the wall-clock budget for the whole call.
	Timeout time.Duration

	// MaxMemoryMB caps cumulative bytes materialized during the call.
	MaxMemoryMB int64

	// IncludeMetadata attaches exiftool fields to successful results when the
	// exiftool binary is available.
	IncludeMetadata bool

	// StrictValidation walks the chosen preview's full JPEG marker chain
	// instead of checking only the boundary markers.
	StrictValidation bool
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() *ExtractionOptions {
	return &ExtractionOptions{
		TargetMinSize:    DefaultTargetMinSize,
		TargetMaxSize:    DefaultTargetMaxSize,
		PreferQuality:    rawparser.QualityPreview,
		UseCache:         false,
		Timeout:          DefaultTimeout,
		MaxMemoryMB:      DefaultMaxMemoryMB,
		IncludeMetadata:  false,
		StrictValidation: true,
	}
}

// normalized returns a private copy with unset numeric fields replaced by
// their defaults, so the rest of the call never re-checks for zero values.
func (o *ExtractionOptions) normalized() *ExtractionOptions {
	if o == nil {
		return DefaultOptions()
	}
	out := *o
	if out.TargetMinSize <= 0 {
		out.TargetMinSize = DefaultTargetMinSize
	}
	if out.TargetMaxSize <= 0 {
		out.TargetMaxSize = DefaultTargetMaxSize
	}
	if out.TargetMaxSize < out.TargetMinSize {
		out.TargetMinSize, out.TargetMaxSize = out.TargetMaxSize, out.TargetMinSize
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.MaxMemoryMB <= 0 {
		out.MaxMemoryMB = DefaultMaxMemoryMB
	}
	return &out
}

// hash folds the selection-relevant fields into a cache key component.
// Budget fields are excluded: a cached result is valid under any budget.
func (o *ExtractionOptions) hash() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%d|%s|%t|%t",
		o.TargetMinSize, o.TargetMaxSize, o.PreferQuality,
		o.StrictValidation, o.IncludeMetadata)
	return h.Sum64()
}
