// Package governor enforces per-extraction time and memory budgets.
// Enforcement is cooperative: parsing loops call Check at a bounded cadence
// and unwind as soon as it reports an exceeded budget.
package governor

import (
	"errors"
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

var (
	// ErrTimeoutExceeded reports that the wall-clock budget ran out.
	ErrTimeoutExceeded = errors.New("extraction timeout exceeded")

	// ErrMemoryExceeded reports that the memory ceiling was crossed.
	ErrMemoryExceeded = errors.New("extraction memory limit exceeded")
)

// Governor tracks elapsed time and cumulative allocated bytes against
// caller-supplied ceilings. One Governor guards exactly one extraction call.
type Governor struct {
	deadline time.Time
	maxBytes int64
	tracked  atomic.Int64
}

// New creates a guard with the given timeout and memory ceiling in megabytes.
func New(timeout time.Duration, maxMemoryMB int64) *Governor {
	return &Governor{
		deadline: time.Now().Add(timeout),
		maxBytes: maxMemoryMB * 1024 * 1024,
	}
}

// Track records n bytes of allocation attributed to this extraction.
func (g *Governor) Track(n int64) {
	g.tracked.Add(n)
}

// Check returns ErrTimeoutExceeded or ErrMemoryExceeded once a budget is
// spent, nil otherwise. Parsing routines call this on every directory entry
// visited and every byte-range read.
func (g *Governor) Check() error {
	if time.Now().After(g.deadline) {
		return ErrTimeoutExceeded
	}
	if g.maxBytes > 0 && g.tracked.Load() > g.maxBytes {
		return ErrMemoryExceeded
	}
	return nil
}

// Expired reports whether the wall-clock budget has run out.
func (g *Governor) Expired() bool {
	return time.Now().After(g.deadline)
}

// CheckProcess samples the resident set size of the current process and
// compares it, plus pending, against the ceiling. Used only for very large
// inputs where mapping the file could matter; sampling failures fall back to
// the cumulative tracked count.
func (g *Governor) CheckProcess(pending int64) error {
	if g.maxBytes <= 0 {
		return nil
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err == nil {
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			if int64(mem.RSS)+pending > g.maxBytes {
				return ErrMemoryExceeded
			}
			return nil
		}
	}
	if g.tracked.Load()+pending > g.maxBytes {
		return ErrMemoryExceeded
	}
	return nil
}
