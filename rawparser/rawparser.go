// Package rawparser locates embedded JPEG previews inside camera RAW files.
// It provides format detection, a generic TIFF/IFD navigator, and one
// preview locator per supported format.
package rawparser

import (
	"encoding/binary"
	"fmt"

	"rawpreview/governor"
	"rawpreview/reader"
)

// Parse is the per-call state shared by the locators: the byte-range reader
// over the input and the budget guard for this extraction. A Parse is used by
// a single goroutine and never outlives the call that created it.
type Parse struct {
	R   reader.Reader
	Gov *governor.Governor
}

// NewParse wraps a reader with an optional governor.
func NewParse(r reader.Reader, gov *governor.Governor) *Parse {
	return &Parse{R: r, Gov: gov}
}

// Check consults the governor, if any.
func (p *Parse) Check() error {
	if p.Gov != nil {
		return p.Gov.Check()
	}
	return nil
}

// Size returns the total input size in bytes.
func (p *Parse) Size() int64 {
	return p.R.Size()
}

// Bytes returns length bytes at offset, accounting the allocation against
// the governor's memory budget.
func (p *Parse) Bytes(offset, length int64) ([]byte, error) {
	if err := p.Check(); err != nil {
		return nil, err
	}
	buf, err := p.R.Bytes(offset, length)
	if err != nil {
		return nil, err
	}
	if p.Gov != nil {
		p.Gov.Track(length)
	}
	return buf, nil
}

// readU16 reads a 16-bit integer at off in the given byte order.
func (p *Parse) readU16(off int64, order binary.ByteOrder) (uint16, bool) {
	var buf [2]byte
	if off < 0 || off+2 > p.R.Size() {
		return 0, false
	}
	if _, err := p.R.ReadAt(buf[:], off); err != nil {
		return 0, false
	}
	return order.Uint16(buf[:]), true
}

// readU32 reads a 32-bit integer at off in the given byte order.
func (p *Parse) readU32(off int64, order binary.ByteOrder) (uint32, bool) {
	var buf [4]byte
	if off < 0 || off+4 > p.R.Size() {
		return 0, false
	}
	if _, err := p.R.ReadAt(buf[:], off); err != nil {
		return 0, false
	}
	return order.Uint32(buf[:]), true
}

// scanWindow is the chunk size used when searching the input for byte
// signatures. The governor is consulted once per window.
const scanWindow = 64 * 1024

// findMarker searches [start,end) for pat and returns the absolute offset of
// its first occurrence, or -1. The search runs in overlapping windows so that
// large regions never have to be materialized at once.
func (p *Parse) findMarker(start, end int64, pat []byte) (int64, error) {
	if end > p.Size() {
		end = p.Size()
	}
	if start < 0 || start >= end || len(pat) == 0 {
		return -1, nil
	}
	buf := make([]byte, scanWindow)
	overlap := int64(len(pat) - 1)
	for off := start; off < end; off += scanWindow - overlap {
		if err := p.Check(); err != nil {
			return -1, err
		}
		n := int64(len(buf))
		if off+n > end {
			n = end - off
		}
		if n < int64(len(pat)) {
			break
		}
		read, err := p.R.ReadAt(buf[:n], off)
		if read < len(pat) {
			if err != nil {
				return -1, nil
			}
			break
		}
		if idx := horspoolIndex(buf[:read], pat); idx >= 0 {
			return off + int64(idx), nil
		}
	}
	return -1, nil
}

// Locator is the per-format preview discovery strategy. Implementations must
// skip individual out-of-range or invalid candidates rather than failing the
// whole call; only a governor abort is returned as an error.
type Locator interface {
	// Format identifies which RawFormat this locator handles.
	Format() RawFormat

	// LocateCandidates enumerates every embedded preview the format carries.
	LocateCandidates(pr *Parse) ([]PreviewCandidate, error)
}

// LocatorRegistry maps each supported format to its locator.
type LocatorRegistry struct {
	locators map[RawFormat]Locator
}

// NewLocatorRegistry creates a registry with all built-in locators registered.
func NewLocatorRegistry() *LocatorRegistry {
	r := &LocatorRegistry{locators: make(map[RawFormat]Locator)}
	r.Register(&CR2Locator{})
	r.Register(&CR3Locator{})
	r.Register(&NEFLocator{})
	r.Register(&ARWLocator{})
	r.Register(&DNGLocator{})
	r.Register(&RAFLocator{})
	r.Register(&ORFLocator{})
	r.Register(&RW2Locator{})
	return r
}

// Register adds or replaces the locator for its format.
func (r *LocatorRegistry) Register(l Locator) {
	r.locators[l.Format()] = l
}

// Get returns the locator for format, or an error if the format has no
// locator (UNKNOWN, and PEF which is declared but has no strategy).
func (r *LocatorRegistry) Get(format RawFormat) (Locator, error) {
	l, ok := r.locators[format]
	if !ok {
		return nil, fmt.Errorf("no preview locator for format %s", format)
	}
	return l, nil
}
