package rawparser

import "fmt"

// Sony vendor-private tags. Which of the two structures is present depends
// on the ARW generation; the locator branches on what it finds.
const (
	tagSR2Private = 0x7200
	tagSR2SubIFD  = 0x7201
)

// ARWLocator finds previews in Sony ARW files. Placement varies by camera
// generation: the TIFF walk covers IFD previews, while older bodies hide the
// preview inside the SR2Private area and some expose SR2SubIFD directories.
type ARWLocator struct{}

func (*ARWLocator) Format() RawFormat { return FormatARW }

func canParseARW(pr *Parse) bool {
	t := NewTiffParser(pr)
	if !t.ParseHeader() {
		return false
	}
	if makeMatches(t, "SONY") {
		return true
	}
	ifd, err := t.ParseIFD(t.FirstIFDOffset())
	if err != nil {
		return false
	}
	_, ok := ifd.Tags[tagSR2Private]
	return ok
}

func (l *ARWLocator) LocateCandidates(pr *Parse) ([]PreviewCandidate, error) {
	if !canParseARW(pr) {
		return nil, nil
	}

	t := NewTiffParser(pr)
	if !t.ParseHeader() {
		return nil, nil
	}

	found, err := t.FindPreviews()
	if err != nil {
		return nil, err
	}
	orientation := l.extractOrientation(pr, t)

	var previews []PreviewCandidate
	subIFDCount := 0
	for _, p := range found {
		if int64(p.Offset)+int64(p.Size) > pr.Size() {
			continue
		}
		data, err := pr.Bytes(int64(p.Offset), int64(p.Size))
		if err != nil {
			if govErr := pr.Check(); govErr != nil {
				return previews, govErr
			}
			continue
		}
		if !IsValidJPEG(data, false) {
			continue
		}

		l.classify(&p, &subIFDCount)
		p.IsJPEG = true
		p.Orientation = orientation
		previews = append(previews, p)
	}

	previews, err = l.sr2Previews(pr, t, previews, orientation)
	return previews, err
}

func (l *ARWLocator) classify(p *PreviewCandidate, subIFDCount *int) {
	switch {
	case p.SubfileType == 1:
		p.Quality = ClassifyPreview(p.Width, p.Height, int64(p.Size))
		p.Type = "ARW_Preview"
		switch {
		case p.InTargetRange():
			p.Priority = 10
		case p.Quality == QualityPreview:
			p.Priority = 8
		default:
			p.Priority = 5
		}
	case p.IFDIndex == 1:
		p.Quality = QualityThumbnail
		p.Type = "ARW_IFD1"
		p.Priority = 2
	case p.IFDIndex < 0:
		p.Quality = ClassifyPreview(p.Width, p.Height, int64(p.Size))
		p.Type = fmt.Sprintf("ARW_SubIFD%d", *subIFDCount)
		*subIFDCount++
		// Recent Sony bodies put a large high-quality preview here.
		if p.Size >= 1024*1024 {
			p.Priority = 9
		} else {
			p.Priority = 6
		}
	case p.IFDIndex == 0:
		p.Quality = ClassifyPreview(p.Width, p.Height, int64(p.Size))
		p.Type = "ARW_IFD0"
		p.Priority = 7
	default:
		p.Quality = ClassifyPreview(p.Width, p.Height, int64(p.Size))
		p.Type = fmt.Sprintf("ARW_IFD%d", p.IFDIndex)
		p.Priority = 4
	}
}

// sr2Previews walks the IFD chain for the Sony private structures and adds
// any previews found inside them.
func (l *ARWLocator) sr2Previews(pr *Parse, t *TiffParser, previews []PreviewCandidate, orientation uint16) ([]PreviewCandidate, error) {
	offset := t.FirstIFDOffset()
	for ifdIndex := 0; offset != 0 && int64(offset) < pr.Size() && ifdIndex < maxChainIFDs; ifdIndex++ {
		if err := pr.Check(); err != nil {
			return previews, err
		}

		ifd, err := t.ParseIFD(offset)
		if err != nil {
			break
		}

		if privateTag, ok := ifd.Tags[tagSR2Private]; ok {
			sr2Offset := t.TagValue32(privateTag)
			sr2Length := privateTag.Count
			if sr2Offset > 0 && sr2Length > 0 &&
				int64(sr2Offset)+int64(sr2Length) <= pr.Size() {
				var err error
				previews, err = l.scanSR2Private(pr, int64(sr2Offset), int64(sr2Length), previews, orientation)
				if err != nil {
					return previews, err
				}
			}
		}

		if subTag, ok := ifd.Tags[tagSR2SubIFD]; ok {
			for _, subOffset := range t.TagValues32(subTag) {
				if subOffset == 0 || int64(subOffset) >= pr.Size() {
					continue
				}
				subIFD, err := t.ParseIFD(subOffset)
				if err != nil {
					continue
				}
				jpegOffset, jpegSize, ok := t.stripPair(subIFD)
				if !ok || int64(jpegOffset)+int64(jpegSize) > pr.Size() {
					continue
				}
				data, err := pr.Bytes(int64(jpegOffset), int64(jpegSize))
				if err != nil || !IsValidJPEG(data, false) {
					if govErr := pr.Check(); govErr != nil {
						return previews, govErr
					}
					continue
				}

				candidate := PreviewCandidate{
					Offset:      jpegOffset,
					Size:        jpegSize,
					IsJPEG:      true,
					IFDIndex:    -10,
					Quality:     ClassifyPreview(0, 0, int64(jpegSize)),
					Orientation: orientation,
					Type:        "ARW_SR2SubIFD",
				}
				if candidate.InTargetRange() {
					candidate.Priority = 11
				} else {
					candidate.Priority = 7
				}
				if !containsCandidate(previews, candidate) {
					previews = append(previews, candidate)
				}
			}
		}

		if ifd.NextOffset == offset {
			break
		}
		offset = ifd.NextOffset
	}

	return previews, nil
}

// scanSR2Private searches the opaque SR2Private area for embedded JPEG
// streams. The structure is proprietary, so the scan goes by markers alone.
func (l *ARWLocator) scanSR2Private(pr *Parse, offset, length int64, previews []PreviewCandidate, orientation uint16) ([]PreviewCandidate, error) {
	searchAt := offset
	end := offset + length
	for searchAt < end {
		start, err := pr.findMarker(searchAt, end, jpegSOI)
		if err != nil {
			return previews, err
		}
		if start < 0 {
			break
		}

		jpegEnd, err := pr.findMarker(start+2, pr.Size(), jpegEOI)
		if err != nil {
			return previews, err
		}
		if jpegEnd < 0 {
			break
		}
		size := jpegEnd + 2 - start

		data, err := pr.Bytes(start, size)
		if err == nil && IsValidJPEG(data, false) {
			candidate := PreviewCandidate{
				Offset:      uint32(start),
				Size:        uint32(size),
				IsJPEG:      true,
				IFDIndex:    -20,
				Quality:     ClassifyPreview(0, 0, size),
				Orientation: orientation,
				Type:        "ARW_SR2Private",
			}
			if candidate.InTargetRange() {
				candidate.Priority = 12
			} else {
				candidate.Priority = 8
			}
			if !containsCandidate(previews, candidate) {
				previews = append(previews, candidate)
			}
		}

		searchAt = start + size
	}
	return previews, nil
}

// extractOrientation searches IFD0 first, then IFD1 and SubIFDs, for a
// non-default orientation value.
func (l *ARWLocator) extractOrientation(pr *Parse, t *TiffParser) uint16 {
	offset := t.FirstIFDOffset()
	for ifdIndex := 0; offset != 0 && int64(offset) < pr.Size() && ifdIndex < 10; ifdIndex++ {
		ifd, err := t.ParseIFD(offset)
		if err != nil {
			break
		}

		if tag, ok := ifd.Tags[tagOrientation]; ok {
			orientation := uint16(t.TagValue32(tag))
			if orientation >= 1 && orientation <= 8 {
				if ifdIndex == 0 {
					return orientation
				}
				if ifdIndex == 1 && orientation != 1 {
					return orientation
				}
			}
		}

		if subTag, ok := ifd.Tags[tagSubIFDs]; ok {
			for _, subOffset := range t.TagValues32(subTag) {
				if subOffset == 0 || int64(subOffset) >= pr.Size() {
					continue
				}
				subIFD, err := t.ParseIFD(subOffset)
				if err != nil {
					continue
				}
				if tag, ok := subIFD.Tags[tagOrientation]; ok {
					orientation := uint16(t.TagValue32(tag))
					if orientation >= 2 && orientation <= 8 {
						return orientation
					}
				}
			}
		}

		if ifd.NextOffset == offset {
			break
		}
		offset = ifd.NextOffset
	}
	return 1
}
