package rawparser

import "fmt"

// NEFLocator finds previews in Nikon NEF files. The full-size preview lives
// in a SubIFD behind the JpgFromRaw start/length tag pair (which shares its
// tag numbers with JPEGInterchangeFormat); when absent, the generic TIFF
// strip convention applies.
type NEFLocator struct{}

func (*NEFLocator) Format() RawFormat { return FormatNEF }

func canParseNEF(pr *Parse) bool {
	t := NewTiffParser(pr)
	if !t.ParseHeader() {
		return false
	}
	return makeMatches(t, "NIKON")
}

func (l *NEFLocator) LocateCandidates(pr *Parse) ([]PreviewCandidate, error) {
	if !canParseNEF(pr) {
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
	orientation := t.Orientation()

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

		switch {
		case p.IFDIndex < 0:
			// SubIFD previews are typically the full-size JPEG.
			p.Quality = ClassifyPreview(p.Width, p.Height, int64(p.Size))
			p.Type = fmt.Sprintf("NEF_SubIFD%d", subIFDCount)
			subIFDCount++
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
			p.Type = "NEF_IFD1"
			p.Priority = 2
		case p.IFDIndex == 0:
			p.Quality = ClassifyPreview(p.Width, p.Height, int64(p.Size))
			p.Type = "NEF_IFD0"
			p.Priority = 7
		default:
			p.Quality = ClassifyPreview(p.Width, p.Height, int64(p.Size))
			p.Type = fmt.Sprintf("NEF_IFD%d", p.IFDIndex)
			p.Priority = 3
		}
		p.IsJPEG = true
		p.Orientation = orientation
		previews = append(previews, p)
	}

	// The dedicated JpgFromRaw pair can reference a preview the generic
	// walk missed.
	previews, err = l.nikonTagPreviews(pr, t, previews, orientation)
	return previews, err
}

// nikonTagPreviews scans every SubIFD for the JpgFromRaw tag pair. A pair
// the generic walk already surfaced gets its priority upgraded; a new pair
// is appended.
func (l *NEFLocator) nikonTagPreviews(pr *Parse, t *TiffParser, previews []PreviewCandidate, orientation uint16) ([]PreviewCandidate, error) {
	offset := t.FirstIFDOffset()
	for ifdIndex := 0; offset != 0 && int64(offset) < pr.Size() && ifdIndex < maxChainIFDs; ifdIndex++ {
		if err := pr.Check(); err != nil {
			return previews, err
		}

		ifd, err := t.ParseIFD(offset)
		if err != nil {
			break
		}

		subTag, ok := ifd.Tags[tagSubIFDs]
		if ok {
			for i, subOffset := range t.TagValues32(subTag) {
				subIFD, err := t.ParseIFD(subOffset)
				if err != nil {
					continue
				}

				startTag, hasStart := subIFD.Tags[tagJPEGFormat]
				lengthTag, hasLength := subIFD.Tags[tagJPEGFormatLength]
				if !hasStart || !hasLength {
					continue
				}

				jpegOffset := t.TagValue32(startTag)
				jpegLength := t.TagValue32(lengthTag)
				if jpegOffset == 0 || jpegLength == 0 ||
					int64(jpegOffset)+int64(jpegLength) > pr.Size() {
					continue
				}

				data, err := pr.Bytes(int64(jpegOffset), int64(jpegLength))
				if err != nil || !IsValidJPEG(data, false) {
					if govErr := pr.Check(); govErr != nil {
						return previews, govErr
					}
					continue
				}

				candidate := PreviewCandidate{
					Offset:      jpegOffset,
					Size:        jpegLength,
					IsJPEG:      true,
					IFDIndex:    -1 - i,
					Quality:     ClassifyPreview(0, 0, int64(jpegLength)),
					Orientation: orientation,
					Type:        "NEF_JpgFromRaw",
				}
				if candidate.InTargetRange() {
					candidate.Priority = 12
				} else {
					candidate.Priority = 7
				}

				// The generic walk usually reaches the same pair first
				// through the SubIFD strip convention; the dedicated tag
				// match outranks it, so upgrade in place instead of
				// dropping the rediscovery.
				if idx := indexOfCandidate(previews, candidate); idx >= 0 {
					if candidate.Priority > previews[idx].Priority {
						previews[idx].Priority = candidate.Priority
						previews[idx].Type = candidate.Type
					}
				} else {
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
