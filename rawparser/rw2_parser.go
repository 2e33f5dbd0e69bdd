package rawparser

// Panasonic RW2 reuses the TIFF layout under magic 0x0055. The preview JPEG
// lives in the vendor JpgFromRaw tag, whose count is the byte length and
// whose value offset points at the stream.
const tagJpgFromRaw = 0x002E

// RW2Locator finds the embedded JPEG in Panasonic RW2 files.
type RW2Locator struct{}

func (*RW2Locator) Format() RawFormat { return FormatRW2 }

func canParseRW2(pr *Parse) bool {
	t := NewTiffParser(pr)
	if !t.ParseHeaderMagic(tiffMagic, rw2Magic) {
		return false
	}
	if t.Magic() == rw2Magic {
		return true
	}
	return makeMatches(t, "Panasonic")
}

func (l *RW2Locator) LocateCandidates(pr *Parse) ([]PreviewCandidate, error) {
	if !canParseRW2(pr) {
		return nil, nil
	}

	t := NewTiffParser(pr)
	if !t.ParseHeaderMagic(tiffMagic, rw2Magic) {
		return nil, nil
	}

	var previews []PreviewCandidate

	offset := t.FirstIFDOffset()
	for ifdIndex := 0; offset != 0 && int64(offset) < pr.Size() && ifdIndex < maxChainIFDs; ifdIndex++ {
		if err := pr.Check(); err != nil {
			return previews, err
		}

		ifd, err := t.ParseIFD(offset)
		if err != nil {
			break
		}

		if tag, ok := ifd.Tags[tagJpgFromRaw]; ok {
			jpegOffset := tag.ValueOffset
			jpegSize := tag.Count
			if jpegOffset > 0 && jpegSize > 4 &&
				int64(jpegOffset)+int64(jpegSize) <= pr.Size() {
				data, err := pr.Bytes(int64(jpegOffset), int64(jpegSize))
				if err != nil {
					if govErr := pr.Check(); govErr != nil {
						return previews, govErr
					}
				} else if IsValidJPEG(data, false) {
					candidate := PreviewCandidate{
						Offset:      jpegOffset,
						Size:        jpegSize,
						IsJPEG:      true,
						IFDIndex:    ifdIndex,
						Quality:     ClassifyPreview(0, 0, int64(jpegSize)),
						Orientation: embeddedOrientation(data),
						Type:        "RW2_JpgFromRaw",
					}
					switch {
					case candidate.InTargetRange():
						candidate.Priority = 10
					case candidate.Quality == QualityPreview:
						candidate.Priority = 8
					default:
						candidate.Priority = 5
					}
					if !containsCandidate(previews, candidate) {
						previews = append(previews, candidate)
					}
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
