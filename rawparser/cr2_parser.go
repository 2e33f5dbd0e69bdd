package rawparser

import "fmt"

// CR2 stores "CR" plus a version byte at offset 8, right after the TIFF
// header.
const cr2Magic = 0x5243

// CR2Locator finds previews in Canon CR2 files. CR2 has a fixed four-IFD
// layout: IFD0 holds the full-size JPEG preview, IFD1 a small thumbnail,
// IFD2 and IFD3 the sensor data.
type CR2Locator struct{}

func (*CR2Locator) Format() RawFormat { return FormatCR2 }

func canParseCR2(pr *Parse) bool {
	t := NewTiffParser(pr)
	if !t.ParseHeader() {
		return false
	}
	magic, ok := pr.readU16(8, t.order)
	return ok && magic == cr2Magic
}

func (l *CR2Locator) LocateCandidates(pr *Parse) ([]PreviewCandidate, error) {
	if !canParseCR2(pr) {
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
		case p.IFDIndex == 0:
			// IFD0 is the full-size preview and the highest-value candidate.
			p.Quality = QualityPreview
			p.Type = "CR2_IFD0"
			if p.InTargetRange() {
				p.Priority = 10
			} else {
				p.Priority = 5
			}
		case p.IFDIndex == 1:
			p.Quality = QualityThumbnail
			p.Type = "CR2_IFD1"
			p.Priority = 1
		case p.IFDIndex < 0:
			p.Quality = ClassifyPreview(p.Width, p.Height, int64(p.Size))
			p.Type = fmt.Sprintf("CR2_SubIFD%d", subIFDCount)
			subIFDCount++
			p.Priority = 3
		default:
			p.Quality = ClassifyPreview(p.Width, p.Height, int64(p.Size))
			p.Type = fmt.Sprintf("CR2_IFD%d", p.IFDIndex)
			p.Priority = 3
		}
		p.IsJPEG = true
		p.Orientation = orientation
		previews = append(previews, p)
	}

	return previews, nil
}
