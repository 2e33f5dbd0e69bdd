package rawparser

import "fmt"

// DNGLocator finds previews in Adobe DNG files. DNG is the one
// standards-compliant format here: IFD0 carries a thumbnail and each SubIFD
// with NewSubfileType==1 carries a reduced-resolution preview; every
// resolution present is surfaced as a candidate.
type DNGLocator struct{}

func (*DNGLocator) Format() RawFormat { return FormatDNG }

func canParseDNG(pr *Parse) bool {
	t := NewTiffParser(pr)
	if !t.ParseHeader() {
		return false
	}
	ifd, err := t.ParseIFD(t.FirstIFDOffset())
	if err != nil {
		return false
	}
	if _, ok := ifd.Tags[tagDNGVersion]; ok {
		return true
	}
	// Converted files may lack the version tag but carry Adobe as software.
	if tag, ok := ifd.Tags[tagSoftware]; ok {
		if s := t.TagString(tag); len(s) >= 5 && s[:5] == "Adobe" {
			return true
		}
	}
	return false
}

func (l *DNGLocator) LocateCandidates(pr *Parse) ([]PreviewCandidate, error) {
	if !canParseDNG(pr) {
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
		case p.SubfileType == 1:
			p.Quality = ClassifyPreview(p.Width, p.Height, int64(p.Size))
			p.Type = fmt.Sprintf("DNG_Reduced%d", p.IFDIndex)
			if p.InTargetRange() {
				p.Priority = 10
			} else {
				p.Priority = 8
			}
		case p.IFDIndex < 0:
			p.Quality = ClassifyPreview(p.Width, p.Height, int64(p.Size))
			p.Type = "DNG_SubIFD"
			p.Priority = 9
		case p.IFDIndex == 0:
			p.Quality = QualityThumbnail
			p.Type = "DNG_IFD0"
			p.Priority = 2
		default:
			p.Quality = ClassifyPreview(p.Width, p.Height, int64(p.Size))
			p.Type = fmt.Sprintf("DNG_IFD%d", p.IFDIndex)
			p.Priority = 5
		}
		p.IsJPEG = true
		p.Orientation = orientation
		previews = append(previews, p)
	}

	return previews, nil
}
