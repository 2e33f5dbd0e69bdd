package rawparser

import "fmt"

// Olympus ORF files follow the TIFF layout but replace the magic word with
// "RO" (0x4F52), giving the "IIRO" and "MMOR" signatures. Some models keep
// the standard magic and are recognized by the Make tag instead.
const orfMagic = 0x4F52

// ORFLocator finds previews in Olympus ORF files.
type ORFLocator struct{}

func (*ORFLocator) Format() RawFormat { return FormatORF }

func canParseORF(pr *Parse) bool {
	t := NewTiffParser(pr)
	if !t.ParseHeaderMagic(tiffMagic, orfMagic) {
		return false
	}
	if t.Magic() == orfMagic {
		return true
	}
	return makeMatches(t, "OLYMPUS")
}

func (l *ORFLocator) LocateCandidates(pr *Parse) ([]PreviewCandidate, error) {
	if !canParseORF(pr) {
		return nil, nil
	}

	t := NewTiffParser(pr)
	if !t.ParseHeaderMagic(tiffMagic, orfMagic) {
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

		p.Quality = ClassifyPreview(p.Width, p.Height, int64(p.Size))
		switch {
		case p.IFDIndex == 1:
			p.Quality = QualityThumbnail
			p.Type = "ORF_IFD1"
			p.Priority = 2
		case p.IFDIndex < 0:
			p.Type = fmt.Sprintf("ORF_SubIFD%d", -p.IFDIndex-1)
			if p.InTargetRange() {
				p.Priority = 10
			} else {
				p.Priority = 6
			}
		default:
			p.Type = fmt.Sprintf("ORF_IFD%d", p.IFDIndex)
			if p.InTargetRange() {
				p.Priority = 10
			} else {
				p.Priority = 6
			}
		}
		p.IsJPEG = true
		p.Orientation = orientation
		previews = append(previews, p)
	}

	return previews, nil
}
