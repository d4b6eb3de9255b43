package tools

import (
	"fmt"

	"github.com/wtclarke/nifti-mrs-tools/pkg/definitions"
	"github.com/wtclarke/nifti-mrs-tools/pkg/hdrext"
	"github.com/wtclarke/nifti-mrs-tools/pkg/mrs"
)

// Reshape reorganises the higher dimensions into the given shape, leaving
// the spatial and time axes untouched. One entry may be -1 and is inferred
// from the element count. tags maps NIfTI dimension numbers (5..7) to the
// tag of each reshaped axis; axes whose length is unchanged keep their tag
// and per-dimension header unless overridden.
func Reshape(m *mrs.NiftiMRS, higher []int, tags map[int]string) (*mrs.NiftiMRS, error) {
	if len(higher) > hdrext.MaxHigherDims {
		return nil, &mrs.ShapeError{
			Op:  "reshape",
			Msg: fmt.Sprintf("at most %d higher dimensions are supported, got %d", hdrext.MaxHigherDims, len(higher)),
		}
	}

	oldShape := m.Shape()
	oldHigher := oldShape[4:]
	oldCount := 1
	for _, d := range oldHigher {
		oldCount *= d
	}

	resolved, err := resolveWildcard(higher, oldCount)
	if err != nil {
		return nil, err
	}

	newShape := append(append([]int(nil), oldShape[:4]...), resolved...)
	data, err := m.Data().Reshape(newShape...)
	if err != nil {
		return nil, &mrs.ShapeError{Op: "reshape", Msg: err.Error()}
	}

	// Leading axes whose length is unchanged keep their dimension metadata
	stable := 0
	for stable < len(resolved) && stable < len(oldHigher) && resolved[stable] == oldHigher[stable] {
		stable++
	}

	ext := m.HeaderExt()
	oldTags := m.DimTags()
	if err := ext.SetDimensions(4 + len(resolved)); err != nil {
		return nil, err
	}
	for i := 0; i < hdrext.MaxHigherDims; i++ {
		if i >= len(resolved) {
			if err := ext.SetDimTag(i, ""); err != nil {
				return nil, err
			}
			continue
		}

		tag, overridden := tags[i+5]
		if overridden {
			if _, err := definitions.ResolveTag(tag); err != nil {
				return nil, err
			}
		} else {
			if i >= len(oldTags) {
				return nil, fmt.Errorf("reshape: no tag given for new dimension dim_%d", i+5)
			}
			tag = oldTags[i]
		}

		if i < stable {
			d := ext.Dim(i)
			if d.Tag == tag {
				if err := ext.SetDim(i, d); err != nil {
					return nil, err
				}
				continue
			}
		}
		if err := ext.SetDimTag(i, ""); err != nil {
			return nil, err
		}
		if err := ext.SetDimTag(i, tag); err != nil {
			return nil, err
		}
	}

	return mrs.NewUnchecked(data, m.Header(), ext), nil
}

// resolveWildcard substitutes a single -1 entry so the element count
// matches.
func resolveWildcard(higher []int, count int) ([]int, error) {
	out := append([]int(nil), higher...)
	wild := -1
	known := 1
	for i, d := range out {
		switch {
		case d == -1:
			if wild >= 0 {
				return nil, &mrs.ShapeError{Op: "reshape", Msg: "only one dimension may be -1"}
			}
			wild = i
		case d < 1:
			return nil, &mrs.ShapeError{Op: "reshape", Msg: fmt.Sprintf("dimension length must be positive, got %d", d)}
		default:
			known *= d
		}
	}
	if wild >= 0 {
		if count%known != 0 {
			return nil, &mrs.ShapeError{
				Op:  "reshape",
				Msg: fmt.Sprintf("cannot infer -1: %d elements do not divide into %v", count, higher),
			}
		}
		out[wild] = count / known
		known *= out[wild]
	}
	if known != count {
		return nil, &mrs.ShapeError{
			Op:  "reshape",
			Msg: fmt.Sprintf("new shape %v holds %d elements but the data has %d", higher, known, count),
		}
	}
	return out, nil
}
