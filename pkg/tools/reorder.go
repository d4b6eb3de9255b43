package tools

import (
	"fmt"

	"github.com/wtclarke/nifti-mrs-tools/pkg/definitions"
	"github.com/wtclarke/nifti-mrs-tools/pkg/hdrext"
	"github.com/wtclarke/nifti-mrs-tools/pkg/mrs"
)

// Reorder permutes the higher dimensions so their tags appear in the order
// given. Tags in dimOrder that the object does not carry are appended as
// new singleton dimensions; every tag the object does carry must appear in
// dimOrder.
func Reorder(m *mrs.NiftiMRS, dimOrder []string) (*mrs.NiftiMRS, error) {
	if len(dimOrder) > hdrext.MaxHigherDims {
		return nil, &mrs.ShapeError{
			Op:  "reorder",
			Msg: fmt.Sprintf("at most %d higher dimensions are supported, got %d", hdrext.MaxHigherDims, len(dimOrder)),
		}
	}
	seen := map[string]bool{}
	for _, tag := range dimOrder {
		if _, err := definitions.ResolveTag(tag); err != nil {
			return nil, err
		}
		if seen[tag] {
			return nil, fmt.Errorf("reorder: tag %s listed twice", tag)
		}
		seen[tag] = true
	}

	current := m.DimTags()
	position := make(map[string]int, len(current))
	for i, tag := range current {
		position[tag] = 4 + i
		if !seen[tag] {
			return nil, fmt.Errorf("reorder: the data carries %s but the new order omits it", tag)
		}
	}

	// Append singleton axes for tags new to the object
	data := m.Data()
	oldInfo := make(map[string]hdrext.DimInfo, len(dimOrder))
	ext := m.HeaderExt()
	for i, tag := range current {
		oldInfo[tag] = ext.Dim(i)
	}
	for _, tag := range dimOrder {
		if _, ok := position[tag]; ok {
			continue
		}
		expanded, err := data.ExpandDims(data.NDim())
		if err != nil {
			return nil, err
		}
		position[tag] = data.NDim()
		data = expanded
		oldInfo[tag] = hdrext.DimInfo{Tag: tag}
	}

	perm := make([]int, 4, 4+len(dimOrder))
	for i := range perm {
		perm[i] = i
	}
	for _, tag := range dimOrder {
		perm = append(perm, position[tag])
	}
	out, err := data.Transpose(perm)
	if err != nil {
		return nil, err
	}

	if err := ext.SetDimensions(4 + len(dimOrder)); err != nil {
		return nil, err
	}
	for i := 0; i < hdrext.MaxHigherDims; i++ {
		if i < len(dimOrder) {
			if err := ext.SetDim(i, oldInfo[dimOrder[i]]); err != nil {
				return nil, err
			}
		} else if err := ext.SetDimTag(i, ""); err != nil {
			return nil, err
		}
	}

	return mrs.NewUnchecked(out, m.Header(), ext), nil
}
