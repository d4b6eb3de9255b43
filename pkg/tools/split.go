package tools

import (
	"fmt"

	"github.com/wtclarke/nifti-mrs-tools/pkg/hdrext"
	"github.com/wtclarke/nifti-mrs-tools/pkg/mrs"
)

// SplitAt divides the dimension carrying tag after the zero-based index:
// the first result holds entries 0..index, the second the rest. Both inputs
// are left untouched.
func SplitAt(m *mrs.NiftiMRS, tag string, index int) (*mrs.NiftiMRS, *mrs.NiftiMRS, error) {
	axis, err := m.DimPosition(tag)
	if err != nil {
		return nil, nil, err
	}
	n := m.Shape()[axis]
	if index < 0 || index >= n-1 {
		return nil, nil, &IndexError{
			Op:  "split",
			Msg: fmt.Sprintf("index must be in [0, %d) so both parts are non-empty, got %d", n-1, index),
		}
	}

	lowIdx := make([]int, index+1)
	for i := range lowIdx {
		lowIdx[i] = i
	}
	highIdx := make([]int, n-index-1)
	for i := range highIdx {
		highIdx[i] = index + 1 + i
	}

	low, err := m.Data().Take(axis, lowIdx)
	if err != nil {
		return nil, nil, err
	}
	high, err := m.Data().Take(axis, highIdx)
	if err != nil {
		return nil, nil, err
	}

	lowExt, highExt, err := splitDimHeader(m, axis, func(dv hdrext.DynamicValue) (hdrext.DynamicValue, hdrext.DynamicValue) {
		return dv.SplitAfter(n, index)
	})
	if err != nil {
		return nil, nil, err
	}

	return mrs.NewUnchecked(low, m.Header(), lowExt),
		mrs.NewUnchecked(high, m.Header(), highExt), nil
}

// SplitIndices extracts the entries at the given indices of the dimension
// carrying tag into the second result, preserving the order given; the
// first result holds the remainder in original order.
func SplitIndices(m *mrs.NiftiMRS, tag string, indices []int) (*mrs.NiftiMRS, *mrs.NiftiMRS, error) {
	axis, err := m.DimPosition(tag)
	if err != nil {
		return nil, nil, err
	}
	n := m.Shape()[axis]
	if len(indices) == 0 {
		return nil, nil, &IndexError{Op: "split", Msg: "no indices given"}
	}
	if len(indices) >= n {
		return nil, nil, &IndexError{
			Op:  "split",
			Msg: fmt.Sprintf("cannot extract %d of %d entries; the remainder would be empty", len(indices), n),
		}
	}
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, nil, &IndexError{
				Op:  "split",
				Msg: fmt.Sprintf("index %d out of range for dimension of length %d", idx, n),
			}
		}
		if seen[idx] {
			return nil, nil, &IndexError{Op: "split", Msg: fmt.Sprintf("duplicate index %d", idx)}
		}
		seen[idx] = true
	}

	selected, err := m.Data().Take(axis, indices)
	if err != nil {
		return nil, nil, err
	}
	remainder, err := m.Data().Delete(axis, indices)
	if err != nil {
		return nil, nil, err
	}

	remExt, selExt, err := splitDimHeader(m, axis, func(dv hdrext.DynamicValue) (hdrext.DynamicValue, hdrext.DynamicValue) {
		return dv.Extract(n, indices)
	})
	if err != nil {
		return nil, nil, err
	}

	return mrs.NewUnchecked(remainder, m.Header(), remExt),
		mrs.NewUnchecked(selected, m.Header(), selExt), nil
}

// splitDimHeader builds the two result extensions, applying fn to every
// per-dimension header entry of the split axis.
func splitDimHeader(m *mrs.NiftiMRS, axis int, fn func(hdrext.DynamicValue) (hdrext.DynamicValue, hdrext.DynamicValue)) (*hdrext.HeaderExtension, *hdrext.HeaderExtension, error) {
	first := m.HeaderExt()
	second := m.HeaderExt()
	d := first.Dim(axis - 4)
	if d.Header == nil {
		return first, second, nil
	}
	h1 := make(map[string]hdrext.DynamicValue, len(d.Header))
	h2 := make(map[string]hdrext.DynamicValue, len(d.Header))
	for k, dv := range d.Header {
		a, b := fn(dv)
		h1[k] = a
		h2[k] = b
	}
	d1 := d.Copy()
	d1.Header = h1
	d2 := d.Copy()
	d2.Header = h2
	// SetDim refuses unrecognised tags, which an unvalidated input can
	// still carry.
	if err := first.SetDim(axis-4, d1); err != nil {
		return nil, nil, err
	}
	if err := second.SetDim(axis-4, d2); err != nil {
		return nil, nil, err
	}
	return first, second, nil
}
