package tools

import (
	"fmt"
	"reflect"

	log "github.com/sirupsen/logrus"

	"github.com/wtclarke/nifti-mrs-tools/internal/ndarray"
	"github.com/wtclarke/nifti-mrs-tools/pkg/hdrext"
	"github.com/wtclarke/nifti-mrs-tools/pkg/mrs"
	"github.com/wtclarke/nifti-mrs-tools/pkg/validator"
)

// Merge concatenates two or more objects along the dimension carrying tag.
// Every input must carry the tag at the same position, agree in shape on
// every other axis and carry identical metadata outside the merge
// dimension's header.
//
// Merge-dimension header entries are concatenated key by key. A key missing
// from any input is dropped from the result; if any input has no header at
// all for the merge dimension the result has none either.
func Merge(tag string, parts ...*mrs.NiftiMRS) (*mrs.NiftiMRS, error) {
	if len(parts) < 2 {
		return nil, fmt.Errorf("merge needs at least two inputs, got %d", len(parts))
	}

	first := parts[0]
	axis, err := first.DimPosition(tag)
	if err != nil {
		return nil, err
	}

	refShape := first.Shape()
	refTags := first.DimTags()
	refMeta := metadataWithoutDimHeader(first, axis)

	arrays := make([]*ndarray.Array, len(parts))
	lengths := make([]int, len(parts))
	for i, p := range parts {
		pAxis, err := p.DimPosition(tag)
		if err != nil {
			return nil, err
		}
		if pAxis != axis {
			return nil, mergeError(fmt.Sprintf("input %d carries %s at dim_%d, input 0 at dim_%d", i, tag, pAxis+1, axis+1))
		}
		if !reflect.DeepEqual(p.DimTags(), refTags) {
			return nil, mergeError(fmt.Sprintf("input %d has dimension tags %v, input 0 has %v", i, p.DimTags(), refTags))
		}
		shape := p.Shape()
		if len(shape) != len(refShape) {
			return nil, &mrs.ShapeError{Op: "merge", Msg: fmt.Sprintf("input %d has %d dimensions, input 0 has %d", i, len(shape), len(refShape))}
		}
		for ax, d := range shape {
			if ax != axis && d != refShape[ax] {
				return nil, &mrs.ShapeError{
					Op:  "merge",
					Msg: fmt.Sprintf("input %d has length %d on axis %d, input 0 has %d", i, d, ax, refShape[ax]),
				}
			}
		}
		if !reflect.DeepEqual(metadataWithoutDimHeader(p, axis), refMeta) {
			return nil, mergeError(fmt.Sprintf("input %d metadata differs from input 0 outside the merge dimension header", i))
		}
		arrays[i] = p.Data()
		lengths[i] = shape[axis]
	}

	data, err := ndarray.Concat(axis, arrays...)
	if err != nil {
		return nil, err
	}

	ext := first.HeaderExt()
	d := ext.Dim(axis - 4)
	d.Header = mergedDimHeader(parts, axis, lengths)
	if err := ext.SetDim(axis-4, d); err != nil {
		return nil, err
	}

	return mrs.NewUnchecked(data, first.Header(), ext), nil
}

// AddDimension returns a copy with a new trailing singleton dimension
// carrying tag, for building a merge dimension that none of the inputs has
// yet.
func AddDimension(m *mrs.NiftiMRS, tag string) (*mrs.NiftiMRS, error) {
	nd := m.NDim()
	if nd >= 7 {
		return nil, &mrs.ShapeError{Op: "add dimension", Msg: "data already has 7 dimensions"}
	}
	for _, t := range m.DimTags() {
		if t == tag {
			return nil, mergeError(fmt.Sprintf("tag %s is already present", tag))
		}
	}
	data, err := m.Data().ExpandDims(nd)
	if err != nil {
		return nil, err
	}
	ext := m.HeaderExt()
	if err := ext.SetDimensions(nd + 1); err != nil {
		return nil, err
	}
	if err := ext.SetDimTag(nd-4, tag); err != nil {
		return nil, err
	}
	return mrs.NewUnchecked(data, m.Header(), ext), nil
}

// metadataWithoutDimHeader is the comparison key for merge consistency: the
// serialised extension minus the merge dimension's header, plus the dwell
// time.
func metadataWithoutDimHeader(m *mrs.NiftiMRS, axis int) map[string]any {
	meta := m.HeaderExt().ToMap()
	delete(meta, fmt.Sprintf("dim_%d_header", axis+1))
	meta["__dwelltime"] = m.Dwelltime()
	return meta
}

// mergedDimHeader folds the merge-dimension headers of all inputs. Keys are
// kept only when every input provides them; otherwise they are dropped with
// a warning.
func mergedDimHeader(parts []*mrs.NiftiMRS, axis int, lengths []int) map[string]hdrext.DynamicValue {
	headers := make([]map[string]hdrext.DynamicValue, len(parts))
	for i, p := range parts {
		d := p.HeaderExt().Dim(axis - 4)
		if d.Header == nil {
			if i > 0 && headers[0] != nil {
				log.WithField("dim", axis+1).Warn("merge dimension header missing from an input, dropping it from the result")
			}
			return nil
		}
		headers[i] = d.Header
	}

	out := make(map[string]hdrext.DynamicValue, len(headers[0]))
	for key, dv := range headers[0] {
		merged := dv
		total := lengths[0]
		ok := true
		for i := 1; i < len(parts); i++ {
			other, present := headers[i][key]
			if !present {
				log.WithFields(log.Fields{
					"dim": axis + 1,
					"key": key,
				}).Warn("merge dimension header key missing from an input, dropping it from the result")
				ok = false
				break
			}
			merged = merged.MergeWith(other, total, lengths[i])
			total += lengths[i]
		}
		if ok {
			out[key] = merged
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mergeError(msg string) error {
	return &validator.ValidationError{Issues: []validator.Issue{{
		Severity: validator.SeverityError,
		Field:    "merge",
		Message:  msg,
	}}}
}
