// Package tools implements the shape and metadata transforms on NIfTI-MRS
// objects: splitting and merging higher dimensions, reordering and
// reshaping them, and complex conjugation. Every operation returns new
// objects and leaves its inputs untouched, with the data shape and the
// header extension's dimension entries updated together.
package tools

import (
	"github.com/wtclarke/nifti-mrs-tools/pkg/mrs"
)

// Conjugate returns a copy with the complex conjugate of the data, for
// fixing data stored with the wrong frequency axis convention.
func Conjugate(m *mrs.NiftiMRS) *mrs.NiftiMRS {
	return m.Conjugate()
}
