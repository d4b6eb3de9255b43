// Package ndarray provides a row-major N-dimensional complex array with the
// axis operations needed to manipulate NIfTI-MRS data blocks: selecting and
// deleting indices along an axis, concatenation, permutation, reshaping and
// conjugation.
package ndarray

import (
	"fmt"
)

// Array is an N-dimensional complex-valued array stored in row-major order
// (last axis varies fastest).
type Array struct {
	// data holds the elements as a flat slice in row-major order
	data []complex128

	// shape holds the length of each axis
	shape []int
}

// New creates a zero-filled array with the given shape.
// All axis lengths must be positive.
func New(shape ...int) *Array {
	size := 1
	for _, s := range shape {
		if s <= 0 {
			panic(fmt.Sprintf("ndarray: invalid axis length %d", s))
		}
		size *= s
	}
	return &Array{
		data:  make([]complex128, size),
		shape: append([]int(nil), shape...),
	}
}

// FromSlice creates an array with the given shape, copying the provided data.
// The data length must equal the product of the shape.
func FromSlice(data []complex128, shape ...int) (*Array, error) {
	size := 1
	for _, s := range shape {
		if s <= 0 {
			return nil, fmt.Errorf("ndarray: invalid axis length %d", s)
		}
		size *= s
	}
	if len(data) != size {
		return nil, fmt.Errorf("ndarray: data length %d does not match shape %v (size %d)", len(data), shape, size)
	}
	return &Array{
		data:  append([]complex128(nil), data...),
		shape: append([]int(nil), shape...),
	}, nil
}

// Wrap creates an array sharing the provided buffer. Mutating the returned
// array mutates the buffer and vice versa; use FromSlice for an owned copy.
func Wrap(data []complex128, shape ...int) (*Array, error) {
	size := 1
	for _, s := range shape {
		if s <= 0 {
			return nil, fmt.Errorf("ndarray: invalid axis length %d", s)
		}
		size *= s
	}
	if len(data) != size {
		return nil, fmt.Errorf("ndarray: data length %d does not match shape %v (size %d)", len(data), shape, size)
	}
	return &Array{data: data, shape: append([]int(nil), shape...)}, nil
}

// NDim returns the number of axes.
func (a *Array) NDim() int { return len(a.shape) }

// Shape returns a copy of the axis lengths.
func (a *Array) Shape() []int { return append([]int(nil), a.shape...) }

// Size returns the total number of elements.
func (a *Array) Size() int { return len(a.data) }

// Data returns the underlying buffer. The slice is shared with the array;
// callers must not assume ownership unless they created the array via Wrap.
func (a *Array) Data() []complex128 { return a.data }

// Copy returns a deep copy of the array.
func (a *Array) Copy() *Array {
	return &Array{
		data:  append([]complex128(nil), a.data...),
		shape: append([]int(nil), a.shape...),
	}
}

// strides returns the row-major stride of each axis.
func (a *Array) strides() []int {
	st := make([]int, len(a.shape))
	acc := 1
	for i := len(a.shape) - 1; i >= 0; i-- {
		st[i] = acc
		acc *= a.shape[i]
	}
	return st
}

// offset converts a multi-index into a flat buffer offset.
func (a *Array) offset(idx []int) int {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("ndarray: index rank %d does not match array rank %d", len(idx), len(a.shape)))
	}
	off := 0
	st := a.strides()
	for i, x := range idx {
		if x < 0 || x >= a.shape[i] {
			panic(fmt.Sprintf("ndarray: index %d out of range for axis %d (length %d)", x, i, a.shape[i]))
		}
		off += x * st[i]
	}
	return off
}

// At returns the element at the given multi-index.
func (a *Array) At(idx ...int) complex128 { return a.data[a.offset(idx)] }

// Set stores v at the given multi-index.
func (a *Array) Set(v complex128, idx ...int) { a.data[a.offset(idx)] = v }

// blockSizes returns the number of element blocks before the axis (outer) and
// the number of contiguous elements per index of the axis (inner).
func (a *Array) blockSizes(axis int) (outer, inner int) {
	outer, inner = 1, 1
	for i := 0; i < axis; i++ {
		outer *= a.shape[i]
	}
	for i := axis + 1; i < len(a.shape); i++ {
		inner *= a.shape[i]
	}
	return outer, inner
}

func (a *Array) checkAxis(axis int) error {
	if axis < 0 || axis >= len(a.shape) {
		return fmt.Errorf("ndarray: axis %d out of range for rank %d", axis, len(a.shape))
	}
	return nil
}

// Take returns a new array containing the given indices along the axis, in
// the order supplied. Indices may not repeat.
func (a *Array) Take(axis int, indices []int) (*Array, error) {
	if err := a.checkAxis(axis); err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("ndarray: no indices to take along axis %d", axis)
	}
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= a.shape[axis] {
			return nil, fmt.Errorf("ndarray: index %d out of range for axis %d (length %d)", idx, axis, a.shape[axis])
		}
		if seen[idx] {
			return nil, fmt.Errorf("ndarray: duplicate index %d for axis %d", idx, axis)
		}
		seen[idx] = true
	}

	newShape := a.Shape()
	newShape[axis] = len(indices)
	out := New(newShape...)

	outer, inner := a.blockSizes(axis)
	pos := 0
	for o := 0; o < outer; o++ {
		for _, idx := range indices {
			src := (o*a.shape[axis] + idx) * inner
			copy(out.data[pos:pos+inner], a.data[src:src+inner])
			pos += inner
		}
	}
	return out, nil
}

// Delete returns a new array with the given indices removed from the axis.
// At least one index must remain.
func (a *Array) Delete(axis int, indices []int) (*Array, error) {
	if err := a.checkAxis(axis); err != nil {
		return nil, err
	}
	drop := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= a.shape[axis] {
			return nil, fmt.Errorf("ndarray: index %d out of range for axis %d (length %d)", idx, axis, a.shape[axis])
		}
		drop[idx] = true
	}
	keep := make([]int, 0, a.shape[axis]-len(drop))
	for i := 0; i < a.shape[axis]; i++ {
		if !drop[i] {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("ndarray: cannot delete every index of axis %d", axis)
	}
	return a.Take(axis, keep)
}

// Concat concatenates the arrays along the axis. All arrays must agree on
// every other axis length.
func Concat(axis int, arrays ...*Array) (*Array, error) {
	if len(arrays) == 0 {
		return nil, fmt.Errorf("ndarray: nothing to concatenate")
	}
	first := arrays[0]
	if err := first.checkAxis(axis); err != nil {
		return nil, err
	}
	total := 0
	for i, arr := range arrays {
		if arr.NDim() != first.NDim() {
			return nil, fmt.Errorf("ndarray: rank mismatch in concatenation: %d vs %d", arr.NDim(), first.NDim())
		}
		for ax := range arr.shape {
			if ax != axis && arr.shape[ax] != first.shape[ax] {
				return nil, fmt.Errorf("ndarray: shape mismatch on axis %d of input %d: %d vs %d", ax, i, arr.shape[ax], first.shape[ax])
			}
		}
		total += arr.shape[axis]
	}

	newShape := first.Shape()
	newShape[axis] = total
	out := New(newShape...)

	outer, inner := first.blockSizes(axis)
	pos := 0
	for o := 0; o < outer; o++ {
		for _, arr := range arrays {
			n := arr.shape[axis] * inner
			src := o * n
			copy(out.data[pos:pos+n], arr.data[src:src+n])
			pos += n
		}
	}
	return out, nil
}

// Transpose permutes the axes so that result axis i is source axis perm[i].
// perm must be a permutation of [0, rank).
func (a *Array) Transpose(perm []int) (*Array, error) {
	if len(perm) != len(a.shape) {
		return nil, fmt.Errorf("ndarray: permutation length %d does not match rank %d", len(perm), len(a.shape))
	}
	seen := make([]bool, len(perm))
	for _, p := range perm {
		if p < 0 || p >= len(perm) || seen[p] {
			return nil, fmt.Errorf("ndarray: invalid permutation %v", perm)
		}
		seen[p] = true
	}

	newShape := make([]int, len(perm))
	srcStrides := a.strides()
	permStrides := make([]int, len(perm))
	for i, p := range perm {
		newShape[i] = a.shape[p]
		permStrides[i] = srcStrides[p]
	}

	out := New(newShape...)
	ndim := len(perm)
	idx := make([]int, ndim)
	srcOff := 0
	for pos := range out.data {
		out.data[pos] = a.data[srcOff]
		// Advance the multi-index in row-major order, carrying between axes.
		for ax := ndim - 1; ax >= 0; ax-- {
			idx[ax]++
			srcOff += permStrides[ax]
			if idx[ax] < newShape[ax] {
				break
			}
			idx[ax] = 0
			srcOff -= permStrides[ax] * newShape[ax]
		}
	}
	return out, nil
}

// Reshape returns a copy of the array with a new shape. The element count
// must be unchanged; raw row-major data ordering is preserved.
func (a *Array) Reshape(shape ...int) (*Array, error) {
	size := 1
	for _, s := range shape {
		if s <= 0 {
			return nil, fmt.Errorf("ndarray: invalid axis length %d", s)
		}
		size *= s
	}
	if size != len(a.data) {
		return nil, fmt.Errorf("ndarray: cannot reshape %v (size %d) into %v (size %d)", a.shape, len(a.data), shape, size)
	}
	return &Array{
		data:  append([]complex128(nil), a.data...),
		shape: append([]int(nil), shape...),
	}, nil
}

// ExpandDims returns a copy of the array with a singleton axis inserted at
// the given position (0 <= axis <= rank).
func (a *Array) ExpandDims(axis int) (*Array, error) {
	if axis < 0 || axis > len(a.shape) {
		return nil, fmt.Errorf("ndarray: cannot insert axis at %d for rank %d", axis, len(a.shape))
	}
	newShape := make([]int, 0, len(a.shape)+1)
	newShape = append(newShape, a.shape[:axis]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, a.shape[axis:]...)
	return a.Reshape(newShape...)
}

// Squeeze returns a copy of the array with the given singleton axis removed.
func (a *Array) Squeeze(axis int) (*Array, error) {
	if err := a.checkAxis(axis); err != nil {
		return nil, err
	}
	if a.shape[axis] != 1 {
		return nil, fmt.Errorf("ndarray: axis %d has length %d, cannot squeeze", axis, a.shape[axis])
	}
	newShape := make([]int, 0, len(a.shape)-1)
	newShape = append(newShape, a.shape[:axis]...)
	newShape = append(newShape, a.shape[axis+1:]...)
	return a.Reshape(newShape...)
}

// Conj returns a new array with every element complex-conjugated.
func (a *Array) Conj() *Array {
	out := a.Copy()
	out.ConjInPlace()
	return out
}

// ConjInPlace conjugates every element in place.
func (a *Array) ConjInPlace() {
	for i, v := range a.data {
		a.data[i] = complex(real(v), -imag(v))
	}
}

// Equal reports whether the arrays have identical shape and elements.
func (a *Array) Equal(b *Array) bool {
	if a.NDim() != b.NDim() {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return false
		}
	}
	for i := range a.data {
		if a.data[i] != b.data[i] {
			return false
		}
	}
	return true
}
