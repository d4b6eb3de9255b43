package ndarray

import (
	"testing"
)

// seq builds an array of the given shape filled with 0, 1, 2, ... in
// row-major order. Imaginary parts mirror the real parts negated so that
// conjugation tests have something to flip.
func seq(shape ...int) *Array {
	a := New(shape...)
	for i := range a.data {
		a.data[i] = complex(float64(i), -float64(i))
	}
	return a
}

func TestFromSlice(t *testing.T) {
	data := []complex128{1, 2, 3, 4, 5, 6}
	a, err := FromSlice(data, 2, 3)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	if a.Size() != 6 {
		t.Errorf("Expected size 6, got %d", a.Size())
	}
	if a.At(1, 2) != 6 {
		t.Errorf("Expected element (1,2)=6, got %v", a.At(1, 2))
	}

	// The array owns a copy of the data
	data[0] = 99
	if a.At(0, 0) != 1 {
		t.Errorf("FromSlice should copy its input, got %v", a.At(0, 0))
	}

	if _, err := FromSlice(data, 4, 2); err == nil {
		t.Errorf("Expected error for mismatched data length")
	}
}

func TestWrapSharesBuffer(t *testing.T) {
	data := []complex128{1, 2, 3, 4}
	a, err := Wrap(data, 2, 2)
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}
	data[3] = 40
	if a.At(1, 1) != 40 {
		t.Errorf("Wrap should share the buffer, got %v", a.At(1, 1))
	}
}

func TestTake(t *testing.T) {
	a := seq(2, 4, 3)

	out, err := a.Take(1, []int{1, 3})
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	wantShape := []int{2, 2, 3}
	for i, s := range out.Shape() {
		if s != wantShape[i] {
			t.Fatalf("Expected shape %v, got %v", wantShape, out.Shape())
		}
	}
	// Element (0, 0, 0) of output is element (0, 1, 0) of input
	if out.At(0, 0, 0) != a.At(0, 1, 0) {
		t.Errorf("Expected %v, got %v", a.At(0, 1, 0), out.At(0, 0, 0))
	}
	if out.At(1, 1, 2) != a.At(1, 3, 2) {
		t.Errorf("Expected %v, got %v", a.At(1, 3, 2), out.At(1, 1, 2))
	}

	// Order of indices is preserved
	rev, err := a.Take(1, []int{3, 1})
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if rev.At(0, 0, 0) != a.At(0, 3, 0) {
		t.Errorf("Take should preserve index order")
	}

	if _, err := a.Take(1, []int{4}); err == nil {
		t.Errorf("Expected out of range error")
	}
	if _, err := a.Take(1, []int{1, 1}); err == nil {
		t.Errorf("Expected duplicate index error")
	}
}

func TestDelete(t *testing.T) {
	a := seq(2, 4, 3)
	out, err := a.Delete(1, []int{0, 2})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if out.Shape()[1] != 2 {
		t.Errorf("Expected axis length 2, got %d", out.Shape()[1])
	}
	if out.At(0, 0, 0) != a.At(0, 1, 0) {
		t.Errorf("Delete kept the wrong indices")
	}
	if _, err := a.Delete(1, []int{0, 1, 2, 3}); err == nil {
		t.Errorf("Expected error when deleting every index")
	}
}

func TestConcatInvertsTakeDelete(t *testing.T) {
	a := seq(2, 4, 3)

	first, err := a.Take(1, []int{0, 1})
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	second, err := a.Take(1, []int{2, 3})
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	merged, err := Concat(1, first, second)
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}
	if !merged.Equal(a) {
		t.Errorf("Concat of contiguous takes should reproduce the original")
	}

	// Mismatched off-axis shape is rejected
	bad := seq(2, 2, 4)
	if _, err := Concat(1, first, bad); err == nil {
		t.Errorf("Expected shape mismatch error")
	}
}

func TestTranspose(t *testing.T) {
	a := seq(2, 3, 4)
	out, err := a.Transpose([]int{2, 0, 1})
	if err != nil {
		t.Fatalf("Transpose failed: %v", err)
	}
	wantShape := []int{4, 2, 3}
	for i, s := range out.Shape() {
		if s != wantShape[i] {
			t.Fatalf("Expected shape %v, got %v", wantShape, out.Shape())
		}
	}
	if out.At(3, 1, 2) != a.At(1, 2, 3) {
		t.Errorf("Transposed element mismatch")
	}

	// A permutation followed by its inverse is the identity
	back, err := out.Transpose([]int{1, 2, 0})
	if err != nil {
		t.Fatalf("Transpose failed: %v", err)
	}
	if !back.Equal(a) {
		t.Errorf("Inverse permutation should restore the original array")
	}

	if _, err := a.Transpose([]int{0, 0, 1}); err == nil {
		t.Errorf("Expected invalid permutation error")
	}
}

func TestReshape(t *testing.T) {
	a := seq(2, 3, 4)
	out, err := a.Reshape(6, 4)
	if err != nil {
		t.Fatalf("Reshape failed: %v", err)
	}
	// Row-major data order is preserved
	for i := 0; i < a.Size(); i++ {
		if out.data[i] != a.data[i] {
			t.Fatalf("Reshape changed data ordering at %d", i)
		}
	}
	if _, err := a.Reshape(5, 5); err == nil {
		t.Errorf("Expected size mismatch error")
	}
}

func TestExpandSqueeze(t *testing.T) {
	a := seq(2, 3)
	up, err := a.ExpandDims(2)
	if err != nil {
		t.Fatalf("ExpandDims failed: %v", err)
	}
	if up.NDim() != 3 || up.Shape()[2] != 1 {
		t.Errorf("Expected trailing singleton, got shape %v", up.Shape())
	}
	down, err := up.Squeeze(2)
	if err != nil {
		t.Fatalf("Squeeze failed: %v", err)
	}
	if !down.Equal(a) {
		t.Errorf("Squeeze should invert ExpandDims")
	}
	if _, err := a.Squeeze(0); err == nil {
		t.Errorf("Expected error squeezing non-singleton axis")
	}
}

func TestConjIdempotentUnderDoubleApplication(t *testing.T) {
	a := seq(2, 3)
	twice := a.Conj().Conj()
	if !twice.Equal(a) {
		t.Errorf("Double conjugation should restore the original values")
	}
	if a.Conj().At(0, 1) != complex(1, 1) {
		t.Errorf("Conjugation should flip the imaginary sign")
	}
}
