package nifti

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

var nifti2Magic = [8]byte{'n', '+', '2', 0, '\r', '\n', 0x1a, '\n'}

// WriteFile writes the file to disk as little-endian NIfTI-2 with complex128
// voxels, gzip-compressing when the path ends in .gz.
func (f *File) WriteFile(path string) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	var w io.Writer = fh
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(fh)
		defer gz.Close()
		w = gz
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Write encodes the file as an uncompressed little-endian NIfTI-2 stream.
func (f *File) Write(w io.Writer) error {
	if f.Data == nil {
		return fmt.Errorf("no voxel data to write")
	}
	shape := f.Data.Shape()
	if len(shape) < 1 || len(shape) > 7 {
		return fmt.Errorf("data rank must be between 1 and 7, got %d", len(shape))
	}

	payloads, totalExt := encodeExtensions(f.Extensions)
	voxOffset := int64(nifti2HeaderSize + 4 + totalExt)

	h := nifti2Header{
		SizeOfHdr: nifti2HeaderSize,
		Magic:     nifti2Magic,
		Datatype:  DTComplex128,
		BitPix:    128,
		VoxOffset: voxOffset,
		SclSlope:  1,
		PixDim:    f.Header.PixDim,
		// The grid orientation is carried in the sform alone.
		SFormCode:  2,
		QFormCode:  0,
		SRowX:      f.Header.Affine[0],
		SRowY:      f.Header.Affine[1],
		SRowZ:      f.Header.Affine[2],
		XYZTUnits:  f.Header.XYZTUnits,
		IntentCode: f.Header.IntentCode,
	}
	if h.PixDim[0] == 0 {
		h.PixDim[0] = 1
	}
	h.Dim[0] = int64(len(shape))
	for i := range h.Dim[1:] {
		h.Dim[i+1] = 1
	}
	for i, d := range shape {
		h.Dim[i+1] = int64(d)
	}
	copy(h.IntentName[:], f.Header.IntentName)
	copy(h.Descrip[:], f.Header.Descrip)

	order := binary.LittleEndian
	if err := binary.Write(w, order, &h); err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}

	extender := [4]byte{}
	if len(payloads) > 0 {
		extender[0] = 1
	}
	if _, err := w.Write(extender[:]); err != nil {
		return err
	}
	for _, p := range payloads {
		if err := binary.Write(w, order, p.esize); err != nil {
			return err
		}
		if err := binary.Write(w, order, p.ecode); err != nil {
			return err
		}
		if _, err := w.Write(p.body); err != nil {
			return err
		}
	}

	vals, err := rowMajorToFortran(f.Data)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	buf := make([]byte, 16)
	for _, v := range vals {
		order.PutUint64(buf[0:], math.Float64bits(real(v)))
		order.PutUint64(buf[8:], math.Float64bits(imag(v)))
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

type encodedExt struct {
	esize int32
	ecode int32
	body  []byte
}

// encodeExtensions pads each extension payload so esize (payload plus the
// eight byte size/code prefix) is a multiple of 16, as the standard requires.
func encodeExtensions(exts []Extension) ([]encodedExt, int) {
	out := make([]encodedExt, 0, len(exts))
	total := 0
	for _, e := range exts {
		esize := 8 + len(e.Data)
		if rem := esize % 16; rem != 0 {
			esize += 16 - rem
		}
		body := make([]byte, esize-8)
		copy(body, e.Data)
		out = append(out, encodedExt{esize: int32(esize), ecode: e.Code, body: body})
		total += esize
	}
	return out, total
}

