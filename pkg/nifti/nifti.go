// Package nifti reads and writes the NIfTI container format used by
// NIfTI-MRS files. It supports both NIfTI-1 (348 byte header) and NIfTI-2
// (540 byte header) input in either byte order, transparent gzip
// compression, header extensions, and complex-valued voxel data. Output is
// always written as little-endian NIfTI-2 with complex128 data.
//
// Voxel data is stored on disk in Fortran (column-major) order; this package
// converts to and from the row-major layout used in memory so callers index
// arrays as data[x][y][z][t][...].
package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/wtclarke/nifti-mrs-tools/internal/ndarray"
)

// Datatype codes from the NIfTI standard for the voxel types this package
// handles.
const (
	DTFloat32    = 16
	DTComplex64  = 32
	DTFloat64    = 64
	DTComplex128 = 1792
)

// Extension codes relevant to MRS data.
const (
	// ExtCodeMRS is the registered NIfTI extension code for the NIfTI-MRS
	// JSON header extension.
	ExtCodeMRS = 44
)

// Unit codes stored in xyzt_units.
const (
	UnitsMM  = 2
	UnitsSec = 8
)

const (
	nifti1HeaderSize = 348
	nifti2HeaderSize = 540
)

// nifti1Header is the packed on-disk NIfTI-1 header.
type nifti1Header struct {
	SizeOfHdr      int32
	DataTypeUnused [10]byte
	DBName         [18]byte
	Extents        int32
	SessionError   int16
	Regular        byte
	DimInfo        byte
	Dim            [8]int16
	IntentP1       float32
	IntentP2       float32
	IntentP3       float32
	IntentCode     int16
	Datatype       int16
	BitPix         int16
	SliceStart     int16
	PixDim         [8]float32
	VoxOffset      float32
	SclSlope       float32
	SclInter       float32
	SliceEnd       int16
	SliceCode      byte
	XYZTUnits      byte
	CalMax         float32
	CalMin         float32
	SliceDuration  float32
	TOffset        float32
	GlMax          int32
	GlMin          int32
	Descrip        [80]byte
	AuxFile        [24]byte
	QFormCode      int16
	SFormCode      int16
	QuaternB       float32
	QuaternC       float32
	QuaternD       float32
	QOffsetX       float32
	QOffsetY       float32
	QOffsetZ       float32
	SRowX          [4]float32
	SRowY          [4]float32
	SRowZ          [4]float32
	IntentName     [16]byte
	Magic          [4]byte
}

// nifti2Header is the packed on-disk NIfTI-2 header.
type nifti2Header struct {
	SizeOfHdr     int32
	Magic         [8]byte
	Datatype      int16
	BitPix        int16
	Dim           [8]int64
	IntentP1      float64
	IntentP2      float64
	IntentP3      float64
	PixDim        [8]float64
	VoxOffset     int64
	SclSlope      float64
	SclInter      float64
	CalMax        float64
	CalMin        float64
	SliceDuration float64
	TOffset       float64
	SliceStart    int64
	SliceEnd      int64
	Descrip       [80]byte
	AuxFile       [24]byte
	QFormCode     int32
	SFormCode     int32
	QuaternB      float64
	QuaternC      float64
	QuaternD      float64
	QOffsetX      float64
	QOffsetY      float64
	QOffsetZ      float64
	SRowX         [4]float64
	SRowY         [4]float64
	SRowZ         [4]float64
	SliceCode     int32
	XYZTUnits     int32
	IntentCode    int32
	IntentName    [16]byte
	DimInfo       byte
	Unused        [15]byte
}

// Extension is one raw NIfTI header extension.
type Extension struct {
	// Code identifies the extension format, e.g. ExtCodeMRS for the
	// NIfTI-MRS JSON blob.
	Code int32

	// Data is the extension payload with trailing NUL padding removed.
	Data []byte
}

// Header carries the container metadata this library works with, decoded
// from either header version.
type Header struct {
	// PixDim holds the grid spacings; index 4 is the dwell time in seconds.
	PixDim [8]float64

	// Affine is the voxel-to-world transform, from the sform when present
	// and the qform otherwise.
	Affine [4][4]float64

	// IntentName identifies the format version, e.g. "mrs_v0_7".
	IntentName string

	// IntentCode, XYZTUnits and the form codes are carried through so a
	// rewrite preserves them.
	IntentCode int32
	XYZTUnits  int32
	QFormCode  int32
	SFormCode  int32

	// Descrip is the free-text description field.
	Descrip string
}

// File is a decoded NIfTI file: container header, shape, extensions and the
// voxel data in row-major order.
type File struct {
	Header     Header
	Shape      []int
	Data       *ndarray.Array
	Extensions []Extension
}

// Extension returns the first extension carrying the given code.
func (f *File) Extension(code int32) (Extension, bool) {
	for _, e := range f.Extensions {
		if e.Code == code {
			return e, true
		}
	}
	return Extension{}, false
}

// ReadFile reads a NIfTI file from disk, decompressing .nii.gz content
// transparently.
func ReadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	f, err := Read(fh)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return f, nil
}

// Read decodes a NIfTI-1 or NIfTI-2 stream, gzip-compressed or not.
func Read(r io.Reader) (*File, error) {
	br, err := maybeGunzip(r)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(br)
	if err != nil {
		return nil, err
	}
	if len(raw) < 4 {
		return nil, fmt.Errorf("file too short to be a NIfTI file")
	}

	order, version, err := sniffHeader(raw[:4])
	if err != nil {
		return nil, err
	}

	var hdr Header
	var datatype int16
	var dim [8]int64
	var voxOffset int64
	switch version {
	case 1:
		var h1 nifti1Header
		if err := binary.Read(bytes.NewReader(raw), order, &h1); err != nil {
			return nil, fmt.Errorf("decoding NIfTI-1 header: %w", err)
		}
		hdr, datatype, dim, voxOffset = fromNifti1(&h1)
	case 2:
		var h2 nifti2Header
		if err := binary.Read(bytes.NewReader(raw), order, &h2); err != nil {
			return nil, fmt.Errorf("decoding NIfTI-2 header: %w", err)
		}
		hdr, datatype, dim, voxOffset = fromNifti2(&h2)
	}

	shape, err := shapeFromDim(dim)
	if err != nil {
		return nil, err
	}

	headerSize := nifti1HeaderSize
	if version == 2 {
		headerSize = nifti2HeaderSize
	}
	exts, err := readExtensions(raw, headerSize, voxOffset, order)
	if err != nil {
		return nil, err
	}

	data, err := readData(raw, voxOffset, datatype, order, shape)
	if err != nil {
		return nil, err
	}

	return &File{Header: hdr, Shape: shape, Data: data, Extensions: exts}, nil
}

// maybeGunzip wraps the reader in a gzip decoder when the stream starts with
// the gzip magic bytes.
func maybeGunzip(r io.Reader) (io.Reader, error) {
	br := newPeekReader(r)
	magic, err := br.peek(2)
	if err != nil {
		return nil, err
	}
	if magic[0] == 0x1f && magic[1] == 0x8b {
		return gzip.NewReader(br)
	}
	return br, nil
}

// sniffHeader determines byte order and header version from sizeof_hdr.
func sniffHeader(head []byte) (binary.ByteOrder, int, error) {
	le := binary.LittleEndian.Uint32(head)
	be := binary.BigEndian.Uint32(head)
	switch {
	case le == nifti1HeaderSize:
		return binary.LittleEndian, 1, nil
	case be == nifti1HeaderSize:
		return binary.BigEndian, 1, nil
	case le == nifti2HeaderSize:
		return binary.LittleEndian, 2, nil
	case be == nifti2HeaderSize:
		return binary.BigEndian, 2, nil
	}
	return nil, 0, fmt.Errorf("not a NIfTI file: unrecognised header size field")
}

func fromNifti1(h *nifti1Header) (Header, int16, [8]int64, int64) {
	var hdr Header
	for i := range h.PixDim {
		hdr.PixDim[i] = float64(h.PixDim[i])
	}
	hdr.IntentName = cString(h.IntentName[:])
	hdr.IntentCode = int32(h.IntentCode)
	hdr.XYZTUnits = int32(h.XYZTUnits)
	hdr.QFormCode = int32(h.QFormCode)
	hdr.SFormCode = int32(h.SFormCode)
	hdr.Descrip = cString(h.Descrip[:])
	if h.SFormCode > 0 {
		hdr.Affine = affineFromSRows(
			to64(h.SRowX), to64(h.SRowY), to64(h.SRowZ))
	} else if h.QFormCode > 0 {
		hdr.Affine = affineFromQuaternion(
			float64(h.QuaternB), float64(h.QuaternC), float64(h.QuaternD),
			float64(h.QOffsetX), float64(h.QOffsetY), float64(h.QOffsetZ),
			hdr.PixDim)
	} else {
		hdr.Affine = affineFromPixDim(hdr.PixDim)
	}

	var dim [8]int64
	for i, d := range h.Dim {
		dim[i] = int64(d)
	}
	return hdr, h.Datatype, dim, int64(h.VoxOffset)
}

func fromNifti2(h *nifti2Header) (Header, int16, [8]int64, int64) {
	var hdr Header
	hdr.PixDim = h.PixDim
	hdr.IntentName = cString(h.IntentName[:])
	hdr.IntentCode = h.IntentCode
	hdr.XYZTUnits = h.XYZTUnits
	hdr.QFormCode = h.QFormCode
	hdr.SFormCode = h.SFormCode
	hdr.Descrip = cString(h.Descrip[:])
	if h.SFormCode > 0 {
		hdr.Affine = affineFromSRows(h.SRowX, h.SRowY, h.SRowZ)
	} else if h.QFormCode > 0 {
		hdr.Affine = affineFromQuaternion(
			h.QuaternB, h.QuaternC, h.QuaternD,
			h.QOffsetX, h.QOffsetY, h.QOffsetZ, hdr.PixDim)
	} else {
		hdr.Affine = affineFromPixDim(hdr.PixDim)
	}
	return hdr, h.Datatype, h.Dim, h.VoxOffset
}

// shapeFromDim validates dim[0] and returns the shape as a Go slice.
func shapeFromDim(dim [8]int64) ([]int, error) {
	nd := int(dim[0])
	if nd < 1 || nd > 7 {
		return nil, fmt.Errorf("dim[0] must be between 1 and 7, got %d", nd)
	}
	shape := make([]int, nd)
	for i := 0; i < nd; i++ {
		d := dim[i+1]
		if d < 1 {
			return nil, fmt.Errorf("dim[%d] must be positive, got %d", i+1, d)
		}
		shape[i] = int(d)
	}
	return shape, nil
}

// readExtensions parses the extension list between the header and the voxel
// data.
func readExtensions(raw []byte, headerSize int, voxOffset int64, order binary.ByteOrder) ([]Extension, error) {
	if int64(len(raw)) < voxOffset || int64(headerSize)+4 > voxOffset {
		return nil, nil
	}
	extender := raw[headerSize : headerSize+4]
	if extender[0] == 0 {
		return nil, nil
	}
	var exts []Extension
	pos := int64(headerSize + 4)
	for pos+8 <= voxOffset {
		esize := int64(int32(order.Uint32(raw[pos:])))
		ecode := int32(order.Uint32(raw[pos+4:]))
		if esize < 8 || esize%16 != 0 {
			return nil, fmt.Errorf("invalid extension size %d at offset %d", esize, pos)
		}
		if pos+esize > voxOffset {
			return nil, fmt.Errorf("extension at offset %d overruns the voxel data", pos)
		}
		payload := bytes.TrimRight(raw[pos+8:pos+esize], "\x00")
		exts = append(exts, Extension{Code: ecode, Data: append([]byte(nil), payload...)})
		pos += esize
	}
	return exts, nil
}

// readData decodes the voxel block into a row-major complex array.
func readData(raw []byte, voxOffset int64, datatype int16, order binary.ByteOrder, shape []int) (*ndarray.Array, error) {
	n := 1
	for _, d := range shape {
		n *= d
	}
	var bytesPer int
	switch datatype {
	case DTFloat32:
		bytesPer = 4
	case DTComplex64, DTFloat64:
		bytesPer = 8
	case DTComplex128:
		bytesPer = 16
	default:
		return nil, fmt.Errorf("unsupported datatype %d; complex or float data expected", datatype)
	}
	need := voxOffset + int64(n*bytesPer)
	if int64(len(raw)) < need {
		return nil, fmt.Errorf("truncated voxel data: need %d bytes, have %d", need, len(raw))
	}
	block := raw[voxOffset:need]

	vals := make([]complex128, n)
	switch datatype {
	case DTFloat32:
		for i := 0; i < n; i++ {
			re := math.Float32frombits(order.Uint32(block[i*4:]))
			vals[i] = complex(float64(re), 0)
		}
	case DTFloat64:
		for i := 0; i < n; i++ {
			re := math.Float64frombits(order.Uint64(block[i*8:]))
			vals[i] = complex(re, 0)
		}
	case DTComplex64:
		for i := 0; i < n; i++ {
			re := math.Float32frombits(order.Uint32(block[i*8:]))
			im := math.Float32frombits(order.Uint32(block[i*8+4:]))
			vals[i] = complex(float64(re), float64(im))
		}
	case DTComplex128:
		for i := 0; i < n; i++ {
			re := math.Float64frombits(order.Uint64(block[i*16:]))
			im := math.Float64frombits(order.Uint64(block[i*16+8:]))
			vals[i] = complex(re, im)
		}
	}
	return fortranToRowMajor(vals, shape)
}

// fortranToRowMajor reinterprets a column-major value stream as a row-major
// array of the given shape.
func fortranToRowMajor(vals []complex128, shape []int) (*ndarray.Array, error) {
	rev := reversed(shape)
	arr, err := ndarray.Wrap(vals, rev...)
	if err != nil {
		return nil, err
	}
	return arr.Transpose(reversedPerm(len(shape)))
}

// rowMajorToFortran serialises a row-major array as a column-major value
// stream.
func rowMajorToFortran(arr *ndarray.Array) ([]complex128, error) {
	t, err := arr.Transpose(reversedPerm(arr.NDim()))
	if err != nil {
		return nil, err
	}
	return t.Data(), nil
}

func reversed(shape []int) []int {
	out := make([]int, len(shape))
	for i, d := range shape {
		out[len(shape)-1-i] = d
	}
	return out
}

func reversedPerm(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = n - 1 - i
	}
	return out
}

func to64(in [4]float32) [4]float64 {
	var out [4]float64
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func affineFromSRows(x, y, z [4]float64) [4][4]float64 {
	var a [4][4]float64
	a[0], a[1], a[2] = x, y, z
	a[3] = [4]float64{0, 0, 0, 1}
	return a
}

// affineFromQuaternion rebuilds the rotation matrix from the qform
// quaternion parameters. pixdim[0] carries qfac, the handedness of the grid.
func affineFromQuaternion(b, c, d, ox, oy, oz float64, pixdim [8]float64) [4][4]float64 {
	aa := 1 - b*b - c*c - d*d
	if aa < 0 {
		aa = 0
	}
	a := math.Sqrt(aa)

	qfac := 1.0
	if pixdim[0] < 0 {
		qfac = -1.0
	}

	rot := mat.NewDense(3, 3, []float64{
		a*a + b*b - c*c - d*d, 2 * (b*c - a*d), 2 * (b*d + a*c),
		2 * (b*c + a*d), a*a + c*c - b*b - d*d, 2 * (c*d - a*b),
		2 * (b*d - a*c), 2 * (c*d + a*b), a*a + d*d - c*c - b*b,
	})
	scale := mat.NewDiagDense(3, []float64{pixdim[1], pixdim[2], pixdim[3] * qfac})
	var rs mat.Dense
	rs.Mul(rot, scale)

	var m [4][4]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = rs.At(i, j)
		}
	}
	m[0][3], m[1][3], m[2][3] = ox, oy, oz
	m[3] = [4]float64{0, 0, 0, 1}
	return m
}

func affineFromPixDim(pixdim [8]float64) [4][4]float64 {
	var m [4][4]float64
	m[0][0], m[1][1], m[2][2], m[3][3] = pixdim[1], pixdim[2], pixdim[3], 1
	return m
}

// cString trims a fixed-size NUL padded byte field.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimRight(string(b), " ")
}

// peekReader lets maybeGunzip inspect the first bytes of a stream without
// consuming them.
type peekReader struct {
	r    io.Reader
	head []byte
}

func newPeekReader(r io.Reader) *peekReader { return &peekReader{r: r} }

func (p *peekReader) peek(n int) ([]byte, error) {
	for len(p.head) < n {
		buf := make([]byte, n-len(p.head))
		m, err := p.r.Read(buf)
		p.head = append(p.head, buf[:m]...)
		if err != nil {
			return nil, err
		}
	}
	return p.head[:n], nil
}

func (p *peekReader) Read(b []byte) (int, error) {
	if len(p.head) > 0 {
		n := copy(b, p.head)
		p.head = p.head[n:]
		return n, nil
	}
	return p.r.Read(b)
}
