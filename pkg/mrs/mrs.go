// Package mrs is the core model of a NIfTI-MRS object: complex time-domain
// data of four to seven dimensions together with the NIfTI container header
// and the parsed JSON header extension.
//
// Objects are treated as immutable by the transforming operations in the
// tools package: every transform returns a new object and leaves its inputs
// untouched. The small mutators on NiftiMRS itself (metadata edits, tag
// assignment) operate in place.
package mrs

import (
	"fmt"
	"regexp"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/wtclarke/nifti-mrs-tools/internal/ndarray"
	"github.com/wtclarke/nifti-mrs-tools/pkg/definitions"
	"github.com/wtclarke/nifti-mrs-tools/pkg/hdrext"
	"github.com/wtclarke/nifti-mrs-tools/pkg/nifti"
	"github.com/wtclarke/nifti-mrs-tools/pkg/validator"
)

// NiftiMRS is one in-memory NIfTI-MRS object.
type NiftiMRS struct {
	data     *ndarray.Array
	hdr      nifti.Header
	ext      *hdrext.HeaderExtension
	filename string
}

type options struct {
	validate  bool
	swTol     float64
	conjugate bool
	filename  string
}

// Option adjusts construction behaviour.
type Option func(*options)

func defaultOptions() options {
	return options{
		validate:  true,
		swTol:     validator.DefaultSpectralWidthTol,
		conjugate: true,
	}
}

// WithoutValidation skips the format checks on construction. Save still
// validates before writing.
func WithoutValidation() Option {
	return func(o *options) { o.validate = false }
}

// WithSpectralWidthTolerance overrides the relative tolerance used when the
// header declares a SpectralWidth.
func WithSpectralWidthTolerance(tol float64) Option {
	return func(o *options) { o.swTol = tol }
}

// WithNoConjugate disables the complex conjugation Generate applies to match
// the standard's frequency axis convention.
func WithNoConjugate() Option {
	return func(o *options) { o.conjugate = false }
}

// WithFilename records the originating file name on the object.
func WithFilename(name string) Option {
	return func(o *options) { o.filename = name }
}

// New builds an object from a decoded NIfTI file. The file must carry the
// MRS header extension; its content is deep-copied so the source file can be
// reused.
func New(f *nifti.File, opts ...Option) (*NiftiMRS, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	raw, ok := f.Extension(nifti.ExtCodeMRS)
	if !ok {
		return nil, &NotNiftiMRSError{Path: o.filename, Msg: "no header extension with code 44"}
	}
	ext, err := hdrext.FromJSON(raw.Data, len(f.Shape))
	if err != nil {
		return nil, err
	}
	if _, _, err := parseIntent(f.Header.IntentName); err != nil {
		return nil, &NotNiftiMRSError{Path: o.filename, Msg: err.Error()}
	}

	m := &NiftiMRS{
		data:     f.Data.Copy(),
		hdr:      f.Header,
		ext:      ext,
		filename: o.filename,
	}
	if o.validate {
		if err := m.validate(o.swTol); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewUnchecked assembles an object from parts without copying or
// validation. The caller keeps the invariants.
func NewUnchecked(data *ndarray.Array, hdr nifti.Header, ext *hdrext.HeaderExtension) *NiftiMRS {
	return &NiftiMRS{data: data, hdr: hdr, ext: ext}
}

// FromParts builds an object from data, container header and extension,
// deep-copying and validating like New.
func FromParts(data *ndarray.Array, hdr nifti.Header, ext *hdrext.HeaderExtension, opts ...Option) (*NiftiMRS, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	m := &NiftiMRS{
		data:     data.Copy(),
		hdr:      hdr,
		ext:      ext.Copy(),
		filename: o.filename,
	}
	if o.validate {
		if err := m.validate(o.swTol); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Load reads a NIfTI-MRS file from disk.
func Load(path string, opts ...Option) (*NiftiMRS, error) {
	f, err := nifti.ReadFile(path)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"path":  path,
		"shape": f.Shape,
	}).Debug("loaded NIfTI container")
	return New(f, append([]Option{WithFilename(path)}, opts...)...)
}

// intentPattern matches the version marker, e.g. mrs_v0_7.
var intentPattern = regexp.MustCompile(`^mrs_v(\d+)_(\d+)$`)

func parseIntent(name string) (major, minor int, err error) {
	m := intentPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, fmt.Errorf("intent_name %q does not identify an MRS format version", name)
	}
	major, _ = strconv.Atoi(m[1])
	minor, _ = strconv.Atoi(m[2])
	if major == 0 && minor < 2 {
		return 0, 0, fmt.Errorf("format version %d.%d predates the supported range", major, minor)
	}
	return major, minor, nil
}

func (m *NiftiMRS) validate(tol float64) error {
	v := &validator.Validator{SpectralWidthTol: tol}
	issues := v.Check(m.target())
	var errs []validator.Issue
	for _, iss := range issues {
		if iss.Severity == validator.SeverityError {
			errs = append(errs, iss)
			continue
		}
		log.WithField("field", iss.Field).Warn(iss.Message)
	}
	if len(errs) > 0 {
		return &validator.ValidationError{Issues: errs}
	}
	return nil
}

func (m *NiftiMRS) target() validator.Target {
	return validator.Target{
		Shape:      m.data.Shape(),
		Dwelltime:  m.hdr.PixDim[4],
		IntentName: m.hdr.IntentName,
		Ext:        m.ext,
	}
}

// Validate re-runs the format checks and returns every finding.
func (m *NiftiMRS) Validate() []validator.Issue {
	return validator.New().Check(m.target())
}

// Filename returns the path the object was loaded from, empty for objects
// built in memory.
func (m *NiftiMRS) Filename() string { return m.filename }

// Shape returns the data shape, x,y,z,time first.
func (m *NiftiMRS) Shape() []int { return m.data.Shape() }

// NDim returns the number of data dimensions (4..7).
func (m *NiftiMRS) NDim() int { return m.data.NDim() }

// Data returns the underlying array. Treat it as read-only; transforming
// operations return new objects.
func (m *NiftiMRS) Data() *ndarray.Array { return m.data }

// DataCopy returns an independent copy of the data.
func (m *NiftiMRS) DataCopy() *ndarray.Array { return m.data.Copy() }

// Header returns the NIfTI container header.
func (m *NiftiMRS) Header() nifti.Header { return m.hdr }

// HeaderExt returns a deep copy of the header extension. Use the mutators on
// NiftiMRS to change metadata so the consistency checks run.
func (m *NiftiMRS) HeaderExt() *hdrext.HeaderExtension { return m.ext.Copy() }

// Dwelltime returns the spectral sampling interval in seconds.
func (m *NiftiMRS) Dwelltime() float64 { return m.hdr.PixDim[4] }

// SetDwelltime updates the spectral sampling interval.
func (m *NiftiMRS) SetDwelltime(dt float64) error {
	if dt <= 0 || dt > 1 {
		return fmt.Errorf("dwell time must be in (0, 1] seconds, got %g", dt)
	}
	m.hdr.PixDim[4] = dt
	return nil
}

// SpectralWidth returns the reciprocal of the dwell time in Hz.
func (m *NiftiMRS) SpectralWidth() float64 { return 1.0 / m.hdr.PixDim[4] }

// SpectrometerFrequency returns the spectrometer frequencies in MHz.
func (m *NiftiMRS) SpectrometerFrequency() []float64 { return m.ext.SpectrometerFrequency() }

// Nucleus returns the resonant nucleus strings.
func (m *NiftiMRS) Nucleus() []string { return m.ext.ResonantNucleus() }

// Version returns the format version from the intent name.
func (m *NiftiMRS) Version() (major, minor int) {
	major, minor, _ = parseIntent(m.hdr.IntentName)
	return major, minor
}

// DimTags returns the tags of the higher dimensions actually present on the
// data, in axis order.
func (m *NiftiMRS) DimTags() []string {
	tags := m.ext.Tags()
	out := make([]string, 0, m.NDim()-4)
	for i := 0; i < m.NDim()-4; i++ {
		out = append(out, tags[i])
	}
	return out
}

// DimPosition returns the zero-based axis index of the dimension carrying
// the given tag.
func (m *NiftiMRS) DimPosition(tag string) (int, error) {
	for i, t := range m.DimTags() {
		if t == tag {
			return i + 4, nil
		}
	}
	avail := make([]string, 0, 3)
	for _, t := range m.DimTags() {
		if t != "" {
			avail = append(avail, t)
		}
	}
	return 0, &DimensionNotFoundError{Tag: tag, Available: avail}
}

// SetDimTag assigns the tag of NIfTI dimension dim (5..7). The dimension
// must exist on the data.
func (m *NiftiMRS) SetDimTag(dim int, tag string) error {
	if err := m.checkDimArg(dim); err != nil {
		return err
	}
	return m.ext.SetDimTag(dim-5, tag)
}

// SetDimInfo sets the free-text dim_N_info annotation.
func (m *NiftiMRS) SetDimInfo(dim int, info string) error {
	if err := m.checkDimArg(dim); err != nil {
		return err
	}
	d := m.ext.Dim(dim - 5)
	if d.Tag == "" {
		return fmt.Errorf("dim_%d has no tag; set the tag before the info string", dim)
	}
	d.Info = info
	return m.ext.SetDim(dim-5, d)
}

// SetDimHeader sets the per-dimension header of NIfTI dimension dim. Every
// explicit value list must match the dimension length.
func (m *NiftiMRS) SetDimHeader(dim int, header map[string]hdrext.DynamicValue) error {
	if err := m.checkDimArg(dim); err != nil {
		return err
	}
	d := m.ext.Dim(dim - 5)
	if d.Tag == "" {
		return fmt.Errorf("dim_%d has no tag; set the tag before the header", dim)
	}
	axisLen := m.Shape()[dim-1]
	for key, dv := range header {
		if l := dv.Len(); l >= 0 && l != axisLen {
			return &ShapeError{
				Op:  "set dim header",
				Msg: fmt.Sprintf("dim_%d_header entry %q has %d values but the dimension has length %d", dim, key, l, axisLen),
			}
		}
	}
	d.Header = header
	return m.ext.SetDim(dim-5, d)
}

func (m *NiftiMRS) checkDimArg(dim int) error {
	if dim < 5 || dim > 7 {
		return fmt.Errorf("dimension must be 5, 6 or 7, got %d", dim)
	}
	if dim > m.NDim() {
		return fmt.Errorf("data only has %d dimensions, cannot address dim_%d", m.NDim(), dim)
	}
	return nil
}

// AddField sets a standard-defined metadata key.
func (m *NiftiMRS) AddField(key string, value any) error {
	return m.ext.SetStandard(key, value)
}

// AddUserField sets a user-defined metadata key with its documentation.
func (m *NiftiMRS) AddUserField(key string, value any, doc string) error {
	if doc == "" {
		log.WithField("key", key).Warn("user-defined key added without a description")
	}
	return m.ext.SetUser(key, value, doc)
}

// GetField returns an optional metadata value.
func (m *NiftiMRS) GetField(key string) (any, bool) {
	return m.ext.Get(key)
}

// RemoveField deletes an optional metadata key. The required keys and the
// dimension entries are managed elsewhere and cannot be removed here.
func (m *NiftiMRS) RemoveField(key string) error {
	if dimEntryPattern.MatchString(key) {
		return fmt.Errorf("%s is managed through the dimension methods", key)
	}
	return m.ext.Remove(key)
}

var dimEntryPattern = regexp.MustCompile(`^dim_[567](_info|_header)?$`)

// Copy returns a deep copy of the object.
func (m *NiftiMRS) Copy() *NiftiMRS {
	return &NiftiMRS{
		data:     m.data.Copy(),
		hdr:      m.hdr,
		ext:      m.ext.Copy(),
		filename: m.filename,
	}
}

// CopyRemoveDim returns a copy with the singleton dimension carrying the
// given tag removed. A non-singleton dimension is a shape error; average or
// split the data first.
func (m *NiftiMRS) CopyRemoveDim(tag string) (*NiftiMRS, error) {
	axis, err := m.DimPosition(tag)
	if err != nil {
		return nil, err
	}
	if m.Shape()[axis] != 1 {
		return nil, &ShapeError{
			Op:  "remove dimension",
			Msg: fmt.Sprintf("dimension %s has length %d; only singleton dimensions can be removed", tag, m.Shape()[axis]),
		}
	}
	squeezed, err := m.data.Squeeze(axis)
	if err != nil {
		return nil, err
	}
	ext := m.ext.Copy()
	if err := ext.RemoveDim(axis - 4); err != nil {
		return nil, err
	}
	out := m.Copy()
	out.data = squeezed
	out.ext = ext
	return out, nil
}

// Conjugate returns a copy with the complex conjugate of the data.
func (m *NiftiMRS) Conjugate() *NiftiMRS {
	out := m.Copy()
	out.data = m.data.Conj()
	return out
}

// Save validates the object and writes it to path as little-endian NIfTI-2
// with complex128 data, gzip-compressed when the path ends in .gz.
func (m *NiftiMRS) Save(path string, opts ...Option) error {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if o.validate {
		if err := m.validate(o.swTol); err != nil {
			return err
		}
	}

	hdr := m.hdr
	hdr.IntentName = definitions.IntentName(definitions.Version[0], definitions.Version[1])
	hdr.XYZTUnits = nifti.UnitsMM | nifti.UnitsSec

	extJSON, err := m.ext.ToJSON()
	if err != nil {
		return err
	}
	f := &nifti.File{
		Header: hdr,
		Shape:  m.Shape(),
		Data:   m.data,
		Extensions: []nifti.Extension{
			{Code: nifti.ExtCodeMRS, Data: extJSON},
		},
	}
	log.WithFields(log.Fields{
		"path":  path,
		"shape": m.Shape(),
	}).Debug("writing NIfTI-MRS file")
	return f.WriteFile(path)
}
