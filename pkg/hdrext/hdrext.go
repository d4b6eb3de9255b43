// Package hdrext models the NIfTI-MRS header extension: the JSON metadata
// blob attached to the file under extension code 44. It holds the two
// required keys, the per-dimension tag information for up to three higher
// dimensions, and the standard- and user-defined optional keys.
//
// All JSON numbers are normalised to float64 at the parse boundary; no code
// downstream branches on the source numeric type.
package hdrext

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/wtclarke/nifti-mrs-tools/pkg/definitions"
)

// MaxHigherDims is the number of higher (non spatial/spectral) dimensions
// the format supports.
const MaxHigherDims = 3

// ParseError reports a malformed header extension: invalid JSON or a value
// of the wrong type.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("header extension parse error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("header extension parse error: %s", e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DimInfo holds the tag information for one higher dimension. An empty Tag
// means the dimension is unassigned. Header is nil when no per-dimension
// header is present.
type DimInfo struct {
	Tag    string
	Info   string
	Header map[string]DynamicValue
}

// Copy returns a deep copy of the dimension info.
func (d DimInfo) Copy() DimInfo {
	out := DimInfo{Tag: d.Tag, Info: d.Info}
	if d.Header != nil {
		out.Header = make(map[string]DynamicValue, len(d.Header))
		for k, v := range d.Header {
			out.Header[k] = v.Copy()
		}
	}
	return out
}

// HeaderExtension is the structured representation of the metadata blob.
type HeaderExtension struct {
	frequency []float64
	nucleus   []string
	dims      [MaxHigherDims]DimInfo
	standard  map[string]any
	user      map[string]any

	// ndim is the total dimension count of the associated data (4..7);
	// it controls how many dim_N entries serialise.
	ndim int
}

// New creates a header extension with the two mandatory bits of metadata.
// The dimension count defaults to 7; adjust with SetDimensions.
func New(frequency []float64, nucleus []string) (*HeaderExtension, error) {
	if len(frequency) == 0 {
		return nil, &ParseError{Msg: "SpectrometerFrequency must contain at least one value"}
	}
	if len(nucleus) == 0 {
		return nil, &ParseError{Msg: "ResonantNucleus must contain at least one value"}
	}
	return &HeaderExtension{
		frequency: append([]float64(nil), frequency...),
		nucleus:   append([]string(nil), nucleus...),
		standard:  map[string]any{},
		user:      map[string]any{},
		ndim:      4 + MaxHigherDims,
	}, nil
}

// NewSingle is a convenience constructor for the common single-nucleus case.
func NewSingle(frequency float64, nucleus string) (*HeaderExtension, error) {
	return New([]float64{frequency}, []string{nucleus})
}

// FromJSON parses a serialised header extension. ndim is the dimension
// count of the associated data; pass 0 to infer it from the highest dim_N
// entry present.
func FromJSON(raw []byte, ndim int) (*HeaderExtension, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &ParseError{Msg: "not valid JSON", Err: err}
	}
	return FromMap(m, ndim)
}

// FromMap builds a header extension from a decoded JSON object. See
// FromJSON for the meaning of ndim.
func FromMap(m map[string]any, ndim int) (*HeaderExtension, error) {
	freq, err := floatList(m["SpectrometerFrequency"])
	if err != nil {
		return nil, &ParseError{Msg: "SpectrometerFrequency must be a number or list of numbers", Err: err}
	}
	nuc, err := stringList(m["ResonantNucleus"])
	if err != nil {
		return nil, &ParseError{Msg: "ResonantNucleus must be a string or list of strings", Err: err}
	}

	ext, err := New(freq, nuc)
	if err != nil {
		return nil, err
	}

	if ndim == 0 {
		ndim = 4
		for n := 5; n <= 7; n++ {
			if _, ok := m[dimKey(n)]; ok {
				ndim = n
			}
		}
	}
	if ndim < 4 || ndim > 7 {
		return nil, &ParseError{Msg: fmt.Sprintf("dimension count must be between 4 and 7, got %d", ndim)}
	}
	ext.ndim = ndim

	consumed := map[string]bool{
		"SpectrometerFrequency": true,
		"ResonantNucleus":       true,
	}
	for n := 5; n <= 7; n++ {
		key := dimKey(n)
		raw, ok := m[key]
		if !ok {
			continue
		}
		tag, ok := raw.(string)
		if !ok {
			return nil, &ParseError{Msg: fmt.Sprintf("%s must be a string", key)}
		}
		di := DimInfo{Tag: tag}
		if info, ok := m[key+"_info"]; ok {
			s, ok := info.(string)
			if !ok {
				return nil, &ParseError{Msg: fmt.Sprintf("%s_info must be a string", key)}
			}
			di.Info = s
		}
		if hdr, ok := m[key+"_header"]; ok {
			obj, ok := hdr.(map[string]any)
			if !ok {
				return nil, &ParseError{Msg: fmt.Sprintf("%s_header must be an object", key)}
			}
			di.Header = make(map[string]DynamicValue, len(obj))
			for sub, v := range obj {
				dv, err := parseDynamicValue(v)
				if err != nil {
					return nil, &ParseError{Msg: fmt.Sprintf("%s_header entry %q", key, sub), Err: err}
				}
				di.Header[sub] = dv
			}
		}
		ext.dims[n-5] = di
		consumed[key] = true
		consumed[key+"_info"] = true
		consumed[key+"_header"] = true
	}

	for key, value := range m {
		if consumed[key] {
			continue
		}
		if definitions.IsStandardDefined(key) {
			ext.standard[key] = normalizeValue(value)
		} else {
			ext.user[key] = normalizeValue(value)
		}
	}
	return ext, nil
}

// Dimensions returns the dimension count the extension describes.
func (h *HeaderExtension) Dimensions() int { return h.ndim }

// SetDimensions sets the dimension count (4..7).
func (h *HeaderExtension) SetDimensions(n int) error {
	if n < 4 || n > 7 {
		return fmt.Errorf("dimension count must be between 4 and 7, got %d", n)
	}
	h.ndim = n
	return nil
}

// SpectrometerFrequency returns the spectrometer frequencies in MHz.
func (h *HeaderExtension) SpectrometerFrequency() []float64 {
	return append([]float64(nil), h.frequency...)
}

// ResonantNucleus returns the resonant nucleus strings.
func (h *HeaderExtension) ResonantNucleus() []string {
	return append([]string(nil), h.nucleus...)
}

// Dim returns the info of higher dimension i (0..2, i.e. NIfTI dims 5..7).
func (h *HeaderExtension) Dim(i int) DimInfo {
	return h.dims[i].Copy()
}

// Tags returns the three higher-dimension tags; empty strings mark
// unassigned dimensions.
func (h *HeaderExtension) Tags() [MaxHigherDims]string {
	var out [MaxHigherDims]string
	for i, d := range h.dims {
		out[i] = d.Tag
	}
	return out
}

// SetDim assigns the full info of higher dimension i. The tag must be a
// recognised dimension tag.
func (h *HeaderExtension) SetDim(i int, info DimInfo) error {
	if i < 0 || i >= MaxHigherDims {
		return fmt.Errorf("higher dimension index must be 0, 1 or 2, got %d", i)
	}
	if info.Tag != "" {
		if _, err := definitions.ResolveTag(info.Tag); err != nil {
			return err
		}
	}
	h.dims[i] = info.Copy()
	return nil
}

// SetDimTag assigns or clears the tag of higher dimension i, leaving any
// info/header untouched for a same-tag reassignment and clearing them when
// the tag changes or is removed.
func (h *HeaderExtension) SetDimTag(i int, tag string) error {
	if i < 0 || i >= MaxHigherDims {
		return fmt.Errorf("higher dimension index must be 0, 1 or 2, got %d", i)
	}
	if tag == "" {
		h.dims[i] = DimInfo{}
		return nil
	}
	if _, err := definitions.ResolveTag(tag); err != nil {
		return err
	}
	if h.dims[i].Tag != tag {
		h.dims[i] = DimInfo{Tag: tag}
	}
	return nil
}

// RemoveDim drops higher dimension i and renumbers the remaining dimensions
// contiguously; the dimension count decreases by one.
func (h *HeaderExtension) RemoveDim(i int) error {
	if i < 0 || i >= MaxHigherDims {
		return fmt.Errorf("higher dimension index must be 0, 1 or 2, got %d", i)
	}
	if h.ndim <= 4 {
		return fmt.Errorf("no higher dimensions to remove")
	}
	for j := i; j < MaxHigherDims-1; j++ {
		h.dims[j] = h.dims[j+1]
	}
	h.dims[MaxHigherDims-1] = DimInfo{}
	h.ndim--
	return nil
}

// SetStandard stores a standard-defined metadata value.
func (h *HeaderExtension) SetStandard(key string, value any) error {
	if !definitions.IsStandardDefined(key) {
		return &definitions.UnknownTagError{Tag: key}
	}
	h.standard[key] = normalizeValue(value)
	return nil
}

// SetUser stores a user-defined metadata value with its documentation. A
// non-object value is wrapped as {"Value": ..., "Description": doc}.
func (h *HeaderExtension) SetUser(key string, value any, doc string) error {
	if definitions.IsStandardDefined(key) || definitions.IsRequired(key) {
		return fmt.Errorf("%s is a standard-defined key and cannot be user-defined", key)
	}
	norm := normalizeValue(value)
	if obj, ok := norm.(map[string]any); ok {
		obj["Description"] = doc
		h.user[key] = obj
	} else {
		h.user[key] = map[string]any{"Value": norm, "Description": doc}
	}
	return nil
}

// Remove deletes an optional key, standard- or user-defined. The required
// keys cannot be removed.
func (h *HeaderExtension) Remove(key string) error {
	if definitions.IsRequired(key) {
		return fmt.Errorf("cannot remove required key %s", key)
	}
	if _, ok := h.standard[key]; ok {
		delete(h.standard, key)
		return nil
	}
	if _, ok := h.user[key]; ok {
		delete(h.user, key)
		return nil
	}
	return fmt.Errorf("%s is not defined in the header extension", key)
}

// Get returns the value stored under an optional key.
func (h *HeaderExtension) Get(key string) (any, bool) {
	if v, ok := h.standard[key]; ok {
		return deepCopyValue(v), true
	}
	if v, ok := h.user[key]; ok {
		return deepCopyValue(v), true
	}
	return nil, false
}

// Contains reports whether key serialises into the extension.
func (h *HeaderExtension) Contains(key string) bool {
	_, ok := h.ToMap()[key]
	return ok
}

// Keys returns every key that serialises into the extension.
func (h *HeaderExtension) Keys() []string {
	m := h.ToMap()
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// ToMap generates the canonical JSON object representation.
func (h *HeaderExtension) ToMap() map[string]any {
	out := map[string]any{
		"SpectrometerFrequency": floatsToAny(h.frequency),
		"ResonantNucleus":       stringsToAny(h.nucleus),
	}
	for n := 5; n <= h.ndim; n++ {
		d := h.dims[n-5]
		if d.Tag == "" {
			continue
		}
		out[dimKey(n)] = d.Tag
		if d.Info != "" {
			out[dimKey(n)+"_info"] = d.Info
		}
		if d.Header != nil {
			hdr := make(map[string]any, len(d.Header))
			for k, v := range d.Header {
				hdr[k] = v.marshal()
			}
			out[dimKey(n)+"_header"] = hdr
		}
	}
	for k, v := range h.standard {
		out[k] = deepCopyValue(v)
	}
	for k, v := range h.user {
		out[k] = deepCopyValue(v)
	}
	return out
}

// ToJSON serialises the extension to its canonical JSON form.
func (h *HeaderExtension) ToJSON() ([]byte, error) {
	return json.Marshal(h.ToMap())
}

// Copy returns a deep copy of the extension.
func (h *HeaderExtension) Copy() *HeaderExtension {
	out := &HeaderExtension{
		frequency: append([]float64(nil), h.frequency...),
		nucleus:   append([]string(nil), h.nucleus...),
		standard:  make(map[string]any, len(h.standard)),
		user:      make(map[string]any, len(h.user)),
		ndim:      h.ndim,
	}
	for i, d := range h.dims {
		out.dims[i] = d.Copy()
	}
	for k, v := range h.standard {
		out.standard[k] = deepCopyValue(v)
	}
	for k, v := range h.user {
		out.user[k] = deepCopyValue(v)
	}
	return out
}

// Equal reports whether two extensions serialise to the same JSON object.
func (h *HeaderExtension) Equal(other *HeaderExtension) bool {
	return reflect.DeepEqual(h.ToMap(), other.ToMap())
}

func dimKey(n int) string { return fmt.Sprintf("dim_%d", n) }

// floatList accepts a single number or a list of numbers.
func floatList(v any) ([]float64, error) {
	switch t := v.(type) {
	case nil:
		return nil, fmt.Errorf("missing")
	case float64:
		return []float64{t}, nil
	case int:
		return []float64{float64(t)}, nil
	case []float64:
		return append([]float64(nil), t...), nil
	case []any:
		out := make([]float64, len(t))
		for i, e := range t {
			f, ok := toFloat(e)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, not a number", i, e)
			}
			out[i] = f
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("empty list")
		}
		return out, nil
	}
	return nil, fmt.Errorf("got %T", v)
}

// stringList accepts a single string or a list of strings.
func stringList(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, fmt.Errorf("missing")
	case string:
		return []string{t}, nil
	case []string:
		return append([]string(nil), t...), nil
	case []any:
		out := make([]string, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, not a string", i, e)
			}
			out[i] = s
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("empty list")
		}
		return out, nil
	}
	return nil, fmt.Errorf("got %T", v)
}

// normalizeValue converts a value to the canonical in-memory form: numbers
// become float64, typed slices become []any, maps become map[string]any.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case float64, string, bool, nil:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case []float64:
		return floatsToAny(t)
	case []string:
		return stringsToAny(t)
	case []bool:
		out := make([]any, len(t))
		for i, b := range t {
			out[i] = b
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeValue(e)
		}
		return out
	}
	return v
}

// normalizeSlice applies normalizeValue to every element of a list.
func normalizeSlice(in []any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = normalizeValue(v)
	}
	return out
}

// deepCopyValue copies a canonical JSON value tree.
func deepCopyValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = deepCopyValue(e)
		}
		return out
	}
	return v
}

func floatsToAny(in []float64) []any {
	out := make([]any, len(in))
	for i, f := range in {
		out[i] = f
	}
	return out
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
