// Package definitions holds the static schema of the NIfTI-MRS standard:
// the recognised dimension tags, the required metadata keys and the
// standard-defined optional keys with their types and documentation.
// The schema is a process-wide read-only constant.
package definitions

import (
	"fmt"
)

// Version is the implemented NIfTI-MRS standard version as {major, minor}.
var Version = [2]int{0, 7}

// VersionString returns the standard version in "major.minor" form.
func VersionString() string {
	return fmt.Sprintf("%d.%d", Version[0], Version[1])
}

// IntentName returns the intent_name string stored in the NIfTI header for
// the given version, e.g. "mrs_v0_7".
func IntentName(major, minor int) string {
	return fmt.Sprintf("mrs_v%d_%d", major, minor)
}

// Kind identifies a JSON value category after parse-boundary normalisation:
// all numbers are float64, all objects are map[string]any.
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindBool
	KindObject
	KindArray
)

// TypeSpec describes a value type as a chain of kinds, outermost first.
// {KindArray, KindNumber} is an array of numbers; {KindArray, KindArray,
// KindNumber} an array of arrays of numbers. A bare {KindArray} accepts any
// array.
type TypeSpec []Kind

// Check reports whether the normalised JSON value has this type. Only the
// first element of each nested array is inspected, matching the upstream
// standard's validation depth.
func (ts TypeSpec) Check(value any) bool {
	if len(ts) == 0 {
		return false
	}
	switch ts[0] {
	case KindNumber:
		_, ok := value.(float64)
		return ok
	case KindString:
		_, ok := value.(string)
		return ok
	case KindBool:
		_, ok := value.(bool)
		return ok
	case KindObject:
		_, ok := value.(map[string]any)
		return ok
	case KindArray:
		arr, ok := value.([]any)
		if !ok {
			return false
		}
		if len(ts) == 1 {
			return true
		}
		if len(arr) == 0 {
			return false
		}
		return ts[1:].Check(arr[0])
	}
	return false
}

// TagInfo describes one recognised dimension tag.
type TagInfo struct {
	Name        string
	Description string
}

// KeySpec describes one metadata key of the header-extension schema.
type KeySpec struct {
	// Type constrains the JSON value stored under the key
	Type TypeSpec

	// Unit is the physical unit of the value, empty if dimensionless
	Unit string

	// Doc is the human-readable description from the standard
	Doc string

	// Required marks the two mandatory keys
	Required bool

	// Anonymise marks keys that carry subject-identifying content
	Anonymise bool
}

// UnknownTagError reports a dimension tag or key name that is not part of
// the standard.
type UnknownTagError struct {
	Tag string
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("unknown dimension tag %q", e.Tag)
}

// DimensionTags maps every recognised dimension tag to its description.
var DimensionTags = map[string]string{
	"DIM_COIL":        "For storage of data from each individual receiver coil element.",
	"DIM_DYN":         "For storage of each individual acquisition transient. E.g. for post-acquisition B0 drift correction.",
	"DIM_INDIRECT_0":  "The indirect detection dimension - necessary for 2D (and greater) MRS acquisitions.",
	"DIM_INDIRECT_1":  "The indirect detection dimension - necessary for 2D (and greater) MRS acquisitions.",
	"DIM_INDIRECT_2":  "The indirect detection dimension - necessary for 2D (and greater) MRS acquisitions.",
	"DIM_PHASE_CYCLE": "Used for increments of phase-cycling, for example in dephasing unwanted coherence order pathways, or TPPI for 2D spectra.",
	"DIM_EDIT":        "Used for edited MRS techniques such as MEGA or HERMES.",
	"DIM_MEAS":        "Used to indicate multiple repeats of the full sequence contained within the same original data file.",
	"DIM_USER_0":      "User defined dimension.",
	"DIM_USER_1":      "User defined dimension.",
	"DIM_USER_2":      "User defined dimension.",
	"DIM_ISIS":        "Dimension for storing image-selected in vivo spectroscopy (ISIS) acquisitions.",
}

// ResolveTag looks up a dimension tag by name.
func ResolveTag(name string) (TagInfo, error) {
	desc, ok := DimensionTags[name]
	if !ok {
		return TagInfo{}, &UnknownTagError{Tag: name}
	}
	return TagInfo{Name: name, Description: desc}, nil
}

// IsDimTag reports whether name is a recognised dimension tag.
func IsDimTag(name string) bool {
	_, ok := DimensionTags[name]
	return ok
}

// Required holds the two mandatory metadata keys.
var Required = map[string]KeySpec{
	"SpectrometerFrequency": {
		Type:     TypeSpec{KindArray, KindNumber},
		Unit:     "MHz",
		Doc:      "Precession frequency in MHz of the nucleus being addressed for each spectral axis.",
		Required: true,
	},
	"ResonantNucleus": {
		Type:     TypeSpec{KindArray, KindString},
		Doc:      "Must be one of the DICOM recognised nuclei or one named in the specified format, i.e. mass number followed by the chemical symbol in uppercase.",
		Required: true,
	},
}

// StandardDefined holds the optional keys defined by the standard. These
// keys must not be redefined by users.
var StandardDefined = map[string]KeySpec{
	// 5.1 MRS specific tags
	"EchoTime":             {Type: TypeSpec{KindNumber}, Unit: "s", Doc: "Time from centroid of excitation to start of FID or centre of echo."},
	"RepetitionTime":       {Type: TypeSpec{KindNumber}, Unit: "s", Doc: "Sequence repetition time."},
	"InversionTime":        {Type: TypeSpec{KindNumber}, Unit: "s", Doc: "Inversion time."},
	"MixingTime":           {Type: TypeSpec{KindNumber}, Unit: "s", Doc: "Mixing time in e.g. STEAM sequence."},
	"AcquisitionStartTime": {Type: TypeSpec{KindNumber}, Unit: "s", Doc: "Time, relative to EchoTime, that the acquisition starts."},
	"ExcitationFlipAngle":  {Type: TypeSpec{KindNumber}, Unit: "degrees", Doc: "Nominal excitation pulse flip-angle."},
	"TxOffset":             {Type: TypeSpec{KindNumber}, Unit: "ppm", Doc: "Transmit chemical shift offset from SpectrometerFrequency."},
	"VOI":                  {Type: TypeSpec{KindArray, KindArray, KindNumber}, Doc: "VoI localisation volume for MRSI sequences, stored as a 4 x 4 affine."},
	"WaterSuppressed":      {Type: TypeSpec{KindBool}, Doc: "Whether data was collected with (true) or without (false) water suppression."},
	"WaterSuppressionType": {Type: TypeSpec{KindString}, Doc: "Type of water suppression used."},
	"SequenceTriggered":    {Type: TypeSpec{KindBool}, Doc: "Whether the sequence is triggered; if so the repetition time might not be constant."},
	// Spectral description (cross-checked against pixdim-derived dwell time)
	"SpectralWidth": {Type: TypeSpec{KindNumber}, Unit: "Hz", Doc: "Spectral width; must equal the reciprocal of the dwell time stored in pixdim."},
	// 5.2 Scanner information
	"Manufacturer":            {Type: TypeSpec{KindString}, Doc: "Manufacturer of the device. DICOM tag (0008,0070)."},
	"ManufacturersModelName":  {Type: TypeSpec{KindString}, Doc: "Manufacturer's model name of the device. DICOM tag (0008,1090).", Anonymise: true},
	"DeviceSerialNumber":      {Type: TypeSpec{KindString}, Doc: "Manufacturer's serial number of the device. DICOM tag (0018,1000).", Anonymise: true},
	"SoftwareVersions":        {Type: TypeSpec{KindString}, Doc: "Manufacturer's designation of the software version. DICOM tag (0018,1020)."},
	"InstitutionName":         {Type: TypeSpec{KindString}, Doc: "Institution's name. DICOM tag (0008,0080)."},
	"InstitutionAddress":      {Type: TypeSpec{KindString}, Doc: "Institution's address. DICOM tag (0008,0081)."},
	"TxCoil":                  {Type: TypeSpec{KindString}, Doc: "Name or description of transmit RF coil."},
	"RxCoil":                  {Type: TypeSpec{KindString}, Doc: "Name or description of receive RF coil."},
	// 5.3 Sequence information
	"SequenceName": {Type: TypeSpec{KindString}, Doc: "User defined name. DICOM tag (0018,0024)."},
	"ProtocolName": {Type: TypeSpec{KindString}, Doc: "User-defined description of the conditions under which the series was performed. DICOM tag (0018,1030)."},
	// 5.4 Subject information
	"PatientPosition": {Type: TypeSpec{KindString}, Doc: "Patient position descriptor relative to the equipment. DICOM tag (0018,5100)."},
	"PatientName":     {Type: TypeSpec{KindString}, Doc: "Patient's full name. DICOM tag (0010,0010).", Anonymise: true},
	"PatientID":       {Type: TypeSpec{KindString}, Doc: "Patient identifier. DICOM tag (0010,0020).", Anonymise: true},
	"PatientWeight":   {Type: TypeSpec{KindNumber}, Unit: "kg", Doc: "Weight of the patient in kilograms. DICOM tag (0010,1030)."},
	"PatientDoB":      {Type: TypeSpec{KindString}, Doc: "Date of birth of the named patient, YYYYMMDD. DICOM tag (0010,0030).", Anonymise: true},
	"PatientSex":      {Type: TypeSpec{KindString}, Doc: "Sex of the named patient: 'M', 'F', 'O'. DICOM tag (0010,0040)."},
	// 5.5 Provenance and conversion metadata
	"ConversionMethod": {Type: TypeSpec{KindString}, Doc: "Description of the process or program used for conversion."},
	"ConversionTime":   {Type: TypeSpec{KindString}, Doc: "Time and date of conversion, ISO 8601 compliant format."},
	"OriginalFile":     {Type: TypeSpec{KindArray, KindString}, Doc: "Name and extension of the original file(s).", Anonymise: true},
	// 5.6 Spatial information
	"kSpace": {Type: TypeSpec{KindArray, KindBool}, Doc: "Three element list, corresponding to the first three spatial dimensions; true if stored as a dense k-space representation."},
	// 5.7 Editing pulse information structure
	"EditCondition": {Type: TypeSpec{KindArray, KindString}, Doc: "List of strings that index the entries of the EditPulse structure used in this acquisition."},
	"EditPulse":     {Type: TypeSpec{KindObject}, Doc: "Structure defining editing pulse parameters for each condition."},
	// 5.8 Processing provenance
	"ProcessingApplied": {Type: TypeSpec{KindArray}, Doc: "Describes and records the processing steps applied to the data."},
}

// IsStandardDefined reports whether key is one of the standard-defined
// optional keys.
func IsStandardDefined(key string) bool {
	_, ok := StandardDefined[key]
	return ok
}

// IsRequired reports whether key is one of the two mandatory keys.
func IsRequired(key string) bool {
	_, ok := Required[key]
	return ok
}

// Schema returns a combined copy of the required and standard-defined key
// specifications.
func Schema() map[string]KeySpec {
	out := make(map[string]KeySpec, len(Required)+len(StandardDefined))
	for k, v := range Required {
		out[k] = v
	}
	for k, v := range StandardDefined {
		out[k] = v
	}
	return out
}

// GyromagneticRatios holds gyromagnetic ratios in MHz/T for common nuclei,
// used to report field strength from the spectrometer frequency.
var GyromagneticRatios = map[string]float64{
	"1H":  42.576,
	"2H":  6.536,
	"13C": 10.7084,
	"31P": 17.235,
}
