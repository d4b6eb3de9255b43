// Package validator checks decoded NIfTI-MRS data against the format rules:
// container shape and dwell time, the intent_name version marker, the
// required and standard-defined metadata keys, and the consistency of the
// higher-dimension tag entries with the data shape.
//
// Each finding is reported as an Issue with a severity. Error-severity
// issues make the data unusable; warnings flag questionable content that
// downstream code can still work with.
package validator

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/wtclarke/nifti-mrs-tools/pkg/definitions"
	"github.com/wtclarke/nifti-mrs-tools/pkg/hdrext"
)

// Severity classifies a validation finding.
type Severity int

const (
	// SeverityWarning marks questionable content that does not block use.
	SeverityWarning Severity = iota

	// SeverityError marks a violation of the format rules.
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Issue is one validation finding.
type Issue struct {
	Severity Severity
	Field    string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Field, i.Message)
}

// ValidationError aggregates the error-severity findings of a failed
// validation.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, iss := range e.Issues {
		msgs[i] = iss.String()
	}
	return fmt.Sprintf("invalid NIfTI-MRS data: %s", strings.Join(msgs, "; "))
}

// Target bundles the facts a validation run inspects.
type Target struct {
	// Shape is the data shape, x,y,z first.
	Shape []int

	// Dwelltime is the spectral sampling interval in seconds, from
	// pixdim[4].
	Dwelltime float64

	// IntentName is the version marker from the NIfTI header.
	IntentName string

	// Ext is the parsed header extension.
	Ext *hdrext.HeaderExtension
}

// DefaultSpectralWidthTol is the relative tolerance applied when comparing a
// declared SpectralWidth against the reciprocal of the dwell time.
const DefaultSpectralWidthTol = 1e-4

// Validator runs format checks. The zero value is not ready; use New.
type Validator struct {
	// SpectralWidthTol is the relative tolerance for the SpectralWidth
	// cross-check.
	SpectralWidthTol float64
}

// New returns a validator with the default tolerance.
func New() *Validator {
	return &Validator{SpectralWidthTol: DefaultSpectralWidthTol}
}

var intentPattern = regexp.MustCompile(`^mrs_v(\d+)_(\d+)$`)

// nucleusPattern is the mass-number-plus-symbol form the standard requires,
// e.g. 1H, 31P, 13C.
var nucleusPattern = regexp.MustCompile(`^\d+[A-Z][a-z]?$`)

// dimKeyPattern matches dimension tag entries and their companions,
// e.g. dim_5, dim_6_info, dim_7_header.
var dimKeyPattern = regexp.MustCompile(`^dim_(\d+)(_info|_header)?$`)

// Check runs every rule and returns the findings, errors first and stable in
// order.
func (v *Validator) Check(t Target) []Issue {
	var issues []Issue
	add := func(sev Severity, field, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	nd := len(t.Shape)
	if nd < 4 || nd > 7 {
		add(SeverityError, "dim", "data must have between 4 and 7 dimensions, got %d", nd)
	}

	if t.Dwelltime <= 0 || t.Dwelltime > 1 {
		add(SeverityError, "pixdim[4]", "dwell time must be in (0, 1] seconds, got %g", t.Dwelltime)
	}

	v.checkIntent(t.IntentName, add)

	if t.Ext != nil {
		v.checkExtension(t, add)
	} else {
		add(SeverityError, "header extension", "missing")
	}

	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity > issues[j].Severity
	})
	return issues
}

// Validate runs Check and converts error-severity findings into a
// *ValidationError. Warnings alone yield a nil error.
func (v *Validator) Validate(t Target) error {
	var errs []Issue
	for _, iss := range v.Check(t) {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Issues: errs}
	}
	return nil
}

type addFunc func(sev Severity, field, format string, args ...any)

func (v *Validator) checkIntent(name string, add addFunc) {
	m := intentPattern.FindStringSubmatch(name)
	if m == nil {
		add(SeverityError, "intent_name", "must match mrs_v<major>_<minor>, got %q", name)
		return
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	if major > definitions.Version[0] ||
		(major == definitions.Version[0] && minor > definitions.Version[1]) {
		add(SeverityWarning, "intent_name",
			"format version %d.%d is newer than the supported %s", major, minor, definitions.VersionString())
	}
}

func (v *Validator) checkExtension(t Target, add addFunc) {
	ext := t.Ext

	for i, f := range ext.SpectrometerFrequency() {
		if f <= 0 {
			add(SeverityError, "SpectrometerFrequency", "entry %d must be positive, got %g", i, f)
		}
	}
	for i, n := range ext.ResonantNucleus() {
		if !nucleusPattern.MatchString(n) {
			add(SeverityWarning, "ResonantNucleus",
				"entry %d (%q) does not follow the mass number plus symbol form", i, n)
		}
	}

	v.checkDims(t, add)
	v.checkDimKeys(t, add)
	v.checkOptionalKeys(t, add)
}

// checkDims verifies the dim_5..7 tag entries against the data shape.
func (v *Validator) checkDims(t Target, add addFunc) {
	ext := t.Ext
	nd := len(t.Shape)
	tags := ext.Tags()

	seen := map[string]int{}
	for i, tag := range tags {
		n := i + 5
		field := fmt.Sprintf("dim_%d", n)

		if n <= nd && tag == "" {
			add(SeverityError, field, "data has %d dimensions but no tag is set", nd)
			continue
		}
		if tag == "" {
			continue
		}
		if n > nd {
			add(SeverityError, field, "tag %s set but data only has %d dimensions", tag, nd)
		}
		if !definitions.IsDimTag(tag) {
			add(SeverityError, field, "unknown dimension tag %q", tag)
		}
		if prev, dup := seen[tag]; dup {
			add(SeverityError, field, "tag %s already used by dim_%d", tag, prev)
		}
		seen[tag] = n

		if n <= nd {
			v.checkDimHeader(ext.Dim(i), n, t.Shape[n-1], add)
		}
	}
}

// checkDimKeys flags dim_N keys that survived parsing as plain metadata:
// a tag entry outside dimensions 5 to 7, or a dim_N_info/dim_N_header
// without a matching dim_N tag.
func (v *Validator) checkDimKeys(t Target, add addFunc) {
	nd := len(t.Shape)
	tags := t.Ext.Tags()
	keys := t.Ext.Keys()
	sort.Strings(keys)
	for _, key := range keys {
		m := dimKeyPattern.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		switch {
		case n < 5 || n > 7:
			add(SeverityError, key, "only dimensions 5 to 7 carry tag entries")
		case tags[n-5] != "":
			// A properly attached entry; checkDims covers it.
		case n > nd:
			add(SeverityError, key, "set but the data only has %d dimensions", nd)
		default:
			add(SeverityError, key, "set but dim_%d has no tag", n)
		}
	}
}

// checkDimHeader verifies the length of every explicit per-dimension header
// entry and the documentation of user-defined entries.
func (v *Validator) checkDimHeader(d hdrext.DimInfo, n, axisLen int, add addFunc) {
	field := fmt.Sprintf("dim_%d_header", n)
	keys := make([]string, 0, len(d.Header))
	for k := range d.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		dv := d.Header[k]
		if l := dv.Len(); l >= 0 && l != axisLen {
			add(SeverityError, field, "entry %q has %d values but the dimension has length %d", k, l, axisLen)
		}
		if dv.UserDefined && dv.Description == "" {
			add(SeverityWarning, field, "user-defined entry %q has no Description", k)
		}
	}
}

// checkOptionalKeys type-checks the standard-defined keys and flags
// undocumented user keys. The SpectralWidth key is additionally
// cross-checked against the dwell time.
func (v *Validator) checkOptionalKeys(t Target, add addFunc) {
	ext := t.Ext
	schema := definitions.Schema()

	keys := ext.Keys()
	sort.Strings(keys)
	for _, key := range keys {
		if dimKeyPattern.MatchString(key) ||
			key == "SpectrometerFrequency" || key == "ResonantNucleus" {
			continue
		}
		value, _ := ext.Get(key)
		if spec, ok := schema[key]; ok {
			if !spec.Type.Check(value) {
				add(SeverityError, key, "value does not match the standard-defined type")
			}
			continue
		}
		obj, isObj := value.(map[string]any)
		if !isObj {
			add(SeverityWarning, key, "user-defined key is not an object with Value and Description")
			continue
		}
		if desc, ok := obj["Description"].(string); !ok || desc == "" {
			add(SeverityWarning, key, "user-defined key has no Description")
		}
	}

	if value, ok := ext.Get("SpectralWidth"); ok && t.Dwelltime > 0 {
		if sw, isNum := value.(float64); isNum {
			want := 1.0 / t.Dwelltime
			if !scalar.EqualWithinRel(sw, want, v.SpectralWidthTol) {
				add(SeverityError, "SpectralWidth",
					"declared %g Hz but the dwell time implies %g Hz", sw, want)
			}
		}
	}
}
