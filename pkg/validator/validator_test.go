package validator

import (
	"errors"
	"testing"

	"github.com/wtclarke/nifti-mrs-tools/pkg/hdrext"
)

func validTarget(t *testing.T) Target {
	t.Helper()
	ext, err := hdrext.FromJSON([]byte(`{
		"SpectrometerFrequency": [123.2],
		"ResonantNucleus": ["1H"],
		"dim_5": "DIM_COIL",
		"dim_6": "DIM_DYN"
	}`), 6)
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	return Target{
		Shape:      []int{1, 1, 1, 512, 4, 16},
		Dwelltime:  1.0 / 2000.0,
		IntentName: "mrs_v0_7",
		Ext:        ext,
	}
}

func TestValidTargetPasses(t *testing.T) {
	v := New()
	tgt := validTarget(t)
	if issues := v.Check(tgt); len(issues) != 0 {
		t.Errorf("Expected no issues, got %v", issues)
	}
	if err := v.Validate(tgt); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}

func TestShapeAndDwelltime(t *testing.T) {
	v := New()

	tgt := validTarget(t)
	tgt.Shape = []int{1, 1, 1}
	if err := v.Validate(tgt); err == nil {
		t.Errorf("Expected error for 3D data")
	}

	tgt = validTarget(t)
	tgt.Dwelltime = -1
	if err := v.Validate(tgt); err == nil {
		t.Errorf("Expected error for negative dwell time")
	}

	tgt.Dwelltime = 2
	if err := v.Validate(tgt); err == nil {
		t.Errorf("Expected error for dwell time above one second")
	}
}

func TestIntentName(t *testing.T) {
	v := New()

	tgt := validTarget(t)
	tgt.IntentName = "something else"
	var verr *ValidationError
	if err := v.Validate(tgt); !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if verr.Issues[0].Field != "intent_name" {
		t.Errorf("Expected intent_name issue, got %v", verr.Issues[0])
	}

	// A newer format version warns but does not block
	tgt.IntentName = "mrs_v9_0"
	if err := v.Validate(tgt); err != nil {
		t.Errorf("Newer version should only warn, got %v", err)
	}
	issues := v.Check(tgt)
	if len(issues) != 1 || issues[0].Severity != SeverityWarning {
		t.Errorf("Expected a single warning, got %v", issues)
	}
}

func TestDimTagConsistency(t *testing.T) {
	v := New()

	// Tag missing for an existing dimension
	ext, _ := hdrext.FromJSON([]byte(`{
		"SpectrometerFrequency": [123.2],
		"ResonantNucleus": ["1H"],
		"dim_5": "DIM_COIL"
	}`), 6)
	tgt := validTarget(t)
	tgt.Ext = ext
	if err := v.Validate(tgt); err == nil {
		t.Errorf("Expected error for missing dim_6 tag")
	}

	// Duplicate tags
	ext, _ = hdrext.FromJSON([]byte(`{
		"SpectrometerFrequency": [123.2],
		"ResonantNucleus": ["1H"],
		"dim_5": "DIM_DYN",
		"dim_6": "DIM_DYN"
	}`), 6)
	tgt.Ext = ext
	if err := v.Validate(tgt); err == nil {
		t.Errorf("Expected error for duplicate tags")
	}

	// Unknown tag: parsing is permissive, validation is not
	ext, _ = hdrext.FromJSON([]byte(`{
		"SpectrometerFrequency": [123.2],
		"ResonantNucleus": ["1H"],
		"dim_5": "DIM_BOGUS",
		"dim_6": "DIM_DYN"
	}`), 6)
	tgt.Ext = ext
	if err := v.Validate(tgt); err == nil {
		t.Errorf("Expected error for unknown tag")
	}
}

func TestDimKeyPlacement(t *testing.T) {
	v := New()

	// A dim_5_header without a dim_5 tag on 4-D data
	ext, err := hdrext.FromJSON([]byte(`{
		"SpectrometerFrequency": [123.2],
		"ResonantNucleus": ["1H"],
		"dim_5_header": {"p1": [1.0, 2.0]}
	}`), 4)
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	tgt := validTarget(t)
	tgt.Shape = []int{1, 1, 1, 512}
	tgt.Ext = ext
	var verr *ValidationError
	if err := v.Validate(tgt); !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError for orphan dim_5_header, got %v", err)
	}
	if verr.Issues[0].Field != "dim_5_header" {
		t.Errorf("Expected dim_5_header issue, got %v", verr.Issues[0])
	}

	// An info entry whose tag is missing on data that has the dimension
	ext, err = hdrext.FromJSON([]byte(`{
		"SpectrometerFrequency": [123.2],
		"ResonantNucleus": ["1H"],
		"dim_5": "DIM_COIL",
		"dim_6_info": "averaging block"
	}`), 6)
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	tgt = validTarget(t)
	tgt.Ext = ext
	issues := v.Check(tgt)
	found := false
	for _, iss := range issues {
		if iss.Field == "dim_6_info" && iss.Severity == SeverityError {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected error for dim_6_info without a dim_6 tag, got %v", issues)
	}

	// dim_0..dim_4 never carry tag entries
	raw := validTarget(t).Ext.ToMap()
	raw["dim_4"] = "DIM_USER_0"
	ext, err = hdrext.FromMap(raw, 6)
	if err != nil {
		t.Fatalf("FromMap failed: %v", err)
	}
	tgt = validTarget(t)
	tgt.Ext = ext
	if err := v.Validate(tgt); err == nil {
		t.Errorf("Expected error for a dim_4 tag entry")
	}
}

func TestDimHeaderLengths(t *testing.T) {
	v := New()
	ext, _ := hdrext.FromJSON([]byte(`{
		"SpectrometerFrequency": [123.2],
		"ResonantNucleus": ["1H"],
		"dim_5": "DIM_COIL",
		"dim_6": "DIM_DYN",
		"dim_6_header": {"p1": [1.0, 2.0, 4.0]}
	}`), 6)
	tgt := validTarget(t)
	tgt.Ext = ext
	// dim_6 has length 16, the header lists 3 values
	if err := v.Validate(tgt); err == nil {
		t.Errorf("Expected error for header length mismatch")
	}

	// The short form matches any length
	ext, _ = hdrext.FromJSON([]byte(`{
		"SpectrometerFrequency": [123.2],
		"ResonantNucleus": ["1H"],
		"dim_5": "DIM_COIL",
		"dim_6": "DIM_DYN",
		"dim_6_header": {"p1": {"start": 0.0, "increment": 2.0}}
	}`), 6)
	tgt.Ext = ext
	if err := v.Validate(tgt); err != nil {
		t.Errorf("Short form header should validate, got %v", err)
	}
}

func TestOptionalKeys(t *testing.T) {
	v := New()

	// Wrong type for a standard-defined key
	tgt := validTarget(t)
	raw := tgt.Ext.ToMap()
	raw["EchoTime"] = "not a number"
	ext, err := hdrext.FromMap(raw, 6)
	if err != nil {
		t.Fatalf("FromMap failed: %v", err)
	}
	tgt.Ext = ext
	if err := v.Validate(tgt); err == nil {
		t.Errorf("Expected error for mistyped EchoTime")
	}

	// Undocumented user key warns but does not block
	tgt = validTarget(t)
	raw = tgt.Ext.ToMap()
	raw["MyKey"] = map[string]any{"Value": 1.0}
	ext, err = hdrext.FromMap(raw, 6)
	if err != nil {
		t.Fatalf("FromMap failed: %v", err)
	}
	tgt.Ext = ext
	if err := v.Validate(tgt); err != nil {
		t.Errorf("Undocumented user key should only warn, got %v", err)
	}
	issues := v.Check(tgt)
	if len(issues) != 1 || issues[0].Severity != SeverityWarning {
		t.Errorf("Expected a single warning, got %v", issues)
	}
}

func TestSpectralWidthCrossCheck(t *testing.T) {
	v := New()

	tgt := validTarget(t)
	raw := tgt.Ext.ToMap()
	raw["SpectralWidth"] = 2000.0
	ext, err := hdrext.FromMap(raw, 6)
	if err != nil {
		t.Fatalf("FromMap failed: %v", err)
	}
	tgt.Ext = ext
	if err := v.Validate(tgt); err != nil {
		t.Errorf("Matching SpectralWidth should pass, got %v", err)
	}

	raw["SpectralWidth"] = 2500.0
	ext, err = hdrext.FromMap(raw, 6)
	if err != nil {
		t.Fatalf("FromMap failed: %v", err)
	}
	tgt.Ext = ext
	if err := v.Validate(tgt); err == nil {
		t.Errorf("Expected error for mismatched SpectralWidth")
	}

	// A looser tolerance accepts small rounding differences
	loose := &Validator{SpectralWidthTol: 0.5}
	if err := loose.Validate(tgt); err != nil {
		t.Errorf("Expected loose tolerance to accept, got %v", err)
	}
}
