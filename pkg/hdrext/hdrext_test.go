package hdrext

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewRequiresMetadata(t *testing.T) {
	if _, err := New(nil, []string{"1H"}); err == nil {
		t.Errorf("Expected error for missing frequency")
	}
	if _, err := New([]float64{127.7}, nil); err == nil {
		t.Errorf("Expected error for missing nucleus")
	}
	ext, err := NewSingle(127.7, "1H")
	if err != nil {
		t.Fatalf("NewSingle failed: %v", err)
	}
	if ext.Dimensions() != 7 {
		t.Errorf("Expected default dimension count 7, got %d", ext.Dimensions())
	}
}

func TestFromJSONMalformed(t *testing.T) {
	_, err := FromJSON([]byte("{not json"), 0)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected ParseError, got %v", err)
	}

	// Wrong value types also surface as ParseError
	_, err = FromJSON([]byte(`{"SpectrometerFrequency": "fast", "ResonantNucleus": ["1H"]}`), 0)
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected ParseError for bad frequency type, got %v", err)
	}
}

func TestFromJSONNormalisesNumbers(t *testing.T) {
	// Integer and float spellings must be accepted and normalised
	ext, err := FromJSON([]byte(`{"SpectrometerFrequency": [128], "ResonantNucleus": ["1H"], "EchoTime": 1}`), 0)
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	if got := ext.SpectrometerFrequency(); got[0] != 128.0 {
		t.Errorf("Expected 128.0, got %v", got[0])
	}
	v, ok := ext.Get("EchoTime")
	if !ok {
		t.Fatalf("EchoTime missing")
	}
	if _, isFloat := v.(float64); !isFloat {
		t.Errorf("Expected EchoTime normalised to float64, got %T", v)
	}
}

func TestFromJSONScalarRequiredForms(t *testing.T) {
	ext, err := FromJSON([]byte(`{"SpectrometerFrequency": 297.2, "ResonantNucleus": "1H"}`), 0)
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	if len(ext.SpectrometerFrequency()) != 1 || len(ext.ResonantNucleus()) != 1 {
		t.Errorf("Scalar forms should be promoted to single-element lists")
	}
	if ext.Dimensions() != 4 {
		t.Errorf("Expected inferred dimension count 4, got %d", ext.Dimensions())
	}
}

func TestFromMapDimInfo(t *testing.T) {
	ext, err := FromJSON([]byte(`{
		"SpectrometerFrequency": [100.0],
		"ResonantNucleus": ["1H"],
		"dim_5": "DIM_DYN",
		"dim_5_info": "averages",
		"dim_5_header": {"p1": [1, 2, 3, 4], "p2": {"start": 0.1, "increment": 0.1}},
		"dim_6": "DIM_EDIT"
	}`), 0)
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	if ext.Dimensions() != 6 {
		t.Errorf("Expected inferred dimension count 6, got %d", ext.Dimensions())
	}
	d := ext.Dim(0)
	if d.Tag != "DIM_DYN" || d.Info != "averages" {
		t.Errorf("Unexpected dim 5 info: %+v", d)
	}
	if d.Header["p2"].Ramp == nil {
		t.Errorf("Expected short-form header entry for p2")
	}
	if got := d.Header["p1"].Expand(4); len(got) != 4 || got[3] != 4.0 {
		t.Errorf("Unexpected expansion of p1: %v", got)
	}
}

func TestToMapRoundTrip(t *testing.T) {
	src := map[string]any{
		"SpectrometerFrequency": []any{100.0},
		"ResonantNucleus":       []any{"1H"},
		"dim_5":                 "DIM_DYN",
		"dim_5_info":            "averages",
		"dim_5_header":          map[string]any{"p2": []any{0.1, 0.25, 0.3}},
		"dim_6":                 "DIM_EDIT",
		"dim_6_header":          map[string]any{"p1": map[string]any{"start": 1.0, "increment": 1.0}},
		"dim_7":                 "DIM_USER_0",
		"dim_7_header": map[string]any{
			"p1": map[string]any{"Value": map[string]any{"start": 1.0, "increment": 1.0}, "Description": "user"},
		},
		"EchoTime":   0.03,
		"RandomKey":  map[string]any{"Value": 42.0, "Description": "user defined"},
	}
	ext, err := FromMap(src, 0)
	if err != nil {
		t.Fatalf("FromMap failed: %v", err)
	}
	if diff := cmp.Diff(src, ext.ToMap()); diff != "" {
		t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
	}

	// JSON serialisation stays parseable and equivalent
	raw, err := ext.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	ext2, err := FromJSON(raw, 0)
	if err != nil {
		t.Fatalf("FromJSON of serialised form failed: %v", err)
	}
	if !ext.Equal(ext2) {
		t.Errorf("Serialise/parse round trip changed the extension")
	}
}

func TestSetAndRemoveDim(t *testing.T) {
	ext, _ := NewSingle(100.0, "1H")

	if err := ext.SetDimTag(0, "DIM_DYN"); err != nil {
		t.Fatalf("SetDimTag failed: %v", err)
	}
	if err := ext.SetDimTag(1, "DIM_EDIT"); err != nil {
		t.Fatalf("SetDimTag failed: %v", err)
	}
	if err := ext.SetDimTag(0, "DIM_NOT_A_TAG"); err == nil {
		t.Errorf("Expected error for undefined tag")
	}

	if err := ext.SetDimensions(6); err != nil {
		t.Fatalf("SetDimensions failed: %v", err)
	}

	// Removing dim 0 renumbers dim 1 down and decrements the count
	if err := ext.RemoveDim(0); err != nil {
		t.Fatalf("RemoveDim failed: %v", err)
	}
	if ext.Dimensions() != 5 {
		t.Errorf("Expected dimension count 5, got %d", ext.Dimensions())
	}
	if tags := ext.Tags(); tags[0] != "DIM_EDIT" || tags[1] != "" {
		t.Errorf("Expected renumbered tags [DIM_EDIT, , ], got %v", tags)
	}

	m := ext.ToMap()
	if m["dim_5"] != "DIM_EDIT" {
		t.Errorf("Expected dim_5=DIM_EDIT after renumbering, got %v", m["dim_5"])
	}
	if _, ok := m["dim_6"]; ok {
		t.Errorf("dim_6 should not serialise after removal")
	}
}

func TestSetUserAndStandard(t *testing.T) {
	ext, _ := NewSingle(100.0, "1H")

	if err := ext.SetStandard("EchoTime", 11); err != nil {
		t.Fatalf("SetStandard failed: %v", err)
	}
	if v, _ := ext.Get("EchoTime"); v != 11.0 {
		t.Errorf("Expected normalised 11.0, got %v (%T)", v, v)
	}
	if err := ext.SetStandard("NotAKey", 1); err == nil {
		t.Errorf("Expected error for unknown standard key")
	}

	if err := ext.SetUser("EchoTime", 1, "doc"); err == nil {
		t.Errorf("Standard-defined keys must not be user-settable")
	}
	if err := ext.SetUser("Custom", 42, "my own"); err != nil {
		t.Fatalf("SetUser failed: %v", err)
	}
	v, _ := ext.Get("Custom")
	obj := v.(map[string]any)
	if obj["Value"] != 42.0 || obj["Description"] != "my own" {
		t.Errorf("Unexpected user value: %v", obj)
	}

	if err := ext.Remove("Custom"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := ext.Remove("SpectrometerFrequency"); err == nil {
		t.Errorf("Required keys must not be removable")
	}
	if err := ext.Remove("NeverSet"); err == nil {
		t.Errorf("Expected error removing undefined key")
	}
}

func TestCopyIsDeep(t *testing.T) {
	ext, _ := NewSingle(100.0, "1H")
	ext.SetDim(0, DimInfo{Tag: "DIM_DYN", Header: map[string]DynamicValue{
		"p1": NewDynamicValue([]any{1.0, 5.0, 2.0}),
	}})
	cp := ext.Copy()
	cp.SetDimTag(0, "DIM_EDIT")
	if ext.Tags()[0] != "DIM_DYN" {
		t.Errorf("Copy should not share dimension state")
	}
	if !ext.Equal(ext.Copy()) {
		t.Errorf("Copy should compare equal to its source")
	}
}

func TestJSONNumbersStayCanonical(t *testing.T) {
	ext, _ := NewSingle(100.0, "1H")
	ext.SetStandard("RepetitionTime", 2)
	raw, err := ext.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if m["RepetitionTime"] != 2.0 {
		t.Errorf("Expected canonical numeric form, got %v", m["RepetitionTime"])
	}
}
