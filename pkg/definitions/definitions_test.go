package definitions

import (
	"errors"
	"testing"
)

func TestResolveTag(t *testing.T) {
	info, err := ResolveTag("DIM_DYN")
	if err != nil {
		t.Fatalf("ResolveTag failed: %v", err)
	}
	if info.Name != "DIM_DYN" || info.Description == "" {
		t.Errorf("Expected populated tag info, got %+v", info)
	}

	_, err = ResolveTag("DIM_BOGUS")
	var unknown *UnknownTagError
	if !errors.As(err, &unknown) {
		t.Fatalf("Expected UnknownTagError, got %v", err)
	}
	if unknown.Tag != "DIM_BOGUS" {
		t.Errorf("Expected tag DIM_BOGUS in error, got %q", unknown.Tag)
	}
}

func TestSchemaContainsRequiredAndStandard(t *testing.T) {
	schema := Schema()

	freq, ok := schema["SpectrometerFrequency"]
	if !ok || !freq.Required {
		t.Errorf("SpectrometerFrequency missing or not marked required")
	}
	echo, ok := schema["EchoTime"]
	if !ok || echo.Required {
		t.Errorf("EchoTime missing or wrongly marked required")
	}
	if echo.Unit != "s" {
		t.Errorf("Expected EchoTime unit s, got %q", echo.Unit)
	}
}

func TestTypeSpecCheck(t *testing.T) {
	cases := []struct {
		name  string
		spec  TypeSpec
		value any
		want  bool
	}{
		{"number", TypeSpec{KindNumber}, 12.5, true},
		{"number rejects string", TypeSpec{KindNumber}, "12.5", false},
		{"string", TypeSpec{KindString}, "1H", true},
		{"bool", TypeSpec{KindBool}, true, true},
		{"array of numbers", TypeSpec{KindArray, KindNumber}, []any{1.0, 2.0}, true},
		{"array of numbers rejects strings", TypeSpec{KindArray, KindNumber}, []any{"a"}, false},
		{"nested array", TypeSpec{KindArray, KindArray, KindNumber}, []any{[]any{1.0}}, true},
		{"bare array", TypeSpec{KindArray}, []any{"anything", 1.0}, true},
		{"object", TypeSpec{KindObject}, map[string]any{"a": 1.0}, true},
		{"empty array fails element check", TypeSpec{KindArray, KindNumber}, []any{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.spec.Check(tc.value); got != tc.want {
				t.Errorf("Check(%v) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestVersionString(t *testing.T) {
	if VersionString() != "0.7" {
		t.Errorf("Expected version 0.7, got %s", VersionString())
	}
	if IntentName(Version[0], Version[1]) != "mrs_v0_7" {
		t.Errorf("Unexpected intent name %s", IntentName(Version[0], Version[1]))
	}
}
