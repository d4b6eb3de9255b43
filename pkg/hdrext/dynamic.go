package hdrext

import (
	"fmt"
)

// Ramp is the short form of a per-dimension header entry: the value at
// index i is Start + i*Increment.
type Ramp struct {
	Start     float64
	Increment float64
}

// DynamicValue is one entry of a dim_N_header object. Exactly one of Values
// (explicit per-index values, the "long" form) or Ramp (the "short" form) is
// set. UserDefined entries additionally carry a Description and serialise as
// {"Value": ..., "Description": ...}.
type DynamicValue struct {
	Values      []any
	Ramp        *Ramp
	UserDefined bool
	Description string
}

// NewDynamicValue builds an entry from explicit values, compacting numeric
// evenly-spaced lists into the short form.
func NewDynamicValue(values []any) DynamicValue {
	if ramp, ok := compact(values); ok {
		return DynamicValue{Ramp: &ramp}
	}
	return DynamicValue{Values: normalizeSlice(values)}
}

// compact attempts the long-to-short conversion: a list of two or more
// numbers with a constant difference becomes a Ramp. The differences are
// compared exactly, so only increments representable without rounding
// (0.25, 0.5, integers) round-trip through Expand; a list expanded from
// an increment like 0.01 stays in the long form. Upstream readers expect
// the same behaviour.
func compact(values []any) (Ramp, bool) {
	if len(values) < 2 {
		return Ramp{}, false
	}
	nums := make([]float64, len(values))
	for i, v := range values {
		f, ok := toFloat(v)
		if !ok {
			return Ramp{}, false
		}
		nums[i] = f
	}
	inc := nums[1] - nums[0]
	for i := 2; i < len(nums); i++ {
		if nums[i]-nums[i-1] != inc {
			return Ramp{}, false
		}
	}
	return Ramp{Start: nums[0], Increment: inc}, true
}

// Expand returns the long form of the entry for a dimension of length n.
func (dv DynamicValue) Expand(n int) []any {
	if dv.Ramp != nil {
		out := make([]any, n)
		for i := 0; i < n; i++ {
			out[i] = dv.Ramp.Start + float64(i)*dv.Ramp.Increment
		}
		return out
	}
	return append([]any(nil), dv.Values...)
}

// Len returns the explicit value count, or -1 for the short form (which
// matches any dimension length).
func (dv DynamicValue) Len() int {
	if dv.Ramp != nil {
		return -1
	}
	return len(dv.Values)
}

// withPayload returns a copy of dv carrying the given long-form values,
// compacted back to the short form when dv itself was short.
func (dv DynamicValue) withPayload(values []any) DynamicValue {
	out := DynamicValue{UserDefined: dv.UserDefined, Description: dv.Description}
	if dv.Ramp != nil {
		if ramp, ok := compact(values); ok {
			out.Ramp = &ramp
			return out
		}
	}
	out.Values = normalizeSlice(values)
	return out
}

// Copy returns a deep copy of the entry.
func (dv DynamicValue) Copy() DynamicValue {
	out := dv
	if dv.Ramp != nil {
		r := *dv.Ramp
		out.Ramp = &r
	}
	if dv.Values != nil {
		out.Values = make([]any, len(dv.Values))
		for i, v := range dv.Values {
			out.Values[i] = deepCopyValue(v)
		}
	}
	return out
}

// parseDynamicValue interprets a JSON value as a per-dimension header entry.
func parseDynamicValue(raw any) (DynamicValue, error) {
	switch v := raw.(type) {
	case []any:
		return DynamicValue{Values: normalizeSlice(v)}, nil
	case map[string]any:
		if inner, ok := v["Value"]; ok {
			desc, _ := v["Description"].(string)
			parsed, err := parseDynamicValue(inner)
			if err != nil {
				return DynamicValue{}, err
			}
			if parsed.UserDefined {
				return DynamicValue{}, fmt.Errorf("nested Value objects are not permitted")
			}
			parsed.UserDefined = true
			parsed.Description = desc
			return parsed, nil
		}
		start, okStart := toFloat(v["start"])
		inc, okInc := toFloat(v["increment"])
		if !okStart || !okInc {
			return DynamicValue{}, fmt.Errorf("dimension header object must contain 'start' and 'increment' or 'Value' and 'Description'")
		}
		return DynamicValue{Ramp: &Ramp{Start: start, Increment: inc}}, nil
	default:
		return DynamicValue{}, fmt.Errorf("dimension header entry must be an array or object, got %T", raw)
	}
}

// marshal returns the canonical JSON representation of the entry.
func (dv DynamicValue) marshal() any {
	var payload any
	if dv.Ramp != nil {
		payload = map[string]any{"start": dv.Ramp.Start, "increment": dv.Ramp.Increment}
	} else {
		payload = append([]any(nil), dv.Values...)
	}
	if dv.UserDefined {
		return map[string]any{"Value": payload, "Description": dv.Description}
	}
	return payload
}

// SplitAfter partitions the entry of a dimension of length n into the parts
// before and after the zero-based index (inclusive, exclusive).
func (dv DynamicValue) SplitAfter(n, index int) (DynamicValue, DynamicValue) {
	long := dv.Expand(n)
	return dv.withPayload(long[:index+1]), dv.withPayload(long[index+1:])
}

// Extract partitions the entry of a dimension of length n into the values at
// the given indices (in order) and the remainder (in original order).
func (dv DynamicValue) Extract(n int, indices []int) (remainder, selected DynamicValue) {
	long := dv.Expand(n)
	drop := make(map[int]bool, len(indices))
	picked := make([]any, 0, len(indices))
	for _, idx := range indices {
		picked = append(picked, long[idx])
		drop[idx] = true
	}
	rest := make([]any, 0, n-len(indices))
	for i, v := range long {
		if !drop[i] {
			rest = append(rest, v)
		}
	}
	return dv.withPayload(rest), dv.withPayload(picked)
}

// MergeWith concatenates the entry (length n) with other (length m),
// preserving the receiver's form and annotation.
func (dv DynamicValue) MergeWith(other DynamicValue, n, m int) DynamicValue {
	joined := append(dv.Expand(n), other.Expand(m)...)
	return dv.withPayload(joined)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
