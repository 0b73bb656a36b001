package policy

import "reflect"

// operatorKeys are checked in this order; the first one present decides.
var operatorKeys = []string{"gt", "gte", "lt", "lte", "in"}

func conditionsMatch(conditions map[string]any, attributes map[string]any) bool {
	for k, expected := range conditions {
		if !conditionMatches(expected, attributes[k]) {
			return false
		}
	}
	return true
}

// conditionMatches compares one condition value against an attribute.
//
// An operator object without any recognised operator key is compared by deep
// equality against the whole object, so {"eq": 5} never matches the number 5.
func conditionMatches(expected, actual any) bool {
	ops, ok := asMap(expected)
	if !ok {
		return Equal(expected, actual)
	}
	for _, op := range operatorKeys {
		operand, present := ops[op]
		if !present {
			continue
		}
		switch op {
		case "in":
			return contains(operand, actual)
		default:
			return compare(op, actual, operand)
		}
	}
	return reflect.DeepEqual(normalize(expected), normalize(actual))
}

func compare(op string, actual, operand any) bool {
	a, ok := Number(actual)
	if !ok {
		return false
	}
	b, ok := Number(operand)
	if !ok {
		return false
	}
	switch op {
	case "gt":
		return a > b
	case "gte":
		return a >= b
	case "lt":
		return a < b
	case "lte":
		return a <= b
	}
	return false
}

func contains(list, actual any) bool {
	v := reflect.ValueOf(list)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return false
	}
	for i := range v.Len() {
		if Equal(v.Index(i).Interface(), actual) {
			return true
		}
	}
	return false
}

// Equal compares condition values, treating all numeric kinds as float64 and
// string-keyed maps and slices structurally.
func Equal(a, b any) bool {
	fa, aNum := Number(a)
	fb, bNum := Number(b)
	if aNum && bNum {
		return fa == fb
	}
	if aNum != bNum {
		return false
	}
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, true
	}
	return nil, false
}

// normalize converts string-keyed maps and slices to their any-typed form so
// values decoded from YAML and JSON compare equal to literals.
func normalize(v any) any {
	if m, ok := asMap(v); ok {
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = normalize(val)
		}
		return out
	}
	rv := reflect.ValueOf(v)
	if rv.IsValid() && rv.Kind() == reflect.Slice {
		out := make([]any, rv.Len())
		for i := range rv.Len() {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	}
	if f, ok := Number(v); ok {
		return f
	}
	return v
}

// Number converts any Go numeric kind to float64.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
