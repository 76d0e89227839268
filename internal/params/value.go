package params

import "fmt"

type missing struct{}

func (missing) String() string { return "<missing>" }

// Missing marks a value that has not been supplied yet.
var Missing any = missing{}

func IsMissing(v any) bool {
	_, ok := v.(missing)
	return ok
}

// normalize accepts numbers, booleans and strings; integers become float64.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case float64, bool, string:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case missing:
		return x, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
