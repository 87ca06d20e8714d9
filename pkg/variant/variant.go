// Package variant converts host values to the value forms the engine
// understands. Primitive values (text, integers, reals, booleans, nil) pass
// through; anything else is rendered through a generic textual fallback.
package variant

import "fmt"

// ToValue normalizes a host value for the engine. Integer types collapse to
// int, float32 widens to float64, and unsupported types stringify.
func ToValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case bool:
		return x
	case int:
		return x
	case int8:
		return int(x)
	case int16:
		return int(x)
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint8:
		return int(x)
	case uint16:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	case float32:
		return float64(x)
	case float64:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}

// AsInt extracts an index-like value from a call argument. Declarative-layer
// calls deliver numbers as int, int64, or float64 depending on the caller.
func AsInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}
