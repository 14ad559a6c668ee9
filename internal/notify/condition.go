package notify

import (
	"strconv"
	"strings"
)

// evalCondition evaluates a rule condition string against a decoded task
// event.
//
// Supported expressions (field operator value):
//
//	action == deleted
//	status == BLOCKED
//	status != DONE
//	position > 10
//	task_id >= 100
//
// String fields support == and !=; numeric fields support the full
// comparison set. Returns (fires bool, triggering value string).
// Returns (false, "") if the expression cannot be parsed or the field is
// absent from the event.
func evalCondition(cond string, ev map[string]interface{}) (bool, string) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, ""
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	raw, ok := ev[field]
	if !ok {
		return false, ""
	}

	switch v := raw.(type) {
	case string:
		switch op {
		case "==":
			return v == rhs, v
		case "!=":
			return v != rhs, v
		}
		return false, ""

	case float64:
		threshold, err := strconv.ParseFloat(rhs, 64)
		if err != nil {
			return false, ""
		}
		return compareFloat(v, op, threshold), strconv.FormatFloat(v, 'f', -1, 64)

	default:
		return false, ""
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
