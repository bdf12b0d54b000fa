package sftp

import (
	"encoding/json"
	"strings"
)

// ParseBool coerces a loosely typed flag value to a bool. Register fields
// such as is_encrypted and is_secure_connection arrive as whatever the
// caller stored, so the coercion rules are spelled out here rather than
// delegated to a library call with a different table.
//
// The value is true when it is:
//   - a bool that is true
//   - a string equal to "1", "true", "yes" or "on" after trimming,
//     case-insensitive
//   - a nonzero integer, unsigned integer or float
//   - a json.Number whose numeric value is nonzero
//
// Everything else, nil included, is false.
func ParseBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "on":
			return true
		}
		return false
	case int:
		return t != 0
	case int8:
		return t != 0
	case int16:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case uint:
		return t != 0
	case uint8:
		return t != 0
	case uint16:
		return t != 0
	case uint32:
		return t != 0
	case uint64:
		return t != 0
	case float32:
		return t != 0
	case float64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	}
	return false
}
