package dataset

import (
	"encoding/json"
	"strconv"
)

// ToString converts a decoded JSON scalar to the text typed into a form.
// Supports string, json.Number, float64, bool, the integer kinds and nil.
func ToString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	case int32:
		return strconv.FormatInt(int64(s), 10)
	case uint64:
		return strconv.FormatUint(s, 10)
	case uint:
		return strconv.FormatUint(uint64(s), 10)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	default:
		return ""
	}
}

func toStrings(m map[string]interface{}) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = ToString(v)
	}
	return out
}
