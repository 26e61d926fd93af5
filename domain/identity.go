package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// IdentityFromJSON stringifies a JSON user_id value. Strings are used as
// is, booleans become "true" or "false" and numbers are written in their
// canonical decimal form, so 42, 42.0 and 4.2e1 all yield "42". ok reports
// whether the value is truthy: "", 0, false, null and non-scalars are not.
func IdentityFromJSON(raw json.RawMessage) (identity string, ok bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return "", false
	}

	switch v := value.(type) {
	case string:
		return v, v != ""
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return v.String(), false
		}
		return formatNumber(f), f != 0
	case bool:
		return strconv.FormatBool(v), v
	default:
		return "", false
	}
}

func formatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
