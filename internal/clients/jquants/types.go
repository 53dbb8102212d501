package jquants

import (
	"strconv"
	"strings"
)

// flexFloat64 handles numeric fields the API serves as either numbers or
// strings. Blank, null, and "N/A" values decode to zero.
type flexFloat64 float64

// UnmarshalJSON implements json.Unmarshaler
func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" || s == "N/A" || s == "NA" || s == "-" {
		*f = 0
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}

	*f = flexFloat64(v)
	return nil
}
