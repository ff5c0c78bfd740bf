package query

import (
	"strconv"
	"strings"
)

// Int parses a query-string value as an integer.
// The second return reports whether the parse succeeded.
func Int(val string) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, false
	}
	return i, true
}

// Flag parses a query-string boolean. Only "true" and "1" are truthy;
// every other value (including absence) is false.
func Flag(val string) bool {
	return val == "true" || val == "1"
}

// StringSlice parses a single comma-separated query string
// into a trimmed slice of strings.
func StringSlice(val string) []string {
	if val == "" {
		return nil
	}
	var res []string
	for _, v := range strings.Split(val, ",") {
		clean := strings.TrimSpace(v)
		if clean != "" {
			res = append(res, clean)
		}
	}
	return res
}
