package pageops

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseActions reads a comma separated page order such as "3,blank,1".
func ParseActions(s string) ([]Action, error) {
	var out []Action
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		switch {
		case field == "":
			continue
		case strings.EqualFold(field, "blank"):
			out = append(out, Blank())
		default:
			n, err := strconv.Atoi(field)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid page %q", field)
			}
			out = append(out, Keep(n))
		}
	}
	return out, nil
}

// ParseRotations reads "page:degrees" pairs such as "1:90,3:-90". Repeated
// pages accumulate.
func ParseRotations(s string) (map[int]int, error) {
	out := make(map[int]int)
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		page, deg, ok := strings.Cut(field, ":")
		if !ok {
			return nil, fmt.Errorf("invalid rotation %q, want page:degrees", field)
		}
		n, err := strconv.Atoi(strings.TrimSpace(page))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid page in %q", field)
		}
		d, err := strconv.Atoi(strings.TrimSpace(deg))
		if err != nil {
			return nil, fmt.Errorf("invalid degrees in %q", field)
		}
		out[n] += d
	}
	return out, nil
}
