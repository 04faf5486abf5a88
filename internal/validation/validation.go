package validation

import (
	"regexp"
	"strings"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func Email(field, value string, v Violations) {
	if !emailRe.MatchString(strings.TrimSpace(value)) {
		v[field] = "invalid_email"
	}
}

func MinLen(field, value string, n int, v Violations) {
	if len(value) < n {
		v[field] = "too_short"
	}
}

func PositiveFloat(field string, val float64, v Violations) {
	if val <= 0 {
		v[field] = "must_be_positive"
	}
}

func RangeFloat(field string, val, minVal, maxVal float64, v Violations) {
	if val < minVal || val > maxVal {
		v[field] = "out_of_range"
	}
}

func RangeInt(field string, val, minVal, maxVal int, v Violations) {
	if val < minVal || val > maxVal {
		v[field] = "out_of_range"
	}
}

// OneOf checks membership in a closed choice list. Empty values pass; combine
// with Required when the field is mandatory.
func OneOf(field, value string, allowed []string, v Violations) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = "invalid_choice"
}
