// Package expiry generates the card validity periods offered when a card is
// created or recreated. Cards are issued for at least two years; four
// consecutive years are offered, all in the current month.
package expiry

import (
	"fmt"
	"regexp"
	"time"
)

const (
	minYears = 2
	count    = 4
)

var pattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Options returns the expiry dates selectable at now, earliest first.
func Options(now time.Time) []Option {
	month := int(now.Month())
	start := now.Year() + minYears

	out := make([]Option, 0, count)
	for year := start; year < start+count; year++ {
		v := fmt.Sprintf("%02d/%02d", month, year%100)
		out = append(out, Option{Value: v, Label: v})
	}
	return out
}

// Default is the earliest selectable expiry date.
func Default(now time.Time) string {
	return Options(now)[0].Value
}

// IsWellFormed reports whether s looks like MM/YY.
func IsWellFormed(s string) bool {
	return pattern.MatchString(s)
}

// IsOffered reports whether s is one of the options selectable at now.
func IsOffered(s string, now time.Time) bool {
	for _, o := range Options(now) {
		if o.Value == s {
			return true
		}
	}
	return false
}
