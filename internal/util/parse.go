package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	nonPriceRegex    = regexp.MustCompile(`[^0-9.]`)
	leadingNumberRex = regexp.MustCompile(`^\d*\.?\d*`)
)

// NormalizePrice turns a display price such as "₹1,299" into 1299.
// Every character other than a digit or '.' is dropped and the longest leading
// decimal number of what remains is parsed. Unparseable input yields 0.
func NormalizePrice(display string) float64 {
	stripped := nonPriceRegex.ReplaceAllString(display, "")
	num := leadingNumberRex.FindString(stripped)
	if num == "" || num == "." {
		return 0
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// EncodeQuery trims the query and joins whitespace runs with '+', the form the
// marketplace search pages expect.
func EncodeQuery(q string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(q), "+")
}
