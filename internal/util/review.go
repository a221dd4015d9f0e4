package util

import (
	"regexp"
	"strings"
)

const readMoreMarker = "READ MORE"

var (
	leadingRatingRegex = regexp.MustCompile(`^\d+`)
	boilerplateRegex   = regexp.MustCompile(`Perfect product!|Awesome|Decent product`)
)

// CleanReview prepares scraped review text for the classifier: the leading
// star rating is dropped, everything from "READ MORE" on is cut, and the first
// stock review title a marketplace prepends is removed. Later occurrences are
// part of the review text and stay.
func CleanReview(review string) string {
	cleaned := leadingRatingRegex.ReplaceAllString(review, "")
	if idx := strings.Index(cleaned, readMoreMarker); idx >= 0 {
		cleaned = cleaned[:idx]
	}
	if loc := boilerplateRegex.FindStringIndex(cleaned); loc != nil {
		cleaned = cleaned[:loc[0]] + cleaned[loc[1]:]
	}
	return strings.TrimSpace(cleaned)
}
