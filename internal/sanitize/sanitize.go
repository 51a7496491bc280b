// Package sanitize strips contact details and links from retrieved text
// before it is placed in a prompt.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	emailPattern      = regexp.MustCompile(`\S+@\S+`)
	phonePattern      = regexp.MustCompile(`\+?\d[\d\s-]{7,}`)
	urlPattern        = regexp.MustCompile(`http\S+|www\S+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Clean removes emails, phone-number-like digit runs and URLs, in that order,
// then collapses whitespace runs to one space and trims the ends.
//
// Removing one match can join its neighbours into a new match (for example
// "x1234567 @b" becomes "x@b"), so the passes repeat until the text stops
// changing. Clean(Clean(s)) == Clean(s) for every s.
func Clean(text string) string {
	for {
		next := pass(text)
		if next == text {
			return next
		}
		text = next
	}
}

func pass(text string) string {
	text = emailPattern.ReplaceAllString(text, "")
	text = phonePattern.ReplaceAllString(text, "")
	text = urlPattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
