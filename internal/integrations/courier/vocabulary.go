package courier

import (
	"slices"
	"strings"
	"unicode"
)

// Vocabulary is a courier's status keyword set. Matching is a
// case-insensitive substring test, except for keywords of three characters
// or fewer ("OFD"), which must match a whole token.
type Vocabulary struct {
	Delivered      []string
	OutForDelivery []string
	// NotDelivered wins over Delivered ("UNDELIVERED", "NOT DELIVERED").
	NotDelivered []string
}

const abbrevMaxLen = 3

func (v Vocabulary) IsDelivered(status string) bool {
	s := strings.ToUpper(status)
	if containsAny(s, v.NotDelivered) {
		return false
	}
	return containsAny(s, v.Delivered)
}

func (v Vocabulary) IsOutForDelivery(status string) bool {
	s := strings.ToUpper(status)
	return containsAny(s, v.OutForDelivery)
}

func containsAny(upper string, words []string) bool {
	var tokens []string
	for _, w := range words {
		w = strings.ToUpper(w)
		switch {
		case w == "":
		case len(w) <= abbrevMaxLen:
			if tokens == nil {
				tokens = strings.FieldsFunc(upper, func(r rune) bool {
					return !unicode.IsLetter(r) && !unicode.IsDigit(r)
				})
			}
			if slices.Contains(tokens, w) {
				return true
			}
		case strings.Contains(upper, w):
			return true
		}
	}
	return false
}
