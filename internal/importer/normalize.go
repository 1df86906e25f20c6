package importer

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// smallWords stay lower case inside a title-cased name.
var smallWords = map[string]bool{
	"of": true, "the": true, "and": true, "at": true, "in": true, "on": true, "for": true,
}

// upperTokens are kept upper case after title-casing.
var upperTokens = map[string]bool{
	"ALF": true, "LLC": true, "INC": true, "II": true, "III": true, "IV": true, "RCF": true, "ECC": true,
}

// normalizeName title-cases s when it is written entirely in capitals.
// Mixed-case input is returned trimmed and otherwise untouched.
func normalizeName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if !isAllCaps(s) {
		return s
	}
	caser := cases.Title(language.English)
	words := strings.Fields(s)
	for i, w := range words {
		bare := strings.Trim(w, ".,()")
		switch {
		case upperTokens[bare]:
			continue
		case i > 0 && smallWords[strings.ToLower(w)]:
			words[i] = strings.ToLower(w)
		default:
			words[i] = caser.String(w)
		}
	}
	return strings.Join(words, " ")
}

func isAllCaps(s string) bool {
	letters := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters = true
		}
	}
	return letters
}

// slugify lower-cases s and joins its alphanumeric runs with hyphens.
func slugify(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '\'':
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if r > unicode.MaxASCII {
				continue
			}
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
	}
	return b.String()
}

// facilitySlug builds the public path for a facility, which also keys its
// photo folder: state/city/name-license.
func facilitySlug(stateSlug, city, name, license string) string {
	parts := []string{slugify(stateSlug), slugify(city), slugify(name + " " + license)}
	for _, p := range parts {
		if p == "" {
			return ""
		}
	}
	return strings.Join(parts, "/")
}

// parseCapacity reads a bed count, tolerating thousands separators and a
// trailing ".0" from spreadsheets. Blank or invalid input is nil.
func parseCapacity(s string) *int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = strings.TrimSuffix(s, ".0")
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// normalizePhone formats ten-digit US numbers as (555) 123-4567 and
// returns anything else trimmed.
func normalizePhone(s string) string {
	var digits []rune
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return strings.TrimSpace(s)
	}
	d := string(digits)
	return "(" + d[:3] + ") " + d[3:6] + "-" + d[6:]
}
