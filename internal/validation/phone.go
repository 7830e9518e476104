package validation

import "strings"

// localDigits is the length of a subscriber number without trunk prefix or
// country code. It doubles as the width of the legacy suffix index.
const localDigits = 9

// NormalizePhone canonicalizes a raw phone number. countryCode is given
// without "+". It is pure: the same input always yields the same output.
//
//	"0241234567", "241234567", "233241234567", "+233 24 123 4567" -> "+233241234567"
//
// Inputs shorter than a subscriber number are kept as bare digits so short
// codes are not mangled. The empty string means nothing usable was found.
func NormalizePhone(raw, countryCode string) string {
	var b strings.Builder
	plus := false
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			plus = true
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}

	if plus {
		return "+" + digits
	}
	if strings.HasPrefix(digits, "00") && len(digits) > 2 {
		return "+" + digits[2:]
	}

	switch {
	case len(digits) == localDigits+1 && digits[0] == '0':
		return "+" + countryCode + digits[1:]
	case len(digits) == localDigits:
		return "+" + countryCode + digits
	case len(digits) == len(countryCode)+localDigits && strings.HasPrefix(digits, countryCode):
		return "+" + digits
	case len(digits) > localDigits:
		return "+" + digits
	}
	return digits
}

// PhoneSuffix returns the last nine digits of phone, or all of its digits
// when it is shorter.
func PhoneSuffix(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if len(d) > localDigits {
		return d[len(d)-localDigits:]
	}
	return d
}
