package rules

import (
	"fmt"
	"strings"
)

// Check-digit validation for the two national identifiers carried by
// contribution and transfer files: the 11-digit worker social security
// number (NSS) and the 13-character tax identifier (RFC).

// ValidateNSS verifies the IMSS check digit: the last digit is a Luhn
// modulus-10 check over the first ten.
func ValidateNSS(nss string) error {
	if len(nss) != 11 {
		return fmt.Errorf("NSS must be 11 digits, got %d characters", len(nss))
	}
	for _, c := range nss {
		if c < '0' || c > '9' {
			return fmt.Errorf("NSS contains non-digit character %q", c)
		}
	}

	want := luhnCheckDigit(nss[:10])
	if got := int(nss[10] - '0'); got != want {
		return fmt.Errorf("NSS check digit %d, expected %d", got, want)
	}
	return nil
}

// luhnCheckDigit computes the modulus-10 check digit over a digit string,
// doubling alternate digits starting from the rightmost.
func luhnCheckDigit(digits string) int {
	sum := 0
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

// rfcCharValues is the official character table for the RFC verifier digit.
// Position in the string is the character's numeric value.
const rfcCharValues = "0123456789ABCDEFGHIJKLMN&OPQRSTUVWXYZ Ñ"

// ValidateRFC verifies the modulus-11 verifier character closing a
// 13-character RFC (12-character entity RFCs are accepted with the same
// weighting shifted).
func ValidateRFC(rfc string) error {
	chars := []rune(strings.ToUpper(strings.TrimSpace(rfc)))
	if len(chars) != 12 && len(chars) != 13 {
		return fmt.Errorf("RFC must be 12 or 13 characters, got %d", len(chars))
	}

	payload := chars[:len(chars)-1]
	sum := 0
	// The leftmost character of a 13-char RFC weighs 13; of a 12-char
	// RFC, 12. Weights descend to 2 at the payload's last character.
	weight := len(chars)
	for _, c := range payload {
		v := strings.IndexRune(rfcCharValues, c)
		if v < 0 {
			return fmt.Errorf("RFC contains invalid character %q", c)
		}
		sum += v * weight
		weight--
	}

	var want rune
	switch mod := sum % 11; mod {
	case 0:
		want = '0'
	case 1:
		want = 'A'
	default:
		want = rune('0' + 11 - mod)
	}

	if got := chars[len(chars)-1]; got != want {
		return fmt.Errorf("RFC verifier character %q, expected %q", got, want)
	}
	return nil
}
