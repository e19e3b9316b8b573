// ABOUTME: Domain input validation for Portuguese identity and contact fields
// ABOUTME: NIF checksum, CC number, postal code, phone and email formats
package validate

import (
	"regexp"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/nyaruka/phonenumbers"

	"github.com/openimob/imob/docstore"
)

// DefaultRegion is the region used to parse national phone numbers.
const DefaultRegion = "PT"

var postalCodeRe = regexp.MustCompile(`^\d{4}-\d{3}$`)

// NIF validates a Portuguese tax number: nine digits with a mod-11 check
// digit and a known leading digit.
func NIF(nif string) error {
	if len(nif) != 9 {
		return &docstore.ValidationError{Field: "nif", Message: "must be 9 digits"}
	}
	switch nif[0] {
	case '1', '2', '3', '5', '6', '8', '9':
	default:
		return &docstore.ValidationError{Field: "nif", Message: "invalid leading digit"}
	}
	total := 0
	for i := 0; i < 8; i++ {
		d := nif[i]
		if d < '0' || d > '9' {
			return &docstore.ValidationError{Field: "nif", Message: "must be 9 digits"}
		}
		total += int(d-'0') * (9 - i)
	}
	check := 11 - total%11
	if check >= 10 {
		check = 0
	}
	if nif[8] < '0' || nif[8] > '9' || int(nif[8]-'0') != check {
		return &docstore.ValidationError{Field: "nif", Message: "checksum mismatch"}
	}
	return nil
}

// CCNumber validates a Cartão de Cidadão number: eight digits, a check
// digit, a two-letter version and a final check character, verified with
// the base-36 Luhn variant the card uses.
func CCNumber(cc string) error {
	cc = strings.ToUpper(strings.ReplaceAll(cc, " ", ""))
	if len(cc) != 12 {
		return &docstore.ValidationError{Field: "ccNumber", Message: "must be 12 characters"}
	}
	sum := 0
	double := false
	for i := len(cc) - 1; i >= 0; i-- {
		v := ccCharValue(cc[i])
		if v < 0 {
			return &docstore.ValidationError{Field: "ccNumber", Message: "invalid character"}
		}
		if double {
			v *= 2
			if v > 9 {
				v -= 9
			}
		}
		sum += v
		double = !double
	}
	if sum%10 != 0 {
		return &docstore.ValidationError{Field: "ccNumber", Message: "checksum mismatch"}
	}
	return nil
}

func ccCharValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	}
	return -1
}

// PostalCode validates the NNNN-NNN Portuguese postal code format.
func PostalCode(code string) error {
	if !postalCodeRe.MatchString(code) {
		return &docstore.ValidationError{Field: "postalCode", Message: "must match NNNN-NNN"}
	}
	return nil
}

// Phone validates a phone number, defaulting to the PT region for national
// formats. Returns the E.164 normalization.
func Phone(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, DefaultRegion)
	if err != nil {
		return "", &docstore.ValidationError{Field: "phone", Message: "unparseable number"}
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", &docstore.ValidationError{Field: "phone", Message: "not a valid number"}
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// Email validates an email address format.
func Email(email string) error {
	if err := checkmail.ValidateFormat(email); err != nil {
		return &docstore.ValidationError{Field: "email", Message: "malformed address"}
	}
	return nil
}
