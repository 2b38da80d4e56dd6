package courier

import (
	"strings"
	"unicode"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/domain"
	apperrors "github.com/kundan-thakur61/mobilecoverBackend/pkg/errors"
)

// Courier-side structural rules for the address line. Delhivery in particular
// rejects addresses without a house number or with no separator, so the rules
// are enforced (and repaired) before the booking call instead of after it.
const minAddressLen = 10

// NormalizeAddress validates the shipping address against courier rules,
// attempting a best-effort repair of near-misses first: an address with no
// digit gets the pincode appended, a single unbroken token gets the city
// appended as a separator. If the repaired address still fails, the returned
// error names exactly which rule failed.
func NormalizeAddress(a domain.Address) (domain.Address, error) {
	out := a
	out.Line1 = strings.TrimSpace(a.Line1)
	out.Line2 = strings.TrimSpace(a.Line2)
	out.City = strings.TrimSpace(a.City)
	out.Pincode = strings.TrimSpace(a.Pincode)

	fields := map[string]string{}
	if out.City == "" {
		fields["city"] = "city is required"
	}
	if len(out.Pincode) != 6 || !allDigits(out.Pincode) {
		fields["pincode"] = "pincode must be exactly 6 digits"
	}
	if len(fields) > 0 {
		return out, &apperrors.ErrValidation{Message: "invalid shipping address", Fields: fields}
	}

	// Repair pass: only append, never rewrite what the customer typed.
	if !containsDigit(out.Line1) {
		out.Line1 = strings.TrimSpace(out.Line1 + " " + out.Pincode)
	}
	if !strings.Contains(out.Line1, " ") && out.City != "" {
		out.Line1 = out.Line1 + " " + out.City
	}

	switch {
	case len(out.Line1) < minAddressLen:
		fields["address"] = "address line must be at least 10 characters"
	case !containsDigit(out.Line1):
		fields["address"] = "address line must contain a house or street number"
	case !strings.Contains(out.Line1, " "):
		fields["address"] = "address line must contain a space separator"
	}
	if len(fields) > 0 {
		return out, &apperrors.ErrValidation{Message: "invalid shipping address", Fields: fields}
	}
	return out, nil
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
