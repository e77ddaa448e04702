// Package normalizers provides per correlation-type normalization of raw
// identifier values into their canonical stored form.
package normalizers

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"github.com/Ramsey-B/juniper/pkg/errs"
	"github.com/Ramsey-B/juniper/pkg/models"
)

// Normalizer validates a raw value and returns its canonical form.
type Normalizer func(string) (string, error)

// registry maps correlation type IDs to their normalizers
var registry = map[int]Normalizer{
	models.FilesTypeID:  NormalizeMD5,
	models.DomainTypeID: NormalizeDomain,
	models.EmailTypeID:  NormalizeEmail,
	models.PhoneTypeID:  NormalizePhone,
	models.USBIDTypeID:  NormalizeUSBID,
}

// Register adds or replaces the normalizer for a correlation type ID.
func Register(typeID int, fn Normalizer) {
	registry[typeID] = fn
}

// Normalize dispatches to the normalizer registered for the given
// correlation type ID. Unknown type IDs fail with a ValidationError.
func Normalize(typeID int, value string) (string, error) {
	fn, ok := registry[typeID]
	if !ok {
		return "", errs.NewValidationError("correlation type", value, errs.ReasonUnknownType, "no normalizer registered")
	}
	return fn(value)
}

var md5Pattern = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)

// NormalizeMD5 validates an MD5-class file hash: exactly 32 hex characters,
// canonicalized to lower case.
func NormalizeMD5(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", errs.NewValidationError("file hash", value, errs.ReasonEmpty, "")
	}
	if !md5Pattern.MatchString(trimmed) {
		return "", errs.NewValidationError("file hash", value, errs.ReasonMalformed, "expected 32 hexadecimal characters")
	}
	return strings.ToLower(trimmed), nil
}

var hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// NormalizeDomain validates a bare hostname. Values carrying a URL scheme,
// path, or query string are rejected rather than stripped; the caller is
// expected to extract the host first.
func NormalizeDomain(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", errs.NewValidationError("domain", value, errs.ReasonEmpty, "")
	}
	if strings.Contains(trimmed, "://") {
		return "", errs.NewValidationError("domain", value, errs.ReasonMalformed, "URL scheme present")
	}
	if strings.ContainsAny(trimmed, "/?#") {
		return "", errs.NewValidationError("domain", value, errs.ReasonMalformed, "path or query present")
	}
	if !hostnamePattern.MatchString(trimmed) {
		return "", errs.NewValidationError("domain", value, errs.ReasonMalformed, "not a valid hostname")
	}
	return strings.ToLower(trimmed), nil
}

// NormalizeEmail validates a local-part@domain address and lower-cases it.
// The address grammar accepts a bare user@host with no dot in the host;
// that looseness is intentional and covered by tests.
func NormalizeEmail(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", errs.NewValidationError("email address", value, errs.ReasonEmpty, "")
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", errs.NewValidationError("email address", value, errs.ReasonMalformed, err.Error())
	}
	// reject display-name forms like "Jane <jane@example.com>"
	if !strings.EqualFold(addr.Address, trimmed) {
		return "", errs.NewValidationError("email address", value, errs.ReasonMalformed, "not a bare address")
	}
	return strings.ToLower(addr.Address), nil
}

// NormalizePhone strips separators from a phone number, preserving a leading
// country-code plus. It is a best-effort normalizer: digit counts are not
// range-checked.
func NormalizePhone(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", errs.NewValidationError("phone number", value, errs.ReasonEmpty, "")
	}

	var result strings.Builder
	digits := 0
	for i, r := range trimmed {
		switch {
		case unicode.IsDigit(r):
			result.WriteRune(r)
			digits++
		case r == '+' && i == 0:
			result.WriteRune(r)
		case r == ' ' || r == '(' || r == ')' || r == '-' || r == '.':
			// separator, dropped
		default:
			return "", errs.NewValidationError("phone number", value, errs.ReasonMalformed, "unexpected character")
		}
	}
	if digits == 0 {
		return "", errs.NewValidationError("phone number", value, errs.ReasonMalformed, "no digits")
	}
	return result.String(), nil
}

var usbIDPattern = regexp.MustCompile(`^([0-9a-fA-F]{4})([:\- ]?)([0-9a-fA-F]{4})$`)

// NormalizeUSBID validates a USB vendor:product identifier: four hex digits,
// an optional single separator (colon, dash, or space), four hex digits.
// The canonical form is lower case with the original separator preserved.
// Unseparated input is lower-cased the same way; one historical caller
// expected it passed through untouched, which tests document explicitly.
func NormalizeUSBID(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", errs.NewValidationError("USB device ID", value, errs.ReasonEmpty, "")
	}
	m := usbIDPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return "", errs.NewValidationError("USB device ID", value, errs.ReasonMalformed, "expected vendorID:productID")
	}
	return strings.ToLower(m[1]) + m[2] + strings.ToLower(m[3]), nil
}
