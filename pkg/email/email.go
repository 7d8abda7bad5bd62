// Package email normalizes holder addresses used as OTP and ledger keys.
package email

import (
	"net/mail"
	"strings"
	"unicode"

	dErrors "credify/pkg/domain-errors"
)

// Normalize trims and lowercases addr.
func Normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Parse normalizes addr and rejects anything that is not a bare address.
func Parse(addr string) (string, error) {
	n := Normalize(addr)
	if n == "" {
		return "", dErrors.New(dErrors.CodeValidation, "email is required")
	}
	parsed, err := mail.ParseAddress(n)
	if err != nil || parsed.Address != n || !strings.Contains(n[strings.IndexByte(n, '@')+1:], ".") {
		return "", dErrors.New(dErrors.CodeValidation, "invalid email address")
	}
	return n, nil
}

// NormalizeList normalizes, drops empty entries and dedupes, preserving order.
func NormalizeList(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	result := make([]string, 0, len(addrs))
	for _, a := range addrs {
		n := Normalize(a)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result
}

// Mask hides the local part for logs: "ada@x.edu" becomes "a***@x.edu".
func Mask(addr string) string {
	at := strings.IndexByte(addr, '@')
	if at <= 0 {
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}

// DisplayName derives a greeting name from the local part.
func DisplayName(addr string) string {
	localPart := addr
	if at := strings.IndexByte(addr, '@'); at > 0 {
		localPart = addr[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "there"
	}
	return capitalize(parts[0])
}

func capitalize(s string) string {
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
