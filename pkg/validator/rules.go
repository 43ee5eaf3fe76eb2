package validator

import (
	"net/mail"
	"strings"
)

// Required fails when the value is empty or whitespace only.
func Required(field, value string) Rule {
	return Rule{
		Check: func() bool {
			return strings.TrimSpace(value) != ""
		},
		Error: ValidationError{
			Field:   field,
			Message: "is required",
		},
	}
}

// MaxLen fails when the value is longer than limit bytes.
func MaxLen(field, value string, limit int) Rule {
	return Rule{
		Check: func() bool {
			return len(value) <= limit
		},
		Error: ValidationError{
			Field:   field,
			Message: "is too long",
		},
	}
}

// ValidEmail accepts RFC 5322 addresses with the extra shape checks a
// signup form expects: a single @, a non-empty local part, and a dotted
// domain with no empty labels.
func ValidEmail(field, value string) Rule {
	return Rule{
		Check: func() bool {
			if strings.TrimSpace(value) == "" {
				return false
			}

			addr, err := mail.ParseAddress(value)
			if err != nil {
				return false
			}

			local, domain, ok := strings.Cut(addr.Address, "@")
			if !ok || local == "" {
				return false
			}
			if !strings.Contains(domain, ".") {
				return false
			}
			for part := range strings.SplitSeq(domain, ".") {
				if part == "" {
					return false
				}
			}
			return true
		},
		Error: ValidationError{
			Field:   field,
			Message: "must be a valid email address",
		},
	}
}
