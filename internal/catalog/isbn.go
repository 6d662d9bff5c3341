package catalog

import "strings"

// CanonicalISBN strips separators and validates the check digit, returning
// the cleaned 10 or 13 digit form.
func CanonicalISBN(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r == 'x' || r == 'X':
			return 'X'
		default:
			return -1
		}
	}, raw)

	switch len(cleaned) {
	case 10:
		if !validISBN10(cleaned) {
			return "", ErrInvalidISBN
		}
	case 13:
		if !validEAN13(cleaned) {
			return "", ErrInvalidISBN
		}
	default:
		return "", ErrInvalidISBN
	}
	return cleaned, nil
}

// EAN13 converts a canonical ISBN to its 13 digit EAN form.
func EAN13(canonical string) (string, error) {
	switch len(canonical) {
	case 13:
		if !validEAN13(canonical) {
			return "", ErrInvalidISBN
		}
		return canonical, nil
	case 10:
		if !validISBN10(canonical) {
			return "", ErrInvalidISBN
		}
		body := "978" + canonical[:9]
		return body + string(rune('0'+ean13CheckDigit(body))), nil
	default:
		return "", ErrInvalidISBN
	}
}

func validISBN10(s string) bool {
	sum := 0
	for i, r := range s {
		var v int
		switch {
		case r >= '0' && r <= '9':
			v = int(r - '0')
		case r == 'X' && i == 9:
			v = 10
		default:
			return false
		}
		sum += (10 - i) * v
	}
	return sum%11 == 0
}

func validEAN13(s string) bool {
	if strings.ContainsRune(s, 'X') {
		return false
	}
	return ean13CheckDigit(s[:12]) == int(s[12]-'0')
}

func ean13CheckDigit(body string) int {
	sum := 0
	for i, r := range body {
		v := int(r - '0')
		if i%2 == 1 {
			v *= 3
		}
		sum += v
	}
	return (10 - sum%10) % 10
}
