package lab

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBarcodeRange is returned when a sequence number does not fit the
// generator's code space.
var ErrBarcodeRange = errors.New("sequence out of barcode range")

// BarcodeGenerator turns a store-assigned sequence number into a sample
// barcode. Distinct sequence numbers must yield distinct barcodes; a
// sequence the generator cannot encode is an error, never a truncated code.
type BarcodeGenerator interface {
	Barcode(seq int64) (string, error)
}

// EAN13 generates 13-digit EAN codes: the prefix, the sequence number
// zero-padded to fill twelve digits, then the check digit. With the default
// three-digit prefix the sequence is limited to nine digits.
type EAN13 struct {
	Prefix string
}

// DefaultBarcodes is the generator used when a store is not given one.
var DefaultBarcodes BarcodeGenerator = EAN13{Prefix: "789"}

func (g EAN13) Barcode(seq int64) (string, error) {
	if strings.Trim(g.Prefix, "0123456789") != "" || len(g.Prefix) >= 12 {
		return "", fmt.Errorf("barcode prefix %q must be fewer than twelve digits", g.Prefix)
	}
	width := 12 - len(g.Prefix)
	digits := fmt.Sprintf("%0*d", width, seq)
	if seq < 0 || len(digits) > width {
		return "", fmt.Errorf("sequence %d with prefix %q: %w", seq, g.Prefix, ErrBarcodeRange)
	}
	body := g.Prefix + digits
	return body + string(rune('0'+ean13Check(body))), nil
}

// ean13Check computes the check digit over twelve digits.
func ean13Check(digits string) int {
	sum := 0
	for i, c := range digits {
		d := int(c - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return (10 - sum%10) % 10
}

// ValidEAN13 reports whether code is thirteen digits with a correct check
// digit.
func ValidEAN13(code string) bool {
	if len(code) != 13 || strings.Trim(code, "0123456789") != "" {
		return false
	}
	return int(code[12]-'0') == ean13Check(code[:12])
}
