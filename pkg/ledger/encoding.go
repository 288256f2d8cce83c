package ledger

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Fixed-point scales used by the registry contract.
const (
	GPAScale    = 100
	GPADecimals = 2
	MaxGPA      = 4.0

	CreditScale    = 10
	CreditDecimals = 1
	MaxCredits     = 1000.0

	MinYear     = 1900
	MaxYear     = 2200
	MaxSemester = 20
)

// EncodeGPA converts a GPA to hundredths, rounding half up on the decimal value.
func EncodeGPA(gpa float64) (uint64, error) {
	if gpa > MaxGPA {
		return 0, fmt.Errorf("gpa %v exceeds %v", gpa, MaxGPA)
	}
	v, err := scaleDecimal(gpa, GPADecimals)
	if err != nil {
		return 0, fmt.Errorf("gpa: %w", err)
	}
	return v, nil
}

// DecodeGPA reverses EncodeGPA.
func DecodeGPA(v uint64) float64 {
	return float64(v) / GPAScale
}

// EncodeCredits converts credits to tenths.
func EncodeCredits(credits float64) (uint64, error) {
	if credits > MaxCredits {
		return 0, fmt.Errorf("credits %v exceeds %v", credits, MaxCredits)
	}
	v, err := scaleDecimal(credits, CreditDecimals)
	if err != nil {
		return 0, fmt.Errorf("credits: %w", err)
	}
	return v, nil
}

// DecodeCredits reverses EncodeCredits.
func DecodeCredits(v uint64) float64 {
	return float64(v) / CreditScale
}

// EncodeYear range-checks a calendar year.
func EncodeYear(year int) (uint16, error) {
	if year < MinYear || year > MaxYear {
		return 0, fmt.Errorf("year %d outside %d..%d", year, MinYear, MaxYear)
	}
	return uint16(year), nil
}

// EncodeSemester range-checks a semester ordinal.
func EncodeSemester(semester int) (uint8, error) {
	if semester < 1 || semester > MaxSemester {
		return 0, fmt.Errorf("semester %d outside 1..%d", semester, MaxSemester)
	}
	return uint8(semester), nil
}

// EncodeHash parses a 0x-prefixed 32-byte hex digest.
func EncodeHash(raw string) ([32]byte, error) {
	var out [32]byte
	h := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), "0x")
	if len(h) != 64 {
		return out, fmt.Errorf("hash %q is not 32 bytes", raw)
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return out, fmt.Errorf("hash %q: %w", raw, err)
	}
	copy(out[:], b)
	return out, nil
}

// EncodeID maps a backend identifier to the bytes32 key used on the ledger.
func EncodeID(id string) [32]byte {
	return Keccak256([]byte(id))
}

// FormatBytes32 renders a bytes32 value as 0x-prefixed hex.
func FormatBytes32(b [32]byte) string {
	return "0x" + hex.EncodeToString(b[:])
}

// Keccak256 hashes data with the legacy Keccak permutation used by EVM contracts.
func Keccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Selector returns the 4-byte function selector for a contract method signature.
func Selector(signature string) string {
	sum := Keccak256([]byte(signature))
	return "0x" + hex.EncodeToString(sum[:4])
}

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

// ParseTokenID accepts a decimal or 0x-hex token identifier.
func ParseTokenID(raw string) (*big.Int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("empty token id")
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid token id %q", raw)
	}
	return v, nil
}

// FormatTokenID renders a token identifier in its canonical decimal form.
func FormatTokenID(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// NormalizeTokenID parses and re-formats a token identifier.
func NormalizeTokenID(raw string) (string, error) {
	v, err := ParseTokenID(raw)
	if err != nil {
		return "", err
	}
	return FormatTokenID(v), nil
}

// scaleDecimal multiplies value by 10^decimals using its shortest decimal
// representation, rounding half up, so 3.675 encodes as 368 rather than 367.
func scaleDecimal(value float64, decimals int) (uint64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("value is not finite")
	}
	if value < 0 {
		return 0, fmt.Errorf("value %v is negative", value)
	}
	text := strconv.FormatFloat(value, 'f', -1, 64)
	intPart, fracPart, _ := strings.Cut(text, ".")
	for len(fracPart) <= decimals {
		fracPart += "0"
	}
	digits := intPart + fracPart[:decimals]
	scaled, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value %v out of range: %w", value, err)
	}
	if fracPart[decimals] >= '5' {
		scaled++
	}
	return scaled, nil
}
