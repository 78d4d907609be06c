package domain

import (
	"fmt"
	"strings"
)

// EntityID is a canonical 5-character zero-padded county FIPS code.
type EntityID string

// Placeholder is the identifier USAFacts uses for cases not attributed to a county.
const Placeholder EntityID = "00000"

const fipsWidth = 5

// IsPlaceholder reports whether id is the unallocated placeholder.
func (id EntityID) IsPlaceholder() bool {
	return id == Placeholder
}

func (id EntityID) String() string {
	return string(id)
}

// NormalizeFIPS canonicalizes a raw county identifier. It accepts integers
// of up to five digits, with or without leading zeros, and integers rendered
// as floats ("6037.0"). Wider values, including ones padded with extra
// leading zeros, are rejected rather than truncated. NormalizeFIPS is
// idempotent.
func NormalizeFIPS(raw string) (EntityID, error) {
	s := strings.TrimSpace(raw)
	if whole, frac, ok := strings.Cut(s, "."); ok && strings.Trim(frac, "0") == "" {
		s = whole
	}
	if s == "" {
		return "", &DataIntegrityError{Entity: raw, Reason: "empty county identifier"}
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", &DataIntegrityError{Entity: raw, Reason: "county identifier is not numeric"}
		}
	}
	if len(s) > fipsWidth {
		return "", &DataIntegrityError{
			Entity: raw,
			Reason: fmt.Sprintf("county identifier wider than %d digits", fipsWidth),
		}
	}
	return EntityID(strings.Repeat("0", fipsWidth-len(s)) + s), nil
}
