// Package classifier maps an AI system profile to a regulatory risk tier by
// evaluating an ordered, versioned set of predicate rules. Classification is
// deterministic: the same profile and rule set version always reproduce the
// same tier and trace.
package classifier

import "fmt"

// Tier is the ordinal regulatory risk category.
type Tier string

const (
	TierUnacceptable Tier = "unacceptable"
	TierHigh         Tier = "high"
	TierLimited      Tier = "limited"
	TierMinimal      Tier = "minimal"
)

// Severity orders tiers: minimal=0 up to unacceptable=3.
func (t Tier) Severity() int {
	switch t {
	case TierUnacceptable:
		return 3
	case TierHigh:
		return 2
	case TierLimited:
		return 1
	case TierMinimal:
		return 0
	}
	return -1
}

// Valid reports whether t is a recognized tier.
func (t Tier) Valid() bool {
	return t.Severity() >= 0
}

// ParseTier converts a string to a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown risk tier %q", s)
	}
	return t, nil
}
