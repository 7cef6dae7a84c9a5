// Package risk classifies a change set for unattended-merge eligibility.
package risk

import "fmt"

// Level is the discrete risk classification of a change set. Levels are
// totally ordered: L0 < L1 < L2 < L3. L3 must never auto-merge.
type Level int

const (
	// L0 is a trivially safe change (documentation only).
	L0 Level = iota

	// L1 is a small change touching nothing protected.
	L1

	// L2 exceeds a size ceiling or touches a protected path.
	L2

	// L3 is blocked outright by a label and must not auto-merge.
	L3
)

// String returns the canonical level name ("L0".."L3").
func (l Level) String() string {
	if l < L0 || l > L3 {
		return fmt.Sprintf("L?(%d)", int(l))
	}
	return fmt.Sprintf("L%d", int(l))
}

// ParseLevel converts a canonical level name back to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "L0":
		return L0, nil
	case "L1":
		return L1, nil
	case "L2":
		return L2, nil
	case "L3":
		return L3, nil
	}
	return L0, fmt.Errorf("unknown risk level %q", s)
}
