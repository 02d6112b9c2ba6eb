package security

// Limits caps how many issues of each kind a report lists.
type Limits struct {
	// DuplicateLimit is the max duplicate groups to show (0 = unlimited).
	DuplicateLimit int
	// WeakLimit is the max weak values to show (0 = unlimited).
	WeakLimit int
}

// DefaultLimits keeps the terminal report short.
func DefaultLimits() Limits {
	return Limits{DuplicateLimit: 3, WeakLimit: 3}
}

// Unlimited lists every issue.
func Unlimited() Limits {
	return Limits{}
}

// IsLimited returns true if any cap applies.
func (l Limits) IsLimited() bool {
	return l.DuplicateLimit > 0 || l.WeakLimit > 0
}
