package store

// Limits for list queries.
const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// ClampLimit applies the default to non-positive limits and caps large ones.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}
