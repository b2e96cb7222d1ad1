package utils

// ValueOr dereferences v, or returns fallback when v is nil. Optional
// fields of partial updates decode to nil pointers.
func ValueOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}
