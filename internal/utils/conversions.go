package utils

// Strings converts a slice of a string-based type to []string.
func Strings[T ~string](slice []T) []string {
	out := make([]string, 0, len(slice))
	for _, v := range slice {
		out = append(out, string(v))
	}
	return out
}

// Of converts []string to a slice of a string-based type.
func Of[T ~string](slice []string) []T {
	out := make([]T, 0, len(slice))
	for _, v := range slice {
		out = append(out, T(v))
	}
	return out
}
