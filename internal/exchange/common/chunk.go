package common

// Chunk splits s into consecutive batches of at most n elements, preserving order.
func Chunk[T any](s []T, n int) [][]T {
	if n <= 0 {
		n = len(s)
	}
	var out [][]T
	for i := 0; i < len(s); i += n {
		end := i + n
		if end > len(s) {
			end = len(s)
		}
		out = append(out, s[i:end])
	}
	return out
}
