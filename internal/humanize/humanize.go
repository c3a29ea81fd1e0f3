// Package humanize formats byte counts for the session summary.
package humanize

import "fmt"

// SI formats value using an SI prefix (k, M, G, T) followed by unit.
func SI(value float64, unit string) string {
	value, prefix := reduce(value)
	return fmt.Sprintf("%6.2f %s%s", value, prefix, unit)
}

// Bytes is like SI for a number of bytes.
func Bytes(count int64) string {
	return SI(float64(count), "byte")
}

var prefixes = []string{" ", "k", "M", "G", "T"}

// reduce reduces value to a base value and a unit prefix. For
// example, reduce(1500) returns (1.5, "k").
func reduce(value float64) (float64, string) {
	index := 0
	for value >= 1e03 && index < len(prefixes)-1 {
		value /= 1e03
		index++
	}
	return value, prefixes[index]
}
