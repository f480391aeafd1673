package util

import "strconv"

const MaxPageSize = 100

func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// Calculate normalizes a zero-based page and its size. Sizes out of range
// fall back to def.
func Calculate(page, size, def int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > MaxPageSize {
		size = def
	}
	return page, size
}
