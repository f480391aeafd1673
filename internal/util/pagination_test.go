package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name               string
		page, size         int
		wantPage, wantSize int
	}{
		{name: "passthrough", page: 2, size: 10, wantPage: 2, wantSize: 10},
		{name: "negative page", page: -1, size: 10, wantPage: 0, wantSize: 10},
		{name: "zero size", page: 0, size: 0, wantPage: 0, wantSize: 24},
		{name: "oversized", page: 1, size: 500, wantPage: 1, wantSize: 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, size := Calculate(tt.page, tt.size, 24)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantSize, size)
		})
	}
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 5, ParseIntDefault("", 5))
	assert.Equal(t, 5, ParseIntDefault("x", 5))
	assert.Equal(t, 3, ParseIntDefault("3", 5))
}
