package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeMobileNumber(t *testing.T) {
	tests := []struct {
		in, want string
		ok       bool
	}{
		{"670000000", "670000000", true},
		{"+237 670 00 00 00", "237670000000", true},
		{"6700-000-00", "670000000", true},
		{"12345", "", false},
		{"", "", false},
		{"1234567890123456", "", false},
	}
	for _, tt := range tests {
		got, err := SanitizeMobileNumber(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, err == nil, tt.in)
	}
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "hello world", SanitizeInput("  hello\x00 <script>alert(1)</script>world "))
	assert.Equal(t, "a &lt; b", SanitizeInput("a < b"))
}
