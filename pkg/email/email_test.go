package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveNameFromEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		first string
		last  string
	}{
		{"dotted local part", "jane.doe@example.com", "Jane", "Doe"},
		{"single segment", "alice@example.com", "Alice", "User"},
		{"underscore separator", "john_smith@example.com", "John", "Smith"},
		{"plus tag uses last segment", "bob+billing@example.com", "Bob", "Billing"},
		{"no at sign", "support", "Support", "User"},
		{"empty local part", "@example.com", "User", "User"},
		{"empty string", "", "User", "User"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := DeriveNameFromEmail(tt.email)
			assert.Equal(t, tt.first, first)
			assert.Equal(t, tt.last, last)
		})
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "a***@example.com", Mask("alice@example.com"))
	assert.Equal(t, "j***@example.com", Mask("jane.doe@example.com"))
	assert.Equal(t, "***", Mask("not-an-email"))
	assert.Equal(t, "***", Mask("@example.com"))
	assert.Equal(t, "***", Mask(""))
}
