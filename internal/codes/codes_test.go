package codes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSuccess(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		want     bool
	}{
		{"exit code 0 is success", 0, true},
		{"exit code 1 is failure (compile errors)", 1, false},
		{"exit code 2 is failure (internal error)", 2, false},
		{"exit code 137 is failure", 137, false},
		{"exit code 999 is failure", 999, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSuccess(tt.exitCode))
		})
	}
}

func TestGetErrorMessage(t *testing.T) {
	tests := []struct {
		exitCode int
		want     string
	}{
		{0, "Success"},
		{1, "Compilation errors"},
		{2, "Internal compiler error"},
		{3, "Script execution error"},
		{42, "Unknown error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GetErrorMessage(tt.exitCode), "GetErrorMessage(%d)", tt.exitCode)
	}
}
