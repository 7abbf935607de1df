package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{
			name:     "trims broker addresses",
			input:    []string{" kafka-1:9092", "kafka-2:9092 "},
			expected: []string{"kafka-1:9092", "kafka-2:9092"},
		},
		{
			name:     "drops blanks from trailing separators",
			input:    []string{"https://example.com/a.txt", "", "  "},
			expected: []string{"https://example.com/a.txt"},
		},
		{
			name:     "keeps first occurrence",
			input:    []string{"b", "a", "b", "c", "a"},
			expected: []string{"b", "a", "c"},
		},
		{
			name:     "case is significant",
			input:    []string{"https://Example.com/x", "https://example.com/x"},
			expected: []string{"https://Example.com/x", "https://example.com/x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeLower(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{
			name:     "folds provider names",
			input:    []string{"AWS", " aws ", "GitHub", "github"},
			expected: []string{"aws", "github"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeLower(tt.input))
		})
	}
}
