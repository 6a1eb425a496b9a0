package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	assert.Nil(t, DedupeAndTrim(nil))
	assert.Equal(t, []string{"foo", "bar"}, DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  ", "bar"}))
	assert.Equal(t, []string{"Foo", "foo"}, DedupeAndTrim([]string{"Foo", "foo"}), "case is preserved")
}

func TestDedupeAndTrimLower(t *testing.T) {
	assert.Equal(t, []string{"duplicate_vote", "biometric_spoof"},
		DedupeAndTrimLower([]string{" DUPLICATE_VOTE", "duplicate_vote", "Biometric_Spoof "}))
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", nil},
		{"whitespace only", "   ", nil},
		{"single", "localhost:9092", []string{"localhost:9092"}},
		{"dedupes and trims", " broker-1:9092, broker-2:9092,,broker-1:9092", []string{"broker-1:9092", "broker-2:9092"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitList(tt.input))
		})
	}
}
