package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"blank", "  ,  ", nil},
		{"single", "kafka:9092", []string{"kafka:9092"}},
		{"trims and dedupes", " k1:9092, k2:9092,,k1:9092 ", []string{"k1:9092", "k2:9092"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitList(tt.raw, ","))
		})
	}
}

func TestDedupeAndTrimKeepsOrder(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, DedupeAndTrim([]string{" b", "a ", "b"}))
	assert.Nil(t, DedupeAndTrim(nil))
}
