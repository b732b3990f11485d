package sqlrows

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuoting(t *testing.T) {
	assert.Equal(t, `"comuni"`, Ident("comuni"))
	assert.Equal(t, `"a""b"`, Ident(`a"b`))
	assert.Equal(t, `'v1/zip/comuni'`, Literal("v1/zip/comuni"))
	assert.Equal(t, `'Sant''Angelo'`, Literal("Sant'Angelo"))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"null", nil, ""},
		{"string keeps zeros", "001001", "001001"},
		{"bytes", []byte("Roma"), "Roma"},
		{"int", int64(58091), "58091"},
		{"int32", int32(12), "12"},
		{"float integral", float64(12), "12"},
		{"float", 1.5, "1.5"},
		{"bool", true, "true"},
		{"date", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), "2020-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.in))
		})
	}
}
