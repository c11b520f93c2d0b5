package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"equal integers", Integer(5), Integer(5), true},
		{"different integers", Integer(5), Integer(6), false},
		{"equal booleans", Boolean(true), Boolean(true), true},
		{"different kinds never equal", Integer(1), Boolean(true), false},
		{"equal strings", String("a"), String("a"), true},
		{"null equals null", Null, Null, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestValue_IsTruthy(t *testing.T) {
	b, ok := Boolean(true).IsTruthy()
	assert.True(t, ok)
	assert.True(t, b)

	_, ok = Integer(1).IsTruthy()
	assert.False(t, ok, "non-boolean values are never truthy-coercible")
}

func TestValue_AsInt64(t *testing.T) {
	assert.Equal(t, int64(42), Integer(42).AsInt64())
	assert.Equal(t, int64(1), Boolean(true).AsInt64())
	assert.Equal(t, int64(0), Boolean(false).AsInt64())
	assert.Equal(t, int64(0), Null.AsInt64())
}
