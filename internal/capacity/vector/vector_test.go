package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnit_String(t *testing.T) {
	assert.Equal(t, "PERCENTAGE", Percentage.String())
	assert.Equal(t, "ABSOLUTE", Absolute.String())
	assert.Equal(t, "WEIGHT", Weight.String())
	assert.Equal(t, "Unit(7)", Unit(7).String())
}

func TestUnit_Text(t *testing.T) {
	for _, u := range []Unit{Percentage, Absolute, Weight} {
		text, err := u.MarshalText()
		require.NoError(t, err)
		var decoded Unit
		require.NoError(t, decoded.UnmarshalText(text))
		assert.Equal(t, u, decoded)
	}
	_, err := Unit(7).MarshalText()
	assert.Error(t, err)
	var u Unit
	assert.Error(t, u.UnmarshalText([]byte("RATIO")))
}

func TestCapacityVector_With(t *testing.T) {
	v := CapacityVector{}.
		With("memory", Percent(50)).
		With("vcores", Weighted(3)).
		With("gpu", Abs(2))

	assert.Equal(t, []string{"memory", "vcores", "gpu"}, v.Names())
	assert.Equal(t, 3, v.Len())
	assert.Equal(t, "[memory=50%, vcores=3w, gpu=2]", v.String())

	e, ok := v.Get("vcores")
	assert.True(t, ok)
	assert.Equal(t, Weighted(3), e)
	_, ok = v.Get("disk")
	assert.False(t, ok)

	redeclared := v.With("memory", Abs(1024))
	assert.Equal(t, []string{"memory", "vcores", "gpu"}, redeclared.Names())
	e, _ = v.Get("memory")
	assert.Equal(t, Percent(50), e, "With must not modify the receiver")
}

func TestCapacityVector_HasUnit(t *testing.T) {
	v := Uniform([]string{"memory", "vcores"}, Weighted(1))
	assert.True(t, v.HasUnit(Weight))
	assert.False(t, v.HasUnit(Percentage))
	assert.True(t, CapacityVector{}.IsEmpty())
}

func TestCapacityVector_Equal(t *testing.T) {
	a := CapacityVector{}.With("memory", Percent(50)).With("vcores", Percent(50))
	b := Uniform([]string{"memory", "vcores"}, Percent(50))
	c := Uniform([]string{"vcores", "memory"}, Percent(50))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(a.With("vcores", Weighted(50))))
}
