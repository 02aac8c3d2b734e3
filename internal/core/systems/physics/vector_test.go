package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArithmetic(t *testing.T) {
	a := Vec3(1, 2, 3)
	b := Vec3(-4, 0.5, 2)

	assert.Equal(t, Vec3(-3, 2.5, 5), a.Add(b))
	assert.Equal(t, Vec3(5, 1.5, 1), a.Sub(b))
	assert.Equal(t, Vec3(2, 4, 6), a.Scale(2))
	assert.Equal(t, 3.0, a.Dot(b))
	assert.Equal(t, Vec3(1, 2, 3), a, "receiver must not change")
}

func TestMagnitude(t *testing.T) {
	assert.Equal(t, 5.0, Vec3(3, 4, 0).Magnitude())
	assert.Equal(t, 0.0, Zero.Magnitude())
	assert.InDelta(t, math.Sqrt(3), Vec3(-1, -1, -1).Magnitude(), 1e-12)
}

func TestNormalize(t *testing.T) {
	n := Vec3(0, 10, 0).Normalize()
	assert.Equal(t, Vec3(0, 1, 0), n)

	n = Vec3(3, 4, 12).Normalize()
	assert.InDelta(t, 1.0, n.Magnitude(), 1e-12)
	assert.InDelta(t, 3.0/13, n.X, 1e-12)
}

func TestNormalizeDegenerate(t *testing.T) {
	for _, v := range []Vector3{Zero, Vec3(1e-12, 0, 0), Vec3(0, -Epsilon, 0)} {
		n := v.Normalize()
		assert.Equal(t, Zero, n, "vector %v", v)
		assert.True(t, n.IsFinite())
	}
}

func TestLimit(t *testing.T) {
	assert.Equal(t, Vec3(1, 0, 0), Vec3(1, 0, 0).Limit(2))
	assert.InDelta(t, 2.0, Vec3(10, 10, 0).Limit(2).Magnitude(), 1e-12)
	assert.Equal(t, Zero, Vec3(5, 0, 0).Limit(0))
}

func TestDistanceAndPredicates(t *testing.T) {
	assert.Equal(t, 5.0, Vec3(1, 1, 1).Distance(Vec3(4, 5, 1)))
	assert.True(t, Zero.IsZero())
	assert.False(t, Vec3(0, 0, 1e-300).IsZero())
	assert.False(t, Vec3(math.NaN(), 0, 0).IsFinite())
	assert.False(t, Vec3(0, math.Inf(1), 0).IsFinite())
	assert.True(t, Vec3(1, 2, 3).ApproxEqual(Vec3(1+1e-10, 2, 3), 1e-9))
	assert.Equal(t, "(1, 2.5, -3)", Vec3(1, 2.5, -3).String())
}
