package placement

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestIsValidRejectsCloseSameClass(t *testing.T) {
	v := Validator{}
	neighbors := []Neighbor{{ID: 1, Position: mgl64.Vec3{0, 0, 5}, Class: ClassCollectible}}

	assert.False(t, v.IsValid(mgl64.Vec3{0, 0.2, 5}, ClassCollectible, neighbors, Rules{SameClass: 0.5}),
		"candidate 0.2 away should be rejected")
	assert.True(t, v.IsValid(mgl64.Vec3{0, 1, 5}, ClassCollectible, neighbors, Rules{SameClass: 0.5}),
		"candidate 1.0 away should be accepted")
}

func TestIsValidIgnoresNonBlockingOtherClass(t *testing.T) {
	v := Validator{}
	neighbors := []Neighbor{
		{ID: 1, Position: mgl64.Vec3{0, 0, 5}, Class: ClassOrdinary, Blocking: false},
	}

	assert.True(t, v.IsValid(mgl64.Vec3{0, 0.1, 5}, ClassCollectible, neighbors, Uniform(1)),
		"non-blocking ordinary neighbor should not constrain collectibles")

	neighbors[0].Blocking = true
	assert.False(t, v.IsValid(mgl64.Vec3{0, 0.1, 5}, ClassCollectible, neighbors, Uniform(1)),
		"blocking ordinary neighbor should constrain collectibles")
}

func TestIsValidIndependentThresholds(t *testing.T) {
	v := Validator{}
	neighbors := []Neighbor{
		{ID: 1, Position: mgl64.Vec3{0, 0, 0}, Class: ClassOrdinary, Blocking: true},
		{ID: 2, Position: mgl64.Vec3{10, 0, 0}, Class: ClassCollectible},
	}
	rules := Rules{SameClass: 0.5, OtherClass: 2}

	// 1.5 from the obstacle: fails the 2.0 obstacle threshold.
	assert.False(t, v.IsValid(mgl64.Vec3{1.5, 0, 0}, ClassCollectible, neighbors, rules))
	// 0.8 from the other collectible, far from the obstacle: passes both.
	assert.True(t, v.IsValid(mgl64.Vec3{9.2, 0, 0}, ClassCollectible, neighbors, rules))

	// PerClass overrides OtherClass for ordinary neighbors.
	rules.PerClass = map[Class]float64{ClassOrdinary: 1}
	assert.True(t, v.IsValid(mgl64.Vec3{1.5, 0, 0}, ClassCollectible, neighbors, rules))
}

func TestIsValidSkipsAttachments(t *testing.T) {
	v := Validator{}
	neighbors := []Neighbor{{ID: 1, Position: mgl64.Vec3{}, Class: ClassAttachment, Blocking: true}}
	assert.True(t, v.IsValid(mgl64.Vec3{}, ClassAttachment, neighbors, Uniform(5)), "attachments never block")
}

func TestStackingAlwaysValid(t *testing.T) {
	v := Validator{Stacking: true}
	neighbors := []Neighbor{{ID: 1, Position: mgl64.Vec3{}, Class: ClassOrdinary, Blocking: true}}
	assert.True(t, v.IsValid(mgl64.Vec3{}, ClassOrdinary, neighbors, Uniform(100)))
}

func TestExclude(t *testing.T) {
	ns := []Neighbor{{ID: 1}, {ID: 2}, {ID: 3}}
	got := Exclude(ns, 2)
	assert.Equal(t, []Neighbor{{ID: 1}, {ID: 3}}, got)
	assert.Equal(t, []Neighbor{{ID: 1}, {ID: 2}, {ID: 3}}, ns, "input was modified")
}

func TestParseClass(t *testing.T) {
	for _, c := range []Class{ClassOrdinary, ClassCollectible, ClassContainer, ClassAttachment} {
		got, ok := ParseClass(c.String())
		assert.True(t, ok, c.String())
		assert.Equal(t, c, got)
	}
	_, ok := ParseClass("dragon")
	assert.False(t, ok)
}
