package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToleranceWithin(t *testing.T) {
	tests := []struct {
		name string
		tol  Tolerance
		a, b float64
		want bool
	}{
		{"ppm inside", Tolerance{Value: 10, Unit: PPM}, 100, 100.0009, true},
		{"ppm lower side", Tolerance{Value: 10, Unit: PPM}, 100, 99.9991, true},
		{"ppm outside", Tolerance{Value: 10, Unit: PPM}, 100, 100.0011, false},
		{"da inside", Tolerance{Value: 0.01, Unit: Dalton}, 500, 500.009, true},
		{"da outside", Tolerance{Value: 0.01, Unit: Dalton}, 500, 499.98, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tol.Within(tt.a, tt.b))
		})
	}
}

func TestParseToleranceUnit(t *testing.T) {
	u, err := ParseToleranceUnit("Da")
	assert.NoError(t, err)
	assert.Equal(t, Dalton, u)
	u, err = ParseToleranceUnit("PPM")
	assert.NoError(t, err)
	assert.Equal(t, PPM, u)
	_, err = ParseToleranceUnit("mmu")
	assert.Error(t, err)
}

// Fragmenting mz=100 at t=10 with 10 ppm / 15 s excludes a nearby proposal at
// t=20 but not at t=26.
func TestExclusionWindowExpiry(t *testing.T) {
	var list ExclusionList
	list.Add(NewExclusionItem(100, 10, 10, 15))

	assert.True(t, list.IsExcluded(100.0005, 20))
	assert.False(t, list.IsExcluded(100.0005, 26))
	assert.False(t, list.IsExcluded(100.002, 20), "outside the ppm window")

	list.Prune(20)
	assert.Equal(t, 1, list.Len())
	list.Prune(25)
	assert.Equal(t, 0, list.Len(), "items expire once now reaches ToRT")
	assert.False(t, list.IsExcluded(100.0005, 20))
}

func TestExclusionListPruneKeepsOrder(t *testing.T) {
	var list ExclusionList
	list.Add(ExclusionItem{FromMZ: 1, ToMZ: 2, FromRT: 0, ToRT: 5})
	list.Add(ExclusionItem{FromMZ: 3, ToMZ: 4, FromRT: 0, ToRT: 10})
	list.Add(ExclusionItem{FromMZ: 5, ToMZ: 6, FromRT: 0, ToRT: 20})

	list.Prune(6)
	items := list.Items()
	if assert.Len(t, items, 2) {
		assert.Equal(t, 3.0, items[0].FromMZ)
		assert.Equal(t, 5.0, items[1].FromMZ)
	}

	x, ok := list.Excluding(3.5, 1)
	assert.True(t, ok)
	assert.Equal(t, 10.0, x.ToRT)

	list.Reset()
	assert.Equal(t, 0, list.Len())
}
