package component

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultItem(t *testing.T) {
	it := DefaultItem()
	assert.Equal(t, "TestItem", it.Name)
	assert.Equal(t, KindPrimitive, it.Kind.Tag)
	assert.Equal(t, uint8(1), it.Level)
	assert.Equal(t, ItemStack(1), DefaultStack)
}

func TestItemEqualityIsStructural(t *testing.T) {
	a := Item{Name: "Wood", Kind: Primitive(), Level: 1}
	b := Item{Name: "Wood", Kind: Primitive(), Level: 1}
	assert.True(t, a == b)

	c := Item{Name: "Wood", Kind: Primitive(), Level: 2}
	assert.False(t, a == c)
	assert.True(t, a.SameKind(c), "level is ignored by SameKind")

	d := Item{Name: "Wood", Kind: Complex(ItemProperties{Power: 1}), Level: 1}
	assert.False(t, a.SameKind(d))
}

func TestCompareItemsIsTotal(t *testing.T) {
	items := []Item{
		{Name: "Stone", Kind: Primitive(), Level: 1},
		{Name: "Plank", Kind: Complex(ItemProperties{Guard: 2}), Level: 1},
		{Name: "Plank", Kind: Primitive(), Level: 3},
		{Name: "Plank", Kind: Primitive(), Level: 1},
		{Name: "Plank", Kind: Complex(ItemProperties{Power: 1}), Level: 1},
	}
	sort.Slice(items, func(i, j int) bool { return CompareItems(items[i], items[j]) < 0 })

	want := []Item{
		{Name: "Plank", Kind: Primitive(), Level: 1},
		{Name: "Plank", Kind: Primitive(), Level: 3},
		{Name: "Plank", Kind: Complex(ItemProperties{Guard: 2}), Level: 1},
		{Name: "Plank", Kind: Complex(ItemProperties{Power: 1}), Level: 1},
		{Name: "Stone", Kind: Primitive(), Level: 1},
	}
	assert.Equal(t, want, items)
	assert.Equal(t, 0, CompareItems(want[0], want[0]))
}

func TestItemStackArithmetic(t *testing.T) {
	cases := []struct {
		name     string
		s, n     ItemStack
		sum      ItemStack
		overflow ItemStack
	}{
		{"small", 3, 2, 5, 0},
		{"exactly max", 250, 5, 255, 0},
		{"overflow", 250, 10, 255, 5},
		{"max plus max", 255, 255, 255, 255},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sum, over := tc.s.Add(tc.n)
			assert.Equal(t, tc.sum, sum)
			assert.Equal(t, tc.overflow, over)
		})
	}

	left, ok := ItemStack(5).Sub(3)
	require.True(t, ok)
	assert.Equal(t, ItemStack(2), left)

	left, ok = ItemStack(2).Sub(3)
	assert.False(t, ok, "underflow must be rejected")
	assert.Equal(t, ItemStack(2), left, "rejected subtraction leaves the stack untouched")
}

func TestBundleWireFormat(t *testing.T) {
	b := Bundle(Item{Name: "Sword", Kind: Complex(ItemProperties{Power: 3}), Level: 2}, 1)
	raw, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{"item":{"name":"Sword","kind":{"tag":"complex","properties":{"power":3}},"level":2},"stack":1}`, string(raw))

	var back ItemBundle
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, b, back)
}

func TestParseKindTagRejectsUnknown(t *testing.T) {
	_, err := ParseKindTag("legendary")
	assert.Error(t, err)
}
