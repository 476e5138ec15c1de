package inventory

import (
	"testing"

	"sandforge/internal/component"
	"sandforge/internal/ecs"
	"sandforge/internal/layout"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	wood  = component.Item{Name: "Wood", Kind: component.Primitive(), Level: 1}
	stone = component.Item{Name: "Stone", Kind: component.Primitive(), Level: 1}
	plank = component.Item{Name: "Plank", Kind: component.Primitive(), Level: 1}
)

func bundles(bs ...component.ItemBundle) layout.Layout[component.ItemBundle] {
	return layout.New(bs...)
}

func fixture(t *testing.T, bs ...component.ItemBundle) (*ecs.World, WorldStore, *Inventory) {
	t.Helper()
	w := ecs.NewWorld()
	s := NewWorldStore(w)
	inv := New()
	inv.Add(s, bundles(bs...))
	return w, s, inv
}

func stackAt(t *testing.T, s WorldStore, inv *Inventory, i int) component.ItemStack {
	t.Helper()
	_, st, ok := s.Item(inv.Slots[i])
	require.True(t, ok, "slot %d is empty", i)
	return st
}

func TestWorldStore(t *testing.T) {
	w := ecs.NewWorld()
	s := NewWorldStore(w)

	id := s.Spawn(component.Bundle(wood, 4))
	item, st, ok := s.Item(id)
	require.True(t, ok)
	assert.Equal(t, wood, item)
	assert.Equal(t, component.ItemStack(4), st)

	assert.True(t, s.SetStack(id, 9))
	_, st, _ = s.Item(id)
	assert.Equal(t, component.ItemStack(9), st)

	s.Despawn(id)
	_, _, ok = s.Item(id)
	assert.False(t, ok)
	assert.False(t, s.SetStack(id, 1))

	_, _, ok = s.Item(ecs.NilEntity)
	assert.False(t, ok)
}

func TestOf(t *testing.T) {
	w := ecs.NewWorld()
	owner := w.Spawn(New())
	require.NotNil(t, Of(w, owner))
	assert.Nil(t, Of(w, w.CreateEntity()))
}

func TestAddCombineStacks(t *testing.T) {
	_, s, inv := fixture(t)

	inv.AddCombine(s, bundles(component.Bundle(wood, 3)))
	inv.AddCombine(s, bundles(component.Bundle(wood, 2)))

	require.Equal(t, 1, inv.Occupied())
	assert.Equal(t, component.ItemStack(5), stackAt(t, s, inv, 0))
}

func TestAddCombineKeepsKindsApart(t *testing.T) {
	_, s, inv := fixture(t)
	wood2 := wood
	wood2.Level = 2

	inv.AddCombine(s, bundles(
		component.Bundle(wood, 1),
		component.Bundle(stone, 1),
		component.Bundle(wood2, 1),
		component.Bundle(wood, 1),
	))

	assert.Equal(t, 3, inv.Occupied())
	assert.Equal(t, component.ItemStack(2), stackAt(t, s, inv, 0))
}

func TestAddCombineSpillsPastMaxStack(t *testing.T) {
	_, s, inv := fixture(t, component.Bundle(wood, 250))

	inv.AddCombine(s, bundles(component.Bundle(wood, 10)))

	require.Equal(t, 2, inv.Len())
	assert.Equal(t, component.ItemStack(component.MaxStack), stackAt(t, s, inv, 0))
	assert.Equal(t, component.ItemStack(5), stackAt(t, s, inv, 1))
	assert.Equal(t, 260, inv.Total(s))
}

func TestAddNeverMerges(t *testing.T) {
	_, s, inv := fixture(t)

	inv.Add(s, bundles(component.Bundle(wood, 1), component.Bundle(wood, 1), component.Bundle(wood, 0)))

	assert.Equal(t, 2, inv.Occupied())
}

func TestTake(t *testing.T) {
	_, s, inv := fixture(t, component.Bundle(wood, 1), component.Bundle(stone, 1))
	first := inv.Slots[0]

	id, ok := inv.Take(0)
	require.True(t, ok)
	assert.Equal(t, first, id)
	assert.Equal(t, ecs.NilEntity, inv.Slots[0], "take leaves a hole")
	assert.Equal(t, 2, inv.Len())

	_, ok = inv.Take(0)
	assert.False(t, ok, "hole")
	_, ok = inv.Take(7)
	assert.False(t, ok, "out of range")
	_, ok = inv.Take(-1)
	assert.False(t, ok)

	inv.AddCombine(s, bundles(component.Bundle(plank, 1)))
	assert.Equal(t, 3, inv.Len(), "new stacks are appended, holes are kept")
}

func TestTakeLinear(t *testing.T) {
	_, s, inv := fixture(t, component.Bundle(wood, 1), component.Bundle(stone, 2))
	stoneID := inv.Slots[1]

	id, ok := inv.TakeLinear(stoneID)
	require.True(t, ok)
	assert.Equal(t, stoneID, id)

	_, ok = inv.TakeLinear(stoneID)
	assert.False(t, ok)
	_, ok = inv.TakeLinear(ecs.NilEntity)
	assert.False(t, ok, "holes are not takeable")

	id, ok = inv.TakeLinearItem(s, wood)
	require.True(t, ok)
	item, _, _ := s.Item(id)
	assert.Equal(t, wood, item)

	_, ok = inv.TakeLinearItem(s, plank)
	assert.False(t, ok)
}

func TestSearchCondition(t *testing.T) {
	_, s, inv := fixture(t, component.Bundle(wood, 1), component.Bundle(stone, 7), component.Bundle(stone, 9))

	i, ok := inv.SearchCondition(s, func(it component.Item, st component.ItemStack, _ ecs.EntityID) bool {
		return it == stone && st > 8
	})
	require.True(t, ok)
	assert.Equal(t, 2, i)

	_, ok = inv.SearchCondition(s, func(component.Item, component.ItemStack, ecs.EntityID) bool { return false })
	assert.False(t, ok)
}

func TestSearchThenTakeMatchesTakeLinear(t *testing.T) {
	isStone := func(it component.Item, _ component.ItemStack, _ ecs.EntityID) bool { return it == stone }
	tests := []struct {
		name  string
		have  []component.ItemBundle
		holes []int
		pred  Predicate
		ok    bool
	}{
		{
			name: "first slot",
			have: []component.ItemBundle{component.Bundle(wood, 1), component.Bundle(stone, 2)},
			pred: func(it component.Item, _ component.ItemStack, _ ecs.EntityID) bool { return it == wood },
			ok:   true,
		},
		{
			name:  "holes before the match",
			have:  []component.ItemBundle{component.Bundle(stone, 1), component.Bundle(wood, 2), component.Bundle(stone, 3)},
			holes: []int{0, 1},
			pred:  isStone,
			ok:    true,
		},
		{
			name: "duplicate items, later slot matches",
			have: []component.ItemBundle{component.Bundle(stone, 2), component.Bundle(stone, 5), component.Bundle(stone, 5)},
			pred: func(it component.Item, st component.ItemStack, _ ecs.EntityID) bool { return it == stone && st == 5 },
			ok:   true,
		},
		{
			name:  "nothing matches",
			have:  []component.ItemBundle{component.Bundle(wood, 1), component.Bundle(stone, 1)},
			holes: []int{1},
			pred:  isStone,
		},
		{
			name: "empty inventory",
			pred: isStone,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, s, inv := fixture(t, tc.have...)
			for _, h := range tc.holes {
				_, ok := inv.Take(h)
				require.True(t, ok)
			}
			linear := New(append([]ecs.EntityID(nil), inv.Slots...)...)

			i, ok := inv.SearchCondition(s, tc.pred)
			require.Equal(t, tc.ok, ok)
			if !ok {
				return
			}
			target := inv.Slots[i]

			viaSearch, ok := inv.Take(i)
			require.True(t, ok)
			viaLinear, ok := linear.TakeLinear(target)
			require.True(t, ok)

			assert.Equal(t, viaLinear, viaSearch)
			assert.Equal(t, linear.Slots, inv.Slots)
		})
	}
}

func TestSearchSatisfying(t *testing.T) {
	tests := []struct {
		name  string
		have  []component.ItemBundle
		want  []component.ItemBundle
		found []int
		ok    bool
	}{
		{
			name:  "single ingredient",
			have:  []component.ItemBundle{component.Bundle(stone, 1), component.Bundle(wood, 2)},
			want:  []component.ItemBundle{component.Bundle(wood, 1)},
			found: []int{1},
			ok:    true,
		},
		{
			name:  "level is ignored",
			have:  []component.ItemBundle{component.Bundle(component.Item{Name: "Wood", Kind: component.Primitive(), Level: 4}, 1)},
			want:  []component.ItemBundle{component.Bundle(wood, 1)},
			found: []int{0},
			ok:    true,
		},
		{
			name: "stack too small",
			have: []component.ItemBundle{component.Bundle(wood, 1)},
			want: []component.ItemBundle{component.Bundle(wood, 2)},
		},
		{
			name: "one of two missing",
			have: []component.ItemBundle{component.Bundle(wood, 5)},
			want: []component.ItemBundle{component.Bundle(wood, 1), component.Bundle(stone, 1)},
		},
		{
			name: "slot is not counted twice",
			have: []component.ItemBundle{component.Bundle(wood, 1)},
			want: []component.ItemBundle{component.Bundle(wood, 1), component.Bundle(wood, 1)},
		},
		{
			name:  "slot with enough units serves both",
			have:  []component.ItemBundle{component.Bundle(wood, 2)},
			want:  []component.ItemBundle{component.Bundle(wood, 1), component.Bundle(wood, 1)},
			found: []int{0, 0},
			ok:    true,
		},
		{
			name:  "second ingredient moves on to the next slot",
			have:  []component.ItemBundle{component.Bundle(wood, 2), component.Bundle(wood, 3)},
			want:  []component.ItemBundle{component.Bundle(wood, 2), component.Bundle(wood, 2)},
			found: []int{0, 1},
			ok:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, s, inv := fixture(t, tt.have...)
			found, ok := inv.SearchSatisfying(s, bundles(tt.want...))
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.found, found)
			} else {
				assert.Nil(t, found)
			}
		})
	}
}

func TestTakeSatisfyingLayout(t *testing.T) {
	_, s, inv := fixture(t, component.Bundle(wood, 2), component.Bundle(stone, 1))
	want := bundles(component.Bundle(wood, 1), component.Bundle(stone, 1))

	idx, ok := inv.SearchSatisfying(s, want)
	require.True(t, ok)
	expected := []ecs.EntityID{inv.Slots[idx[0]], inv.Slots[idx[1]]}

	taken, ok := inv.TakeSatisfyingLayout(s, want)
	require.True(t, ok)
	assert.Equal(t, expected, taken)
	assert.Zero(t, inv.Occupied())

	_, ok = inv.TakeSatisfyingLayout(s, want)
	assert.False(t, ok)
}

func TestConsume(t *testing.T) {
	w, s, inv := fixture(t, component.Bundle(wood, 3), component.Bundle(stone, 1))
	stoneID := inv.Slots[1]

	require.NoError(t, inv.Consume(s, bundles(component.Bundle(wood, 2), component.Bundle(stone, 1))))

	assert.Equal(t, component.ItemStack(1), stackAt(t, s, inv, 0))
	assert.Equal(t, ecs.NilEntity, inv.Slots[1])
	assert.False(t, w.Alive(stoneID), "emptied stack is despawned")
	assert.Equal(t, 1, inv.Total(s))
}

func TestConsumeFailureLeavesInventoryUntouched(t *testing.T) {
	tests := []struct {
		name string
		want []component.ItemBundle
		err  error
	}{
		{"missing", []component.ItemBundle{component.Bundle(wood, 1), component.Bundle(plank, 1)}, ErrNotFound},
		{"too few", []component.ItemBundle{component.Bundle(wood, 4)}, ErrUnderflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, s, inv := fixture(t, component.Bundle(wood, 3), component.Bundle(stone, 1))
			before := inv.Contents(s)

			err := inv.Consume(s, bundles(tt.want...))
			assert.True(t, errors.Is(err, tt.err), "got %v", err)
			assert.Equal(t, before, inv.Contents(s))
		})
	}
}

func TestRemoveCombine(t *testing.T) {
	w, s, inv := fixture(t, component.Bundle(wood, 2), component.Bundle(stone, 1), component.Bundle(wood, 4))
	firstWood := inv.Slots[0]

	require.NoError(t, inv.RemoveCombine(s, bundles(component.Bundle(wood, 3))))

	assert.Equal(t, ecs.NilEntity, inv.Slots[0])
	assert.False(t, w.Alive(firstWood))
	assert.Equal(t, component.ItemStack(3), stackAt(t, s, inv, 2))
	assert.Equal(t, 4, inv.Total(s))
}

func TestRemoveCombineFeasibility(t *testing.T) {
	_, s, inv := fixture(t, component.Bundle(wood, 2), component.Bundle(stone, 1))
	before := inv.Contents(s)

	err := inv.RemoveCombine(s, bundles(component.Bundle(stone, 1), component.Bundle(wood, 3)))
	assert.True(t, errors.Is(err, ErrUnderflow))

	err = inv.RemoveCombine(s, bundles(component.Bundle(stone, 1), component.Bundle(plank, 1)))
	assert.True(t, errors.Is(err, ErrNotFound))

	err = inv.RemoveCombine(s, bundles(component.Bundle(wood, 1), component.Bundle(wood, 2)))
	assert.True(t, errors.Is(err, ErrUnderflow), "duplicate entries are summed")

	assert.Equal(t, before, inv.Contents(s))
}

func TestAddThenRemoveRestoresTotal(t *testing.T) {
	_, s, inv := fixture(t, component.Bundle(wood, 3))
	l := bundles(component.Bundle(wood, 2), component.Bundle(stone, 5))

	inv.AddCombine(s, l)
	require.Equal(t, 10, inv.Total(s))
	require.NoError(t, inv.RemoveCombine(s, l))

	assert.Equal(t, 3, inv.Total(s))
	assert.Equal(t, []component.ItemBundle{component.Bundle(wood, 3)}, inv.Bundles(s))
}

func TestRemoveAt(t *testing.T) {
	_, s, inv := fixture(t, component.Bundle(wood, 3), component.Bundle(wood, 4))
	first := inv.Slots[0]

	require.NoError(t, inv.RemoveAt(s, 1, component.Bundle(wood, 1)))
	assert.Equal(t, component.ItemStack(3), stackAt(t, s, inv, 0), "other stacks of the item are untouched")
	assert.Equal(t, component.ItemStack(3), stackAt(t, s, inv, 1))

	require.NoError(t, inv.RemoveAt(s, 1, component.Bundle(wood, 3)))
	assert.Equal(t, []ecs.EntityID{first, ecs.NilEntity}, inv.Slots)

	err := inv.RemoveAt(s, 0, component.Bundle(wood, 4))
	assert.True(t, errors.Is(err, ErrUnderflow))
	err = inv.RemoveAt(s, 0, component.Bundle(stone, 1))
	assert.True(t, errors.Is(err, ErrNotFound))
	for _, i := range []int{-1, 1, 2} {
		err = inv.RemoveAt(s, i, component.Bundle(wood, 1))
		assert.True(t, errors.Is(err, ErrNotFound), "slot %d", i)
	}
	assert.Equal(t, component.ItemStack(3), stackAt(t, s, inv, 0))
}

func TestJoin(t *testing.T) {
	_, s, player := fixture(t, component.Bundle(wood, 1))
	chest := New()
	chest.Add(s, bundles(component.Bundle(stone, 2), component.Bundle(plank, 1)))
	chest.Take(1)

	player.Join(chest)

	assert.Empty(t, chest.Slots)
	assert.Equal(t, 2, player.Len(), "holes are not carried over")
	assert.Equal(t, 3, player.Total(s))

	player.Join(player)
	assert.Equal(t, 2, player.Len())
	player.Join(nil)
}

func TestContents(t *testing.T) {
	_, s, inv := fixture(t, component.Bundle(wood, 1), component.Bundle(stone, 2))
	inv.Take(0)

	got := inv.Contents(s)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Index)
	assert.Equal(t, stone, got[0].Item)
	assert.Equal(t, component.ItemStack(2), got[0].Stack)
}

func TestClear(t *testing.T) {
	w, s, inv := fixture(t, component.Bundle(wood, 1), component.Bundle(stone, 2))
	inv.Take(0)

	inv.Clear(s)

	assert.Zero(t, inv.Len())
	assert.Equal(t, 1, w.Len(), "taken stack is no longer owned by the inventory")
}
