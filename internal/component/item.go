package component

import (
	"cmp"
	"fmt"
	"sandforge/internal/ecs"
)

const (
	CItem      ecs.ComponentType = 1
	CItemStack ecs.ComponentType = 2
)

// KindTag distinguishes plain materials from items that carry properties.
type KindTag uint8

const (
	KindPrimitive KindTag = iota // default
	KindComplex
)

func (k KindTag) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindComplex:
		return "complex"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKindTag is the inverse of KindTag.String.
func ParseKindTag(s string) (KindTag, error) {
	switch s {
	case "", "primitive":
		return KindPrimitive, nil
	case "complex":
		return KindComplex, nil
	}
	return 0, fmt.Errorf("unknown item kind %q", s)
}

func (k KindTag) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *KindTag) UnmarshalText(b []byte) error {
	v, err := ParseKindTag(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ItemProperties are the tunable stats of a complex item. Enchantments modify
// them; two items with different properties are different kinds of item.
type ItemProperties struct {
	Power int `json:"power,omitempty"`
	Guard int `json:"guard,omitempty"`
}

// ItemKind is Primitive, or Complex with a set of properties.
type ItemKind struct {
	Tag        KindTag        `json:"tag"`
	Properties ItemProperties `json:"properties"`
}

// Primitive returns the primitive kind.
func Primitive() ItemKind { return ItemKind{Tag: KindPrimitive} }

// Complex returns a complex kind carrying props.
func Complex(props ItemProperties) ItemKind {
	return ItemKind{Tag: KindComplex, Properties: props}
}

func (k ItemKind) String() string {
	if k.Tag == KindComplex {
		return fmt.Sprintf("complex{power:%d guard:%d}", k.Properties.Power, k.Properties.Guard)
	}
	return k.Tag.String()
}

// Item identifies one kind of item. It is an immutable value: two items are
// the same kind iff they compare equal with ==.
type Item struct {
	Name  string   `json:"name"`
	Kind  ItemKind `json:"kind"`
	Level uint8    `json:"level"`
}

func (Item) Type() ecs.ComponentType { return CItem }

// DefaultItem is the placeholder item offered by the add-item window.
func DefaultItem() Item {
	return Item{Name: "TestItem", Kind: Primitive(), Level: 1}
}

// SameKind reports whether two items match by name and kind, ignoring level.
// Recipe ingredients are matched this way.
func (i Item) SameKind(o Item) bool {
	return i.Name == o.Name && i.Kind == o.Kind
}

func (i Item) String() string {
	return fmt.Sprintf("%s (%s, lvl %d)", i.Name, i.Kind, i.Level)
}

// CompareItems orders items by name, kind and level.
func CompareItems(a, b Item) int {
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind.Tag, b.Kind.Tag); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind.Properties.Power, b.Kind.Properties.Power); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind.Properties.Guard, b.Kind.Properties.Guard); c != 0 {
		return c
	}
	return cmp.Compare(a.Level, b.Level)
}

// MaxStack is the largest count a single slot can hold.
const MaxStack = 255

// ItemStack is how many of an item occupy one inventory slot.
type ItemStack uint8

// DefaultStack is the stack size of a freshly created item.
const DefaultStack ItemStack = 1

func (ItemStack) Type() ecs.ComponentType { return CItemStack }

// Add returns s+n saturated at MaxStack and the amount that did not fit.
func (s ItemStack) Add(n ItemStack) (ItemStack, ItemStack) {
	sum := int(s) + int(n)
	if sum > MaxStack {
		return MaxStack, ItemStack(sum - MaxStack)
	}
	return ItemStack(sum), 0
}

// Sub returns s-n, or false when s holds fewer than n.
func (s ItemStack) Sub(n ItemStack) (ItemStack, bool) {
	if n > s {
		return s, false
	}
	return s - n, true
}

// ItemBundle is the (item, stack) pair spawned as one entity.
type ItemBundle struct {
	Item  Item      `json:"item"`
	Stack ItemStack `json:"stack"`
}

// Bundle pairs an item with a count.
func Bundle(item Item, stack ItemStack) ItemBundle {
	return ItemBundle{Item: item, Stack: stack}
}

// Components returns the bundle as the components of one item entity.
func (b ItemBundle) Components() []ecs.Component {
	return []ecs.Component{b.Item, b.Stack}
}

// CompareBundles orders bundles by item, then stack.
func CompareBundles(a, b ItemBundle) int {
	if c := CompareItems(a.Item, b.Item); c != 0 {
		return c
	}
	return cmp.Compare(a.Stack, b.Stack)
}
