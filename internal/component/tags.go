package component

import "sandforge/internal/ecs"

const (
	CPlayer           ecs.ComponentType = 3
	CPlayerProperties ecs.ComponentType = 4
	CInventory        ecs.ComponentType = 5
	CEnchantments     ecs.ComponentType = 6
	CTagChest         ecs.ComponentType = 7
	CWorkbench        ecs.ComponentType = 8
	CTagPower         ecs.ComponentType = 9
	CName             ecs.ComponentType = 10
	CEnchantingTable  ecs.ComponentType = 11
)

// TagChest marks a container entity whose inventory can be emptied into a
// player's.
type TagChest struct{}

func (TagChest) Type() ecs.ComponentType { return CTagChest }

// TagPower is granted to a player by the Power enchantment.
type TagPower struct{}

func (TagPower) Type() ecs.ComponentType { return CTagPower }

// Name is a display label for players and containers.
type Name string

func (Name) Type() ecs.ComponentType { return CName }
