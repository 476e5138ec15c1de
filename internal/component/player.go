package component

import "sandforge/internal/ecs"

// ClientID identifies a connected peer. Network events are attributed to the
// player whose Player component carries the sender's ClientID.
type ClientID string

// Player marks an entity controlled by a connected client.
type Player struct {
	Client ClientID
}

func (Player) Type() ecs.ComponentType { return CPlayer }

// PlayerProperties are the player stats that enchantments may modify.
type PlayerProperties struct {
	MaxHealth int `json:"max_health"`
	Attack    int `json:"attack"`
	Defense   int `json:"defense"`
}

// DefaultPlayerProperties are the stats of a freshly spawned player.
func DefaultPlayerProperties() PlayerProperties {
	return PlayerProperties{MaxHealth: 20, Attack: 1, Defense: 0}
}

func (PlayerProperties) Type() ecs.ComponentType { return CPlayerProperties }
