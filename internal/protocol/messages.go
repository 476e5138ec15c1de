// Package protocol defines the messages a non-authoritative peer sends to the
// authority, the JSON envelope they travel in, and the authority that applies
// them to the world.
package protocol

import (
	"fmt"

	"sandforge/internal/component"
	"sandforge/internal/crafting"
	"sandforge/internal/ecs"

	"github.com/google/uuid"
)

// Kind says whether an ItemEvent adds or removes items.
type Kind uint8

const (
	KindAdd Kind = iota
	KindRemove
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindRemove:
		return "remove"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "add":
		*k = KindAdd
	case "remove":
		*k = KindRemove
	default:
		return fmt.Errorf("unknown item event kind %q", b)
	}
	return nil
}

// Message is any client intent the authority understands.
type Message interface {
	MessageType() string
}

const (
	TypeItemEvent = "item_event"
	TypeCraft     = "craft"
	TypeEnchant   = "enchant"
	TypeTakeAll   = "take_all"
	TypeClear     = "clear"
	TypeResult    = "result"
	TypeInventory = "inventory"
)

// ItemEvent adds an item bundle to, or removes it from, the sender's
// inventory. Inventory is the sender's own view of its inventory entity; it
// is remapped across the peer boundary but never used to pick the target.
// A remove naming Entity takes its units from that stack only, which must
// sit in the sender's inventory; without it the first matching stacks drain.
type ItemEvent struct {
	ID        uuid.UUID            `json:"id"`
	Kind      Kind                 `json:"kind"`
	Inventory ecs.EntityID         `json:"inventory,omitempty"`
	Entity    ecs.EntityID         `json:"entity,omitempty"`
	Item      component.ItemBundle `json:"item"`
}

// NewItemEvent stamps a fresh id on an event.
func NewItemEvent(kind Kind, inv ecs.EntityID, item component.ItemBundle) ItemEvent {
	return ItemEvent{ID: uuid.New(), Kind: kind, Inventory: inv, Item: item}
}

func (ItemEvent) MessageType() string { return TypeItemEvent }

// CraftRequest asks to craft Input at a workbench of the given kind.
type CraftRequest struct {
	ID        uuid.UUID              `json:"id"`
	Workbench crafting.WorkbenchKind `json:"workbench"`
	Input     []component.ItemBundle `json:"input"`
}

func (CraftRequest) MessageType() string { return TypeCraft }

// EnchantRequest asks to enchant the item in inventory slot Slot.
type EnchantRequest struct {
	ID          uuid.UUID `json:"id"`
	Slot        int       `json:"slot"`
	Enchantment string    `json:"enchantment"`
}

func (EnchantRequest) MessageType() string { return TypeEnchant }

// TakeAllRequest empties a chest into the sender's inventory.
type TakeAllRequest struct {
	ID    uuid.UUID    `json:"id"`
	Chest ecs.EntityID `json:"chest"`
}

func (TakeAllRequest) MessageType() string { return TypeTakeAll }

// ClearRequest despawns everything in the sender's inventory.
type ClearRequest struct {
	ID uuid.UUID `json:"id"`
}

func (ClearRequest) MessageType() string { return TypeClear }

// Result reports the outcome of one request back to its sender.
type Result struct {
	ID    uuid.UUID `json:"id"`
	OK    bool      `json:"ok"`
	Error string    `json:"error,omitempty"`
}

func (Result) MessageType() string { return TypeResult }

// InventoryUpdate carries the sender's inventory after a tick, along with
// the chests it may take from.
type InventoryUpdate struct {
	Slots  []SlotView     `json:"slots"`
	Chests []ecs.EntityID `json:"chests,omitempty"`
}

// SlotView is one occupied slot as a peer sees it.
type SlotView struct {
	Index  int                  `json:"index"`
	Entity ecs.EntityID         `json:"entity"`
	Item   component.ItemBundle `json:"item"`
}

func (InventoryUpdate) MessageType() string { return TypeInventory }

// FromClient is a message tagged with the identity of its sender. The
// transport sets ClientID; peers cannot choose it.
type FromClient struct {
	ClientID component.ClientID
	Seq      uint64
	Message  Message
}

// requestID extracts the id carried by m, if any.
func requestID(m Message) uuid.UUID {
	switch v := m.(type) {
	case ItemEvent:
		return v.ID
	case CraftRequest:
		return v.ID
	case EnchantRequest:
		return v.ID
	case TakeAllRequest:
		return v.ID
	case ClearRequest:
		return v.ID
	}
	return uuid.Nil
}

// ResultFor builds the reply to m given the error Apply returned.
func ResultFor(m Message, err error) Result {
	r := Result{ID: requestID(m), OK: err == nil}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
