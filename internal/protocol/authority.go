package protocol

import (
	"sandforge/internal/component"
	"sandforge/internal/crafting"
	"sandforge/internal/ecs"
	"sandforge/internal/enchant"
	"sandforge/internal/inventory"
	"sandforge/internal/layout"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrUnknownClient means no player entity belongs to the sender.
var ErrUnknownClient = errors.New("protocol: unknown client")

// Metrics receives one observation per applied message.
type Metrics interface {
	RecordEvent(kind, result string)
}

type nopMetrics struct{}

func (nopMetrics) RecordEvent(string, string) {}

// Authority applies client messages to the world. It must only be called
// from the single goroutine (or under the single lock) that owns the world.
type Authority struct {
	crafter *crafting.Crafter
	table   enchant.Table
	log     *zap.Logger
	metrics Metrics
}

// NewAuthority returns an authority crafting through c. m may be nil.
func NewAuthority(c *crafting.Crafter, log *zap.Logger, m Metrics) *Authority {
	if m == nil {
		m = nopMetrics{}
	}
	return &Authority{crafter: c, log: log, metrics: m}
}

func (a *Authority) Crafter() *crafting.Crafter { return a.crafter }

// Player finds the player entity and inventory owned by client.
func Player(w *ecs.World, client component.ClientID) (ecs.EntityID, *inventory.Inventory, error) {
	for _, id := range w.Query(component.CPlayer, component.CInventory) {
		p := w.Get(id, component.CPlayer).(component.Player)
		if p.Client != client {
			continue
		}
		if inv := inventory.Of(w, id); inv != nil {
			return id, inv, nil
		}
	}
	return ecs.NilEntity, nil, errors.Wrapf(ErrUnknownClient, "%q", client)
}

// Apply executes msg on behalf of its sender. The target inventory is always
// the sender's own, found through its Player component. A failed message
// leaves the world unchanged.
func (a *Authority) Apply(w *ecs.World, msg FromClient) error {
	kind := "nil"
	if msg.Message != nil {
		kind = msg.Message.MessageType()
	}
	err := a.apply(w, msg)
	if err != nil {
		a.metrics.RecordEvent(kind, "error")
		a.log.Warn("client message rejected",
			zap.String("client", string(msg.ClientID)),
			zap.String("type", kind),
			zap.Uint64("seq", msg.Seq),
			zap.Error(err),
		)
		return err
	}
	a.metrics.RecordEvent(kind, "ok")
	return nil
}

func (a *Authority) apply(w *ecs.World, msg FromClient) error {
	if msg.Message == nil {
		return errors.Wrap(ErrProtocolMisuse, "empty message")
	}
	player, inv, err := Player(w, msg.ClientID)
	if err != nil {
		return err
	}
	store := inventory.NewWorldStore(w)

	switch m := msg.Message.(type) {
	case ItemEvent:
		if m.Item.Stack == 0 {
			return errors.Wrap(ErrProtocolMisuse, "item event with zero stack")
		}
		l := layout.New(m.Item)
		switch m.Kind {
		case KindAdd:
			inv.AddCombine(store, l)
			return nil
		case KindRemove:
			if m.Entity == ecs.NilEntity {
				return inv.RemoveCombine(store, l)
			}
			i, ok := inv.SearchCondition(store, func(_ component.Item, _ component.ItemStack, id ecs.EntityID) bool {
				return id == m.Entity
			})
			if !ok {
				return errors.Wrapf(inventory.ErrNotFound, "entity %d", m.Entity)
			}
			return inv.RemoveAt(store, i, m.Item)
		}
		return errors.Wrapf(ErrProtocolMisuse, "item event kind %s", m.Kind)

	case CraftRequest:
		if len(m.Input) == 0 {
			return errors.Wrap(ErrProtocolMisuse, "craft without input")
		}
		_, err := a.crafter.Craft(store, inv, m.Workbench, layout.New(m.Input...))
		return err

	case EnchantRequest:
		e, err := enchant.Lookup(m.Enchantment)
		if err != nil {
			return err
		}
		if m.Slot < 0 || m.Slot >= inv.Len() || inv.Slots[m.Slot] == ecs.NilEntity {
			return errors.Wrapf(inventory.ErrNotFound, "slot %d", m.Slot)
		}
		_, err = a.table.Apply(w, player, inv.Slots[m.Slot], e)
		return err

	case TakeAllRequest:
		chest := inventory.Of(w, m.Chest)
		if chest == nil || !w.Has(m.Chest, component.CTagChest) {
			return errors.Wrapf(inventory.ErrNotFound, "chest %d", m.Chest)
		}
		inv.Join(chest)
		return nil

	case ClearRequest:
		inv.Clear(store)
		return nil
	}
	return errors.Wrapf(ErrProtocolMisuse, "cannot apply %s", msg.Message.MessageType())
}
