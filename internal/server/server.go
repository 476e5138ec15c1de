// Package server runs the authoritative crafting world shared by every
// connected player.
//
// A single ticker goroutine owns the world: every TickInterval it drains each
// session's ordered channel under the server lock and applies the messages
// through the protocol authority. Rendering happens in each session's own
// goroutine, triggered by the ticker.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sandforge/internal/component"
	"sandforge/internal/crafting"
	"sandforge/internal/ecs"
	"sandforge/internal/enchant"
	"sandforge/internal/factory"
	"sandforge/internal/inventory"
	"sandforge/internal/layout"
	"sandforge/internal/protocol"
	"sandforge/internal/store"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrServerFull means MaxSessions players are already connected.
	ErrServerFull = errors.New("server: full")
	// ErrAlreadyConnected means the client already has a live session.
	ErrAlreadyConnected = errors.New("server: client already connected")
	// ErrNotJoined means the session has no player in the world.
	ErrNotJoined = errors.New("server: session not joined")
)

// DefaultTickInterval is how often the world advances when Options leaves it unset.
const DefaultTickInterval = 50 * time.Millisecond

// Metrics observes the tick loop and session churn.
type Metrics interface {
	ObserveTick(d time.Duration)
	SessionOpened()
	SessionClosed()
}

type nopMetrics struct{}

func (nopMetrics) ObserveTick(time.Duration) {}
func (nopMetrics) SessionOpened()            {}
func (nopMetrics) SessionClosed()            {}

// Options wires a Server.
type Options struct {
	Authority *protocol.Authority
	Catalog   *crafting.Catalog
	Store     store.Store
	Logger    *zap.Logger
	Metrics   Metrics

	TickInterval time.Duration
	MaxSessions  int
	// Window bounds how far ahead of the next expected sequence number a
	// peer may send.
	Window int
	// Chest is the starting content of the shared supply chest.
	Chest []component.ItemBundle
}

// Server owns the world and every connected session.
type Server struct {
	mu       sync.Mutex
	world    *ecs.World
	sessions []*Session
	// leaving holds clients whose snapshot Leave is still writing; the
	// channel closes when the write returns.
	leaving map[component.ClientID]chan struct{}

	authority *protocol.Authority
	catalog   *crafting.Catalog
	store     store.Store
	log       *zap.Logger
	metrics   Metrics

	tickInterval time.Duration
	maxSessions  int
	window       int
}

// New builds the world: one workbench per registered kind, an enchanting
// table and the shared supply chest.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	s := &Server{
		world:        ecs.NewWorld(),
		leaving:      make(map[component.ClientID]chan struct{}),
		authority:    opts.Authority,
		catalog:      opts.Catalog,
		store:        opts.Store,
		log:          opts.Logger,
		metrics:      opts.Metrics,
		tickInterval: opts.TickInterval,
		maxSessions:  opts.MaxSessions,
		window:       opts.Window,
	}
	for _, kind := range s.authority.Crafter().Registry().Kinds() {
		factory.NewWorkbench(s.world, kind)
	}
	factory.NewEnchantingTable(s.world)
	factory.NewChest(s.world, opts.Chest...)
	return s
}

// Catalog returns the item catalog players may add from.
func (s *Server) Catalog() *crafting.Catalog { return s.catalog }

// Crafter returns the crafter behind the authority.
func (s *Server) Crafter() *crafting.Crafter { return s.authority.Crafter() }

// Window is the reorder window new sessions are created with.
func (s *Server) Window() int { return s.window }

// Run advances the world every tick until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// Join spawns the session's player and restores its saved inventory. If the
// same client is still being saved by Leave, Join waits for that save so it
// restores what was just written.
// The caller must NOT hold s.mu.
func (s *Server) Join(ctx context.Context, sess *Session) error {
	for {
		if err := s.awaitSave(ctx, sess.Client); err != nil {
			return err
		}
		snap, err := s.store.Load(ctx, sess.Client)
		restored := err == nil
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			// A broken store must not lock players out; they start empty.
			s.log.Error("failed to load snapshot", zap.String("client", string(sess.Client)), zap.Error(err))
		}

		s.mu.Lock()
		if _, saving := s.leaving[sess.Client]; saving {
			// Another session of this client started leaving after the load.
			s.mu.Unlock()
			continue
		}
		err = s.joinLocked(sess, snap, restored)
		s.mu.Unlock()
		return err
	}
}

// awaitSave blocks until no Leave of client is writing its snapshot.
func (s *Server) awaitSave(ctx context.Context, client component.ClientID) error {
	for {
		s.mu.Lock()
		done, saving := s.leaving[client]
		s.mu.Unlock()
		if !saving {
			return nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "waiting for %q to be saved", client)
		}
	}
}

func (s *Server) joinLocked(sess *Session, snap store.Snapshot, restored bool) error {
	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		return errors.Wrapf(ErrServerFull, "%d sessions", len(s.sessions))
	}
	if s.sessionByClientLocked(sess.Client) != nil {
		return errors.Wrapf(ErrAlreadyConnected, "%q", sess.Client)
	}

	props := component.DefaultPlayerProperties()
	if restored {
		props = snap.Properties
	}
	sess.PlayerID = factory.NewPlayer(s.world, sess.Client, sess.Name, props)
	if restored && len(snap.Items) > 0 {
		inv := inventory.Of(s.world, sess.PlayerID)
		inv.Add(inventory.NewWorldStore(s.world), layout.New(snap.Items...))
	}
	s.sessions = append(s.sessions, sess)
	s.metrics.SessionOpened()

	if restored {
		sess.AddMessage(fmt.Sprintf("Welcome back, %s. %d stacks restored.", sess.Name, len(snap.Items)))
	} else {
		sess.AddMessage(fmt.Sprintf("Welcome, %s.", sess.Name))
	}
	s.broadcastLocked(sess, fmt.Sprintf("%s joined.", sess.Name))
	sess.deliver(s.inventoryUpdateLocked(sess))
	s.log.Info("player joined",
		zap.String("client", string(sess.Client)),
		zap.String("name", sess.Name),
		zap.Bool("restored", restored),
	)
	return nil
}

// Leave saves the session's inventory, removes its player and item entities
// from the world and deregisters it. Until the save returns, a Join of the
// same client waits.
func (s *Server) Leave(ctx context.Context, sess *Session) {
	s.mu.Lock()
	snap, ok := s.snapshotLocked(sess)
	var done chan struct{}
	if ok {
		w := s.world
		inventory.Of(w, sess.PlayerID).Clear(inventory.NewWorldStore(w))
		w.DestroyEntity(sess.PlayerID)
		sess.PlayerID = ecs.NilEntity
		done = make(chan struct{})
		s.leaving[sess.Client] = done
	}
	removed := false
	for i, other := range s.sessions {
		if other == sess {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			removed = true
			break
		}
	}
	if removed {
		s.metrics.SessionClosed()
		s.broadcastLocked(sess, fmt.Sprintf("%s left.", sess.Name))
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	defer func() {
		s.mu.Lock()
		delete(s.leaving, sess.Client)
		s.mu.Unlock()
		close(done)
	}()
	if err := s.store.Save(ctx, snap); err != nil {
		s.log.Error("failed to save snapshot", zap.String("client", string(sess.Client)), zap.Error(err))
		return
	}
	s.log.Info("player left", zap.String("client", string(sess.Client)), zap.Int("stacks", len(snap.Items)))
}

// snapshotLocked captures what survives a disconnect. Caller must hold s.mu.
func (s *Server) snapshotLocked(sess *Session) (store.Snapshot, bool) {
	inv := inventory.Of(s.world, sess.PlayerID)
	if sess.PlayerID == ecs.NilEntity || inv == nil {
		return store.Snapshot{}, false
	}
	props, ok := s.world.Get(sess.PlayerID, component.CPlayerProperties).(component.PlayerProperties)
	if !ok {
		props = component.DefaultPlayerProperties()
	}
	return store.Snapshot{
		Client:     sess.Client,
		Name:       sess.Name,
		Items:      inv.Bundles(inventory.NewWorldStore(s.world)),
		Properties: props,
		SavedAt:    time.Now().UTC(),
	}, true
}

// signalRender sends a non-blocking render signal to all sessions.
// Called after tick() completes so sessions can redraw.
func (s *Server) signalRender() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.signal()
	}
}

// ─── Tick ────────────────────────────────────────────────────────────────────

func (s *Server) tick() {
	start := time.Now()
	s.mu.Lock()

	for _, sess := range s.sessions {
		msgs := sess.channel.Drain()
		if len(msgs) == 0 {
			continue
		}
		for _, m := range msgs {
			sess.applied++
			err := s.authority.Apply(s.world, protocol.FromClient{
				ClientID: sess.Client,
				Seq:      sess.applied,
				Message:  m,
			})
			sess.AddMessage(describe(s.world, m, err))
			sess.deliver(protocol.ResultFor(m, err))
		}
		sess.deliver(s.inventoryUpdateLocked(sess))
	}

	s.mu.Unlock()
	s.metrics.ObserveTick(time.Since(start))

	// Signal outside the tick's critical section so slow terminal writes
	// don't hold up the next tick.
	s.signalRender()
}

// inventoryUpdateLocked builds the update sent to sess after its messages
// were applied. Caller must hold s.mu.
func (s *Server) inventoryUpdateLocked(sess *Session) protocol.InventoryUpdate {
	var u protocol.InventoryUpdate
	if inv := inventory.Of(s.world, sess.PlayerID); inv != nil {
		for _, e := range inv.Contents(inventory.NewWorldStore(s.world)) {
			u.Slots = append(u.Slots, protocol.SlotView{Index: e.Index, Entity: e.Entity, Item: e.ItemBundle})
		}
	}
	u.Chests = s.world.Query(component.CTagChest, component.CInventory)
	return u
}

// broadcastLocked adds msg to every session except from. Caller must hold s.mu.
func (s *Server) broadcastLocked(from *Session, msg string) {
	for _, sess := range s.sessions {
		if sess != from {
			sess.AddMessage(msg)
		}
	}
}

// describe turns the outcome of one message into a log line for the sender.
func describe(w *ecs.World, m protocol.Message, err error) string {
	if m == nil {
		return fmt.Sprintf("✗ malformed message: %v", err)
	}
	if err != nil {
		return fmt.Sprintf("✗ %s failed: %v", m.MessageType(), err)
	}
	switch v := m.(type) {
	case protocol.ItemEvent:
		if v.Kind == protocol.KindRemove {
			return fmt.Sprintf("Removed %d %s.", v.Item.Stack, v.Item.Item.Name)
		}
		return fmt.Sprintf("Added %d %s.", v.Item.Stack, v.Item.Item.Name)
	case protocol.CraftRequest:
		return fmt.Sprintf("Crafted at the %s workbench.", v.Workbench)
	case protocol.EnchantRequest:
		return fmt.Sprintf("Enchanted with %s.", v.Enchantment)
	case protocol.TakeAllRequest:
		name := "chest"
		if n, ok := w.Get(v.Chest, component.CName).(component.Name); ok {
			name = string(n)
		}
		return fmt.Sprintf("Took everything from the %s.", name)
	case protocol.ClearRequest:
		return "Inventory cleared."
	}
	return m.MessageType() + " done."
}

// ─── Views ───────────────────────────────────────────────────────────────────

// Online reports whether client has a live session.
func (s *Server) Online(client component.ClientID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionByClientLocked(client) != nil
}

func (s *Server) sessionByClientLocked(client component.ClientID) *Session {
	for _, sess := range s.sessions {
		if sess.Client == client {
			return sess
		}
	}
	return nil
}

// PlayerView is a read-only copy of a player's inventory and stats.
type PlayerView struct {
	Client     component.ClientID         `json:"client"`
	Name       string                     `json:"name"`
	Online     bool                       `json:"online"`
	Items      []component.ItemBundle     `json:"items"`
	Properties component.PlayerProperties `json:"properties"`
}

// Player returns the live inventory of a connected client, or the saved
// snapshot of a disconnected one.
func (s *Server) Player(ctx context.Context, client component.ClientID) (PlayerView, error) {
	s.mu.Lock()
	if sess := s.sessionByClientLocked(client); sess != nil {
		snap, ok := s.snapshotLocked(sess)
		s.mu.Unlock()
		if !ok {
			return PlayerView{}, errors.Wrapf(ErrNotJoined, "%q", client)
		}
		return PlayerView{Client: client, Name: snap.Name, Online: true, Items: snap.Items, Properties: snap.Properties}, nil
	}
	s.mu.Unlock()

	snap, err := s.store.Load(ctx, client)
	if err != nil {
		return PlayerView{}, err
	}
	return PlayerView{Client: client, Name: snap.Name, Items: snap.Items, Properties: snap.Properties}, nil
}

// Available lists the recipes of workbench kind, marking those the connected
// client could craft right now.
func (s *Server) Available(client component.ClientID, kind crafting.WorkbenchKind) ([]crafting.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessionByClientLocked(client)
	if sess == nil {
		return nil, errors.Wrapf(ErrNotJoined, "%q", client)
	}
	inv := inventory.Of(s.world, sess.PlayerID)
	if inv == nil {
		return nil, errors.Wrapf(ErrNotJoined, "%q", client)
	}
	return s.authority.Crafter().Available(inventory.NewWorldStore(s.world), inv, kind)
}

// Sessions counts connected sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// enchantmentsOf lists the enchantments on item entity id.
func enchantmentsOf(w *ecs.World, id ecs.EntityID) []string {
	es, ok := ecs.GetAs[*enchant.Enchantments](w, id, component.CEnchantments)
	if !ok {
		return nil
	}
	return es.Names()
}
