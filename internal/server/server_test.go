package server

import (
	"context"
	"strings"
	"testing"
	"time"

	"sandforge/assets"
	"sandforge/internal/component"
	"sandforge/internal/crafting"
	"sandforge/internal/ecs"
	"sandforge/internal/inventory"
	"sandforge/internal/protocol"
	"sandforge/internal/store"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ─── helpers ──────────────────────────────────────────────────────────────────

func newSimScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	ss := tcell.NewSimulationScreen("UTF-8")
	if err := ss.Init(); err != nil {
		t.Fatalf("init simulation screen: %v", err)
	}
	ss.SetSize(100, 30)
	return ss
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	catalog, reg, err := crafting.Load(assets.FS())
	if err != nil {
		t.Fatalf("load assets: %v", err)
	}
	opts.Catalog = catalog
	opts.Authority = protocol.NewAuthority(crafting.NewCrafter(reg, zap.NewNop(), nil), zap.NewNop(), nil)
	return New(opts)
}

func item(t *testing.T, id string) component.Item {
	t.Helper()
	catalog, _, err := crafting.Load(assets.FS())
	if err != nil {
		t.Fatalf("load assets: %v", err)
	}
	it, ok := catalog.Lookup(id)
	if !ok {
		t.Fatalf("catalog has no %q", id)
	}
	return it
}

func join(t *testing.T, s *Server, sess *Session) {
	t.Helper()
	if err := s.Join(context.Background(), sess); err != nil {
		t.Fatalf("Join(%s): %v", sess.Client, err)
	}
}

func bundles(s *Server, sess *Session) []component.ItemBundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv := inventory.Of(s.world, sess.PlayerID)
	if inv == nil {
		return nil
	}
	return inv.Bundles(inventory.NewWorldStore(s.world))
}

func lastMessage(s *Server, sess *Session) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(sess.Messages) == 0 {
		return ""
	}
	return sess.Messages[len(sess.Messages)-1]
}

// drain empties a peer's outbox.
func drain(sess *Session) []protocol.Message {
	var out []protocol.Message
	for {
		select {
		case m := <-sess.Outbox:
			out = append(out, m)
		default:
			return out
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ─── Session ──────────────────────────────────────────────────────────────────

func TestSessionMessagesCapped(t *testing.T) {
	sess := NewSession("c", "c", nil, 0)
	for iter := 0; iter < MaxMessages+10; iter++ {
		sess.AddMessage("x")
	}
	sess.AddMessage("last")
	if len(sess.Messages) != MaxMessages {
		t.Errorf("len(Messages) = %d; want %d", len(sess.Messages), MaxMessages)
	}
	if sess.Messages[MaxMessages-1] != "last" {
		t.Error("newest message must be kept")
	}
}

func TestSessionSubmitNumbersSequentially(t *testing.T) {
	sess := NewSession("c", "c", nil, 0)
	for iter := 0; iter < 3; iter++ {
		if err := sess.Submit(protocol.ClearRequest{}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if got := len(sess.channel.Drain()); got != 3 {
		t.Errorf("drained %d messages; want 3", got)
	}
}

func TestSessionSubmitRejectsFullBacklog(t *testing.T) {
	sess := NewSession("c", "c", nil, 2)
	for iter := 0; iter < 2; iter++ {
		if err := sess.Submit(protocol.ClearRequest{}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if err := sess.Submit(protocol.ClearRequest{}); !errors.Is(err, protocol.ErrWindow) {
		t.Fatalf("third Submit err = %v; want ErrWindow", err)
	}
	sess.channel.Drain()
	if err := sess.Submit(protocol.ClearRequest{}); err != nil {
		t.Fatalf("Submit after drain: %v", err)
	}
	if got := len(sess.channel.Drain()); got != 1 {
		t.Errorf("drained %d messages; want 1 (a refused submit leaves no gap)", got)
	}
}

func TestPeerOutboxDropsWhenFull(t *testing.T) {
	sess := NewPeer("p", "p", 0)
	for iter := 0; iter < OutboxSize+2; iter++ {
		sess.deliver(protocol.Result{OK: true})
	}
	if sess.Dropped() != 2 {
		t.Errorf("Dropped() = %d; want 2", sess.Dropped())
	}
	NewSession("t", "t", nil, 0).deliver(protocol.Result{}) // terminal sessions have no outbox
}

// ─── Join / Leave ─────────────────────────────────────────────────────────────

func TestNewBuildsWorldFixtures(t *testing.T) {
	s := newTestServer(t, Options{})
	if n := len(s.world.Query(component.CWorkbench)); n != 2 {
		t.Errorf("workbenches = %d; want one per kind (2)", n)
	}
	if n := len(s.world.Query(component.CEnchantingTable)); n != 1 {
		t.Errorf("enchanting tables = %d; want 1", n)
	}
	if n := len(s.world.Query(component.CTagChest, component.CInventory)); n != 1 {
		t.Errorf("chests = %d; want 1", n)
	}
}

func TestJoinSpawnsPlayer(t *testing.T) {
	s := newTestServer(t, Options{})
	sess := NewSession("alice-key", "alice", nil, 0)
	join(t, s, sess)

	if sess.PlayerID == ecs.NilEntity || !s.world.Alive(sess.PlayerID) {
		t.Fatal("Join must spawn a live player entity")
	}
	if s.Sessions() != 1 || !s.Online("alice-key") {
		t.Error("session must be registered")
	}
	if !strings.Contains(lastMessage(s, sess), "Welcome, alice") {
		t.Errorf("last message = %q", lastMessage(s, sess))
	}
}

func TestJoinRejectsDuplicateClient(t *testing.T) {
	s := newTestServer(t, Options{})
	join(t, s, NewSession("same", "one", nil, 0))
	err := s.Join(context.Background(), NewSession("same", "two", nil, 0))
	if !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("err = %v; want ErrAlreadyConnected", err)
	}
}

func TestJoinRejectsWhenFull(t *testing.T) {
	s := newTestServer(t, Options{MaxSessions: 1})
	join(t, s, NewSession("a", "a", nil, 0))
	err := s.Join(context.Background(), NewSession("b", "b", nil, 0))
	if !errors.Is(err, ErrServerFull) {
		t.Errorf("err = %v; want ErrServerFull", err)
	}
}

func TestJoinAnnouncesToOthers(t *testing.T) {
	s := newTestServer(t, Options{})
	a := NewSession("a", "alice", nil, 0)
	join(t, s, a)
	join(t, s, NewSession("b", "bob", nil, 0))
	if got := lastMessage(s, a); got != "bob joined." {
		t.Errorf("alice's last message = %q", got)
	}
}

func TestLeaveSavesAndJoinRestores(t *testing.T) {
	mem := store.NewMemory()
	s := newTestServer(t, Options{Store: mem})
	wood := item(t, "wood")

	sess := NewSession("alice-key", "alice", nil, 0)
	join(t, s, sess)
	if err := sess.Submit(protocol.NewItemEvent(protocol.KindAdd, 0, component.Bundle(wood, 5))); err != nil {
		t.Fatal(err)
	}
	s.tick()

	before := s.world.Len()
	player := sess.PlayerID
	s.Leave(context.Background(), sess)

	if s.world.Alive(player) {
		t.Error("Leave must destroy the player entity")
	}
	if got := s.world.Len(); got != before-2 {
		t.Errorf("world has %d entities after Leave; want %d (player and its stack removed)", got, before-2)
	}
	if s.Online("alice-key") {
		t.Error("session must be deregistered")
	}
	snap, err := mem.Load(context.Background(), "alice-key")
	if err != nil {
		t.Fatalf("snapshot not saved: %v", err)
	}
	if len(snap.Items) != 1 || snap.Items[0] != component.Bundle(wood, 5) {
		t.Errorf("saved items = %v", snap.Items)
	}

	again := NewSession("alice-key", "alice", nil, 0)
	join(t, s, again)
	got := bundles(s, again)
	if len(got) != 1 || got[0] != component.Bundle(wood, 5) {
		t.Errorf("restored inventory = %v", got)
	}
	if !strings.Contains(lastMessage(s, again), "Welcome back") {
		t.Errorf("last message = %q", lastMessage(s, again))
	}
}

// slowStore holds every Save until release is closed.
type slowStore struct {
	*store.Memory
	saving  chan struct{}
	release chan struct{}
}

func (s *slowStore) Save(ctx context.Context, snap store.Snapshot) error {
	select {
	case s.saving <- struct{}{}:
	default:
	}
	<-s.release
	return s.Memory.Save(ctx, snap)
}

func TestRejoinWaitsForPendingSave(t *testing.T) {
	slow := &slowStore{Memory: store.NewMemory(), saving: make(chan struct{}, 1), release: make(chan struct{})}
	s := newTestServer(t, Options{Store: slow})
	wood := item(t, "wood")

	sess := NewSession("alice-key", "alice", nil, 0)
	join(t, s, sess)
	if err := sess.Submit(protocol.NewItemEvent(protocol.KindAdd, 0, component.Bundle(wood, 7))); err != nil {
		t.Fatal(err)
	}
	s.tick()

	go s.Leave(context.Background(), sess)
	<-slow.saving

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Join(cancelled, NewSession("alice-key", "alice", nil, 0)); !errors.Is(err, context.Canceled) {
		t.Errorf("Join with a cancelled context = %v; want context.Canceled", err)
	}

	again := NewSession("alice-key", "alice", nil, 0)
	joined := make(chan error, 1)
	go func() { joined <- s.Join(context.Background(), again) }()
	select {
	case err := <-joined:
		t.Fatalf("Join returned %v while the previous session was still saving", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(slow.release)
	select {
	case err := <-joined:
		if err != nil {
			t.Fatalf("Join: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Join still blocked after the save finished")
	}
	got := bundles(s, again)
	if len(got) != 1 || got[0] != component.Bundle(wood, 7) {
		t.Errorf("rejoined inventory = %v; want the 7 saved wood", got)
	}
}

func TestLeaveTwiceIsSafe(t *testing.T) {
	s := newTestServer(t, Options{})
	sess := NewSession("a", "a", nil, 0)
	join(t, s, sess)
	s.Leave(context.Background(), sess)
	s.Leave(context.Background(), sess) // must not panic
	if s.Sessions() != 0 {
		t.Errorf("Sessions() = %d; want 0", s.Sessions())
	}
}

// ─── Tick ─────────────────────────────────────────────────────────────────────

func TestTickAppliesSubmittedMessages(t *testing.T) {
	s := newTestServer(t, Options{})
	wood, plank := item(t, "wood"), item(t, "plank")
	sess := NewSession("a", "a", nil, 0)
	join(t, s, sess)

	if err := sess.Submit(protocol.NewItemEvent(protocol.KindAdd, 0, component.Bundle(wood, 3))); err != nil {
		t.Fatal(err)
	}
	if err := sess.Submit(protocol.CraftRequest{
		Workbench: crafting.Classical,
		Input:     []component.ItemBundle{component.Bundle(wood, 1)},
	}); err != nil {
		t.Fatal(err)
	}
	if got := bundles(s, sess); len(got) != 0 {
		t.Fatalf("nothing may change before the tick, got %v", got)
	}
	s.tick()

	got := bundles(s, sess)
	want := []component.ItemBundle{component.Bundle(wood, 2), component.Bundle(plank, 2)}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("inventory = %v; want %v", got, want)
	}
	if msg := lastMessage(s, sess); msg != "Crafted at the Classical workbench." {
		t.Errorf("last message = %q", msg)
	}
}

func TestTickReportsFailures(t *testing.T) {
	s := newTestServer(t, Options{})
	sess := NewSession("a", "a", nil, 0)
	join(t, s, sess)

	if err := sess.Submit(protocol.CraftRequest{
		Workbench: crafting.Classical,
		Input:     []component.ItemBundle{component.Bundle(item(t, "wood"), 1)},
	}); err != nil {
		t.Fatal(err)
	}
	s.tick()
	if msg := lastMessage(s, sess); !strings.HasPrefix(msg, "✗ craft failed") {
		t.Errorf("last message = %q; want a craft failure", msg)
	}
}

func TestTickTakeAllFromSupplyChest(t *testing.T) {
	stone := item(t, "stone")
	s2 := newTestServer(t, Options{Chest: []component.ItemBundle{component.Bundle(stone, 9)}})

	sess := NewSession("a", "a", nil, 0)
	join(t, s2, sess)
	chest := s2.world.Query(component.CTagChest, component.CInventory)[0]
	if err := sess.Submit(protocol.TakeAllRequest{Chest: chest}); err != nil {
		t.Fatal(err)
	}
	s2.tick()

	got := bundles(s2, sess)
	if len(got) != 1 || got[0] != component.Bundle(stone, 9) {
		t.Errorf("inventory = %v; want 9 stone", got)
	}
	if inventory.Of(s2.world, chest).Occupied() != 0 {
		t.Error("chest must be empty after take all")
	}
	if msg := lastMessage(s2, sess); msg != "Took everything from the chest." {
		t.Errorf("last message = %q", msg)
	}
}

func TestTickPeerReorderedDelivery(t *testing.T) {
	s := newTestServer(t, Options{})
	wood := item(t, "wood")
	peer := NewPeer("peer", "peer", 8)
	join(t, s, peer)

	joined := drain(peer)
	if len(joined) != 1 {
		t.Fatalf("Join must queue one inventory update, got %d messages", len(joined))
	}
	if u := joined[0].(protocol.InventoryUpdate); len(u.Chests) != 1 {
		t.Errorf("update lists %d chests; want 1", len(u.Chests))
	}

	add := protocol.NewItemEvent(protocol.KindAdd, 0, component.Bundle(wood, 2))
	remove := protocol.NewItemEvent(protocol.KindRemove, 0, component.Bundle(wood, 2))
	if err := peer.Send(2, remove); err != nil {
		t.Fatal(err)
	}
	s.tick()
	if peer.Pending() != 1 || len(drain(peer)) != 0 {
		t.Fatal("seq 2 must wait for seq 1")
	}

	if err := peer.Send(1, add); err != nil {
		t.Fatal(err)
	}
	s.tick()

	out := drain(peer)
	if len(out) != 3 {
		t.Fatalf("outbox has %d messages; want 2 results and 1 update", len(out))
	}
	for i, id := range [2]uuid.UUID{add.ID, remove.ID} {
		r, ok := out[i].(protocol.Result)
		if !ok || !r.OK || r.ID != id {
			t.Errorf("out[%d] = %+v; want ok result for %v", i, out[i], id)
		}
	}
	if u := out[2].(protocol.InventoryUpdate); len(u.Slots) != 0 {
		t.Errorf("add then remove must leave nothing, got %v", u.Slots)
	}
	if err := peer.Send(1, add); !errors.Is(err, protocol.ErrDuplicate) {
		t.Errorf("resend of seq 1: err = %v; want ErrDuplicate", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := newTestServer(t, Options{TickInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	sess := NewSession("a", "a", nil, 0)
	join(t, s, sess)
	if err := sess.Submit(protocol.NewItemEvent(protocol.KindAdd, 0, component.Bundle(item(t, "coal"), 1))); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "the tick loop to apply the add", func() bool { return len(bundles(s, sess)) == 1 })

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// ─── Views ────────────────────────────────────────────────────────────────────

func TestPlayerViewOnlineAndOffline(t *testing.T) {
	s := newTestServer(t, Options{})
	iron := item(t, "iron")
	sess := NewSession("a", "alice", nil, 0)
	join(t, s, sess)
	if err := sess.Submit(protocol.NewItemEvent(protocol.KindAdd, 0, component.Bundle(iron, 4))); err != nil {
		t.Fatal(err)
	}
	s.tick()

	ctx := context.Background()
	v, err := s.Player(ctx, "a")
	if err != nil {
		t.Fatalf("Player(online): %v", err)
	}
	if !v.Online || v.Name != "alice" || len(v.Items) != 1 {
		t.Errorf("online view = %+v", v)
	}

	s.Leave(ctx, sess)
	v, err = s.Player(ctx, "a")
	if err != nil {
		t.Fatalf("Player(offline): %v", err)
	}
	if v.Online || len(v.Items) != 1 || v.Items[0] != component.Bundle(iron, 4) {
		t.Errorf("offline view = %+v", v)
	}

	if _, err := s.Player(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown client: err = %v; want store.ErrNotFound", err)
	}
}

// ─── Terminal loop ────────────────────────────────────────────────────────────

func TestAvailableMarksCraftable(t *testing.T) {
	s := newTestServer(t, Options{})
	if _, err := s.Available("ghost", "Classical"); !errors.Is(err, ErrNotJoined) {
		t.Errorf("err = %v; want ErrNotJoined", err)
	}

	sess := NewSession("a", "a", nil, 0)
	join(t, s, sess)
	if err := sess.Submit(protocol.NewItemEvent(protocol.KindAdd, 0, component.Bundle(item(t, "wood"), 1))); err != nil {
		t.Fatal(err)
	}
	s.tick()

	avail, err := s.Available("a", "Classical")
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	craftable := 0
	for _, a := range avail {
		if a.Craftable {
			craftable++
			in, _ := a.Recipe.Input.One()
			if in.Item.Name != "Wood" {
				t.Errorf("craftable recipe needs %s; only wood is held", in.Item.Name)
			}
		}
	}
	if craftable != 1 {
		t.Errorf("craftable = %d; want 1 (wood -> plank)", craftable)
	}
}

func TestTickRejectsMalformedPeerFrame(t *testing.T) {
	s := newTestServer(t, Options{})
	peer := NewPeer("p", "p", 0)
	join(t, s, peer)
	drain(peer)

	if err := peer.Send(1, nil); err != nil {
		t.Fatal(err)
	}
	s.tick()

	out := drain(peer)
	if len(out) != 2 {
		t.Fatalf("outbox = %v; want a result and an inventory update", out)
	}
	r, ok := out[0].(protocol.Result)
	if !ok || r.OK {
		t.Errorf("out[0] = %+v; want a failed result", out[0])
	}
	if !strings.Contains(lastMessage(s, peer), "malformed") {
		t.Errorf("last message = %q", lastMessage(s, peer))
	}
}

func TestRunLoopAddsFromCatalogAndQuits(t *testing.T) {
	s := newTestServer(t, Options{})
	screen := newSimScreen(t)
	sess := NewSession("a", "alice", screen, 0)
	join(t, s, sess)

	done := make(chan struct{})
	go func() {
		s.RunLoop(sess)
		close(done)
	}()

	screen.InjectKey(tcell.KeyRune, '2', tcell.ModNone)
	screen.InjectKey(tcell.KeyEnter, 0, tcell.ModNone)
	waitFor(t, "the catalog add to be submitted", func() bool { return sess.channel.Next() == 2 })
	s.tick()

	got := bundles(s, sess)
	if len(got) != 1 || got[0] != component.Bundle(item(t, "wood"), 1) {
		t.Errorf("inventory = %v; want 1 wood from the first catalog row", got)
	}

	screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	screen.InjectKey(tcell.KeyRune, 'y', tcell.ModNone)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunLoop did not return after q, y")
	}
	screen.Fini()
}
