package server

import (
	"sandforge/internal/protocol"
	"sandforge/internal/render"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
)

var helpLines = []string{
	"── Moving ────────────────────────────",
	"  ↑↓ / jk            Move cursor",
	"  ←→ / hl            Inventory / window",
	"",
	"── Windows ───────────────────────────",
	"  1 / w              Workbench",
	"  Tab                Next workbench kind",
	"  2 / a              Add items",
	"  3 / c              Chests",
	"  4 / e              Enchanting table",
	"",
	"── Actions ───────────────────────────",
	"  Enter / Space      Craft, add, take, enchant",
	"  +                  Add ten",
	"  d                  Remove one",
	"  x                  Remove stack",
	"  C                  Clear inventory",
	"",
	"── Session ───────────────────────────",
	"  q / Esc            Disconnect",
	"  ?                  This help",
	"",
	"  [any key to close]",
}

// RunLoop is the per-session goroutine for terminal players. It reads
// input, submits intents and redraws on every tick. Blocks until the player
// disconnects.
func (s *Server) RunLoop(sess *Session) {
	// Start an async input reader goroutine.
	eventCh := make(chan tcell.Event, 32)
	go func() {
		for {
			ev := sess.Screen.PollEvent()
			if ev == nil {
				close(eventCh)
				return
			}
			eventCh <- ev
		}
	}()

	r := render.NewRenderer(sess.Screen)
	v := newView()
	redraw := func() {
		s.mu.Lock()
		v.refreshLocked(s, sess)
		v.draw(r)
		s.mu.Unlock()
		r.Show()
	}
	redraw()

	for {
		select {
		case ev, ok := <-eventCh:
			if !ok {
				return // screen closed / disconnected
			}
			switch ev := ev.(type) {
			case *tcell.EventResize:
				sess.Screen.Sync()
				sess.signal()
			case *tcell.EventKey:
				action := keyToAction(ev)
				switch action {
				case ActionNone:
					continue
				case ActionQuit:
					if confirm(r, sess, eventCh, " Really disconnect? (y/n) ") {
						return
					}
				case ActionHelp:
					runHelp(r, sess, eventCh)
				case ActionClear:
					if confirm(r, sess, eventCh, " Destroy everything you carry? (y/n) ") {
						s.submit(sess, protocol.ClearRequest{ID: uuid.New()}, "")
					}
				default:
					msg, status := v.handle(action)
					s.submit(sess, msg, status)
				}
				sess.signal()
			}

		case <-sess.RenderCh:
			redraw()
		}
	}
}

// submit queues msg for the next tick, or logs status when the action was
// refused before reaching the world.
func (s *Server) submit(sess *Session, msg protocol.Message, status string) {
	if msg != nil {
		if err := sess.Submit(msg); err != nil {
			status = err.Error()
		}
	}
	if status == "" {
		return
	}
	s.mu.Lock()
	sess.AddMessage(status)
	s.mu.Unlock()
}

// runHelp shows a keybinding reference overlay. Any key dismisses it.
func runHelp(r *render.Renderer, sess *Session, eventCh <-chan tcell.Event) {
	for {
		r.Clear()
		r.DrawModal("Controls", helpLines)
		r.Show()

		ev, ok := <-eventCh
		if !ok {
			return
		}
		switch ev.(type) {
		case *tcell.EventResize:
			sess.Screen.Sync()
		case *tcell.EventKey:
			return
		}
	}
}

// confirm shows a yes/no prompt. A disconnect counts as no; the closed
// event channel then ends RunLoop.
func confirm(r *render.Renderer, sess *Session, eventCh <-chan tcell.Event, prompt string) bool {
	for {
		r.Clear()
		r.DrawModal("", []string{prompt})
		r.Show()

		ev, ok := <-eventCh
		if !ok {
			return false
		}
		switch ev := ev.(type) {
		case *tcell.EventResize:
			sess.Screen.Sync()
		case *tcell.EventKey:
			switch ev.Rune() {
			case 'y', 'Y':
				return true
			default:
				return false
			}
		}
	}
}
