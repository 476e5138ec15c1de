// Package ssh adapts gliderlabs SSH sessions to tcell terminals and derives
// a stable player identity from each connection.
package ssh

import (
	"sync"

	"sandforge/internal/component"

	"github.com/gdamore/tcell/v2"
	gossh "github.com/gliderlabs/ssh"
	xssh "golang.org/x/crypto/ssh"
)

// SessionTty implements tcell.Tty backed by a gliderlabs/ssh session.
// Each connected SSH client gets its own SessionTty → tcell.Screen pair.
type SessionTty struct {
	session gossh.Session
	mu      sync.Mutex
	window  gossh.Window
	winCh   <-chan gossh.Window
	cb      func() // resize callback registered by tcell
	watch   sync.Once
}

// NewSessionTty wraps a gliderlabs SSH session as a tcell Tty.
// pty holds the initial window size; winCh delivers subsequent resize events.
func NewSessionTty(s gossh.Session, pty gossh.Pty, winCh <-chan gossh.Window) *SessionTty {
	return &SessionTty{
		session: s,
		window:  pty.Window,
		winCh:   winCh,
	}
}

// Read reads raw bytes from the SSH session's stdin (keyboard input).
func (t *SessionTty) Read(b []byte) (int, error) { return t.session.Read(b) }

// Write writes rendered output to the SSH session's stdout.
func (t *SessionTty) Write(b []byte) (int, error) { return t.session.Write(b) }

// Close closes the SSH session channel.
func (t *SessionTty) Close() error { return t.session.Close() }

// Start is a no-op; the SSH channel is already open.
func (t *SessionTty) Start() error { return nil }

// Stop is a no-op; the channel is closed by the connection handler.
func (t *SessionTty) Stop() error { return nil }

// Drain is a no-op; SSH flushes writes immediately.
func (t *SessionTty) Drain() error { return nil }

// WindowSize returns the current terminal dimensions.
func (t *SessionTty) WindowSize() (tcell.WindowSize, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return tcell.WindowSize{Width: t.window.Width, Height: t.window.Height}, nil
}

// NotifyResize registers the callback invoked on every window change. The
// window-change channel is drained by a single goroutine for the lifetime of
// the session, however often tcell re-registers.
func (t *SessionTty) NotifyResize(cb func()) {
	t.mu.Lock()
	t.cb = cb
	t.mu.Unlock()

	t.watch.Do(func() {
		if t.winCh == nil {
			return
		}
		go func() {
			for win := range t.winCh {
				t.mu.Lock()
				t.window = win
				localCb := t.cb
				t.mu.Unlock()
				if localCb != nil {
					localCb()
				}
			}
		}()
	})
}

// ClientID identifies the player behind s. Public-key sessions are keyed by
// the key's SHA256 fingerprint so a player keeps their inventory across
// usernames. The username fallback only applies to servers that allow
// keyless sessions; cmd/server does not.
func ClientID(s gossh.Session) component.ClientID {
	if key := s.PublicKey(); key != nil {
		return component.ClientID(xssh.FingerprintSHA256(key))
	}
	return component.ClientID("user:" + s.User())
}
