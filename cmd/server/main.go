// sandforge-server hosts the shared crafting world over SSH and serves the
// admin HTTP API and websocket transport next to it. Build:
//
//	go build -o sandforge-server ./cmd/server
//
// Usage:
//
//	./sandforge-server
//
// Settings come from config.yaml and SANDFORGE_* environment variables.
// Connect from any terminal:
//
//	ssh -p 2222 localhost
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"unicode"

	"sandforge/assets"
	"sandforge/internal/api"
	"sandforge/internal/component"
	"sandforge/internal/config"
	"sandforge/internal/crafting"
	"sandforge/internal/logger"
	"sandforge/internal/metrics"
	"sandforge/internal/protocol"
	"sandforge/internal/server"
	internalssh "sandforge/internal/ssh"
	"sandforge/internal/store"

	"github.com/gdamore/tcell/v2"
	gossh "github.com/gliderlabs/ssh"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	xssh "golang.org/x/crypto/ssh"
)

// maxNameBytes bounds a display name taken from the SSH user.
const maxNameBytes = 16

// allowedTerms are the TERM values a client may ask for. Anything else falls
// back to xterm-256color so clients cannot point terminfo at arbitrary names.
var allowedTerms = map[string]bool{
	"xterm":                 true,
	"xterm-256color":        true,
	"screen":                true,
	"screen-256color":       true,
	"tmux":                  true,
	"tmux-256color":         true,
	"linux":                 true,
	"vt100":                 true,
	"vt220":                 true,
	"rxvt-unicode":          true,
	"rxvt-unicode-256color": true,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Encoding); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("Server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	var fsys fs.FS = assets.FS()
	if cfg.Assets.Dir != "" {
		fsys = os.DirFS(cfg.Assets.Dir)
	}
	catalog, registry, err := crafting.Load(fsys)
	if err != nil {
		return errors.Wrap(err, "load assets")
	}
	log.Info("Assets loaded",
		zap.Int("items", catalog.Len()),
		zap.Int("workbenches", len(registry.Kinds())),
	)

	chest, err := parseChest(catalog, cfg.Server.Chest)
	if err != nil {
		return err
	}

	rec := metrics.Recorder{}
	crafter := crafting.NewCrafter(registry, log.Named("crafting"), rec)
	authority := protocol.NewAuthority(crafter, log.Named("authority"), rec)

	checks := map[string]api.HealthChecker{}
	var snapshots store.Store = store.NewMemory()
	if cfg.Redis.Enabled {
		r, err := store.NewRedis(ctx, store.Options{
			URL:          cfg.Redis.URL,
			KeyPrefix:    cfg.Redis.KeyPrefix,
			TTL:          cfg.Redis.TTL,
			PingTimeout:  cfg.Redis.PingTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}, log.Named("store"), rec)
		if err != nil {
			return err
		}
		snapshots = r
		checks["redis"] = r
	}
	defer snapshots.Close()

	srv := server.New(server.Options{
		Authority:    authority,
		Catalog:      catalog,
		Store:        snapshots,
		Logger:       log.Named("server"),
		Metrics:      rec,
		TickInterval: cfg.Server.TickInterval,
		MaxSessions:  cfg.Server.MaxSessions,
		Window:       cfg.Server.Window,
		Chest:        chest,
	})
	go srv.Run(ctx)

	signer, err := loadOrCreateHostKey(cfg.Server.HostKeyPath, log)
	if err != nil {
		return err
	}
	sshSrv := newSSHServer(cfg.Server.SSHAddr, signer, func(s gossh.Session) {
		handleSession(ctx, srv, s, log)
	})

	httpSrv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: api.NewRouter(api.Options{
			Server:         srv,
			Logger:         log.Named("http"),
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			Checks:         checks,
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("SSH server listening", zap.String("addr", cfg.Server.SSHAddr))
		if err := sshSrv.ListenAndServe(); err != nil && !errors.Is(err, gossh.ErrServerClosed) {
			errCh <- errors.Wrap(err, "ssh server")
		}
	}()
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- errors.Wrap(err, "http server")
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", zap.Error(err))
	}
	if err := sshSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("SSH shutdown failed", zap.Error(err))
	}
	return nil
}

// newSSHServer builds the SSH listener. Players are identified by their
// public key, so any key is accepted and sessions without one are refused.
func newSSHServer(addr string, signer gossh.Signer, handler gossh.Handler) *gossh.Server {
	return &gossh.Server{
		Addr:             addr,
		Handler:          handler,
		PtyCallback:      func(gossh.Context, gossh.Pty) bool { return true },
		PublicKeyHandler: func(gossh.Context, gossh.PublicKey) bool { return true },
		HostSigners:      []gossh.Signer{signer},
	}
}

// parseChest turns "item_id:count" entries into bundles.
func parseChest(catalog *crafting.Catalog, entries []string) ([]component.ItemBundle, error) {
	out := make([]component.ItemBundle, 0, len(entries))
	for _, e := range entries {
		id, count, ok := strings.Cut(strings.TrimSpace(e), ":")
		if !ok {
			return nil, errors.Errorf("chest entry %q: want item_id:count", e)
		}
		n, err := strconv.ParseUint(count, 10, 8)
		if err != nil || n == 0 {
			return nil, errors.Errorf("chest entry %q: count must be 1-%d", e, component.MaxStack)
		}
		item, found := catalog.Lookup(id)
		if !found {
			return nil, errors.Errorf("chest entry %q: unknown item", e)
		}
		out = append(out, component.Bundle(item, component.ItemStack(n)))
	}
	return out, nil
}

// ─── sessions ───────────────────────────────────────────────────────────────

// handleSession is the gliderlabs SSH handler for one connection.
// It blocks for the duration of the connection so the SSH session stays open.
func handleSession(ctx context.Context, srv *server.Server, s gossh.Session, log *zap.Logger) {
	pty, winCh, hasPTY := s.Pty()
	if !hasPTY {
		fmt.Fprintln(s, "Sandforge needs a PTY. Connect with: ssh -t -p 2222 <host>")
		return
	}

	term := "xterm-256color"
	if allowedTerms[pty.Term] {
		term = pty.Term
	}

	// TERM must be set in the process environment before NewTerminfoScreenFromTty.
	tty := internalssh.NewSessionTty(s, pty, winCh)
	termMu.Lock()
	_ = os.Setenv("TERM", term)
	screen, err := tcell.NewTerminfoScreenFromTty(tty)
	termMu.Unlock()
	if err != nil {
		fmt.Fprintf(s, "Terminal setup failed: %v\n", err)
		return
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(s, "Screen init failed: %v\n", err)
		return
	}
	defer screen.Fini()

	name := sanitizeName(s.User())
	if name == "" {
		name = "crafter"
	}
	sess := server.NewSession(internalssh.ClientID(s), name, screen, srv.Window())
	if err := srv.Join(ctx, sess); err != nil {
		screen.Fini()
		fmt.Fprintf(s, "Cannot join: %v\n", err)
		log.Info("SSH session refused", zap.String("client", string(sess.Client)), zap.Error(err))
		return
	}
	srv.RunLoop(sess)
	srv.Leave(context.WithoutCancel(ctx), sess)
}

// termMu protects os.Setenv("TERM") around screen creation.
var termMu sync.Mutex

// sanitizeName drops control characters and cuts the name to maxNameBytes
// without splitting a rune.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			continue
		}
		if b.Len()+len(string(r)) > maxNameBytes {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ─── host key ───────────────────────────────────────────────────────────────

// loadOrCreateHostKey loads a PEM private key from path, or generates and
// persists a new ed25519 key if the file is absent or unreadable.
func loadOrCreateHostKey(path string, log *zap.Logger) (gossh.Signer, error) {
	if data, err := os.ReadFile(path); err == nil {
		if signer, err := xssh.ParsePrivateKey(data); err == nil {
			log.Info("Loaded host key", zap.String("path", path))
			return signer, nil
		}
	}

	log.Info("Generating new ed25519 host key", zap.String("path", path))
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate host key")
	}
	signer, err := xssh.NewSignerFromKey(key)
	if err != nil {
		return nil, errors.Wrap(err, "create signer")
	}
	// Persist for next run (non-fatal if it fails).
	if pemBlock, err := xssh.MarshalPrivateKey(key, "sandforge server"); err == nil {
		_ = os.MkdirAll(filepath.Dir(path), 0o700)
		if err := os.WriteFile(path, pem.EncodeToMemory(pemBlock), 0o600); err != nil {
			log.Warn("Could not persist host key", zap.Error(err))
		}
	}
	return signer, nil
}

