// Command sandforge runs a single-player world in the local terminal. It
// drives the same authority and tick loop the SSH server does.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"sandforge/assets"
	"sandforge/internal/component"
	"sandforge/internal/crafting"
	"sandforge/internal/protocol"
	"sandforge/internal/server"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
)

func main() {
	logPath := flag.String("log", "", "write a JSON log to this file")
	name := flag.String("name", "crafter", "display name")
	flag.Parse()

	if err := run(*name, *logPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(name, logPath string) error {
	log := zap.NewNop()
	if logPath != "" {
		cfg := zap.NewProductionConfig()
		cfg.OutputPaths = []string{logPath}
		cfg.ErrorOutputPaths = []string{logPath}
		l, err := cfg.Build()
		if err != nil {
			return err
		}
		log = l
		defer log.Sync() //nolint:errcheck
	}

	catalog, registry, err := crafting.Load(assets.FS())
	if err != nil {
		return err
	}
	var chest []component.ItemBundle
	for _, id := range []string{"wood", "stone", "coal", "iron"} {
		if it, ok := catalog.Lookup(id); ok {
			chest = append(chest, component.Bundle(it, 16))
		}
	}

	crafter := crafting.NewCrafter(registry, log, nil)
	srv := server.New(server.Options{
		Authority: protocol.NewAuthority(crafter, log, nil),
		Catalog:   catalog,
		Logger:    log,
		Chest:     chest,
	})

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go srv.Run(ctx)

	sess := server.NewSession("local", name, screen, srv.Window())
	if err := srv.Join(ctx, sess); err != nil {
		return err
	}
	srv.RunLoop(sess)
	srv.Leave(context.WithoutCancel(ctx), sess)
	return nil
}
