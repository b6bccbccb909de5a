package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/gigboard/gigchat/internal/app"
	"github.com/gigboard/gigchat/internal/bus"
	"github.com/gigboard/gigchat/internal/conversation"
	"github.com/gigboard/gigchat/internal/session"
	"github.com/gigboard/gigchat/internal/store"
	"github.com/gigboard/gigchat/internal/tui"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	withFlag := flag.String("with", "", "user id of the conversation to open on start")
	headless := flag.Bool("headless", false, "serve the control API only, without the terminal UI")
	flag.Parse()

	profile := session.Resolve(*profileFlag)
	if err := session.ValidateName(profile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	params := app.Params{Profile: profile, Peer: *withFlag, Console: *headless}

	if *headless {
		fx.New(app.Module(params), fx.WithLogger(zapEvents)).Run()
		return
	}
	if err := runTUI(params); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// runTUI starts the client and drives it from the terminal UI until the
// user quits. fx events go to the log file only.
func runTUI(params app.Params) error {
	var (
		host   *conversation.Host
		events *bus.Bus
		db     *store.DB
		sess   session.Session
		logger *zap.Logger
	)
	fxApp := fx.New(
		app.Module(params),
		fx.WithLogger(zapEvents),
		fx.Populate(&host, &events, &db, &sess, &logger),
	)
	if err := fxApp.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return err
	}

	ui := tui.NewApp(tui.Deps{
		Host:    host,
		Bus:     events,
		Recents: db,
		Session: sess,
		Logger:  logger,
		Started: time.Now(),
	})
	runErr := ui.Run()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := fxApp.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func zapEvents(logger *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: logger.Named("fx")}
}
