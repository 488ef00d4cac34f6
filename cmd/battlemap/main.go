// Command battlemap runs the session relay: a headless browser logged into
// the game, exposed over HTTP, GraphQL, websockets and a telegram bot.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/eneris/battlemap/internal/battlemap"
	"github.com/eneris/battlemap/internal/config"
	"github.com/eneris/battlemap/internal/etl"
	. "github.com/eneris/battlemap/internal/logging"
	"github.com/eneris/battlemap/internal/realtime"
	"github.com/eneris/battlemap/internal/relay"
	"github.com/eneris/battlemap/internal/store"
	"github.com/eneris/battlemap/internal/telegram"
)

const version = "0.1.0"

type cli struct {
	Config string `short:"c" help:"Path to config file." type:"path"`
	Debug  bool   `short:"d" help:"Enable debug logging."`

	Serve      serveCmd      `cmd:"" default:"1" help:"Run the relay service."`
	Battles    battlesCmd    `cmd:"" help:"Print the current battle log and exit."`
	Screenshot screenshotCmd `cmd:"" help:"Take a session screenshot and exit."`
	Version    versionCmd    `cmd:"" help:"Print the version."`
}

type appContext struct {
	cfg *config.Config
}

func main() {
	var args cli
	parsed := kong.Parse(&args,
		kong.Name("battlemap"),
		kong.Description("BattleMap session relay"),
		kong.UsageOnError(),
	)

	cfg, err := config.Load(args.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if args.Debug {
		cfg.Debug = "debug"
	}

	level := "info"
	if cfg.DebugEnabled() {
		level = "debug"
	}
	Init(&Config{Level: level, ShowCaller: cfg.DebugEnabled()})

	parsed.FatalIfErrorf(parsed.Run(&appContext{cfg: cfg}))
}

type versionCmd struct{}

func (v *versionCmd) Run(app *appContext) error {
	fmt.Printf("battlemap %s\n", version)
	return nil
}

type screenshotCmd struct {
	Out string `arg:"" optional:"" default:"screen.png" help:"Output file."`
}

func (s *screenshotCmd) Run(app *appContext) error {
	session := battlemap.New(app.cfg)
	defer session.Exit()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := session.Init(ctx, nil); err != nil {
		return err
	}
	if err := session.Screenshot(s.Out); err != nil {
		return err
	}
	L_info("screenshot written", "path", s.Out)
	return nil
}

type battlesCmd struct {
	Resolution int   `help:"Filter by resolution cycle."`
	Factions   []int `help:"Filter by faction enums."`
}

func (b *battlesCmd) Run(app *appContext) error {
	session := battlemap.New(app.cfg)
	defer session.Exit()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := session.Init(ctx, nil); err != nil {
		return err
	}
	battles, err := session.GetBattles(ctx, b.Factions, b.Resolution)
	if err != nil {
		return err
	}

	for _, battle := range battles {
		status := "live"
		if battle.Finished != 0 {
			status = "done"
		}
		fmt.Printf("%d\t%s vs %s\t[%s]\t%s\n",
			battle.ID, battle.OwnBase, battle.OppoBase, status, battle.ResolutionTime)
	}
	return nil
}

type serveCmd struct{}

func (s *serveCmd) Run(app *appContext) error {
	cfg := app.cfg
	L_info("battlemap %s starting", version)

	session := battlemap.New(cfg)
	defer session.Exit()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Init(ctx, nil); err != nil {
		// The relay still serves /reauth and /healthz, so an operator can
		// recover a failed login without restarting the process.
		L_error("initial session start failed: %v", err)
	}

	mirror, err := store.Open(cfg.ResolveStorePath())
	if err != nil {
		return err
	}
	defer mirror.Close()

	var hub *realtime.Hub
	if cfg.Realtime.Enabled {
		hub = realtime.NewHub()
		interval, err := time.ParseDuration(cfg.Realtime.PollInterval)
		if err != nil {
			return fmt.Errorf("bad realtime poll interval: %w", err)
		}
		go realtime.NewPoller(session, hub, interval).Run(ctx)
	}

	if cfg.ETL.Enabled {
		updater := etl.New(session, mirror)
		if err := updater.Start(cfg.ETL.Schedule); err != nil {
			return fmt.Errorf("etl schedule: %w", err)
		}
		defer updater.Stop()
	}

	if cfg.Telegram.BotToken != "" {
		bot, err := telegram.New(cfg.Telegram.BotToken, cfg.Telegram.AllowedChats, session)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		go bot.Start()
		defer bot.Stop()
	}

	server, err := relay.NewServer(cfg.Relay.Listen, session, mirror, httpHandlerOrNil(hub))
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		L_info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// httpHandlerOrNil avoids handing relay a typed-nil interface when the
// realtime feed is disabled.
func httpHandlerOrNil(hub *realtime.Hub) http.Handler {
	if hub == nil {
		return nil
	}
	return hub
}
