// Command slacklet runs the webhook bot platform: it receives Slack
// deliveries over HTTP, fans them out to the installed scripts through the
// message bus, and serves the OAuth install flow.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/slacklet/slacklet/pkg/app"
	"github.com/slacklet/slacklet/pkg/bus"
	"github.com/slacklet/slacklet/pkg/config"
	"github.com/slacklet/slacklet/pkg/logger"
	"github.com/slacklet/slacklet/pkg/script"
	luascript "github.com/slacklet/slacklet/pkg/script/lua"
	"github.com/slacklet/slacklet/pkg/slackapi"
	"github.com/slacklet/slacklet/pkg/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "slacklet:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return err
	}

	st, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	scripts, err := loadScripts(cfg)
	if err != nil {
		return err
	}
	logger.InfoCF("main", "scripts installed", map[string]interface{}{
		"count": scripts.Len(), "names": scripts.Names(),
	})

	client := slackapi.New(cfg.ClientID, cfg.ClientSecret)

	// The bus handler needs the coordinator and the coordinator needs the
	// bus; bind the handler late.
	var coord *app.Coordinator
	fanout := bus.NewInProcess(func(ctx context.Context, m *bus.FanoutMessage) error {
		return coord.Execute(ctx, m)
	}, cfg.BusWorkers)
	coord = app.NewCoordinator(cfg, st, scripts, fanout, client, client)

	fanout.Start()
	defer fanout.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.NewServer(coord).Start(ctx)
}

// loadScripts installs the built-in scripts plus any Lua scripts found in
// the configured directory.
func loadScripts(cfg *config.Config) (*script.Registry, error) {
	scripts, err := script.NewRegistry(script.Echo())
	if err != nil {
		return nil, err
	}

	if cfg.ScriptsDir != "" {
		luaScripts, err := luascript.LoadDir(cfg.ScriptsDir)
		if err != nil {
			return nil, err
		}
		for _, s := range luaScripts {
			if err := scripts.Add(s); err != nil {
				return nil, err
			}
		}
	}

	return scripts, nil
}
