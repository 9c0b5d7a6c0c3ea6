// Command pvbridge serves a visualization scene to a web UI. Every scene
// object the UI touches gets an editable mirror proxy.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/matthewbaird/pvbridge/internal/bridge"
	"github.com/matthewbaird/pvbridge/internal/config"
	"github.com/matthewbaird/pvbridge/internal/dispatch"
	"github.com/matthewbaird/pvbridge/internal/eventbus"
	"github.com/matthewbaird/pvbridge/internal/forms"
	"github.com/matthewbaird/pvbridge/internal/journal"
	"github.com/matthewbaird/pvbridge/internal/metrics"
	"github.com/matthewbaird/pvbridge/internal/scene"
	"github.com/matthewbaird/pvbridge/internal/server"
	"github.com/matthewbaird/pvbridge/internal/uistate"
)

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := newCommand(&cfg).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		klog.Flush()
		os.Exit(1)
	}
}

func newCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "pvbridge",
		Short:        "Serve a visualization scene to a web UI",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, *cfg)
		},
	}
	addFlags(cmd.Flags(), cfg)
	return cmd
}

// addFlags binds the flags to cfg. Environment values become the defaults.
func addFlags(fs *pflag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.DefinitionsDir, "definitions-dir", cfg.DefinitionsDir, "Directory receiving a copy of every registered definition")
	fs.StringVar(&cfg.JournalDSN, "journal-dsn", cfg.JournalDSN, "SQLite data source of the commit journal (empty keeps it in memory)")
	fs.BoolVar(&cfg.UIAdvanced, "ui-advanced", cfg.UIAdvanced, "Show advanced properties")
	fs.IntVar(&cfg.EventBuffer, "event-buffer", cfg.EventBuffer, "Event bus buffer size")
	fs.IntVar(&cfg.LoopQueue, "loop-queue", cfg.LoopQueue, "Dispatch loop queue size")
}

func run(ctx context.Context, cfg config.Config) error {
	logger := klog.Background()
	logger.Info("Starting pvbridge", "addr", cfg.Addr, "definitionsDir", cfg.DefinitionsDir, "persistentJournal", cfg.JournalDSN != "")

	engine := scene.New()
	if err := demoPipeline(engine); err != nil {
		return fmt.Errorf("building scene: %w", err)
	}

	var store journal.Store = journal.NewMemoryStore()
	if cfg.JournalDSN != "" {
		s, err := journal.OpenSQLite(ctx, cfg.JournalDSN)
		if err != nil {
			return err
		}
		store = s
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error(err, "Closing journal failed")
		}
	}()

	m := metrics.New()
	bus := eventbus.New(logger, cfg.EventBuffer)
	bus.Subscribe("log", eventbus.NewLogConsumer(logger))
	bus.Start(ctx)
	defer bus.Stop()

	state := uistate.NewState(bus)
	ctrl := uistate.NewController(bus)
	fm := forms.NewManager()
	b := bridge.New(engine, fm, nil, state, ctrl, bridge.Options{
		Logger:         logger,
		DefinitionsDir: cfg.DefinitionsDir,
		Metrics:        m,
		Journal:        store,
	})

	loop := dispatch.New(logger, cfg.LoopQueue)
	loop.Start(ctx)
	defer func() {
		loop.Stop()
		b.Close()
	}()

	if err := loop.Do(ctx, func() error {
		state.Set(uistate.UIAdvanced, cfg.UIAdvanced)
		if err := b.UpdateActiveProxies(); err != nil {
			return err
		}
		return b.OnActiveChange()
	}); err != nil {
		return fmt.Errorf("publishing active proxies: %w", err)
	}

	srv := server.New(server.Deps{
		Logger:     logger,
		Loop:       loop,
		Bridge:     b,
		Forms:      fm,
		State:      state,
		Controller: ctrl,
		Journal:    store,
		Bus:        bus,
		Metrics:    m,
	})
	return srv.Run(ctx, cfg.Addr)
}

// demoPipeline loads a sphere shrunk by a filter and shows the result in an
// active render view.
func demoPipeline(engine *scene.Engine) error {
	sphere, err := engine.Create(scene.GroupSources, "SphereSource")
	if err != nil {
		return err
	}
	shrink, err := engine.Create(scene.GroupFilters, "Shrink")
	if err != nil {
		return err
	}
	shrink.Prop("Input").SetProxy(0, sphere)

	view, err := engine.CreateRenderView()
	if err != nil {
		return err
	}
	if _, err := engine.Show(shrink, view); err != nil {
		return err
	}
	engine.SetActiveSource(shrink)
	engine.SetActiveView(view)
	return nil
}
