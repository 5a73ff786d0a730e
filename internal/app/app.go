// Package app wires the runtime together: config -> venues -> pipeline ->
// fleet -> feed + status server.
package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"keel/internal/advisor"
	"keel/internal/advisor/strategies"
	"keel/internal/bus"
	"keel/internal/config"
	"keel/internal/feed"
	"keel/internal/fleet"
	"keel/internal/logger"
	"keel/internal/order"
	"keel/internal/telemetry"
	statushttp "keel/internal/transport/http"
	"keel/internal/venue"
)

type App struct {
	cfg        *config.Config
	cfgPath    string
	pipeline   *order.Pipeline
	supervisor *fleet.Supervisor
	feed       *feed.Paper
	httpSrv    *statushttp.Server
	journal    *telemetry.Journal
	specs      []advisor.Spec

	cancel context.CancelFunc
}

// NewApp builds the application from config without starting anything.
// Group config problems surface here, before any advisor runs.
func NewApp(cfg *config.Config, cfgPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	events := telemetry.Multi{telemetry.LogSink{}}
	var journal *telemetry.Journal
	if cfg.Journal.Enabled {
		j, err := telemetry.NewJournal(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("opening journal failed: %w", err)
		}
		journal = j
		events = append(events, j)
	}

	adapters := make(map[string]venue.Adapter, len(cfg.Venues))
	for _, vc := range cfg.Venues {
		switch vc.Adapter {
		case "paper":
			adapters[vc.ID] = venue.NewPaper(vc.ID, vc.Params)
		default:
			return nil, fmt.Errorf("unsupported venue adapter: %s", vc.Adapter)
		}
	}

	pipeline := order.NewPipeline(order.NewStore(), adapters, events)
	messageBus := bus.NewMemory()
	universe := cfg.ProductUniverse()
	marketFeed := feed.NewPaper(messageBus, universe)

	registry := fleet.NewRegistry()
	strategies.Register(registry)

	groups, err := fleet.ParseConfig(cfg.Groups)
	if err != nil {
		return nil, err
	}
	specs, err := fleet.NewBuilder(registry, universe).BuildSpecs(groups)
	if err != nil {
		return nil, err
	}

	supervisor := fleet.NewSupervisor(advisor.Deps{
		Bus:    messageBus,
		Books:  marketFeed,
		Orders: pipeline,
		Events: events,
	})

	a := &App{
		cfg:        cfg,
		cfgPath:    cfgPath,
		pipeline:   pipeline,
		supervisor: supervisor,
		feed:       marketFeed,
		journal:    journal,
		specs:      specs,
	}
	httpSrv, err := statushttp.NewServer(statushttp.ServerConfig{
		Addr:     cfg.App.HTTPAddr,
		Advisors: supervisor,
		Orders:   pipeline.Store(),
		OnStop:   a.shutdown,
	})
	if err != nil {
		return nil, err
	}
	a.httpSrv = httpSrv
	return a, nil
}

// Specs returns the materialised advisor specs.
func (a *App) Specs() []advisor.Spec {
	return a.specs
}

// StartAdvisors launches the fleet and reports new vs already-running.
func (a *App) StartAdvisors() (fleet.StartResult, error) {
	return a.supervisor.Start(a.specs)
}

// Run serves the status API and the paper feed until the context is done
// or a stop request arrives, then tears everything down.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	defer cancel()

	if a.cfgPath != "" {
		if err := config.Watch(a.cfgPath); err != nil {
			logger.Warnf("app: config watch failed: %v", err)
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.httpSrv.Start(ctx)
	})
	if a.cfg.Feed.Enabled {
		group.Go(func() error {
			a.feed.Run(ctx, time.Duration(a.cfg.Feed.IntervalMS)*time.Millisecond)
			return nil
		})
	}
	err := group.Wait()

	stopped := a.supervisor.StopAll()
	logger.Infof("app: stopped %d advisors", stopped)
	a.pipeline.Close()
	if a.journal != nil {
		if cerr := a.journal.Close(); cerr != nil {
			logger.Warnf("app: journal close failed: %v", cerr)
		}
	}
	return err
}

func (a *App) shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
}
