package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ratecatalog/internal/advisor"
	"ratecatalog/internal/alerting"
	"ratecatalog/internal/config"
	"ratecatalog/internal/fetcher"
	"ratecatalog/internal/llm"
	"ratecatalog/internal/metrics"
	"ratecatalog/internal/scheduler"
	"ratecatalog/internal/service"
	"ratecatalog/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	// newStore is swapped in tests to avoid a database.
	newStore func(ctx context.Context) (storage.RecordStore, func(), error)
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	a := &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
	a.newStore = a.openStore
	return a
}

// runtime is the wired object graph shared by every command.
type runtime struct {
	store   storage.RecordStore
	svc     *service.Service
	metrics *metrics.Metrics
	close   func()
}

func (a *App) openStore(ctx context.Context) (storage.RecordStore, func(), error) {
	if a.Config.Database.DSN == "" {
		a.Logger.Warn().Msg("database.dsn not configured; using in-memory store, records are lost on exit and ids from earlier runs will not resolve")
		return storage.NewMemoryStore(), func() {}, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	return store, store.Close, nil
}

func (a *App) openPostgres(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn not configured")
	}
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	store := storage.NewStore(pool)
	return store, store.Close, nil
}

func (a *App) newLLM() (*llm.Client, error) {
	if !a.Config.AI.Enabled {
		return nil, nil
	}
	return llm.NewClient(a.Config.AI, a.Logger)
}

func (a *App) newFetcher(client *llm.Client) fetcher.ObservationFetcher {
	router := fetcher.Router{
		Scraper: fetcher.NewScraper(fetcher.ScraperOptions{
			UserAgent: a.Config.Scraper.UserAgent,
			Timeout:   a.Config.Scraper.RequestTimeout,
		}, a.Logger),
	}
	if client != nil {
		router.Search = fetcher.NewAISearch(client, a.Logger)
	}
	return router
}

func (a *App) newAdvisor(client *llm.Client, m *metrics.Metrics) advisor.Advisor {
	if client == nil {
		return nil
	}
	return advisor.NewGuarded(
		advisor.NewOpenAI(client, a.Config.Ranking.TopN, a.Logger),
		a.Config.AI.Breaker,
		a.Config.AI.RequestTimeout,
		m,
		a.Logger,
	)
}

func (a *App) newNotifier() alerting.Notifier {
	cfg := a.Config.Alerting
	if !cfg.Enabled {
		return nil
	}

	var notifiers alerting.Multi
	for _, channel := range cfg.Channels {
		switch strings.ToLower(strings.TrimSpace(channel)) {
		case "telegram":
			if cfg.Telegram.Enabled {
				notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.APIBase, cfg.DispatchTimeout, a.Logger))
			}
		case "email":
			if cfg.Email.Enabled {
				notifiers = append(notifiers, alerting.NewEmailNotifier(cfg.Email, a.Logger))
			}
		default:
			a.Logger.Warn().Str("channel", channel).Msg("unknown alerting channel ignored")
		}
	}

	switch len(notifiers) {
	case 0:
		a.Logger.Warn().Msg("alerting enabled but no channel configured")
		return nil
	case 1:
		return notifiers[0]
	default:
		return notifiers
	}
}

func (a *App) newScheduler() (*scheduler.Scheduler, error) {
	loc, err := time.LoadLocation(a.Config.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load scheduler timezone: %w", err)
	}
	return scheduler.New(scheduler.Options{
		Spec:         a.Config.Scheduler.Cron,
		Location:     loc,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   a.Config.Scheduler.RunOnStart,
	}, a.Logger)
}

// build wires the service. reg may be nil for one-shot commands.
func (a *App) build(ctx context.Context, reg prometheus.Registerer, opts ...service.Option) (*runtime, error) {
	store, closeStore, err := a.newStore(ctx)
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}

	client, err := a.newLLM()
	if err != nil {
		closeStore()
		return nil, err
	}

	dispatcher := alerting.NewDispatcher(a.newNotifier(), a.Config.Alerting.DispatchTimeout, m, a.Logger)

	all := []service.Option{
		service.WithFetcher(a.newFetcher(client)),
		service.WithDispatcher(dispatcher),
		service.WithMetrics(m),
	}
	if adv := a.newAdvisor(client, m); adv != nil {
		all = append(all, service.WithAdvisor(adv))
	}
	all = append(all, opts...)

	svc, err := service.New(a.Config, store, a.Logger, all...)
	if err != nil {
		closeStore()
		return nil, err
	}

	return &runtime{
		store:   store,
		svc:     svc,
		metrics: m,
		close: func() {
			// let queued moderation notifications go out before exit
			svc.Wait()
			closeStore()
		},
	}, nil
}

// Run executes the long-running sweep scheduler and ops server.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched, err := a.newScheduler()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rt, err := a.build(ctx, reg, service.WithScheduler(sched))
	if err != nil {
		return err
	}
	defer rt.close()

	targetsFile := a.Config.Sweep.TargetsFile
	source := func() ([]fetcher.Target, error) {
		return fetcher.LoadTargets(targetsFile)
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.Config.Metrics.Enabled {
		handler := metrics.NewRouter(reg, healthCheck(rt.store))
		g.Go(func() error {
			return metrics.Serve(gctx, a.Config.Metrics.Listen, handler, a.Logger)
		})
	}
	g.Go(func() error {
		a.Logger.Info().
			Str("cron", a.Config.Scheduler.Cron).
			Str("targets_file", targetsFile).
			Msg("starting sweep scheduler")
		return rt.svc.Run(gctx, source)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("rate catalog service stopped")
	return nil
}

func healthCheck(store storage.RecordStore) metrics.HealthFunc {
	pinger, ok := store.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return pinger.Ping
}

// Migrate applies pending schema migrations.
func (a *App) Migrate(ctx context.Context) error {
	store, closeStore, err := a.openPostgres(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	applied, err := store.Migrate(ctx)
	if err != nil {
		return err
	}
	a.Logger.Info().Strs("applied", applied).Msg("migrations complete")
	return nil
}
