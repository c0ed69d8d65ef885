package app

import (
	"context"
	"strconv"
	"strings"
	"time"

	"digestbot/internal/config"
	"digestbot/internal/directory"
	"digestbot/internal/eventbus"
	"digestbot/internal/mailer"
	rtsup "digestbot/internal/runtime/supervisor"
	"digestbot/internal/scheduler"
	"digestbot/internal/source"
	kit "digestbot/internal/transport"
	telegram "digestbot/internal/transport/telegram/adapter"
	"digestbot/internal/transport/telegram/router"
	logx "digestbot/pkg/logx"
)

// App owns the component graph and its lifecycle: config, logging, the
// Telegram adapter, the subscription directory, the content source, the
// mailer, the scheduler and the router.
type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	adapter *telegram.Adapter
	dir     directory.Directory
	src     source.Source
	mail    *mailer.Service
	sched   *scheduler.Service
	rout    *router.Router

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram"))

	pollTimeout, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	if err != nil {
		return nil, err
	}
	if pollTimeout <= 0 {
		pollTimeout = 10 * time.Second
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// Bootstrap logging with the Telegram sink off: the target chat has to be
	// set first or Apply() warns about a missing target.
	logCfg := mapLoggingConfig(cfg)
	bootLogCfg := logCfg
	bootLogCfg.Telegram.Enabled = false
	logSvc, log := logx.New(bootLogCfg, ad)
	log = log.With(logx.String("comp", "app"))

	if gl := strings.TrimSpace(cfg.Telegram.GroupLog); gl != "" {
		if chatID, err := strconv.ParseInt(gl, 10, 64); err == nil {
			logSvc.SetTelegramTarget(chatID)
		}
	}
	logSvc.Apply(logCfg)

	bus := eventbus.New()

	dirCfg, err := mapDirectoryConfig(cfg)
	if err != nil {
		return nil, err
	}
	dir, err := directory.Open(dirCfg, log.With(logx.String("comp", "directory")))
	if err != nil {
		return nil, err
	}

	src, err := source.Open(mapSourceConfig(cfg), log.With(logx.String("comp", "source")))
	if err != nil {
		_ = dir.Close()
		return nil, err
	}

	mailCfg, err := mapMailerConfig(cfg)
	if err != nil {
		_ = dir.Close()
		return nil, err
	}
	mailSvc := mailer.New(mailCfg, ad, dir, src, bus, log.With(logx.String("comp", "mailer")))

	schedSvc := scheduler.New(mapSchedulerConfig(cfg), mailSvc, log.With(logx.String("comp", "scheduler")))

	rout := router.New(ad, dir, mailSvc, cfg.Telegram.OwnerUserIDs, log.With(logx.String("comp", "router")))

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		adapter: ad,
		dir:     dir,
		src:     src,
		mail:    mailSvc,
		sched:   schedSvc,
		rout:    rout,
		updates: make(chan kit.Update, 256),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log))

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	if err := a.sched.Start(a.sup.Context()); err != nil {
		return err
	}

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.rout.Run(c, a.updates)
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.startReloadLoop()
	a.startRunLog()

	a.log.Info("digestbot started")
	return nil
}

// startReloadLoop fans validated config updates out to the live components.
func (a *App) startReloadLoop() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: only the newest config matters.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							cfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(c, cfg)
			}
		}
	})
}

func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	// Log target first so enabling the Telegram sink doesn't warn.
	if gl := strings.TrimSpace(cfg.Telegram.GroupLog); gl != "" {
		if chatID, err := strconv.ParseInt(gl, 10, 64); err == nil {
			a.logs.SetTelegramTarget(chatID)
		}
	} else {
		a.logs.SetTelegramTarget(0)
	}
	a.logs.Apply(mapLoggingConfig(cfg))

	a.rout.SetOwners(cfg.Telegram.OwnerUserIDs)

	if mailCfg, err := mapMailerConfig(cfg); err != nil {
		a.log.Warn("invalid mailer config; keeping previous", logx.Err(err))
	} else {
		a.mail.Apply(mailCfg, a.adapter)
	}

	if err := a.sched.Apply(mapSchedulerConfig(cfg)); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	}

	a.log.Info("config applied")
}

// startRunLog mirrors broadcast outcomes into the operator log.
func (a *App) startRunLog() {
	events, unsub := a.bus.Subscribe(32)
	a.sup.Go0("eventbus.runlog", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				if e.Type != mailer.EventRunFinished {
					continue
				}
				rec, ok := e.Data.(mailer.RunRecord)
				if !ok {
					continue
				}
				fields := []logx.Field{
					logx.String("kind", rec.Kind),
					logx.Int("delivered", rec.Summary.Delivered),
					logx.Int("blocked", rec.Summary.Blocked),
					logx.Int("failed", rec.Summary.Failed),
					logx.Duration("dur", rec.Finished.Sub(rec.Started)),
				}
				if rec.CategoryID != 0 {
					fields = append(fields, logx.Int64("category_id", rec.CategoryID))
				}
				if rec.Err != "" {
					fields = append(fields, logx.String("err", rec.Err))
					a.log.Warn("broadcast run finished with error", fields...)
					continue
				}
				a.log.Info("broadcast run finished", fields...)
			}
		}
	})
}

func (a *App) Stop(ctx context.Context) error {
	a.log.Info("digestbot stopping")

	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_ = a.sched.Stop(stopCtx)
	_ = a.adapter.Stop(stopCtx)

	if a.sup != nil {
		_ = a.sup.Stop(stopCtx)
	}

	_ = a.dir.Close()
	_ = a.logs.Close()
	return nil
}
