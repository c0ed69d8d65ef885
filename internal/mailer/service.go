package mailer

import (
	"context"
	"sync"
	"time"

	"digestbot/internal/directory"
	"digestbot/internal/eventbus"
	"digestbot/internal/source"
	kit "digestbot/internal/transport"
	logx "digestbot/pkg/logx"
)

// Bus event types published around broadcast runs.
const (
	EventRunStarted  = "mailer.run_started"
	EventRunFinished = "mailer.run_finished"
)

// fullRunKey guards the all-recipients broadcast; category runs are keyed by
// their category id, which is always positive.
const fullRunKey int64 = -1

// Service orchestrates broadcast runs: fetch, segment, resolve, dispatch.
// Concurrent runs for the same target are rejected with ErrBusy; runs for
// different categories may overlap.
type Service struct {
	dir directory.Directory
	src source.Source
	bus eventbus.Bus
	log logx.Logger

	mu      sync.Mutex
	cfg     Config
	disp    *Dispatcher
	running map[int64]bool
	history []RunRecord
}

func New(cfg Config, adapter kit.Adapter, dir directory.Directory, src source.Source, bus eventbus.Bus, log logx.Logger) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		dir:     dir,
		src:     src,
		bus:     bus,
		log:     log,
		cfg:     cfg,
		disp:    NewDispatcher(adapter, cfg, log),
		running: map[int64]bool{},
	}
}

// Apply swaps pacing knobs at runtime. In-flight runs keep their old pacing;
// the next run picks up the new one.
func (s *Service) Apply(cfg Config, adapter kit.Adapter) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	s.cfg = cfg
	s.disp = NewDispatcher(adapter, cfg, s.log)
	s.mu.Unlock()
}

// RunCategory fetches new items and broadcasts them to the category's
// subscribers. Returns ErrBusy if a run for this category is in flight.
//
// An empty fetch or an empty/unresolvable audience ends the run successfully
// with zero deliveries; source items stay consumed either way.
func (s *Service) RunCategory(ctx context.Context, categoryID int64) (Summary, error) {
	release, disp, cfg, err := s.acquire(categoryID)
	if err != nil {
		return Summary{}, err
	}
	defer release()

	started := time.Now()
	log := s.log.With(logx.Int64("category_id", categoryID))
	s.publish(EventRunStarted, RunRecord{Kind: "category", CategoryID: categoryID, Started: started})

	fctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	items, err := s.src.FetchNew(fctx)
	cancel()
	if err != nil {
		log.Error("source fetch failed", logx.Err(err))
		s.finish(RunRecord{Kind: "category", CategoryID: categoryID, Started: started, Err: err.Error()})
		return Summary{}, err
	}

	sum := Summary{SourceItems: len(items)}
	if len(items) == 0 {
		log.Info("no new items")
		s.finish(RunRecord{Kind: "category", CategoryID: categoryID, Started: started, Summary: sum})
		return sum, nil
	}

	parts := Segment(items, cfg.PartLimit)

	rctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	recipients, err := s.dir.CategorySubscribers(rctx, categoryID)
	cancel()
	if err != nil {
		// An unresolvable audience is an empty audience: log it loudly but
		// let the run end cleanly so the scheduler does not tight-loop.
		if directory.IsResolution(err) {
			log.Error("audience resolution failed", logx.Err(err))
			recipients = nil
		} else {
			s.finish(RunRecord{Kind: "category", CategoryID: categoryID, Started: started, Err: err.Error()})
			return Summary{}, err
		}
	}
	if len(recipients) == 0 {
		log.Info("no subscribers", logx.Int("items", len(items)))
		sum.Parts = len(parts)
		s.finish(RunRecord{Kind: "category", CategoryID: categoryID, Started: started, Summary: sum})
		return sum, nil
	}

	log.Info("broadcast starting",
		logx.Int("items", len(items)),
		logx.Int("parts", len(parts)),
		logx.Int("recipients", len(recipients)))

	dsum, derr := disp.Dispatch(ctx, recipients, parts)
	dsum.SourceItems = len(items)

	rec := RunRecord{Kind: "category", CategoryID: categoryID, Started: started, Summary: dsum}
	if derr != nil {
		rec.Err = derr.Error()
	}
	s.finish(rec)

	log.Info("broadcast finished",
		logx.Int("delivered", dsum.Delivered),
		logx.Int("blocked", dsum.Blocked),
		logx.Int("failed", dsum.Failed),
		logx.Err(derr))
	return dsum, derr
}

// RunFull copies an existing message to every known recipient. Used by the
// admin broadcast flow; content is opaque (formatting and media survive).
func (s *Service) RunFull(ctx context.Context, ref kit.MessageRef) (Summary, error) {
	release, disp, cfg, err := s.acquire(fullRunKey)
	if err != nil {
		return Summary{}, err
	}
	defer release()

	started := time.Now()
	s.publish(EventRunStarted, RunRecord{Kind: "full", Started: started})

	// A hung audience lookup must not pin the busy guard; resolution gets the
	// same bound as the item fetch.
	rctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	recipients, err := s.dir.AllRecipients(rctx)
	cancel()
	if err != nil {
		s.log.Error("audience resolution failed", logx.Err(err))
		s.finish(RunRecord{Kind: "full", Started: started, Err: err.Error()})
		return Summary{}, err
	}

	parts := []MessagePart{{Copy: &ref}}
	dsum, derr := disp.Dispatch(ctx, recipients, parts)

	rec := RunRecord{Kind: "full", Started: started, Summary: dsum}
	if derr != nil {
		rec.Err = derr.Error()
	}
	s.finish(rec)

	s.log.Info("full broadcast finished",
		logx.Int("total", dsum.Total),
		logx.Int("delivered", dsum.Delivered),
		logx.Int("blocked", dsum.Blocked),
		logx.Int("failed", dsum.Failed),
		logx.Err(derr))
	return dsum, derr
}

// History returns recent runs, newest first.
func (s *Service) History() []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunRecord, len(s.history))
	for i, r := range s.history {
		out[len(s.history)-1-i] = r
	}
	return out
}

func (s *Service) acquire(key int64) (release func(), disp *Dispatcher, cfg Config, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[key] {
		return nil, nil, Config{}, ErrBusy
	}
	s.running[key] = true
	release = func() {
		s.mu.Lock()
		delete(s.running, key)
		s.mu.Unlock()
	}
	return release, s.disp, s.cfg, nil
}

func (s *Service) finish(rec RunRecord) {
	rec.Finished = time.Now()

	s.mu.Lock()
	s.history = append(s.history, rec)
	if n := s.cfg.HistorySize; len(s.history) > n {
		s.history = s.history[len(s.history)-n:]
	}
	s.mu.Unlock()

	s.publish(EventRunFinished, rec)
}

func (s *Service) publish(typ string, rec RunRecord) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Data: rec})
	}
}
