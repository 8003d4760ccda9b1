// Package engine runs the betting loop: wait for the venue to open, bet on
// every enabled strategy, wait for the next draw, settle and persist.
//
// One goroutine runs the loop. Start and Stop may be called from any
// goroutine; every wait inside the loop returns as soon as Stop cancels it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"Canada28Bot/internal/actuator"
	"Canada28Bot/internal/clock"
	"Canada28Bot/internal/config"
	"Canada28Bot/internal/feed"
	"Canada28Bot/internal/logger"
	"Canada28Bot/internal/metrics"
	"Canada28Bot/internal/model"
	"Canada28Bot/internal/notifier"
	"Canada28Bot/internal/recorder"
	"Canada28Bot/internal/state"
	"Canada28Bot/internal/strategy"
)

var log = logger.For("engine")

// StopTimeout bounds how long Stop waits for the loop to exit.
const StopTimeout = 5 * time.Second

const notifyTimeout = 30 * time.Second

var (
	// ErrNoStrategies ends a run when no strategy is enabled.
	ErrNoStrategies = errors.New("no strategies enabled")
	// ErrRunning is returned by operations that need a stopped engine.
	ErrRunning = errors.New("engine is running")
)

// ConfigSource provides a private copy of the current configuration.
type ConfigSource interface {
	Get() *config.Config
}

// Deps are the collaborators of an Engine. Recorder, Notifier and Metrics are optional.
type Deps struct {
	Config   ConfigSource
	Feed     feed.Feed
	Actuator actuator.Actuator
	Store    state.Store
	Recorder recorder.Recorder
	Notifier notifier.Notifier
	Metrics  *metrics.Metrics
}

// Engine owns the betting state and the run-loop goroutine.
type Engine struct {
	deps        Deps
	pick        func(n int) int
	stopTimeout time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	runID   string
	lastErr string
}

// New creates a stopped engine.
func New(d Deps) *Engine {
	if d.Recorder == nil {
		d.Recorder = recorder.NewNoopRecorder()
	}
	if d.Notifier == nil {
		d.Notifier = notifier.Noop{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	return &Engine{deps: d, pick: rand.IntN, stopTimeout: StopTimeout}
}

// Start launches the loop with a fresh copy of the configuration. It returns
// false if the loop is already running, or if a loop that outlived Stop has
// not exited yet.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		log.Info("start requested but engine already running")
		return false
	}
	if e.done != nil {
		select {
		case <-e.done:
		default:
			log.WithField("run", e.runID).Warn("start refused: previous loop has not exited yet")
			return false
		}
	}

	cfg := e.deps.Config.Get()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.running = true
	e.cancel = cancel
	e.done = done
	e.runID = uuid.NewString()
	e.lastErr = ""
	e.deps.Metrics.SetRunning(true)

	log.WithField("run", e.runID).Info("engine starting")
	go e.loop(ctx, cfg, e.runID, done)
	return true
}

// Stop cancels the loop and waits up to StopTimeout for it to exit. It
// returns false if the engine was not running.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return false
	}
	cancel, done, runID := e.cancel, e.done, e.runID
	e.mu.Unlock()

	log.WithField("run", runID).Info("stop requested")
	cancel()
	select {
	case <-done:
	case <-time.After(e.stopTimeout):
		log.WithField("run", runID).Warnf("loop did not exit within %v; start is refused until it does", e.stopTimeout)
	}

	e.mu.Lock()
	if e.done == done && e.running {
		e.running = false
		e.deps.Metrics.SetRunning(false)
	}
	e.mu.Unlock()
	return true
}

// IsRunning reports whether the loop is running.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Snapshot returns the persisted state together with the run status.
func (e *Engine) Snapshot() (model.Snapshot, error) {
	st, err := e.deps.Store.Load()
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("load state: %w", err)
	}

	e.mu.Lock()
	snap := model.Snapshot{Running: e.running, State: st, LastError: e.lastErr}
	if e.running {
		snap.RunID = e.runID
	}
	e.mu.Unlock()

	if st.HasLastDraw() {
		cfg := e.deps.Config.Get()
		clk := clock.New(cfg.Timing.DrawCadence, cfg.Timing.PollLead, cfg.Timing.BetDelay)
		if d, err := clk.TimeUntilNextDraw(st.LastAwardTime, time.Now()); err == nil {
			secs := int(d.Seconds())
			snap.SecondsUntilNextDraw = &secs
		}
	}
	return snap, nil
}

// ClearState deletes the persisted state. Refused while running.
func (e *Engine) ClearState() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrRunning
	}
	if err := e.deps.Store.Clear(); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}
	log.Info("persisted state cleared")
	return nil
}

func (e *Engine) loop(ctx context.Context, cfg *config.Config, runID string, done chan struct{}) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			log.WithField("run", runID).Errorf("%v\n%s", err, debug.Stack())
		}
		e.finish(runID, done, err)
	}()
	err = e.run(ctx, cfg, runID)
}

// finish marks the run as stopped and reports why it ended.
func (e *Engine) finish(runID string, done chan struct{}, err error) {
	l := log.WithField("run", runID)
	cancelled := errors.Is(err, context.Canceled)

	e.mu.Lock()
	if e.done == done {
		e.running = false
		e.cancel()
		if err != nil && !cancelled && !errors.Is(err, ErrNoStrategies) {
			e.lastErr = err.Error()
		}
		e.deps.Metrics.SetRunning(false)
	}
	close(done)
	e.mu.Unlock()

	switch {
	case cancelled:
		l.Info("engine stopped")
		return
	case errors.Is(err, ErrNoStrategies):
		l.Info("engine stopped: no strategies enabled")
	case err != nil:
		l.Errorf("engine stopped on error: %v", err)
	default:
		l.Info("engine stopped")
	}
	e.notify(notifier.FormatEngineStopped(runID, err, time.Now()))
}

func (e *Engine) run(ctx context.Context, cfg *config.Config, runID string) error {
	l := log.WithField("run", runID)
	clk := clock.New(cfg.Timing.DrawCadence, cfg.Timing.PollLead, cfg.Timing.BetDelay)
	defs, err := strategy.Enabled(cfg)
	if err != nil {
		return err
	}
	accounts := cfg.UsableAccounts()
	l.Infof("strategies=%v usable accounts=%d", cfg.EnabledStrategies(), len(accounts))

	st, err := e.deps.Store.Load()
	if err != nil {
		l.Warnf("load state: %v, starting fresh", err)
		st = model.NewEngineState()
	}
	e.reconcile(st, defs)

	if !st.HasLastDraw() {
		if err := e.bootstrap(ctx, cfg.Feed.BootstrapBackoff, st); err != nil {
			return err
		}
	}

	for {
		d, perr := clk.TimeUntilBettingOpens(st.LastAwardTime, time.Now())
		if err := wait(ctx, "betting window", d, perr); err != nil {
			return err
		}

		if len(defs) == 0 {
			return ErrNoStrategies
		}
		bets := e.placeBets(ctx, runID, defs, accounts, st)

		d, perr = clk.TimeUntilPollWindow(st.LastAwardTime, time.Now())
		if err := wait(ctx, "poll window", d, perr); err != nil {
			return err
		}

		draw, err := e.pollNewDraw(ctx, cfg.Feed.PollInterval, st.LastPeriodIssue)
		if err != nil {
			return err
		}
		e.settle(runID, defs, st, bets, draw)
	}
}

// reconcile keeps state only for enabled strategies and resets entries that
// are missing or out of range for the current limits.
func (e *Engine) reconcile(st *model.EngineState, defs []strategy.Definition) {
	kept := make(map[string]*model.StrategyState, len(defs))
	for _, d := range defs {
		kept[d.Name] = d.Normalize(st.Strategies[d.Name])
		e.deps.Metrics.SetStrategy(d.Name, kept[d.Name].CurrentBet, kept[d.Name].WinStreak)
	}
	for name := range st.Strategies {
		if _, ok := kept[name]; !ok {
			log.Infof("dropping state of disabled strategy %s", name)
		}
	}
	st.Strategies = kept
}

func (e *Engine) bootstrap(ctx context.Context, backoff time.Duration, st *model.EngineState) error {
	log.Info("no previous draw recorded, bootstrapping from feed")
	for {
		draw, err := e.fetch(ctx)
		if err == nil {
			st.SetLastDraw(draw)
			e.save(st)
			log.Infof("bootstrapped from issue %s (sum %d, %s)", draw.Issue, draw.Sum, draw.Time)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warnf("bootstrap fetch failed: %v, retrying in %v", err, backoff)
		if err := sleep(ctx, backoff); err != nil {
			return err
		}
	}
}

func (e *Engine) placeBets(ctx context.Context, runID string, defs []strategy.Definition, accounts []config.Account, st *model.EngineState) map[string]model.Bet {
	bets := make(map[string]model.Bet, len(defs))
	for _, d := range defs {
		bet := d.DecideBet(st.Strategies[d.Name], st.LastPeriodSum)
		bets[d.Name] = bet
		rec := &model.BetRecord{
			RunID:      runID,
			BasisIssue: st.LastPeriodIssue,
			Strategy:   d.Name,
			Outcome:    bet.Outcome,
			Amount:     bet.Amount,
			CreatedAt:  time.Now(),
		}

		if len(accounts) == 0 {
			rec.Error = "no usable account"
			log.Warnf("[%s] bet %s skipped: no enabled account with a chat id", d.Name, bet.Text())
			e.deps.Metrics.Bet(d.Name, "skipped")
		} else {
			acc := accounts[e.pick(len(accounts))]
			rec.Account, rec.ChatID = acc.Alias, acc.ChatID
			if err := e.deps.Actuator.Dispatch(ctx, acc.Alias, acc.ChatID, bet.Text()); err != nil {
				rec.Error = err.Error()
				log.Errorf("[%s] bet %s via %s failed: %v", d.Name, bet.Text(), acc.Alias, err)
				e.deps.Metrics.Bet(d.Name, "fail")
			} else {
				rec.Dispatched = true
				log.Infof("[%s] bet %s via %s -> %s", d.Name, bet.Text(), acc.Alias, acc.ChatID)
				e.deps.Metrics.Bet(d.Name, "ok")
			}
		}
		if err := e.deps.Recorder.RecordBet(rec); err != nil {
			log.Warnf("record bet: %v", err)
		}
	}
	return bets
}

// pollNewDraw fetches until the feed reports an issue other than lastIssue.
// Failed fetches count as "not yet".
func (e *Engine) pollNewDraw(ctx context.Context, interval time.Duration, lastIssue string) (model.DrawResult, error) {
	log.Infof("polling for the draw after issue %s", lastIssue)
	for attempt := 1; ; attempt++ {
		draw, err := e.fetch(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return model.DrawResult{}, ctx.Err()
			}
			log.Debugf("poll %d: %v", attempt, err)
		case draw.Issue != lastIssue:
			log.Infof("new draw: issue %s sum %d at %s (after %d polls)", draw.Issue, draw.Sum, draw.Time, attempt)
			return draw, nil
		default:
			log.Debugf("poll %d: issue %s unchanged", attempt, lastIssue)
		}
		if err := sleep(ctx, interval); err != nil {
			return model.DrawResult{}, err
		}
	}
}

func (e *Engine) settle(runID string, defs []strategy.Definition, st *model.EngineState, bets map[string]model.Bet, draw model.DrawResult) {
	recs := strategy.SettleAll(defs, st.Strategies, bets, draw)
	st.SetLastDraw(draw)
	e.save(st)

	for i := range recs {
		r := &recs[i]
		r.RunID = runID
		if r.Win {
			log.Infof("[%s] WIN on %s: bet %s%d, drew %d; streak %d, next bet %d",
				r.Strategy, r.Issue, r.Predicted.Glyph(), r.BetAmount, r.Sum, r.WinStreak, r.NextBet)
			if r.StreakReset {
				log.Infof("[%s] win streak cap reached, back to initial bet", r.Strategy)
			}
		} else {
			log.Infof("[%s] LOSS on %s: bet %s%d, drew %d (%s); next bet %d",
				r.Strategy, r.Issue, r.Predicted.Glyph(), r.BetAmount, r.Sum, r.Actual.Glyph(), r.NextBet)
		}
		e.deps.Metrics.Settlement(r.Strategy, r.Win)
		if err := e.deps.Recorder.RecordSettlement(r); err != nil {
			log.Warnf("record settlement: %v", err)
		}
	}
	for _, d := range defs {
		s := st.Strategies[d.Name]
		e.deps.Metrics.SetStrategy(d.Name, s.CurrentBet, s.WinStreak)
	}
	e.notify(notifier.FormatSettlement(draw, recs))
}

func (e *Engine) fetch(ctx context.Context) (model.DrawResult, error) {
	draw, err := e.deps.Feed.Latest(ctx)
	e.deps.Metrics.FeedFetch(err == nil)
	return draw, err
}

// save persists st. A failure is logged and the in-memory state stays authoritative.
func (e *Engine) save(st *model.EngineState) {
	if err := e.deps.Store.Save(st); err != nil {
		log.Warnf("persist state: %v", err)
	}
}

func (e *Engine) notify(text string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := notifier.SendWithRetry(ctx, e.deps.Notifier, text, 2); err != nil {
			log.Warnf("notify: %v", err)
		}
	}()
}

func wait(ctx context.Context, what string, d time.Duration, parseErr error) error {
	if parseErr != nil {
		log.Warnf("%s: %v, waiting %v instead", what, parseErr, d)
	} else if d > 0 {
		log.Infof("waiting %v for %s", d.Round(time.Second), what)
	}
	return sleep(ctx, d)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
