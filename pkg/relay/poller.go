package relay

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/beam-cloud/gmail2tg/pkg/repository"
	"github.com/beam-cloud/gmail2tg/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultInterval    = 15 * time.Second
	DefaultTickTimeout = 2 * time.Minute
	DefaultMaxPerTick  = 10
	DefaultQuery       = "in:inbox"

	// saveTimeout bounds the state write that ends a tick, which runs even
	// when the tick itself ran out of time
	saveTimeout = 30 * time.Second
)

type PollerConfig struct {
	ChatID      int64
	Query       string
	MaxPerTick  int64
	MarkerLabel string
	Interval    time.Duration
	TickTimeout time.Duration
	CompactHigh int
	CompactLow  int
}

// PollerConfigFrom maps the application config onto poller settings
func PollerConfigFrom(cfg types.AppConfig) PollerConfig {
	return PollerConfig{
		ChatID:      cfg.Telegram.ChatID,
		Query:       cfg.Gmail.Query,
		MaxPerTick:  cfg.Gmail.MaxPerTick,
		MarkerLabel: cfg.Gmail.MarkerLabel,
		Interval:    cfg.Poll.Interval,
		TickTimeout: cfg.Poll.TickTimeout,
		CompactHigh: cfg.State.CompactHigh,
		CompactLow:  cfg.State.CompactLow,
	}
}

func (c *PollerConfig) applyDefaults() {
	if c.Query == "" {
		c.Query = DefaultQuery
	}
	if c.MaxPerTick <= 0 {
		c.MaxPerTick = DefaultMaxPerTick
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = DefaultTickTimeout
	}
	if c.CompactLow <= 0 {
		c.CompactLow = types.DefaultCompactLow
	}
	if c.CompactHigh < c.CompactLow {
		c.CompactHigh = max(types.DefaultCompactHigh, c.CompactLow)
	}
}

// Status is a point-in-time view of the poller for the status endpoint
type Status struct {
	Started       bool       `json:"started"`
	Standby       bool       `json:"standby"`
	Watermark     *time.Time `json:"watermark,omitempty"`
	MarkerLabelID string     `json:"marker_label_id,omitempty"`
	Degraded      bool       `json:"degraded"`
	Processed     int        `json:"processed"`
	Ticks         int64      `json:"ticks"`
	Forwarded     int64      `json:"forwarded"`
	LastTickID    string     `json:"last_tick_id,omitempty"`
	LastTickAt    *time.Time `json:"last_tick_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

// TickResult summarizes one tick
type TickResult struct {
	ID        string
	Window    int
	Listed    int
	Delivered int
	Gone      int
	Skipped   int
	Evicted   int
	Saved     bool
	Standby   bool
	Err       error
}

type PollerOption func(*Poller)

// WithClock replaces time.Now
func WithClock(now func() time.Time) PollerOption {
	return func(p *Poller) { p.now = now }
}

// WithTickLock makes ticks conditional on holding lock
func WithTickLock(lock TickLock) PollerOption {
	return func(p *Poller) { p.lock = lock }
}

// Poller runs the Startup then Tick state machine. Only the goroutine
// calling Startup, Tick or Run touches the persisted state.
type Poller struct {
	cfg      PollerConfig
	mailbox  Mailbox
	notifier Notifier
	repo     repository.StateRepository
	labels   *LabelReconciler
	composer *Composer
	lock     TickLock
	now      func() time.Time

	state   *types.PersistedState
	labelID string
	standby bool

	mu     sync.RWMutex
	status Status
}

func NewPoller(cfg PollerConfig, mailbox Mailbox, notifier Notifier, repo repository.StateRepository, composer *Composer, opts ...PollerOption) *Poller {
	cfg.applyDefaults()
	if composer == nil {
		composer = NewComposer(types.MessageConfig{})
	}

	p := &Poller{
		cfg:      cfg,
		mailbox:  mailbox,
		notifier: notifier,
		repo:     repo,
		labels:   NewLabelReconciler(mailbox),
		composer: composer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Startup loads state, sets and persists the watermark on first run, then
// resolves the marker label. Errors are fatal.
func (p *Poller) Startup(ctx context.Context) error {
	if err := p.loadState(ctx); err != nil {
		return err
	}

	p.labelID = p.labels.EnsureMarkerLabel(ctx, p.cfg.MarkerLabel)

	p.mu.Lock()
	p.status.Started = true
	p.status.MarkerLabelID = p.labelID
	p.status.Degraded = p.cfg.MarkerLabel != "" && p.labelID == ""
	p.mu.Unlock()
	p.publishState()

	wm, _ := p.state.Watermark()
	log.Info().
		Time("watermark", wm).
		Int("processed", len(p.state.Processed)).
		Str("label_id", p.labelID).
		Msg("poller started")
	return nil
}

func (p *Poller) loadState(ctx context.Context) error {
	state, err := p.repo.Load(ctx)
	if err != nil {
		return &types.ErrStartup{Reason: "unable to load state", Err: err}
	}

	if state.InitWatermark(p.now()) {
		// Persist before the first listing so older mail is never forwarded
		if err := p.repo.Save(ctx, state); err != nil {
			return &types.ErrStartup{Reason: "unable to persist watermark", Err: err}
		}
		log.Info().Int64("start_after", *state.StartAfter).Msg("watermark initialized, ignoring older mail")
	}

	p.state = state
	return nil
}

// Run performs Startup if needed, then ticks until ctx is cancelled. A tick
// that already started finishes on a context detached from ctx, bounded by
// the tick timeout.
func (p *Poller) Run(ctx context.Context) error {
	if p.state == nil {
		if err := p.Startup(ctx); err != nil {
			return err
		}
	}
	defer p.releaseLock()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("poller stopped")
			return nil
		case <-timer.C:
		}

		tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.TickTimeout)
		p.Tick(tickCtx)
		cancel()

		timer.Reset(p.cfg.Interval)
	}
}

// Tick runs one poll cycle. Failures are logged and reported in the result,
// never returned: the next tick retries whatever was skipped.
func (p *Poller) Tick(ctx context.Context) TickResult {
	res := TickResult{ID: uuid.NewString()}
	logger := log.With().Str("tick_id", res.ID).Logger()

	if p.state == nil {
		res.Err = errors.New("poller not started")
		p.finishTick(&res, logger)
		return res
	}

	if ok, err := p.holdLock(ctx, logger); !ok {
		res.Standby = err == nil
		res.Err = err
		p.finishTick(&res, logger)
		return res
	}

	res.Window = p.windowMinutes()
	query := fmt.Sprintf("%s newer_than:%dm", p.cfg.Query, res.Window)

	ids, err := p.mailbox.ListMessageIDs(ctx, query, p.cfg.MaxPerTick)
	if err != nil {
		logger.Warn().Err(err).Str("kind", string(types.KindOf(err))).Int("window_minutes", res.Window).Msg("unable to list messages")
		res.Err = err
		p.finishTick(&res, logger)
		return res
	}
	res.Listed = len(ids)

	// Listing is newest first
	slices.Reverse(ids)

	marked := 0
	for _, id := range ids {
		if p.state.IsProcessed(id) {
			continue
		}
		if ctx.Err() != nil {
			logger.Warn().Err(ctx.Err()).Msg("tick out of time, leaving remaining messages for the next tick")
			break
		}

		switch p.forward(ctx, logger.With().Str("message_id", id).Logger(), id) {
		case outcomeDelivered:
			res.Delivered++
			marked++
		case outcomeGone:
			res.Gone++
			marked++
		case outcomeSkipped:
			res.Skipped++
		}
	}

	res.Evicted = p.state.Compact(p.cfg.CompactHigh, p.cfg.CompactLow)
	if res.Evicted > 0 {
		logger.Info().Int("count", res.Evicted).Msg("compacted processed set")
	}

	if marked > 0 || res.Evicted > 0 {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
		err := p.repo.Save(saveCtx, p.state)
		cancel()
		if err != nil {
			logger.Error().Err(err).Msg("unable to persist state")
			res.Err = err
		} else {
			res.Saved = true
		}
	}

	p.finishTick(&res, logger)
	return res
}

type outcome int

const (
	outcomeDelivered outcome = iota
	outcomeGone
	outcomeSkipped
)

// forward delivers one message, then labels it, then records it. A failed
// delivery leaves it unrecorded so the next tick retries it. A failed label
// update does not, since resending is worse than a missing label.
func (p *Poller) forward(ctx context.Context, logger zerolog.Logger, id string) outcome {
	msg, err := p.mailbox.GetMessage(ctx, id)
	if err != nil {
		kind := types.KindOf(err)
		if kind == types.ErrorKindNotFound {
			logger.Info().Msg("message no longer exists, marking processed")
			p.state.MarkProcessed(id, p.now())
			return outcomeGone
		}
		logger.Warn().Err(err).Str("kind", string(kind)).Msg("unable to fetch message, retrying next tick")
		return outcomeSkipped
	}

	env := p.composer.BuildEnvelope(msg)
	if err := p.notifier.Send(ctx, p.cfg.ChatID, p.composer.Format(env)); err != nil {
		logger.Warn().Err(err).Str("kind", string(types.KindOf(err))).Msg("unable to deliver message, retrying next tick")
		return outcomeSkipped
	}

	if err := p.labels.Reconcile(ctx, id, p.labelID); err != nil {
		logger.Warn().Err(err).Str("kind", string(types.KindOf(err))).Msg("delivered but unable to update labels")
	}

	p.state.MarkProcessed(id, p.now())
	logger.Info().Str("from", env.From).Int("attachments", len(env.Attachments)).Msg("forwarded message")
	return outcomeDelivered
}

func (p *Poller) windowMinutes() int {
	wm, ok := p.state.Watermark()
	if !ok {
		return 1
	}
	return max(1, int(p.now().Sub(wm)/time.Minute))
}

// holdLock reports whether this tick may run. A replica that regains the
// lock reloads state, since the previous holder may have advanced it.
func (p *Poller) holdLock(ctx context.Context, logger zerolog.Logger) (bool, error) {
	if p.lock == nil {
		return true, nil
	}

	held, err := p.lock.Hold(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("unable to check tick lock, skipping tick")
		return false, err
	}
	if !held {
		if !p.standby {
			logger.Info().Msg("another replica holds the tick lock, standing by")
		}
		p.standby = true
		return false, nil
	}

	if p.standby {
		state, err := p.repo.Load(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("unable to reload state after taking the tick lock")
			return false, err
		}
		state.InitWatermark(p.now())
		p.state = state
		p.standby = false
		logger.Info().Int("processed", len(state.Processed)).Msg("took over tick lock, state reloaded")
	}
	return true, nil
}

func (p *Poller) releaseLock() {
	if p.lock == nil {
		return
	}
	if err := p.lock.Release(); err != nil {
		log.Warn().Err(err).Msg("unable to release tick lock")
	}
}

func (p *Poller) finishTick(res *TickResult, logger zerolog.Logger) {
	now := p.now()

	p.mu.Lock()
	p.status.Ticks++
	p.status.Standby = res.Standby
	p.status.Forwarded += int64(res.Delivered)
	p.status.LastTickID = res.ID
	p.status.LastTickAt = &now
	p.status.LastError = ""
	if res.Err != nil {
		p.status.LastError = res.Err.Error()
	}
	p.mu.Unlock()
	p.publishState()

	if res.Listed > 0 || res.Err != nil {
		logger.Debug().
			Int("window_minutes", res.Window).
			Int("listed", res.Listed).
			Int("delivered", res.Delivered).
			Int("skipped", res.Skipped).
			Bool("saved", res.Saved).
			Msg("tick done")
	}
}

// publishState copies the parts of the state the status endpoint shows
func (p *Poller) publishState() {
	if p.state == nil {
		return
	}

	var watermark *time.Time
	if wm, ok := p.state.Watermark(); ok {
		watermark = &wm
	}
	processed := len(p.state.Processed)

	p.mu.Lock()
	p.status.Watermark = watermark
	p.status.Processed = processed
	p.mu.Unlock()
}

// Status returns a copy of the latest status
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}
