package warmer

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"futuresquotes/internal/quote"
)

// Getter is satisfied by *cache.Cache.
type Getter interface {
	Get(ctx context.Context) quote.Prices
}

// Warmer calls Get on a cron schedule so HTTP and WebSocket readers usually
// hit a fresh cache. A warm that finds the cache fresh does no upstream work.
type Warmer struct {
	cron    *cron.Cron
	src     Getter
	spec    string
	timeout time.Duration
	log     zerolog.Logger
}

// New creates a warmer. spec accepts standard 5-field cron expressions and
// descriptors such as "@every 45s".
func New(src Getter, spec string, timeout time.Duration, log zerolog.Logger) *Warmer {
	return &Warmer{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		src:     src,
		spec:    spec,
		timeout: timeout,
		log:     log,
	}
}

// Start registers the job and starts the scheduler.
func (w *Warmer) Start() error {
	if _, err := w.cron.AddFunc(w.spec, w.run); err != nil {
		return err
	}
	w.cron.Start()
	w.log.Info().Str("schedule", w.spec).Msg("cache warmer started")
	return nil
}

// Stop stops the scheduler and waits for a running warm to finish.
func (w *Warmer) Stop() {
	<-w.cron.Stop().Done()
	w.log.Info().Msg("cache warmer stopped")
}

func (w *Warmer) run() {
	ctx := context.Background()
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	prices := w.src.Get(ctx)
	missing := 0
	for _, s := range prices {
		if s == nil {
			missing++
		}
	}
	ev := w.log.Debug()
	if missing > 0 {
		ev = w.log.Warn()
	}
	ev.Int("symbols", len(prices)).Int("missing", missing).Msg("cache warmed")
}
