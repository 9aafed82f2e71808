package session

import (
	"context"
	"log/slog"
	"time"
)

// Expirer deletes expired sessions in bounded batches.
type Expirer interface {
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

// Reaper periodically removes expired session rows. Reads never depend on it:
// expired rows are already invisible to FindActiveByToken.
type Reaper struct {
	store    Expirer
	interval time.Duration
	batch    int
	timeout  time.Duration

	now func() time.Time
	log *slog.Logger
	rec Recorder
}

func NewReaper(store Expirer, cfg Config, log *slog.Logger, rec Recorder) *Reaper {
	if log == nil {
		log = slog.Default()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	batch := cfg.ReapBatch
	if batch <= 0 {
		batch = DefaultConfig().ReapBatch
	}
	return &Reaper{
		store:    store,
		interval: cfg.ReapInterval,
		batch:    batch,
		timeout:  cfg.StoreTimeout,
		now:      time.Now,
		log:      log,
		rec:      rec,
	}
}

// Enabled reports whether Run does anything.
func (r *Reaper) Enabled() bool { return r != nil && r.store != nil && r.interval > 0 }

// Run sweeps once per interval until ctx ends. It returns nil on shutdown;
// sweep failures are logged and retried on the next tick.
func (r *Reaper) Run(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}

	r.log.Info("session.reaper.start", "interval", r.interval.String(), "batch", r.batch)
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("session.reaper.stop")
			return nil
		case <-t.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.log.Warn("session.reaper.sweep.fail", "err", err)
			}
		}
	}
}

// Sweep deletes expired rows in batches until a short batch signals the
// backlog is gone, and returns the total removed.
func (r *Reaper) Sweep(ctx context.Context) (int64, error) {
	var total int64
	now := r.now().UTC()

	for {
		n, err := r.deleteBatch(ctx, now)
		total += n
		if err != nil {
			r.rec.ObserveReaped(total)
			return total, err
		}
		if n < int64(r.batch) {
			break
		}
	}

	r.rec.ObserveReaped(total)
	if total > 0 {
		r.log.Info("session.reaper.swept", "deleted", total)
	}
	return total, nil
}

func (r *Reaper) deleteBatch(ctx context.Context, now time.Time) (int64, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.store.DeleteExpired(ctx, now, r.batch)
}
