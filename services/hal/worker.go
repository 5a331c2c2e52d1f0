// services/hal/worker.go
package hal

import (
	"context"
	"time"
)

// measureWorker serialises split-phase measurement cycles for one bus.
// Trigger happens on submission; Collect attempts run off a single due
// timer with ErrNotReady retry/backoff.
type measureWorker struct {
	cfg  WorkerConfig
	reqQ chan MeasureReq
	sink chan<- Result // fan-in sink owned by the service

	pending  map[string]*collectItem
	want     map[string]bool // re-trigger wishes from prio requests
	collects []*collectItem
	timer    *time.Timer
}

type collectItem struct {
	id      string
	adaptor Adaptor
	due     time.Time
	retries int
}

func NewWorker(cfg WorkerConfig, sink chan<- Result) *measureWorker {
	if cfg.TriggerTimeout <= 0 {
		cfg.TriggerTimeout = 100 * time.Millisecond
	}
	if cfg.CollectTimeout <= 0 {
		cfg.CollectTimeout = 250 * time.Millisecond
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 5 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 6
	}
	if cfg.InputQueueSize <= 0 {
		cfg.InputQueueSize = 16
	}
	return &measureWorker{
		cfg:     cfg,
		reqQ:    make(chan MeasureReq, cfg.InputQueueSize),
		sink:    sink,
		pending: map[string]*collectItem{},
		want:    map[string]bool{},
		timer:   time.NewTimer(time.Hour),
	}
}

// Submit enqueues a request. Non-prio requests are dropped when the queue
// is full; prio requests get a short grace window.
func (w *measureWorker) Submit(req MeasureReq) bool {
	select {
	case w.reqQ <- req:
		return true
	default:
		if req.Prio {
			select {
			case w.reqQ <- req:
				return true
			case <-time.After(5 * time.Millisecond):
			}
		}
		return false
	}
}

func (w *measureWorker) Start(ctx context.Context) {
	if !w.timer.Stop() {
		drainTimer(w.timer)
	}
	go w.loop(ctx)
}

func (w *measureWorker) loop(ctx context.Context) {
	for {
		if next := w.minDue(); next.IsZero() {
			resetTimer(w.timer, time.Hour)
		} else {
			resetTimer(w.timer, time.Until(next))
		}

		select {
		case <-ctx.Done():
			return

		case req := <-w.reqQ:
			if _, ok := w.pending[req.ID]; ok {
				// Already in flight; remember prio wishes.
				if req.Prio {
					w.want[req.ID] = true
				}
				continue
			}
			tctx, cancel := context.WithTimeout(ctx, w.cfg.TriggerTimeout)
			after, err := req.Adaptor.Trigger(tctx)
			cancel()
			if err != nil {
				w.emit(Result{ID: req.ID, Err: err})
				continue
			}
			it := &collectItem{id: req.ID, adaptor: req.Adaptor, due: time.Now().Add(after)}
			w.pending[req.ID] = it
			w.collects = append(w.collects, it)

		case <-w.timer.C:
			w.collectDue(ctx)
		}
	}
}

func (w *measureWorker) collectDue(ctx context.Context) {
	now := time.Now()
	var keep []*collectItem
	for _, it := range w.collects {
		if now.Before(it.due) {
			keep = append(keep, it)
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, w.cfg.CollectTimeout)
		s, err := it.adaptor.Collect(cctx)
		cancel()
		switch {
		case err == nil:
			delete(w.pending, it.id)
			delete(w.want, it.id)
			w.emit(Result{ID: it.id, Sample: s})
		case err == ErrNotReady && it.retries < w.cfg.MaxRetries:
			it.retries++
			it.due = now.Add(w.cfg.RetryBackoff)
			keep = append(keep, it)
		default:
			delete(w.pending, it.id)
			w.emit(Result{ID: it.id, Err: err})
			// Honour a queued prio wish by re-triggering once.
			if w.want[it.id] {
				tctx, cancel := context.WithTimeout(ctx, w.cfg.TriggerTimeout)
				after, terr := it.adaptor.Trigger(tctx)
				cancel()
				if terr == nil {
					it.retries = 0
					it.due = time.Now().Add(after)
					w.pending[it.id] = it
					keep = append(keep, it)
				}
				delete(w.want, it.id)
			}
		}
	}
	w.collects = keep
}

func (w *measureWorker) emit(r Result) {
	w.sink <- r
}

func (w *measureWorker) minDue() time.Time {
	var min time.Time
	for _, it := range w.collects {
		if min.IsZero() || it.due.Before(min) {
			min = it.due
		}
	}
	return min
}
