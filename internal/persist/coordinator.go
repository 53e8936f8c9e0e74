// Package persist schedules document writes behind a trailing-edge debounce.
package persist

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/jb/internal/errors"
	"github.com/hpungsan/jb/internal/journal"
	"github.com/hpungsan/jb/internal/metrics"
)

// Writer persists a document snapshot to path.
type Writer interface {
	Write(ctx context.Context, path string, doc *journal.Document) error
}

// State is the coordinator's save state.
type State string

const (
	StateIdle   State = "idle"
	StateSaving State = "saving"
	StateSaved  State = "saved"
	StateError  State = "error"
)

// Status reports the latest save outcome.
type Status struct {
	State     State     `json:"state"`
	LastSaved time.Time `json:"lastSaved,omitempty"`
	Error     string    `json:"error,omitempty"`

	err error
}

// Err returns the error of the last failed write, if the last write failed.
func (s Status) Err() error { return s.err }

// Coordinator writes the most recently scheduled snapshot once the debounce
// delay passes without another Schedule. At most one write is in flight; a
// snapshot scheduled during a write is written right after it completes.
type Coordinator struct {
	w        Writer
	path     string
	delay    time.Duration
	log      *zap.Logger
	now      func() time.Time
	onStatus func(Status)

	mu      sync.Mutex
	pending *journal.Document
	timer   *time.Timer
	gen     uint64
	writing bool
	done    chan struct{}
	status  Status
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDelay sets the debounce delay.
func WithDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.delay = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithClock sets the time source for saved timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithStatusHook registers fn to observe status changes. fn runs with the
// coordinator's lock held and must not call back into the Coordinator.
func WithStatusHook(fn func(Status)) Option {
	return func(c *Coordinator) { c.onStatus = fn }
}

// New creates a Coordinator writing to path through w.
func New(w Writer, path string, opts ...Option) *Coordinator {
	c := &Coordinator{
		w:      w,
		path:   path,
		delay:  time.Second,
		log:    zap.NewNop(),
		now:    time.Now,
		status: Status{State: StateIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the file the coordinator writes to.
func (c *Coordinator) Path() string {
	return c.path
}

// Schedule records doc as the snapshot to write and restarts the delay.
func (c *Coordinator) Schedule(doc *journal.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		metrics.RecordCoalesced()
	}
	c.pending = doc
	c.setStatus(Status{State: StateSaving, LastSaved: c.status.LastSaved})

	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.delay, func() { c.fire(gen) })
}

func (c *Coordinator) fire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A newer Schedule, a Flush or a Cancel has superseded this timer.
	if gen != c.gen || c.pending == nil {
		return
	}
	// The running write loop picks the snapshot up when it finishes.
	if c.writing {
		return
	}
	c.drainLocked(context.Background())
}

// Flush cancels the pending delay and writes the latest snapshot now, waiting
// for any in-flight write first. It returns the error of the last write when
// that write failed.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	for c.writing {
		done := c.done
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return errors.NewCancelled("flush")
		}
		c.mu.Lock()
	}
	defer c.mu.Unlock()

	if c.pending != nil {
		c.drainLocked(ctx)
	}
	if c.status.State == StateError {
		return c.status.err
	}
	return nil
}

// Cancel stops the pending delay and discards the unwritten snapshot. An
// in-flight write is not interrupted.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = nil
	if c.status.State == StateSaving && !c.writing {
		c.setStatus(Status{State: StateIdle, LastSaved: c.status.LastSaved})
	}
}

// Pending reports whether a snapshot is waiting to be written.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Status returns the current save status.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// drainLocked writes pending snapshots until none remain. It is entered and
// left with c.mu held, and releases the lock around each write.
func (c *Coordinator) drainLocked(ctx context.Context) {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.writing = true
	c.done = make(chan struct{})

	for c.pending != nil {
		doc := c.pending
		c.pending = nil

		c.mu.Unlock()
		start := time.Now()
		err := c.w.Write(ctx, c.path, doc)
		elapsed := time.Since(start)
		metrics.RecordSave(err, elapsed)
		c.mu.Lock()

		if err != nil {
			c.log.Warn("document save failed",
				zap.String("path", c.path),
				zap.Error(err),
			)
			c.setStatus(Status{State: StateError, LastSaved: c.status.LastSaved, Error: err.Error(), err: err})
			continue
		}
		c.log.Debug("document saved",
			zap.String("path", c.path),
			zap.Duration("duration", elapsed),
		)
		st := Status{State: StateSaved, LastSaved: c.now().UTC()}
		if c.pending != nil {
			st.State = StateSaving
		}
		c.setStatus(st)
	}

	// Snapshots scheduled during the loop were consumed by it.
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.writing = false
	close(c.done)
}

func (c *Coordinator) setStatus(s Status) {
	c.status = s
	if c.onStatus != nil {
		c.onStatus(s)
	}
}
