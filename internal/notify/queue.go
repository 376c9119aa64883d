// Package notify holds the transient outcome messages (toasts) shown to one
// UI session. A Queue is an explicit object: whoever needs to raise or read
// notifications is handed the same *Queue.
package notify

import (
	"sync"
	"time"

	"projectflow/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Queue struct {
	mu       sync.Mutex
	items    []Notification
	timers   map[string]Timer
	subs     map[int]func(Snapshot)
	nextSub  int
	revision uint64

	sched    Scheduler
	now      func() time.Time
	newID    func() string
	duration time.Duration
	position Position
	logger   *zap.Logger
}

type Option func(*Queue)

func WithScheduler(s Scheduler) Option {
	return func(q *Queue) { q.sched = s }
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithDefaults overrides the duration and position used by Push and the
// severity helpers.
func WithDefaults(d time.Duration, p Position) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.duration = d
		}
		if p.Valid() {
			q.position = p
		}
	}
}

func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		timers:   make(map[string]Timer),
		subs:     make(map[int]func(Snapshot)),
		sched:    realScheduler{},
		now:      time.Now,
		newID:    uuid.NewString,
		duration: DefaultDuration,
		position: DefaultPosition,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends a notification and, when duration > 0, schedules its
// removal. An unknown severity becomes info and an unknown position falls
// back to the queue default.
func (q *Queue) Enqueue(message string, severity Severity, duration time.Duration, position Position) string {
	if !severity.Valid() {
		severity = Info
	}
	if !position.Valid() {
		position = q.position
	}
	if duration < 0 {
		duration = 0
	}

	q.mu.Lock()
	n := Notification{
		ID:        q.newID(),
		Message:   message,
		Severity:  severity,
		Position:  position,
		Duration:  duration,
		CreatedAt: q.now(),
	}
	q.items = append(q.items, n)
	if duration > 0 {
		id := n.ID
		q.timers[id] = q.sched.AfterFunc(duration, func() { q.expire(id) })
	}
	snap := q.snapshotLocked()
	q.mu.Unlock()

	metrics.RecordNotificationEnqueued(string(severity))
	q.logger.Debug("Notification enqueued",
		zap.String("id", n.ID),
		zap.String("severity", string(severity)),
		zap.String("position", string(position)),
		zap.Duration("duration", duration),
	)
	q.publish(snap)
	return n.ID
}

type PushOption func(*pushConfig)

type pushConfig struct {
	duration time.Duration
	position Position
}

// For sets the display duration; 0 makes the notification sticky.
func For(d time.Duration) PushOption {
	return func(c *pushConfig) { c.duration = d }
}

func Sticky() PushOption { return For(0) }

func At(p Position) PushOption {
	return func(c *pushConfig) { c.position = p }
}

// Push enqueues with the queue defaults, adjusted by opts.
func (q *Queue) Push(message string, severity Severity, opts ...PushOption) string {
	q.mu.Lock()
	c := pushConfig{duration: q.duration, position: q.position}
	q.mu.Unlock()
	for _, opt := range opts {
		opt(&c)
	}
	return q.Enqueue(message, severity, c.duration, c.position)
}

func (q *Queue) Success(message string, opts ...PushOption) string {
	return q.Push(message, Success, opts...)
}

func (q *Queue) Error(message string, opts ...PushOption) string {
	return q.Push(message, Error, opts...)
}

func (q *Queue) Warning(message string, opts ...PushOption) string {
	return q.Push(message, Warning, opts...)
}

func (q *Queue) Info(message string, opts ...PushOption) string {
	return q.Push(message, Info, opts...)
}

// Dismiss removes id immediately and cancels its timer. It reports whether
// anything was removed; dismissing twice is a no-op.
func (q *Queue) Dismiss(id string) bool {
	return q.remove(id, "dismissed")
}

func (q *Queue) expire(id string) {
	q.remove(id, "expired")
}

func (q *Queue) remove(id, reason string) bool {
	q.mu.Lock()
	idx := -1
	for i, n := range q.items {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items[:idx:idx], q.items[idx+1:]...)
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
	snap := q.snapshotLocked()
	q.mu.Unlock()

	metrics.RecordNotificationsRemoved(1)
	q.logger.Debug("Notification removed", zap.String("id", id), zap.String("reason", reason))
	q.publish(snap)
	return true
}

// ClearAll removes every notification and cancels all pending timers.
func (q *Queue) ClearAll() {
	q.mu.Lock()
	removed := len(q.items)
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	q.items = nil
	snap := q.snapshotLocked()
	q.mu.Unlock()

	metrics.RecordNotificationsRemoved(removed)
	if removed > 0 {
		q.logger.Debug("Notifications cleared", zap.Int("count", removed))
	}
	q.publish(snap)
}

// Active returns the current notifications in enqueue order.
func (q *Queue) Active() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Notification{}, q.items...)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Get(id string) (Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, n := range q.items {
		if n.ID == id {
			return n, true
		}
	}
	return Notification{}, false
}

// Stacks groups active notifications by anchor. Within a stack the oldest
// notification has index 0 and sits nearest the anchor; newer ones stack
// outward, so entries never overlap and enqueue order is preserved.
// Positions with nothing to show are omitted.
func (q *Queue) Stacks() []Stack {
	active := q.Active()
	byPos := make(map[Position][]Placed)
	for _, n := range active {
		byPos[n.Position] = append(byPos[n.Position], Placed{Notification: n, Index: len(byPos[n.Position])})
	}
	out := make([]Stack, 0, len(byPos))
	for _, p := range Positions {
		if items, ok := byPos[p]; ok {
			out = append(out, Stack{Position: p, Items: items})
		}
	}
	return out
}

// Subscribe registers fn to receive a snapshot after every change and
// returns a function that unregisters it. fn is called outside the queue's
// lock and may call back into the queue.
func (q *Queue) Subscribe(fn func(Snapshot)) (cancel func()) {
	q.mu.Lock()
	id := q.nextSub
	q.nextSub++
	q.subs[id] = fn
	q.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			delete(q.subs, id)
			q.mu.Unlock()
		})
	}
}

type delivery struct {
	snap Snapshot
	subs []func(Snapshot)
}

func (q *Queue) snapshotLocked() delivery {
	q.revision++
	d := delivery{
		snap: Snapshot{Revision: q.revision, Items: append([]Notification{}, q.items...)},
		subs: make([]func(Snapshot), 0, len(q.subs)),
	}
	for i := 0; i < q.nextSub; i++ {
		if fn, ok := q.subs[i]; ok {
			d.subs = append(d.subs, fn)
		}
	}
	return d
}

func (q *Queue) publish(d delivery) {
	for _, fn := range d.subs {
		fn(d.snap)
	}
}

// Snapshot returns the current state without bumping the revision.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Snapshot{Revision: q.revision, Items: append([]Notification{}, q.items...)}
}
