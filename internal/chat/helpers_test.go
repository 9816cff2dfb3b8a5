package chat

import (
	"context"
	"sync"
	"time"
)

// fakeClock is a manually advanced clock. Due callbacks run
// synchronously, in deadline order, on the goroutine calling Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock    *fakeClock
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{clock: c, deadline: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock to now+d, firing every timer due on the way.
// Callbacks may schedule further timers; those fire too if they fall
// within the window. The lock is released around each callback so
// callbacks can use the clock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		next := c.nextDueLocked(target)
		if next == nil {
			break
		}
		if next.deadline.After(c.now) {
			c.now = next.deadline
		}
		next.fired = true
		fn := next.fn
		c.mu.Unlock()
		fn()
		c.mu.Lock()
	}
	if target.After(c.now) {
		c.now = target
	}
	c.mu.Unlock()
}

func (c *fakeClock) nextDueLocked(target time.Time) *fakeTimer {
	var best *fakeTimer
	for _, t := range c.timers {
		if t.stopped || t.fired || t.deadline.After(target) {
			continue
		}
		if best == nil || t.deadline.Before(best.deadline) {
			best = t
		}
	}
	return best
}

type fetchCall struct {
	peer  int64
	after int64
	at    time.Time
}

// fakeTransport records calls and delegates behavior to optional hooks.
type fakeTransport struct {
	mu sync.Mutex

	clock *fakeClock

	fetchFn  func(call int, peerID, after int64) ([]Message, error)
	sendFn   func(peerID int64, text string, attachment *Attachment) (*Message, error)
	deleteFn func(id int64) error

	fetches     []fetchCall
	sendCalls   int
	deleteCalls int
}

func newFakeTransport(clock *fakeClock) *fakeTransport {
	return &fakeTransport{clock: clock}
}

func (t *fakeTransport) FetchMessages(_ context.Context, peerID, after int64, _ string) ([]Message, error) {
	t.mu.Lock()
	call := len(t.fetches)
	t.fetches = append(t.fetches, fetchCall{peer: peerID, after: after, at: t.clock.Now()})
	fn := t.fetchFn
	t.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(call, peerID, after)
}

func (t *fakeTransport) SendMessage(_ context.Context, peerID int64, text string, attachment *Attachment) (*Message, error) {
	t.mu.Lock()
	t.sendCalls++
	fn := t.sendFn
	t.mu.Unlock()

	if fn == nil {
		return &Message{ID: 1, Content: text}, nil
	}
	return fn(peerID, text, attachment)
}

func (t *fakeTransport) DeleteMessage(_ context.Context, id int64) error {
	t.mu.Lock()
	t.deleteCalls++
	fn := t.deleteFn
	t.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(id)
}

func (t *fakeTransport) fetchCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.fetches)
}

func (t *fakeTransport) fetchAt(i int) fetchCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fetches[i]
}

// fakeRenderer records rendered message ids and scroll activity.
type fakeRenderer struct {
	mu       sync.Mutex
	rendered []int64
	bottom   bool
	scrolls  int
}

func (r *fakeRenderer) RenderMessage(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rendered = append(r.rendered, m.ID)
}

func (r *fakeRenderer) IsScrolledToBottom() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bottom
}

func (r *fakeRenderer) ScrollToBottom() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrolls++
}

func (r *fakeRenderer) renderedIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, len(r.rendered))
	copy(out, r.rendered)
	return out
}

func (r *fakeRenderer) scrollCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scrolls
}

// fakeNotifier records notification side effects.
type fakeNotifier struct {
	mu      sync.Mutex
	allowed bool
	sounds  int
	alerts  []string
}

func (n *fakeNotifier) PlaySound() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sounds++
}

func (n *fakeNotifier) NotificationsAllowed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.allowed
}

func (n *fakeNotifier) ShowDesktopNotification(summary string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, summary)
}

func (n *fakeNotifier) soundCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sounds
}

func (n *fakeNotifier) alertList() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.alerts))
	copy(out, n.alerts)
	return out
}

const (
	testSelfID = int64(1)
	testPeerID = int64(2)
)

type engine struct {
	clock     *fakeClock
	transport *fakeTransport
	store     *Store
	renderer  *fakeRenderer
	notifier  *fakeNotifier
	pipeline  *Pipeline
	bus       *EventBus
	session   *Session
}

func newEngine() *engine {
	clock := newFakeClock()
	transport := newFakeTransport(clock)
	store := NewStore()
	renderer := &fakeRenderer{bottom: true}
	notifier := &fakeNotifier{allowed: true}
	pipeline := NewPipeline(store, renderer, notifier, clock, testSelfID)
	bus := NewEventBus(0)
	return &engine{
		clock:     clock,
		transport: transport,
		store:     store,
		renderer:  renderer,
		notifier:  notifier,
		pipeline:  pipeline,
		bus:       bus,
		session:   NewSession(transport, store, pipeline, bus, clock, testSelfID),
	}
}

func peerMsg(id int64, content string) Message {
	return Message{ID: id, SenderID: testPeerID, ReceiverID: testSelfID, Content: content}
}

func selfMsg(id int64, content string) Message {
	return Message{ID: id, SenderID: testSelfID, ReceiverID: testPeerID, Content: content}
}

// waitUntil polls cond with real sleeps, for the few tests where a
// transport call happens on another goroutine.
func waitUntil(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}
