package usb

import (
	"context"
	"sync"
	"time"

	"github.com/ochichan/lazarus/pkg/log"
)

// EventType distinguishes the two notifications a Watcher emits.
type EventType string

const (
	// Connected fires the first time a Lazarus volume is seen at a path.
	Connected EventType = "connected"
	// Disconnected fires once a previously seen path stops appearing in a scan.
	Disconnected EventType = "disconnected"
)

// Event is one connect/disconnect notification broadcast to every
// subscriber.
type Event struct {
	Type EventType
	USB  LazarusUsb
	Time time.Time
}

// Subscription is a channel carrying events for one subscriber.
type Subscription chan Event

// DefaultPollInterval is used when a Watcher is constructed with a
// zero interval.
const DefaultPollInterval = 5 * time.Second

// Watcher polls mountRoots on an interval and broadcasts Connected and
// Disconnected events to its subscribers. It owns the one goroutine
// the USB sync engine runs; every other component in this module is
// synchronous.
type Watcher struct {
	Interval time.Duration

	mu          sync.RWMutex
	known       map[string]LazarusUsb
	subscribers map[Subscription]bool

	scan func() []LazarusUsb
}

// NewWatcher constructs a Watcher polling at interval (DefaultPollInterval
// if zero).
func NewWatcher(interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		Interval:    interval,
		known:       make(map[string]LazarusUsb),
		subscribers: make(map[Subscription]bool),
		scan:        Scan,
	}
}

// Subscribe returns a buffered channel that receives every future
// event. Callers must Unsubscribe when done to avoid leaking the
// channel's slot in the broadcast set.
func (w *Watcher) Subscribe() Subscription {
	w.mu.Lock()
	defer w.mu.Unlock()

	sub := make(Subscription, 16)
	w.subscribers[sub] = true
	return sub
}

// Unsubscribe removes sub from the broadcast set and closes it.
func (w *Watcher) Unsubscribe(sub Subscription) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.subscribers[sub] {
		delete(w.subscribers, sub)
		close(sub)
	}
}

func (w *Watcher) broadcast(ev Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for sub := range w.subscribers {
		select {
		case sub <- ev:
		default:
			// subscriber buffer full; drop rather than block the poll loop.
		}
	}
}

// Known returns every volume currently believed connected.
func (w *Watcher) Known() []LazarusUsb {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]LazarusUsb, 0, len(w.known))
	for _, u := range w.known {
		out = append(out, u)
	}
	return out
}

// Tick performs one scan, updating the known set and broadcasting any
// Connected/Disconnected events it observes. Exported so callers and
// tests can drive the watcher without waiting on the poll interval.
func (w *Watcher) Tick() {
	found := w.scan()

	seen := make(map[string]LazarusUsb, len(found))
	for _, u := range found {
		seen[u.Path] = u
	}

	w.mu.Lock()
	var toAnnounce []Event
	for path, u := range seen {
		if _, ok := w.known[path]; !ok {
			toAnnounce = append(toAnnounce, Event{Type: Connected, USB: u, Time: time.Now()})
		}
	}
	for path, u := range w.known {
		if _, ok := seen[path]; !ok {
			toAnnounce = append(toAnnounce, Event{Type: Disconnected, USB: u, Time: time.Now()})
		}
	}
	w.known = seen
	w.mu.Unlock()

	clog := log.WithComponent("sync")
	for _, ev := range toAnnounce {
		clog.Info().Str("event", string(ev.Type)).Str("usb", ev.USB.Name).Msg("usb volume state change")
		w.broadcast(ev)
	}
}

// Run drives the poll loop until ctx is canceled, ticking once
// immediately and then every Interval.
func (w *Watcher) Run(ctx context.Context) {
	w.Tick()
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick()
		}
	}
}
