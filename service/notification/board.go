package notification

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

type State string

const (
	StateUnseen      State = "UNSEEN"
	StateDetailShown State = "DETAIL_SHOWN"
	StateConfirming  State = "CONFIRMING"
	StateInFlight    State = "IN_FLIGHT"
	StateProcessed   State = "PROCESSED"
	StateFailed      State = "FAILED"
)

type Event string

const (
	EventShowDetails   Event = "show_details"
	EventCloseDetails  Event = "close_details"
	EventConfirmOpened Event = "confirm_opened"
	EventConfirmClosed Event = "confirm_closed"
	EventSubmitted     Event = "submitted"
	EventSucceeded     Event = "succeeded"
	EventFailed        Event = "failed"
)

// Transition is the input of the reducer. Reconciled is only read for
// EventSucceeded, Err only for EventFailed.
type Transition struct {
	Event      Event
	Reconciled bool
	Err        error
}

// Entry is the view model of one notification.
type Entry struct {
	Notification Notification `json:"notification"`
	State        State        `json:"state"`
	// Reconciled is false when the action succeeded but the server was not
	// told; the entry then becomes actionable again on the next ingest.
	Reconciled bool      `json:"reconciled"`
	LastError  string    `json:"lastError,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
	// Version grows with every change, so a console can drop stale updates.
	Version uint64 `json:"version"`
}

// Actionable reports whether the entry may still offer its action button.
// A processed entry is never actionable.
func (e Entry) Actionable() bool {
	if !e.Notification.Type.Known() {
		return false
	}
	switch e.State {
	case StateUnseen, StateDetailShown, StateConfirming, StateFailed:
		return true
	default:
		return false
	}
}

// Reduce applies t to e. It is pure; Board serialises calls to it.
func Reduce(e Entry, t Transition, now time.Time) (Entry, error) {
	next := e
	next.UpdatedAt = now

	switch t.Event {
	case EventShowDetails:
		switch e.State {
		case StateUnseen, StateFailed:
			next.State = StateDetailShown
		}

	case EventCloseDetails:
		switch e.State {
		case StateDetailShown, StateConfirming:
			next.State = StateUnseen
		}

	case EventConfirmOpened:
		if !e.Actionable() {
			return e, invalid(e, t)
		}
		next.State = StateConfirming

	case EventConfirmClosed:
		if e.State != StateConfirming {
			return e, invalid(e, t)
		}
		next.State = StateDetailShown

	case EventSubmitted:
		if e.State != StateConfirming {
			return e, invalid(e, t)
		}
		next.State = StateInFlight
		next.LastError = ""

	case EventSucceeded:
		if e.State != StateInFlight {
			return e, invalid(e, t)
		}
		next.State = StateProcessed
		next.Reconciled = t.Reconciled
		next.LastError = ""

	case EventFailed:
		if e.State != StateInFlight {
			return e, invalid(e, t)
		}
		next.State = StateFailed
		if t.Err != nil {
			next.LastError = t.Err.Error()
		}

	default:
		return e, invalid(e, t)
	}

	return next, nil
}

func invalid(e Entry, t Transition) error {
	return fmt.Errorf("%w: %s on notification %d in state %s", ErrInvalidTransition, t.Event, e.Notification.ID, e.State)
}

// Board holds the view model of every ingested notification. The bank server
// stays the source of truth; the board only mirrors what the console has seen
// and done.
type Board struct {
	mu        sync.Mutex
	entries   map[int64]*Entry
	listeners []func(Entry)
	now       func() time.Time

	// notifyMu is taken before mu is released, so listeners see changes in
	// the order they were made.
	notifyMu sync.Mutex
}

func NewBoard() *Board {
	return &Board{
		entries: make(map[int64]*Entry),
		now:     time.Now,
	}
}

// Subscribe registers fn to receive a copy of every changed entry. Listeners
// run one at a time, in change order, and must not call back into the board.
func (b *Board) Subscribe(fn func(Entry)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// Ingest adds n or refreshes an entry already on the board. A server-side
// processed flag always wins. An unprocessed copy of an entry that was
// processed locally but never reconciled makes it actionable again.
func (b *Board) Ingest(n Notification) (Entry, error) {
	if err := n.Validate(); err != nil {
		return Entry{}, err
	}

	b.mu.Lock()
	now := b.now()

	e, ok := b.entries[n.ID]
	switch {
	case !ok:
		e = &Entry{Notification: n, State: StateUnseen, UpdatedAt: now}
		if n.Processed {
			e.State = StateProcessed
			e.Reconciled = true
		}
		b.entries[n.ID] = e

	case e.State == StateInFlight:
		// the running action decides the outcome

	case n.Processed:
		e.State = StateProcessed
		e.Reconciled = true
		e.Notification.Processed = true
		e.UpdatedAt = now

	case e.State == StateProcessed && !e.Reconciled:
		e.State = StateUnseen
		e.UpdatedAt = now
	}

	e.Version++
	snapshot := *e
	b.publish(snapshot)
	return snapshot, nil
}

// Apply runs the reducer against the entry with the given id.
func (b *Board) Apply(id int64, t Transition) (Entry, error) {
	b.mu.Lock()
	e, ok := b.entries[id]
	if !ok {
		b.mu.Unlock()
		return Entry{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	next, err := Reduce(*e, t, b.now())
	if err != nil {
		b.mu.Unlock()
		return *e, err
	}
	changed := next.State != e.State || next.LastError != e.LastError || next.Reconciled != e.Reconciled
	if !changed {
		b.mu.Unlock()
		return *e, nil
	}
	next.Version = e.Version + 1
	*e = next
	b.publish(next)
	return next, nil
}

func (b *Board) Get(id int64) (Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return *e, nil
}

// List returns every entry ordered by notification id.
func (b *Board) List() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Notification.ID < out[j].Notification.ID
	})
	return out
}

func (b *Board) Stats() map[State]int {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := make(map[State]int)
	for _, e := range b.entries {
		stats[e.State]++
	}
	return stats
}

// publish hands e to the listeners. Callers hold b.mu, which is released
// here once the notify lock is taken.
func (b *Board) publish(e Entry) {
	listeners := b.listeners
	b.notifyMu.Lock()
	b.mu.Unlock()
	defer b.notifyMu.Unlock()

	for _, fn := range listeners {
		fn(e)
	}
}
