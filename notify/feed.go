package notify

import (
	"slices"
	"sync"

	session "github.com/goliatone/go-erp-session"
)

type msgKind int

const (
	msgFetched msgKind = iota
	msgPushed
	msgMarkRead
	msgMarkAllRead
	msgRemove
	msgReset
	msgSnapshot
)

type message struct {
	kind       msgKind
	generation uint64
	items      []Notification
	id         ID
	reply      chan reply
}

type reply struct {
	ok         bool
	generation uint64
	items      []Notification
}

// Feed holds the notification list. Every change is a message consumed by a
// single reducer goroutine, so merges never race. After Close every call
// is a no-op reporting false.
type Feed struct {
	principal session.PrincipalSource
	logger    session.Logger
	onChange  func()

	msgs      chan message
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// owned by run
	items      []Notification
	index      map[ID]int
	generation uint64
}

// FeedOption customizes a Feed.
type FeedOption func(*Feed)

// WithFeedLogger sets the logger
func WithFeedLogger(logger session.Logger) FeedOption {
	return func(f *Feed) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithChangeHandler is called from the reducer after each state change. It
// must not call back into the Feed.
func WithChangeHandler(fn func()) FeedOption {
	return func(f *Feed) {
		f.onChange = fn
	}
}

// NewFeed starts the reducer. principal is read every time a pushed event
// is filtered, never cached.
func NewFeed(principal session.PrincipalSource, opts ...FeedOption) *Feed {
	if principal == nil {
		principal = func() *session.Principal { return nil }
	}
	f := &Feed{
		principal: principal,
		logger:    session.NopLogger(),
		msgs:      make(chan message),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		index:     map[ID]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	go f.run()
	return f
}

func (f *Feed) run() {
	defer close(f.stopped)
	for {
		select {
		case <-f.done:
			return
		case m := <-f.msgs:
			r, changed := f.reduce(m)
			m.reply <- r
			if changed && f.onChange != nil {
				f.onChange()
			}
		}
	}
}

func (f *Feed) reduce(m message) (reply, bool) {
	switch m.kind {
	case msgFetched:
		if m.generation != f.generation {
			f.logger.Debug("dropping stale fetch", "generation", m.generation, "current", f.generation)
			return reply{generation: f.generation}, false
		}
		for _, n := range m.items {
			f.upsert(n)
		}
		return reply{ok: true, generation: f.generation}, len(m.items) > 0

	case msgPushed:
		n := m.items[0]
		if _, exists := f.index[n.ID]; exists {
			return reply{generation: f.generation}, false
		}
		if !n.VisibleTo(f.principal()) {
			f.logger.Debug("dropping notification outside principal roles", "id", n.ID)
			return reply{generation: f.generation}, false
		}
		f.append(n)
		return reply{ok: true, generation: f.generation}, true

	case msgMarkRead:
		i, ok := f.index[m.id]
		if !ok {
			return reply{generation: f.generation}, false
		}
		changed := !f.items[i].IsRead
		f.items[i].IsRead = true
		return reply{ok: true, generation: f.generation}, changed

	case msgMarkAllRead:
		changed := false
		for i := range f.items {
			if !f.items[i].IsRead {
				f.items[i].IsRead = true
				changed = true
			}
		}
		return reply{ok: true, generation: f.generation}, changed

	case msgRemove:
		i, ok := f.index[m.id]
		if !ok {
			return reply{generation: f.generation}, false
		}
		f.items = slices.Delete(f.items, i, i+1)
		f.reindex()
		return reply{ok: true, generation: f.generation}, true

	case msgReset:
		changed := len(f.items) > 0
		f.items = nil
		f.index = map[ID]int{}
		f.generation++
		return reply{ok: true, generation: f.generation}, changed

	case msgSnapshot:
		out := make([]Notification, len(f.items))
		for i, n := range f.items {
			out[i] = n.clone()
		}
		return reply{ok: true, generation: f.generation, items: out}, false
	}
	return reply{}, false
}

// upsert keeps the first position of an id; the latest write wins on fields.
func (f *Feed) upsert(n Notification) {
	if n.ID == "" {
		return
	}
	if i, ok := f.index[n.ID]; ok {
		f.items[i] = n.clone()
		return
	}
	f.append(n)
}

func (f *Feed) append(n Notification) {
	f.index[n.ID] = len(f.items)
	f.items = append(f.items, n.clone())
}

func (f *Feed) reindex() {
	f.index = make(map[ID]int, len(f.items))
	for i, n := range f.items {
		f.index[n.ID] = i
	}
}

func (f *Feed) send(m message) (reply, bool) {
	m.reply = make(chan reply, 1)
	select {
	case f.msgs <- m:
	case <-f.done:
		return reply{}, false
	}
	return <-m.reply, true
}

// Merge applies a bulk fetch result taken at generation. Results from an
// older generation are dropped.
func (f *Feed) Merge(generation uint64, items []Notification) bool {
	r, ok := f.send(message{kind: msgFetched, generation: generation, items: items})
	return ok && r.ok
}

// Push merges one pushed event if the current principal may see it and
// its id is new. It reports whether the event was added.
func (f *Feed) Push(n Notification) bool {
	if n.ID == "" {
		return false
	}
	r, ok := f.send(message{kind: msgPushed, items: []Notification{n}})
	return ok && r.ok
}

// MarkRead sets the read flag of id.
func (f *Feed) MarkRead(id ID) bool {
	r, ok := f.send(message{kind: msgMarkRead, id: id})
	return ok && r.ok
}

// MarkAllRead sets every read flag.
func (f *Feed) MarkAllRead() bool {
	r, ok := f.send(message{kind: msgMarkAllRead})
	return ok && r.ok
}

// Remove drops id from the list.
func (f *Feed) Remove(id ID) bool {
	r, ok := f.send(message{kind: msgRemove, id: id})
	return ok && r.ok
}

// Reset empties the list and starts a new generation, which it returns.
// It returns 0 once the feed is closed.
func (f *Feed) Reset() uint64 {
	r, ok := f.send(message{kind: msgReset})
	if !ok {
		return 0
	}
	return r.generation
}

// Generation returns the current generation.
func (f *Feed) Generation() uint64 {
	r, ok := f.send(message{kind: msgSnapshot})
	if !ok {
		return 0
	}
	return r.generation
}

// Items returns every held notification in insertion order.
func (f *Feed) Items() []Notification {
	r, _ := f.send(message{kind: msgSnapshot})
	return r.items
}

// Notifications returns what the current principal may see, newest first.
func (f *Feed) Notifications() []Notification {
	p := f.principal()
	if !p.IsAuthenticated() {
		return nil
	}
	var out []Notification
	for _, n := range f.Items() {
		if n.serverScoped() || n.VisibleTo(p) {
			out = append(out, n)
		}
	}
	SortNewestFirst(out)
	return out
}

// UnreadCount counts visible unread notifications.
func (f *Feed) UnreadCount() int {
	count := 0
	for _, n := range f.Notifications() {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// Close stops the reducer and waits for it to exit. Safe to call twice.
func (f *Feed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
	<-f.stopped
}
