package manager

import (
	"sync/atomic"
	"time"

	"github.com/pthm-cable/flowgrid/field"
	"github.com/pthm-cable/flowgrid/grid"
)

// Status is the lifecycle state of a field request.
type Status int32

const (
	// StatusPending means generation has not completed yet.
	StatusPending Status = iota
	// StatusReady means the field is published and samplable.
	StatusReady
	// StatusUnreachable means no goal cell was passable; terminal for
	// this signature until obstacles change and a new request is made.
	StatusUnreachable
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusUnreachable:
		return "unreachable"
	}
	return "unknown"
}

// entry is one cached field keyed by goal signature. refs counts
// outstanding handles and pins the entry against eviction. The field
// pointer and status are atomics so handle reads never take the manager
// lock.
type entry struct {
	sig field.Signature
	gen *field.Generator

	refs   int // guarded by Manager.mu
	status atomic.Int32
	fld    atomic.Pointer[field.Field]

	requestedTick int64
	requestedAt   time.Time
	ticksSpanned  int

	// intrusive LRU links, guarded by Manager.mu
	lruPrev, lruNext *entry
}

// Handle is an agent's reference to one field. It stays valid — and the
// underlying field immutable — until released, even if obstacles change;
// agents that want the updated topology re-request. Release exactly
// once when the command completes or is superseded.
type Handle struct {
	m        *Manager
	e        *entry
	released atomic.Bool
}

// Signature returns the goal signature this handle was created under.
func (h *Handle) Signature() field.Signature {
	h.assertLive()
	return h.e.sig
}

// Status returns the request's current state. Never blocks.
func (h *Handle) Status() Status {
	h.assertLive()
	return Status(h.e.status.Load())
}

// Field returns the published field, or nil while the request is still
// pending. Unreachable requests publish an all-unreached field.
func (h *Handle) Field() *field.Field {
	h.assertLive()
	return h.e.fld.Load()
}

// Sample returns the interpolated movement direction at a world
// position. ok is false while pending, for unreachable fields, at
// goals, and at positions cut off from every goal. Pure read; safe from
// any goroutine, never blocks.
func (h *Handle) Sample(p grid.Vec2) (grid.Vec2, bool) {
	h.assertLive()
	f := h.e.fld.Load()
	if f == nil {
		return grid.Vec2{}, false
	}
	return f.Sample(p)
}

// Integration returns the remaining path cost at a world position, for
// arrival logic. ok mirrors Sample's contract.
func (h *Handle) Integration(p grid.Vec2) (float32, bool) {
	h.assertLive()
	f := h.e.fld.Load()
	if f == nil {
		return 0, false
	}
	return f.IntegrationAt(p)
}

// Release drops this handle's pin on the cached field. The entry
// becomes evictable once no handles remain; an in-flight generation is
// abandoned or completed harmlessly either way.
func (h *Handle) Release() {
	if h.released.Swap(true) {
		panic("manager: handle released twice")
	}
	h.m.release(h.e)
}

// assertLive catches use-after-release, which reference counting is
// supposed to make impossible for callers that follow the contract.
func (h *Handle) assertLive() {
	if h.released.Load() {
		panic("manager: use of released handle")
	}
}

// lruList is an intrusive doubly-linked list of entries, most recently
// used at the front.
type lruList struct {
	head, tail *entry
}

func (l *lruList) pushFront(e *entry) {
	e.lruPrev = nil
	e.lruNext = l.head
	if l.head != nil {
		l.head.lruPrev = e
	}
	l.head = e
	if l.tail == nil {
		l.tail = e
	}
}

func (l *lruList) remove(e *entry) {
	if e.lruPrev != nil {
		e.lruPrev.lruNext = e.lruNext
	} else {
		l.head = e.lruNext
	}
	if e.lruNext != nil {
		e.lruNext.lruPrev = e.lruPrev
	} else {
		l.tail = e.lruPrev
	}
	e.lruPrev = nil
	e.lruNext = nil
}

func (l *lruList) moveToFront(e *entry) {
	if l.head == e {
		return
	}
	l.remove(e)
	l.pushFront(e)
}

func (l *lruList) back() *entry { return l.tail }

func (l *lruList) prev(e *entry) *entry { return e.lruPrev }
