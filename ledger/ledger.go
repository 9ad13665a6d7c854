package ledger

import (
	"errors"
	"sync"
)

var (
	ErrDoubleRecord = errors.New("address already live")
	ErrUnknown      = errors.New("address not live")
)

// Ledger tracks live foreign-heap allocations by address.
type Ledger struct {
	entries   map[uint64]Entry
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	bytes     uint64
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		entries: make(map[uint64]Entry, 64),
	}
}

// Record marks addr as live.
func (l *Ledger) Record(addr, size uint64, kind Kind) error {
	e := Entry{Addr: addr, Size: size, Kind: kind}

	l.mu.Lock()
	if _, ok := l.entries[addr]; ok {
		l.mu.Unlock()
		return ErrDoubleRecord
	}
	l.entries[addr] = e
	l.bytes += size
	l.mu.Unlock()

	l.notify(Event{Entry: e, Type: EventRecorded})
	return nil
}

// Release marks addr as reclaimed and returns its entry. An address that is
// not live is reported as ErrUnknown: a double free or a foreign pointer.
func (l *Ledger) Release(addr uint64) (Entry, error) {
	l.mu.Lock()
	e, ok := l.entries[addr]
	if !ok {
		l.mu.Unlock()
		l.notify(Event{Entry: Entry{Addr: addr}, Type: EventUnknownRelease})
		return Entry{}, ErrUnknown
	}
	delete(l.entries, addr)
	l.bytes -= e.Size
	l.mu.Unlock()

	l.notify(Event{Entry: e, Type: EventReleased})
	return e, nil
}

// Len returns the number of live allocations.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Bytes returns the total size of live allocations.
func (l *Ledger) Bytes() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bytes
}

// Each iterates over live allocations in no particular order.
func (l *Ledger) Each(fn func(Entry) bool) {
	l.mu.RLock()
	entries := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, e)
	}
	l.mu.RUnlock()

	for _, e := range entries {
		if !fn(e) {
			break
		}
	}
}

// Subscribe adds an observer for allocation events.
func (l *Ledger) Subscribe(o Observer) {
	l.obsMu.Lock()
	defer l.obsMu.Unlock()
	l.observers = append(l.observers, o)
}

func (l *Ledger) notify(e Event) {
	l.obsMu.RLock()
	defer l.obsMu.RUnlock()
	for _, o := range l.observers {
		o.OnLedgerEvent(e)
	}
}
