package ledger

import "fmt"

// Kind classifies what a live allocation holds.
type Kind uint8

const (
	KindRecord  Kind = iota // the published result struct
	KindSamples             // a transferred sample buffer
	KindText                // a diagnostic string
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindSamples:
		return "samples"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Entry is one live allocation.
type Entry struct {
	Addr uint64
	Size uint64
	Kind Kind
}

// EventType identifies a ledger transition.
type EventType uint8

const (
	EventRecorded EventType = iota
	EventReleased
	EventUnknownRelease
)

// Event is delivered to observers after each transition.
type Event struct {
	Entry
	Type EventType
}

// Observer receives ledger events. Observers are called synchronously on
// the allocating goroutine and must not call back into the ledger.
type Observer interface {
	OnLedgerEvent(Event)
}
