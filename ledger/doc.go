// Package ledger accounts for allocations handed to a foreign heap.
//
// Every buffer the boundary publishes must be reclaimed exactly once by the
// foreign side. The ledger is opt-in instrumentation that makes this
// observable: each allocation is recorded by address and released when the
// matching reclamation entry point runs.
//
//	l := ledger.New()
//	l.Record(addr, size, ledger.KindSamples)
//	...
//	entry, err := l.Release(addr) // ErrUnknown on a double free
//
// After a balanced sequence of decodes and reclamations Len() is zero.
//
// # Observers
//
// Observers see every transition, including releases of addresses that
// were never recorded:
//
//	type leakWatch struct{}
//
//	func (leakWatch) OnLedgerEvent(e ledger.Event) {
//	    if e.Type == ledger.EventUnknownRelease {
//	        log.Printf("free of unknown address %#x", e.Addr)
//	    }
//	}
//
//	l.Subscribe(leakWatch{})
//
// Observers run synchronously and must not call back into the ledger.
package ledger
