package transport

import (
	"fmt"
	"sync/atomic"

	"github.com/dreamware/herdkv/internal/protocol"
)

// SharedRegion implements Transport over an in-process memory region: a
// byte slab of fixed-size cells plus one publication word per cell.
//
// Publication ordering carries the whole correctness argument. A write
// stores payload bytes with plain stores and then publishes the control
// byte with an atomic store; a poller that observes the control byte with
// an atomic load is guaranteed (release/acquire) to see the payload bytes
// written before it. That is exactly the in-order visibility contract the
// dispatch loop's unsignaled batching depends on, expressed in the Go
// memory model instead of NIC write ordering.
//
// The slab itself is never touched by two goroutines at once: cells are
// statically partitioned by the (worker, client, slot) addressing scheme,
// and within a cell the publication words alternate ownership between the
// client (request published) and the worker (response published).
type SharedRegion struct {
	slab    []byte          // numSlots * protocol.SlotSize payload bytes
	pub     []atomic.Uint32 // per-cell publication word (the control byte)
	comps   atomic.Int64    // signaled completions not yet polled
	unacked atomic.Int64    // unsignaled writes since the last signaled one
}

// NewSharedRegion allocates and registers a region with the given cell
// count. This is the process-lifetime allocation done once by bootstrap;
// regions are never resized.
func NewSharedRegion(numSlots int) (*SharedRegion, error) {
	if numSlots <= 0 {
		return nil, fmt.Errorf("region must have at least one slot, got %d", numSlots)
	}
	return &SharedRegion{
		slab: make([]byte, numSlots*protocol.SlotSize),
		pub:  make([]atomic.Uint32, numSlots),
	}, nil
}

// NumSlots returns the region's cell count.
func (r *SharedRegion) NumSlots() int {
	return len(r.pub)
}

// PollOpcode returns the cell's current control byte (acquire load).
func (r *SharedRegion) PollOpcode(slot int) byte {
	return byte(r.pub[slot].Load())
}

// Read copies the cell's payload into dst.
func (r *SharedRegion) Read(slot int, dst []byte) {
	base := slot * protocol.SlotSize
	copy(dst, r.slab[base:base+protocol.SlotSize])
}

// PostWrite stores the payload, then publishes the control byte.
func (r *SharedRegion) PostWrite(w Write, signaled bool) {
	r.write(w)
	r.account(1, signaled)
}

// PostWriteList posts the writes in list order as one submission.
func (r *SharedRegion) PostWriteList(ws []Write, signaled bool) {
	for _, w := range ws {
		r.write(w)
	}
	r.account(len(ws), signaled)
}

func (r *SharedRegion) write(w Write) {
	base := w.Slot * protocol.SlotSize
	copy(r.slab[base:base+protocol.SlotSize], w.Data)
	r.pub[w.Slot].Store(uint32(w.Op))
}

// account tracks completion bookkeeping: a signaled submission completes
// itself and retroactively covers every unsignaled submission before it.
func (r *SharedRegion) account(n int, signaled bool) {
	if signaled {
		r.unacked.Store(0)
		r.comps.Add(1)
		return
	}
	r.unacked.Add(int64(n))
}

// PollCompletions drains the accumulated signaled completions.
func (r *SharedRegion) PollCompletions() int {
	return int(r.comps.Swap(0))
}

// Unacked returns the number of writes posted since the last signaled
// submission. These are visible but carry no completion of their own
// until the next signaled write covers them.
func (r *SharedRegion) Unacked() int {
	return int(r.unacked.Load())
}
